package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/JonMunkholm/applicants/internal/schema"
)

func TestDatabaseName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"postgres://user:pw@localhost:5432/applicants?sslmode=disable", "applicants"},
		{"postgres://localhost", ""},
		{"://bad", ""},
	}
	for _, tt := range tests {
		if got := DatabaseName(tt.url); got != tt.want {
			t.Errorf("DatabaseName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestOpen_BadURL(t *testing.T) {
	if _, err := Open(context.Background(), PoolConfig{URL: "not a url ::"}); err == nil {
		t.Error("Open() with a malformed URL succeeded, want error")
	}
}

// TestStore_Live runs against a real database when TEST_DATABASE_URL is set.
func TestStore_Live(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, PoolConfig{URL: dsn, MaxConns: 2})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	title := "тестовый уровень " + t.Name()
	id, err := s.InsertRef(ctx, schema.KindEduLevel, title)
	if err != nil {
		t.Fatalf("InsertRef() error = %v", err)
	}
	ref, ok, err := s.FindRef(ctx, schema.KindEduLevel, title)
	if err != nil || !ok || ref.ID != id {
		t.Fatalf("FindRef() before commit = %+v, %v, %v; want id %d", ref, ok, err, id)
	}

	if err := s.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if _, ok, _ := s.FindRef(ctx, schema.KindEduLevel, title); ok {
		t.Error("FindRef() found a rolled back ref")
	}
}

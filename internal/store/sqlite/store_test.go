package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/applicants/internal/schema"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RefsVisibleBeforeCommit(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	id, err := s.InsertRef(ctx, schema.KindDivision, "Институт информационных технологий")
	if err != nil {
		t.Fatalf("InsertRef() error = %v", err)
	}

	ref, ok, err := s.FindRef(ctx, schema.KindDivision, "Институт информационных технологий")
	if err != nil || !ok {
		t.Fatalf("FindRef() before commit = %v, %v, %v; want found", ref, ok, err)
	}
	if ref.ID != id {
		t.Errorf("FindRef() id = %d, want %d", ref.ID, id)
	}
	if err := s.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if _, err := s.InsertRef(ctx, schema.KindDivision, "Институт информационных технологий"); err == nil {
		t.Error("duplicate InsertRef() succeeded, want unique constraint error")
	}
}

func TestStore_RollbackDiscardsUncommitted(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	s.InsertRef(ctx, schema.KindEduLevel, "бакалавриат")
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	s.InsertRef(ctx, schema.KindEduLevel, "магистратура")
	if err := s.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if _, ok, _ := s.FindRef(ctx, schema.KindEduLevel, "магистратура"); ok {
		t.Error("rolled back ref still found")
	}
	if _, ok, _ := s.FindRef(ctx, schema.KindEduLevel, "бакалавриат"); !ok {
		t.Error("committed ref lost after rollback")
	}
}

func TestStore_ProgramWithoutDivision(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	levelID, _ := s.InsertRef(ctx, schema.KindEduLevel, "специалитет СПО")
	p := schema.EduProgram{
		Title:        "Сестринское дело",
		ProfileTitle: "на базе основного общего образования",
		EduLevelID:   levelID,
		Exam1Title:   "Средний балл аттестата",
	}
	id, err := s.InsertProgram(ctx, p)
	if err != nil {
		t.Fatalf("InsertProgram() error = %v", err)
	}

	got, ok, err := s.FindProgram(ctx, p.Key())
	if err != nil || !ok {
		t.Fatalf("FindProgram() = %v, %v; want found", ok, err)
	}
	if got.ID != id || got.DivisionID != 0 || got.Exam1Title != p.Exam1Title {
		t.Errorf("FindProgram() = %+v, want id %d, no division, exam title kept", got, id)
	}

	divID, _ := s.InsertRef(ctx, schema.KindDivision, "Медицинский колледж")
	key := p.Key()
	key.DivisionID = divID
	if _, ok, _ := s.FindProgram(ctx, key); ok {
		t.Error("FindProgram() matched a program of another division")
	}
}

func TestStore_ApplicantAndStats(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	levelID, _ := s.InsertRef(ctx, schema.KindEduLevel, "бакалавриат")
	formID, _ := s.InsertRef(ctx, schema.KindEduForm, "форма обучения: очная")
	finID, _ := s.InsertRef(ctx, schema.KindFinancing, "бюджет")
	progID, _ := s.InsertProgram(ctx, schema.EduProgram{Title: "Информатика", EduLevelID: levelID})
	sfID, err := s.InsertSourceFile(ctx, schema.SourceFile{
		RunID:            uuid.New(),
		Filename:         "list.xlsx",
		LastWriteTimeUTC: time.Date(2024, 7, 20, 9, 0, 0, 0, time.UTC),
		Length:           2048,
		Mode:             "extended",
	})
	if err != nil {
		t.Fatalf("InsertSourceFile() error = %v", err)
	}

	var rate pgtype.Numeric
	if err := rate.Scan("85.5"); err != nil {
		t.Fatal(err)
	}
	_, err = s.InsertApplicant(ctx, schema.Applicant{
		Order:        1,
		RankedOrder:  pgtype.Int4{Int32: 7, Valid: true},
		Name:         "Иванов И.И.",
		HasOriginal:  true,
		Exam1Rate:    rate,
		EduProgramID: progID,
		EduFormID:    formID,
		FinancingID:  finID,
		SourceFileID: sfID,
	})
	if err != nil {
		t.Fatalf("InsertApplicant() error = %v", err)
	}
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	var name string
	var ranked int
	var exam1 float64
	var exam2 *float64
	err = s.db.QueryRowContext(ctx, `SELECT name, ranked_order, exam1_rate, exam2_rate FROM applicants`).Scan(&name, &ranked, &exam1, &exam2)
	if err != nil {
		t.Fatalf("select applicant: %v", err)
	}
	if name != "Иванов И.И." || ranked != 7 || exam1 != 85.5 || exam2 != nil {
		t.Errorf("applicant row = %q, %d, %v, %v; want Иванов И.И., 7, 85.5, NULL", name, ranked, exam1, exam2)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := schema.Stats{EduForms: 1, Financings: 1, EduLevels: 1, EduPrograms: 1, Applicants: 1, SourceFiles: 1}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
}

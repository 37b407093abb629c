package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/JonMunkholm/applicants/internal/core"
)

func TestParseS3(t *testing.T) {
	tests := []struct {
		loc        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"s3://lists/2024/bachelor.xlsx", "lists", "2024/bachelor.xlsx", false},
		{"s3://lists/a.xlsx", "lists", "a.xlsx", false},
		{"s3://lists", "", "", true},
		{"s3:///a.xlsx", "", "", true},
		{"s3://lists/", "", "", true},
	}
	for _, tt := range tests {
		bucket, key, err := ParseS3(tt.loc)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseS3(%q) error = %v, wantErr %v", tt.loc, err, tt.wantErr)
			continue
		}
		if bucket != tt.wantBucket || key != tt.wantKey {
			t.Errorf("ParseS3(%q) = %q, %q; want %q, %q", tt.loc, bucket, key, tt.wantBucket, tt.wantKey)
		}
	}
}

func TestName(t *testing.T) {
	if got := Name("s3://lists/2024/bachelor.xlsx"); got != "bachelor.xlsx" {
		t.Errorf("Name(s3) = %q, want bachelor.xlsx", got)
	}
	if got := Name(filepath.Join("data", "college.xlsm")); got != "college.xlsm" {
		t.Errorf("Name(path) = %q, want college.xlsm", got)
	}
}

func TestOpen_UnsupportedWithoutIO(t *testing.T) {
	o := NewOpener(S3Config{})
	for _, loc := range []string{"/does/not/exist/report.csv", "s3://lists/report.ods"} {
		_, closer, err := o.Open(context.Background(), loc, core.ModeExtended)
		if !errors.Is(err, core.ErrUnsupportedFormat) {
			t.Errorf("Open(%q) error = %v, want ErrUnsupportedFormat", loc, err)
		}
		if closer != nil {
			t.Errorf("Open(%q) returned a closer for a rejected location", loc)
		}
	}
}

func TestOpen_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.xlsx")
	if err := os.WriteFile(path, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, closer, err := NewOpener(S3Config{}).Open(context.Background(), path, core.ModeSimple)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer closer.Close()

	if doc.Name != "list.xlsx" || doc.Size != 7 || doc.Mode != core.ModeSimple {
		t.Errorf("Open() doc = %+v, want list.xlsx size 7 simple", doc)
	}
	if doc.ModTime.IsZero() {
		t.Error("Open() ModTime is zero")
	}
	data, _ := io.ReadAll(doc.Reader)
	if string(data) != "payload" {
		t.Errorf("Reader content = %q, want payload", data)
	}
}

func TestOpen_LocalMissing(t *testing.T) {
	_, _, err := NewOpener(S3Config{}).Open(context.Background(), filepath.Join(t.TempDir(), "gone.xlsx"), "")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, want os.ErrNotExist", err)
	}
}

// objectServer answers path-style GetObject requests from memory.
type objectServer struct {
	objects map[string][]byte
	modTime time.Time
}

func (s *objectServer) RoundTrip(req *http.Request) (*http.Response, error) {
	key := strings.TrimPrefix(req.URL.Path, "/")
	body, ok := s.objects[key]
	if req.Method != http.MethodGet || !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader(`<Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`)),
			Header:     http.Header{"Content-Type": {"application/xml"}},
		}, nil
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header: http.Header{
			"Content-Length": {strconv.Itoa(len(body))},
			"Last-Modified":  {s.modTime.Format(http.TimeFormat)},
			"ETag":           {`"etag"`},
		},
		ContentLength: int64(len(body)),
	}, nil
}

func newTestClient(t *testing.T, srv *objectServer) *s3.Client {
	t.Helper()
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://objects.test")
		o.HTTPClient = &http.Client{Transport: srv}
		o.UsePathStyle = true
	})
}

func TestOpen_S3(t *testing.T) {
	mod := time.Date(2024, 7, 20, 9, 30, 0, 0, time.UTC)
	srv := &objectServer{
		objects: map[string][]byte{"lists/2024/bachelor.xlsx": []byte("workbook bytes")},
		modTime: mod,
	}
	o := NewOpener(S3Config{}).WithClient(newTestClient(t, srv))

	doc, closer, err := o.Open(context.Background(), "s3://lists/2024/bachelor.xlsx", core.ModeExtended)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer closer.Close()

	if doc.Name != "bachelor.xlsx" {
		t.Errorf("Name = %q, want bachelor.xlsx", doc.Name)
	}
	if doc.Size != int64(len("workbook bytes")) {
		t.Errorf("Size = %d, want %d", doc.Size, len("workbook bytes"))
	}
	if !doc.ModTime.Equal(mod) {
		t.Errorf("ModTime = %v, want %v", doc.ModTime, mod)
	}
	data, _ := io.ReadAll(doc.Reader)
	if string(data) != "workbook bytes" {
		t.Errorf("body = %q, want workbook bytes", data)
	}

	if _, _, err := o.Open(context.Background(), "s3://lists/missing.xlsx", ""); err == nil {
		t.Error("Open() of a missing object succeeded, want error")
	}
}

// Package sqlite stores ranking lists in a SQLite file using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JonMunkholm/applicants/internal/schema"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed schema.sql
var schemaSQL string

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store writes through one lazily started transaction.
//
// The pool holds a single connection, so every statement goes through the
// open transaction when there is one.
type Store struct {
	db *sql.DB

	mu sync.Mutex
	tx *sql.Tx
}

// Open creates or opens the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "applicants.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close rolls back any open transaction and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}

// conn returns the open transaction, or the pool when none is open.
// Callers hold s.mu.
func (s *Store) conn() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// writer returns the open transaction, starting one if needed.
// Callers hold s.mu.
func (s *Store) writer(ctx context.Context) (*sql.Tx, error) {
	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin: %w", err)
		}
		s.tx = tx
	}
	return s.tx, nil
}

func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.writer(ctx)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) FindRef(ctx context.Context, kind schema.EntityKind, title string) (schema.Ref, bool, error) {
	table := kind.Table()
	if !kind.IsRef() {
		return schema.Ref{}, false, fmt.Errorf("find ref: unknown kind %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := schema.Ref{Kind: kind, Title: title}
	err := s.conn().QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE title = ?`, title).Scan(&ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Ref{}, false, nil
	}
	if err != nil {
		return schema.Ref{}, false, fmt.Errorf("find %s: %w", kind, err)
	}
	return ref, true, nil
}

func (s *Store) InsertRef(ctx context.Context, kind schema.EntityKind, title string) (int64, error) {
	if !kind.IsRef() {
		return 0, fmt.Errorf("insert ref: unknown kind %q", kind)
	}
	id, err := s.insert(ctx, `INSERT INTO `+kind.Table()+` (title) VALUES (?)`, title)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", kind, err)
	}
	return id, nil
}

func (s *Store) FindProgram(ctx context.Context, key schema.ProgramKey) (schema.EduProgram, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p schema.EduProgram
	var division sql.NullInt64
	err := s.conn().QueryRowContext(ctx, `
		SELECT id, title, profile_title, edu_level_id, division_id, exam1_title, exam2_title, exam3_title
		FROM edu_programs
		WHERE title = ? AND profile_title = ? AND edu_level_id = ? AND division_id IS ?
		ORDER BY id LIMIT 1`,
		key.Title, key.ProfileTitle, key.EduLevelID, schema.NullID(key.DivisionID),
	).Scan(&p.ID, &p.Title, &p.ProfileTitle, &p.EduLevelID, &division, &p.Exam1Title, &p.Exam2Title, &p.Exam3Title)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.EduProgram{}, false, nil
	}
	if err != nil {
		return schema.EduProgram{}, false, fmt.Errorf("find program: %w", err)
	}
	p.DivisionID = division.Int64
	return p, true, nil
}

func (s *Store) InsertProgram(ctx context.Context, p schema.EduProgram) (int64, error) {
	id, err := s.insert(ctx, `
		INSERT INTO edu_programs (title, profile_title, edu_level_id, division_id, exam1_title, exam2_title, exam3_title)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.ProfileTitle, p.EduLevelID, schema.NullID(p.DivisionID), p.Exam1Title, p.Exam2Title, p.Exam3Title,
	)
	if err != nil {
		return 0, fmt.Errorf("insert program: %w", err)
	}
	return id, nil
}

func (s *Store) InsertApplicant(ctx context.Context, a schema.Applicant) (int64, error) {
	id, err := s.insert(ctx, `
		INSERT INTO applicants (
			ord, ranked_order, name, has_original, has_agreement, has_preemptive_right,
			exam1_rate, exam2_rate, exam3_rate, exam2_mark, ach_rate, total_rate,
			category, status, reject_reason,
			edu_program_id, edu_form_id, financing_id, source_file_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Order, a.RankedOrder, a.Name, a.HasOriginal, a.HasAgreement, a.HasPreemptiveRight,
		a.Exam1Rate, a.Exam2Rate, a.Exam3Rate, a.Exam2Mark, a.AchRate, a.TotalRate,
		a.Category, a.Status, a.RejectReason,
		a.EduProgramID, schema.NullID(a.EduFormID), schema.NullID(a.FinancingID), schema.NullID(a.SourceFileID),
	)
	if err != nil {
		return 0, fmt.Errorf("insert applicant: %w", err)
	}
	return id, nil
}

func (s *Store) InsertSourceFile(ctx context.Context, f schema.SourceFile) (int64, error) {
	id, err := s.insert(ctx, `
		INSERT INTO source_files (run_id, filename, last_write_time_utc, length, mode)
		VALUES (?, ?, ?, ?, ?)`,
		f.RunID.String(), f.Filename, f.LastWriteTimeUTC.UTC().Format(time.RFC3339Nano), f.Length, f.Mode,
	)
	if err != nil {
		return 0, fmt.Errorf("insert source file: %w", err)
	}
	return id, nil
}

func (s *Store) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Rollback(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (schema.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st schema.Stats
	counts := []struct {
		table string
		dst   *int64
	}{
		{"divisions", &st.Divisions},
		{"edu_forms", &st.EduForms},
		{"financings", &st.Financings},
		{"edu_levels", &st.EduLevels},
		{"edu_programs", &st.EduPrograms},
		{"applicants", &st.Applicants},
		{"source_files", &st.SourceFiles},
	}
	for _, c := range counts {
		if err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return schema.Stats{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return st, nil
}

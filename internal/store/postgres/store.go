// Package postgres stores ranking lists in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/applicants/internal/schema"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PoolConfig carries the pool settings applied on top of the URL.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store writes through one lazily started transaction.
type Store struct {
	pool *pgxpool.Pool

	mu sync.Mutex
	tx pgx.Tx
}

// Open connects, verifies the connection and applies the schema.
func Open(ctx context.Context, cfg PoolConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// DatabaseName returns the database named by a connection URL, for logging.
func DatabaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Close rolls back any open transaction and closes the pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		_ = s.tx.Rollback(context.Background())
		s.tx = nil
	}
	s.pool.Close()
	return nil
}

// conn returns the open transaction, or the pool. Callers hold s.mu.
func (s *Store) conn() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.pool
}

func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return 0, fmt.Errorf("begin: %w", err)
		}
		s.tx = tx
	}
	var id int64
	if err := s.tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) FindRef(ctx context.Context, kind schema.EntityKind, title string) (schema.Ref, bool, error) {
	if !kind.IsRef() {
		return schema.Ref{}, false, fmt.Errorf("find ref: unknown kind %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := schema.Ref{Kind: kind, Title: title}
	err := s.conn().QueryRow(ctx, `SELECT id FROM `+kind.Table()+` WHERE title = $1`, title).Scan(&ref.ID)
	if errors.Is(err, pgx.ErrNoRows) {
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
	id, err := s.insert(ctx, `INSERT INTO `+kind.Table()+` (title) VALUES ($1) RETURNING id`, title)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", kind, err)
	}
	return id, nil
}

func (s *Store) FindProgram(ctx context.Context, key schema.ProgramKey) (schema.EduProgram, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p schema.EduProgram
	var division *int64
	err := s.conn().QueryRow(ctx, `
		SELECT id, title, profile_title, edu_level_id, division_id, exam1_title, exam2_title, exam3_title
		FROM edu_programs
		WHERE title = $1 AND profile_title = $2 AND edu_level_id = $3 AND division_id IS NOT DISTINCT FROM $4
		ORDER BY id LIMIT 1`,
		key.Title, key.ProfileTitle, key.EduLevelID, schema.NullID(key.DivisionID),
	).Scan(&p.ID, &p.Title, &p.ProfileTitle, &p.EduLevelID, &division, &p.Exam1Title, &p.Exam2Title, &p.Exam3Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return schema.EduProgram{}, false, nil
	}
	if err != nil {
		return schema.EduProgram{}, false, fmt.Errorf("find program: %w", err)
	}
	if division != nil {
		p.DivisionID = *division
	}
	return p, true, nil
}

func (s *Store) InsertProgram(ctx context.Context, p schema.EduProgram) (int64, error) {
	id, err := s.insert(ctx, `
		INSERT INTO edu_programs (title, profile_title, edu_level_id, division_id, exam1_title, exam2_title, exam3_title)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id`,
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
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		f.RunID, f.Filename, f.LastWriteTimeUTC.UTC(), f.Length, f.Mode,
	)
	if err != nil {
		return 0, fmt.Errorf("insert source file: %w", err)
	}
	return id, nil
}

func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit(ctx)
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback(ctx)
	s.tx = nil
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (schema.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st schema.Stats
	err := s.conn().QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM divisions),
			(SELECT COUNT(*) FROM edu_forms),
			(SELECT COUNT(*) FROM financings),
			(SELECT COUNT(*) FROM edu_levels),
			(SELECT COUNT(*) FROM edu_programs),
			(SELECT COUNT(*) FROM applicants),
			(SELECT COUNT(*) FROM source_files)`,
	).Scan(&st.Divisions, &st.EduForms, &st.Financings, &st.EduLevels, &st.EduPrograms, &st.Applicants, &st.SourceFiles)
	if err != nil {
		return schema.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

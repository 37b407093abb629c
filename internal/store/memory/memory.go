// Package memory is an in-process store for dry runs and tests.
//
// Inserts are visible to finds immediately. Rollback drops every record
// inserted since the last Commit.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JonMunkholm/applicants/internal/schema"
)

type mark struct {
	refs        map[schema.EntityKind]int
	programs    int
	applicants  int
	sourceFiles int
}

// Store keeps every collection in slices.
type Store struct {
	mu          sync.RWMutex
	refs        map[schema.EntityKind][]schema.Ref
	programs    []schema.EduProgram
	applicants  []schema.Applicant
	sourceFiles []schema.SourceFile

	committed mark
	commits   int
	rollbacks int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		refs:      make(map[schema.EntityKind][]schema.Ref),
		committed: mark{refs: make(map[schema.EntityKind]int)},
	}
}

func (s *Store) FindRef(_ context.Context, kind schema.EntityKind, title string) (schema.Ref, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.refs[kind] {
		if r.Title == title {
			return r, true, nil
		}
	}
	return schema.Ref{}, false, nil
}

func (s *Store) InsertRef(_ context.Context, kind schema.EntityKind, title string) (int64, error) {
	if !kind.IsRef() {
		return 0, fmt.Errorf("insert ref: unknown kind %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.refs[kind] {
		if r.Title == title {
			return 0, fmt.Errorf("insert %s: unique constraint on title %q", kind, title)
		}
	}
	id := int64(len(s.refs[kind]) + 1)
	s.refs[kind] = append(s.refs[kind], schema.Ref{Kind: kind, ID: id, Title: title})
	return id, nil
}

func (s *Store) FindProgram(_ context.Context, key schema.ProgramKey) (schema.EduProgram, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.programs {
		if p.Key() == key {
			return p, true, nil
		}
	}
	return schema.EduProgram{}, false, nil
}

func (s *Store) InsertProgram(_ context.Context, p schema.EduProgram) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.programs {
		if existing.Key() == p.Key() {
			return 0, fmt.Errorf("insert program: unique constraint on %q", p.Title)
		}
	}
	p.ID = int64(len(s.programs) + 1)
	s.programs = append(s.programs, p)
	return p.ID, nil
}

func (s *Store) InsertApplicant(_ context.Context, a schema.Applicant) (int64, error) {
	if a.EduProgramID == 0 {
		return 0, fmt.Errorf("insert applicant: not null constraint on edu_program_id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = int64(len(s.applicants) + 1)
	s.applicants = append(s.applicants, a)
	return a.ID, nil
}

func (s *Store) InsertSourceFile(_ context.Context, f schema.SourceFile) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = int64(len(s.sourceFiles) + 1)
	s.sourceFiles = append(s.sourceFiles, f)
	return f.ID, nil
}

func (s *Store) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = s.markLocked()
	s.commits++
	return nil
}

func (s *Store) Rollback(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for kind, refs := range s.refs {
		s.refs[kind] = refs[:s.committed.refs[kind]]
	}
	s.programs = s.programs[:s.committed.programs]
	s.applicants = s.applicants[:s.committed.applicants]
	s.sourceFiles = s.sourceFiles[:s.committed.sourceFiles]
	s.rollbacks++
	return nil
}

func (s *Store) markLocked() mark {
	m := mark{
		refs:        make(map[schema.EntityKind]int, len(s.refs)),
		programs:    len(s.programs),
		applicants:  len(s.applicants),
		sourceFiles: len(s.sourceFiles),
	}
	for kind, refs := range s.refs {
		m.refs[kind] = len(refs)
	}
	return m
}

func (s *Store) Stats(context.Context) (schema.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return schema.Stats{
		Divisions:   int64(len(s.refs[schema.KindDivision])),
		EduForms:    int64(len(s.refs[schema.KindEduForm])),
		Financings:  int64(len(s.refs[schema.KindFinancing])),
		EduLevels:   int64(len(s.refs[schema.KindEduLevel])),
		EduPrograms: int64(len(s.programs)),
		Applicants:  int64(len(s.applicants)),
		SourceFiles: int64(len(s.sourceFiles)),
	}, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Refs returns the entities of one kind in insertion order.
func (s *Store) Refs(kind schema.EntityKind) []schema.Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]schema.Ref(nil), s.refs[kind]...)
}

// Programs returns every program in insertion order.
func (s *Store) Programs() []schema.EduProgram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]schema.EduProgram(nil), s.programs...)
}

// Applicants returns every applicant in insertion order.
func (s *Store) Applicants() []schema.Applicant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]schema.Applicant(nil), s.applicants...)
}

// SourceFiles returns every source file record.
func (s *Store) SourceFiles() []schema.SourceFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]schema.SourceFile(nil), s.sourceFiles...)
}

// Commits returns how many times Commit was called.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

// Rollbacks returns how many times Rollback was called.
func (s *Store) Rollbacks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rollbacks
}

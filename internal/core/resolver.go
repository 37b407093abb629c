package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/applicants/internal/schema"
)

// Resolver implements find-or-create for reference entities and programs.
//
// Lookups are cached for the lifetime of the Resolver, which is one
// document. Every insert is committed immediately, so a document that fails
// halfway keeps the reference entities it already created.
type Resolver struct {
	store    Store
	refs     map[schema.EntityKind]map[string]schema.Ref
	programs map[schema.ProgramKey]schema.EduProgram
	created  map[schema.EntityKind]int
}

// NewResolver returns a Resolver writing to store.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:    store,
		refs:     make(map[schema.EntityKind]map[string]schema.Ref),
		programs: make(map[schema.ProgramKey]schema.EduProgram),
		created:  make(map[schema.EntityKind]int),
	}
}

// Ref returns the entity of kind with exactly this title, creating it if
// none exists.
func (r *Resolver) Ref(ctx context.Context, kind schema.EntityKind, title string) (schema.Ref, error) {
	if !kind.IsRef() {
		return schema.Ref{}, fmt.Errorf("resolve %s: not a reference kind", kind)
	}
	byTitle := r.refs[kind]
	if byTitle == nil {
		byTitle = make(map[string]schema.Ref)
		r.refs[kind] = byTitle
	}
	if ref, ok := byTitle[title]; ok {
		return ref, nil
	}

	ref, found, err := r.store.FindRef(ctx, kind, title)
	if err != nil {
		return schema.Ref{}, fmt.Errorf("find %s %q: %w", kind, title, err)
	}
	if !found {
		id, err := r.store.InsertRef(ctx, kind, title)
		if err != nil {
			return schema.Ref{}, fmt.Errorf("insert %s %q: %w", kind, title, err)
		}
		if err := r.store.Commit(ctx); err != nil {
			return schema.Ref{}, fmt.Errorf("commit %s %q: %w", kind, title, err)
		}
		ref = schema.Ref{Kind: kind, ID: id, Title: title}
		r.created[kind]++
	}

	byTitle[title] = ref
	return ref, nil
}

// Program returns the program with p's composite key, creating it from p if
// none exists. An existing program keeps the exam titles it was created with.
func (r *Resolver) Program(ctx context.Context, p schema.EduProgram) (schema.EduProgram, error) {
	key := p.Key()
	if got, ok := r.programs[key]; ok {
		return got, nil
	}

	got, found, err := r.store.FindProgram(ctx, key)
	if err != nil {
		return schema.EduProgram{}, fmt.Errorf("find program %q: %w", p.Title, err)
	}
	if !found {
		id, err := r.store.InsertProgram(ctx, p)
		if err != nil {
			return schema.EduProgram{}, fmt.Errorf("insert program %q: %w", p.Title, err)
		}
		if err := r.store.Commit(ctx); err != nil {
			return schema.EduProgram{}, fmt.Errorf("commit program %q: %w", p.Title, err)
		}
		got = p
		got.ID = id
		r.created[schema.KindEduProgram]++
	}

	r.programs[key] = got
	return got, nil
}

// Created returns how many entities of each kind this Resolver inserted.
func (r *Resolver) Created() map[schema.EntityKind]int {
	out := make(map[schema.EntityKind]int, len(r.created))
	for k, v := range r.created {
		out[k] = v
	}
	return out
}

// Package templates renders the HTML pages of the ingestion UI.
//
// Components live in the .templ files next to this one; run templ generate
// after editing them.
package templates

//go:generate templ generate

import (
	"github.com/JonMunkholm/applicants/internal/core"
	"github.com/JonMunkholm/applicants/internal/schema"
)

// IndexParams is the data behind the index page.
type IndexParams struct {
	Stats   schema.Stats
	History []core.Summary
	Limiter core.IngestLimiterStatus
	Modes   []core.Mode
}

type count struct {
	Label string
	N     int64
}

func storeCounts(s schema.Stats) []count {
	return []count{
		{"Divisions", s.Divisions},
		{"Education forms", s.EduForms},
		{"Financing types", s.Financings},
		{"Education levels", s.EduLevels},
		{"Programs", s.EduPrograms},
		{"Applicants", s.Applicants},
		{"Source files", s.SourceFiles},
	}
}

// createdCounts lists the entity kinds an ingest created, in reference
// order with programs last.
func createdCounts(created map[schema.EntityKind]int) []count {
	var out []count
	for _, kind := range append(append([]schema.EntityKind(nil), schema.RefKinds...), schema.KindEduProgram) {
		if n := created[kind]; n > 0 {
			out = append(out, count{kind.Table(), int64(n)})
		}
	}
	return out
}

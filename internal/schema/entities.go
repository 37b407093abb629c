// Package schema defines the records produced by ranking list ingestion.
//
// Reference entities (divisions, education forms, financing types and
// education levels) share one shape and are deduplicated by exact title.
// Programs are deduplicated by their composite key. Applicants and source
// files are write-once.
package schema

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// EntityKind names a deduplicated entity collection.
type EntityKind string

const (
	KindDivision   EntityKind = "division"
	KindEduForm    EntityKind = "edu_form"
	KindFinancing  EntityKind = "financing"
	KindEduLevel   EntityKind = "edu_level"
	KindEduProgram EntityKind = "edu_program"
)

// RefKinds lists the title-keyed reference kinds in header order.
var RefKinds = []EntityKind{KindDivision, KindEduForm, KindFinancing, KindEduLevel}

// Table returns the storage table (collection) name for the kind.
func (k EntityKind) Table() string {
	switch k {
	case KindDivision:
		return "divisions"
	case KindEduForm:
		return "edu_forms"
	case KindFinancing:
		return "financings"
	case KindEduLevel:
		return "edu_levels"
	case KindEduProgram:
		return "edu_programs"
	default:
		return ""
	}
}

// IsRef reports whether the kind is one of the title-keyed reference kinds.
func (k EntityKind) IsRef() bool {
	for _, r := range RefKinds {
		if r == k {
			return true
		}
	}
	return false
}

// Ref is a title-keyed reference entity: Division, EduForm, Financing or EduLevel.
// ID is zero until the entity has been persisted.
type Ref struct {
	Kind  EntityKind
	ID    int64
	Title string
}

// Resolved reports whether the reference has a persisted identity.
func (r Ref) Resolved() bool {
	return r.ID != 0
}

// ProgramKey is the identity of an education program.
type ProgramKey struct {
	Title        string
	ProfileTitle string
	EduLevelID   int64
	DivisionID   int64
}

// EduProgram is a program/profile combination offered by a division at a level.
// Exam titles come from the table header of the first list block that created it.
type EduProgram struct {
	ID           int64
	Title        string
	ProfileTitle string
	EduLevelID   int64
	DivisionID   int64
	Exam1Title   string
	Exam2Title   string
	Exam3Title   string
}

// Key returns the composite identity of the program.
func (p EduProgram) Key() ProgramKey {
	return ProgramKey{
		Title:        p.Title,
		ProfileTitle: p.ProfileTitle,
		EduLevelID:   p.EduLevelID,
		DivisionID:   p.DivisionID,
	}
}

// Applicant is one ranking list row.
//
// Numeric fields use pgtype values so that a cell that failed to parse is
// stored as NULL rather than zero.
type Applicant struct {
	ID                 int64
	Order              int
	RankedOrder        pgtype.Int4
	Name               string
	HasOriginal        bool
	HasAgreement       bool
	HasPreemptiveRight bool
	Exam1Rate          pgtype.Numeric
	Exam2Rate          pgtype.Numeric
	Exam3Rate          pgtype.Numeric
	Exam2Mark          string
	AchRate            pgtype.Numeric
	TotalRate          pgtype.Numeric
	Category           string
	Status             string
	RejectReason       string
	EduProgramID       int64
	EduFormID          int64
	FinancingID        int64
	SourceFileID       int64
}

// SourceFile is the audit record written once per ingested document.
type SourceFile struct {
	ID               int64
	RunID            uuid.UUID
	Filename         string
	LastWriteTimeUTC time.Time
	Length           int64
	Mode             string
}

// Stats holds row counts per collection.
type Stats struct {
	Divisions   int64 `json:"divisions"`
	EduForms    int64 `json:"edu_forms"`
	Financings  int64 `json:"financings"`
	EduLevels   int64 `json:"edu_levels"`
	EduPrograms int64 `json:"edu_programs"`
	Applicants  int64 `json:"applicants"`
	SourceFiles int64 `json:"source_files"`
}

// NullID converts an entity id to a nullable database value; zero is NULL.
func NullID(id int64) pgtype.Int8 {
	return pgtype.Int8{Int64: id, Valid: id != 0}
}

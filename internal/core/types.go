package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/applicants/internal/schema"
	"github.com/google/uuid"
)

// Store is the reference entity store the driver writes to.
//
// Finds must observe every insert made earlier in the same run, committed
// or not. Commit makes pending inserts durable; Rollback discards the ones
// made since the last commit.
type Store interface {
	FindRef(ctx context.Context, kind schema.EntityKind, title string) (schema.Ref, bool, error)
	InsertRef(ctx context.Context, kind schema.EntityKind, title string) (int64, error)
	FindProgram(ctx context.Context, key schema.ProgramKey) (schema.EduProgram, bool, error)
	InsertProgram(ctx context.Context, p schema.EduProgram) (int64, error)
	InsertApplicant(ctx context.Context, a schema.Applicant) (int64, error)
	InsertSourceFile(ctx context.Context, f schema.SourceFile) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Stats(ctx context.Context) (schema.Stats, error)
}

// Mode selects the family of list layouts a document uses.
type Mode string

const (
	// ModeExtended handles university and college lists, picking the layout
	// from the education level of each header block.
	ModeExtended Mode = "extended"

	// ModeSimple handles the single-layout lists with integer rates and a
	// "Категория приема" column closing the table header.
	ModeSimple Mode = "simple"
)

// ParseMode validates a mode name. The empty string selects ModeExtended.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeExtended:
		return ModeExtended, true
	case ModeSimple:
		return ModeSimple, true
	default:
		return "", false
	}
}

// FieldType is the expected data type of a list column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDecimal
	FieldInteger
	FieldFlag
)

// Warning is a recoverable condition met while parsing a document.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Sheet   string `json:"sheet,omitempty"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
}

// Summary describes the outcome of one document ingestion.
type Summary struct {
	RunID        uuid.UUID                 `json:"run_id"`
	SourceFileID int64                     `json:"source_file_id"`
	Filename     string                    `json:"filename"`
	Mode         Mode                      `json:"mode"`
	Sheets       int                       `json:"sheets"`
	Rows         int                       `json:"rows"`
	Cells        int                       `json:"cells"`
	Blocks       int                       `json:"blocks"`
	Applicants   int                       `json:"applicants"`
	Skipped      int                       `json:"skipped"`
	Created      map[schema.EntityKind]int `json:"created"`
	Warnings     []Warning                 `json:"warnings,omitempty"`
	Duration     time.Duration             `json:"duration"`
}

func newSummary() *Summary {
	return &Summary{Created: make(map[schema.EntityKind]int)}
}

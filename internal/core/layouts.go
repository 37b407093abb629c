package core

import (
	"github.com/JonMunkholm/applicants/internal/schema"
)

// LayoutKind identifies a ranking list table layout.
type LayoutKind string

const (
	LayoutSimple     LayoutKind = "simple"
	LayoutUniversity LayoutKind = "university"
	LayoutCollege    LayoutKind = "college"
)

// Applicant field names used in FieldSpec.Name.
const (
	fieldHasOriginal        = "has_original"
	fieldHasAgreement       = "has_agreement"
	fieldHasPreemptiveRight = "has_preemptive_right"
	fieldExam1Rate          = "exam1_rate"
	fieldExam2Rate          = "exam2_rate"
	fieldExam3Rate          = "exam3_rate"
	fieldExam2Mark          = "exam2_mark"
	fieldAchRate            = "ach_rate"
	fieldTotalRate          = "total_rate"
	fieldCategory           = "category"
	fieldStatus             = "status"
	fieldRejectReason       = "reject_reason"
)

// Literal cell markers.
const (
	markerTableHeader = "№ п/п"
	markerOriginal    = "Оригинал"
	markerYes         = "Да"
	markerCategory    = "Категория приема"
)

// FieldSpec maps one list column to an applicant field.
type FieldSpec struct {
	Column int
	Name   string
	Type   FieldType
	Match  string // literal that sets a FieldFlag to true
}

// ListTrigger decides which table header cell closes the header and starts
// the list. AfterColumn < 0 disables the column rule.
type ListTrigger struct {
	AfterColumn int
	Literal     string
}

// Fires reports whether the cell ends the table header.
func (t ListTrigger) Fires(col int, value string) bool {
	if t.AfterColumn >= 0 && col > t.AfterColumn {
		return true
	}
	return t.Literal != "" && MatchesLiteral(value, t.Literal)
}

// Layout describes the columns of one kind of ranking list.
//
// Column 0 (rank) and column 1 (name) are common to every layout and are
// handled by the state machine itself.
type Layout struct {
	Kind  LayoutKind
	Label string

	// ExamTitleColumns holds the table header column of exam 1..3, -1 if absent.
	ExamTitleColumns [3]int

	Trigger ListTrigger
	Fields  []FieldSpec

	// EndColumn is the first column past the data row; reaching it inserts
	// the applicant and skips the rest of the row.
	EndColumn int

	RequiresForm      bool
	RequiresFinancing bool

	byColumn map[int]FieldSpec
}

// Field returns the spec mapped to a column.
func (l Layout) Field(col int) (FieldSpec, bool) {
	spec, ok := l.byColumn[col]
	return spec, ok
}

// ExamTitleIndex returns which exam (0-based) a table header column names.
func (l Layout) ExamTitleIndex(col int) (int, bool) {
	for i, c := range l.ExamTitleColumns {
		if c >= 0 && c == col {
			return i, true
		}
	}
	return 0, false
}

func init() {
	Register(Layout{
		Kind:             LayoutUniversity,
		Label:            "University list",
		ExamTitleColumns: [3]int{4, 5, 6},
		Trigger:          ListTrigger{AfterColumn: 6},
		Fields: []FieldSpec{
			{Column: 2, Name: fieldHasOriginal, Type: FieldFlag, Match: markerOriginal},
			{Column: 3, Name: fieldHasAgreement, Type: FieldFlag, Match: markerYes},
			{Column: 4, Name: fieldExam1Rate, Type: FieldDecimal},
			{Column: 5, Name: fieldExam2Rate, Type: FieldDecimal},
			{Column: 6, Name: fieldExam3Rate, Type: FieldDecimal},
			{Column: 7, Name: fieldAchRate, Type: FieldDecimal},
			{Column: 8, Name: fieldTotalRate, Type: FieldDecimal},
			{Column: 9, Name: fieldCategory, Type: FieldText},
			{Column: 10, Name: fieldHasPreemptiveRight, Type: FieldFlag, Match: markerYes},
			{Column: 11, Name: fieldStatus, Type: FieldText},
			{Column: 12, Name: fieldRejectReason, Type: FieldText},
		},
		EndColumn:         13,
		RequiresForm:      true,
		RequiresFinancing: true,
	})

	Register(Layout{
		Kind:             LayoutCollege,
		Label:            "College list",
		ExamTitleColumns: [3]int{5, 7, -1},
		Trigger:          ListTrigger{AfterColumn: 7},
		Fields: []FieldSpec{
			{Column: 3, Name: fieldHasOriginal, Type: FieldFlag, Match: markerOriginal},
			{Column: 5, Name: fieldExam1Rate, Type: FieldDecimal},
			{Column: 7, Name: fieldExam2Mark, Type: FieldText},
			{Column: 9, Name: fieldTotalRate, Type: FieldDecimal},
			{Column: 10, Name: fieldStatus, Type: FieldText},
			{Column: 11, Name: fieldRejectReason, Type: FieldText},
		},
		EndColumn:         12,
		RequiresForm:      true,
		RequiresFinancing: true,
	})

	Register(Layout{
		Kind:             LayoutSimple,
		Label:            "Simple list",
		ExamTitleColumns: [3]int{4, 5, 6},
		Trigger:          ListTrigger{AfterColumn: -1, Literal: markerCategory},
		Fields: []FieldSpec{
			{Column: 2, Name: fieldHasOriginal, Type: FieldFlag, Match: markerOriginal},
			{Column: 3, Name: fieldHasAgreement, Type: FieldFlag, Match: markerYes},
			{Column: 4, Name: fieldExam1Rate, Type: FieldInteger},
			{Column: 5, Name: fieldExam2Rate, Type: FieldInteger},
			{Column: 6, Name: fieldExam3Rate, Type: FieldInteger},
			{Column: 7, Name: fieldAchRate, Type: FieldInteger},
			{Column: 8, Name: fieldTotalRate, Type: FieldInteger},
			{Column: 9, Name: fieldCategory, Type: FieldText},
		},
		EndColumn: 10,
	})
}

// setField writes a cell value into the applicant field described by spec.
// Values that do not parse leave the field unset.
func setField(a *schema.Applicant, spec FieldSpec, value string) {
	switch spec.Name {
	case fieldHasOriginal:
		a.HasOriginal = MatchesLiteral(value, spec.Match)
	case fieldHasAgreement:
		a.HasAgreement = MatchesLiteral(value, spec.Match)
	case fieldHasPreemptiveRight:
		if MatchesLiteral(value, spec.Match) {
			a.HasPreemptiveRight = true
		}
	case fieldExam1Rate:
		a.Exam1Rate = parseRate(spec.Type, value)
	case fieldExam2Rate:
		a.Exam2Rate = parseRate(spec.Type, value)
	case fieldExam3Rate:
		a.Exam3Rate = parseRate(spec.Type, value)
	case fieldAchRate:
		a.AchRate = parseRate(spec.Type, value)
	case fieldTotalRate:
		a.TotalRate = parseRate(spec.Type, value)
	case fieldExam2Mark:
		a.Exam2Mark = value
	case fieldCategory:
		a.Category = value
	case fieldStatus:
		a.Status = value
	case fieldRejectReason:
		a.RejectReason = value
	}
}

package core

// machine.go is the cell-by-cell parsing state machine.
//
//	Initial ──► Header ──► TableHeader ──► List
//	              ▲                          │
//	              └──────────────────────────┘
//
// Step consumes one cell and returns the next Context, the store commands
// the cell produced and a Result telling the driver what to do next. Step
// never touches the store or logs; the driver executes the commands and
// binds generated ids back into the Context before the next cell.

import (
	"fmt"

	"github.com/JonMunkholm/applicants/internal/schema"
	"github.com/JonMunkholm/applicants/internal/workbook"
)

// Result tells the driver how to continue after a Step.
type Result int

const (
	// Next advances to the next cell of the row.
	Next Result = iota
	// Again feeds the same cell to Step once more.
	Again
	// SkipRow abandons the rest of the current row.
	SkipRow
)

func (r Result) String() string {
	switch r {
	case Next:
		return "next"
	case Again:
		return "again"
	case SkipRow:
		return "skip_row"
	default:
		return "unknown"
	}
}

// Warning codes emitted by the state machine.
const (
	WarnUnclassifiedHeader = "unclassified_header"
	WarnLevelMiss          = "level_miss"
	WarnBlockSkipped       = "block_skipped"
)

// DefaultMinMergeCells is the smallest merged region treated as a header
// cell in extended mode.
const DefaultMinMergeCells = 10

// Command is a side effect requested by the state machine.
type Command interface {
	command()
}

// UpsertRef resolves a reference entity by title, creating it if needed,
// and binds it into the Context.
type UpsertRef struct {
	Kind  schema.EntityKind
	Title string
}

// UpsertProgram resolves the block's program by composite key, creating it
// if needed, and binds it into the Context.
type UpsertProgram struct {
	Program schema.EduProgram
}

// InsertApplicant persists a finished applicant row.
type InsertApplicant struct {
	Applicant schema.Applicant
}

// ReasonIncompleteRow is the DropApplicant reason for a list row without a
// name, or without both a rank and any data column.
const ReasonIncompleteRow = "incomplete row"

// DropApplicant records an applicant row that cannot be persisted.
type DropApplicant struct {
	Order  int
	Name   string
	Reason string
}

// Warn records a recoverable condition.
type Warn struct {
	Code    string
	Message string
	Row     int
	Col     int
}

func (UpsertRef) command()       {}
func (UpsertProgram) command()   {}
func (InsertApplicant) command() {}
func (DropApplicant) command()   {}
func (Warn) command()            {}

// Machine holds the static configuration of the state machine.
type Machine struct {
	mode          Mode
	classifier    *Classifier
	minMergeCells int
}

// NewMachine builds a state machine for a mode.
// minMergeCells <= 0 selects DefaultMinMergeCells; simple mode treats any
// merged region as a header cell.
func NewMachine(mode Mode, classifier *Classifier, minMergeCells int) *Machine {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	if minMergeCells <= 0 {
		minMergeCells = DefaultMinMergeCells
	}
	if mode == ModeSimple {
		minMergeCells = 1
	}
	return &Machine{mode: mode, classifier: classifier, minMergeCells: minMergeCells}
}

// Mode returns the machine's mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Layout returns the list layout active for the Context.
func (m *Machine) Layout(pc Context) Layout {
	switch {
	case m.mode == ModeSimple:
		return mustLayout(LayoutSimple)
	case pc.IsCollegeList:
		return mustLayout(LayoutCollege)
	default:
		return mustLayout(LayoutUniversity)
	}
}

// isHeaderCell reports whether a cell is a merged region large enough to
// carry header text.
func (m *Machine) isHeaderCell(cell workbook.Cell) bool {
	return cell.IsMerged() && cell.MergeCells() >= m.minMergeCells
}

// Step consumes one cell.
func (m *Machine) Step(pc Context, cell workbook.Cell) (Context, []Command, Result) {
	switch pc.State {
	case StateInitial:
		pc.State = StateHeader
		return pc, nil, Again
	case StateHeader:
		return m.header(pc, cell)
	case StateTableHeader:
		return m.tableHeader(pc, cell)
	case StateList:
		return m.list(pc, cell)
	default:
		return pc, nil, Next
	}
}

// EndRow is called after the last cell of every row. An applicant still
// under construction is finished as if its end column had been reached.
func (m *Machine) EndRow(pc Context) (Context, []Command) {
	if pc.State != StateList {
		return pc, nil
	}
	return m.finishApplicant(pc)
}

func (m *Machine) header(pc Context, cell workbook.Cell) (Context, []Command, Result) {
	if !cell.IsMerged() {
		if cell.Col == 0 && MatchesLiteral(cell.Value, markerTableHeader) {
			pc.State = StateTableHeader
		}
		return pc, nil, Next
	}
	if !m.isHeaderCell(cell) || cell.Value == "" {
		return pc, nil, Next
	}

	cls := m.classifier.Classify(cell.Value)
	if cls.Empty() {
		return pc, []Command{Warn{
			Code:    WarnUnclassifiedHeader,
			Message: fmt.Sprintf("header %q matches no rule", cell.Value),
			Row:     cell.Row,
			Col:     cell.Col,
		}}, Next
	}

	var cmds []Command
	if cls.Division != "" {
		cmds = append(cmds, UpsertRef{Kind: schema.KindDivision, Title: cls.Division})
	}
	if cls.EduForm != "" {
		cmds = append(cmds, UpsertRef{Kind: schema.KindEduForm, Title: cls.EduForm})
	}
	if cls.Financing != "" {
		cmds = append(cmds, UpsertRef{Kind: schema.KindFinancing, Title: cls.Financing})
	}
	if p := cls.Program; p != nil {
		pc.Program = schema.EduProgram{Title: p.Title, ProfileTitle: p.Profile}
		pc.IsCollegeList = p.College
		if p.Level == "" {
			pc.EduLevel = schema.Ref{}
			pc.LevelMiss = true
			cmds = append(cmds, Warn{
				Code:    WarnLevelMiss,
				Message: fmt.Sprintf("no education level recognized in %q", cell.Value),
				Row:     cell.Row,
				Col:     cell.Col,
			})
		} else {
			pc.LevelMiss = false
			cmds = append(cmds, UpsertRef{Kind: schema.KindEduLevel, Title: p.Level})
		}
	}
	return pc, cmds, Next
}

func (m *Machine) tableHeader(pc Context, cell workbook.Cell) (Context, []Command, Result) {
	layout := m.Layout(pc)

	if i, ok := layout.ExamTitleIndex(cell.Col); ok {
		switch i {
		case 0:
			pc.Program.Exam1Title = cell.Value
		case 1:
			pc.Program.Exam2Title = cell.Value
		case 2:
			pc.Program.Exam3Title = cell.Value
		}
		return pc, nil, Next
	}

	if !layout.Trigger.Fires(cell.Col, cell.Value) {
		return pc, nil, Next
	}

	pc.State = StateList
	pc.Order = 0
	pc.Pending = false

	if pc.LevelMiss || !pc.EduLevel.Resolved() {
		pc.BlockSkipped = true
		return pc, []Command{Warn{
			Code:    WarnBlockSkipped,
			Message: "list block has no education level; its rows are skipped",
			Row:     cell.Row,
			Col:     cell.Col,
		}}, SkipRow
	}

	pc.BlockSkipped = false
	program := pc.Program
	program.ID = 0
	program.EduLevelID = pc.EduLevel.ID
	program.DivisionID = pc.Division.ID
	return pc, []Command{UpsertProgram{Program: program}}, SkipRow
}

func (m *Machine) list(pc Context, cell workbook.Cell) (Context, []Command, Result) {
	if m.isHeaderCell(cell) {
		next := pc.nextBlock()
		if pc.Pending {
			// A header directly after a partial row: keep the row.
			_, cmds := m.finishApplicant(pc)
			return next, cmds, Again
		}
		return next, nil, Again
	}

	layout := m.Layout(pc)

	if cell.Col >= layout.EndColumn {
		next, cmds := m.finishApplicant(pc)
		return next, cmds, SkipRow
	}

	if cell.Col == 0 {
		var cmds []Command
		if pc.Pending {
			pc, cmds = m.finishApplicant(pc)
		}
		pc.Order++
		pc.Applicant = schema.Applicant{
			Order:       pc.Order,
			RankedOrder: ToPgInt4(cell.Value),
		}
		pc.Pending = true
		return pc, cmds, Next
	}

	if !pc.Pending {
		return pc, nil, Next
	}

	if cell.Col == 1 {
		pc.Applicant.Name = cell.Value
		return pc, nil, Next
	}

	if spec, ok := layout.Field(cell.Col); ok {
		setField(&pc.Applicant, spec, cell.Value)
		if cell.Value != "" {
			pc.HasData = true
		}
	}
	return pc, nil, Next
}

// finishApplicant stamps the pending applicant with the block's ids and
// emits its insert. It drops the row when a required reference is
// unresolved or when the row is not an applicant at all: footer and
// signature lines carry text in column 0 only.
func (m *Machine) finishApplicant(pc Context) (Context, []Command) {
	if !pc.Pending {
		return pc, nil
	}
	a := pc.Applicant
	incomplete := a.Name == "" || (!a.RankedOrder.Valid && !pc.HasData)
	pc.Pending = false
	pc.HasData = false
	pc.Applicant = schema.Applicant{}

	layout := m.Layout(pc)
	var reason string
	switch {
	case pc.BlockSkipped:
		reason = "block skipped"
	case incomplete:
		// The row never took an ordinal.
		pc.Order = a.Order - 1
		reason = ReasonIncompleteRow
	case pc.Program.ID == 0:
		reason = "program not resolved"
	case layout.RequiresForm && !pc.EduForm.Resolved():
		reason = "education form not resolved"
	case layout.RequiresFinancing && !pc.Financing.Resolved():
		reason = "financing not resolved"
	}
	if reason != "" {
		return pc, []Command{DropApplicant{Order: a.Order, Name: a.Name, Reason: reason}}
	}

	a.EduProgramID = pc.Program.ID
	a.EduFormID = pc.EduForm.ID
	a.FinancingID = pc.Financing.ID
	return pc, []Command{InsertApplicant{Applicant: a}}
}

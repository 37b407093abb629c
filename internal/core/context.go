package core

import "github.com/JonMunkholm/applicants/internal/schema"

// State is the position of the parser within a ranking list document.
type State int

const (
	StateInitial State = iota
	StateHeader
	StateTableHeader
	StateList
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateHeader:
		return "header"
	case StateTableHeader:
		return "table_header"
	case StateList:
		return "list"
	default:
		return "unknown"
	}
}

// Context is the parser state carried across a whole document.
//
// It is a plain value: Machine.Step returns an updated copy and the driver
// binds store-generated ids into it with Bind and BindProgram.
type Context struct {
	State State

	Division  schema.Ref
	EduForm   schema.Ref
	Financing schema.Ref
	EduLevel  schema.Ref

	// Program is the program being assembled for the current block.
	// Its ID is set once the table header has been finalized.
	Program schema.EduProgram

	// Applicant is the row under construction; Pending is false between rows.
	Applicant schema.Applicant
	Pending   bool

	// HasData is set once a layout column past the name held a value.
	HasData bool

	// Order counts applicants within the current list block.
	Order int

	IsCollegeList bool

	// LevelMiss marks a header block whose level text matched no rule.
	LevelMiss bool

	// BlockSkipped marks a list block whose rows are dropped.
	BlockSkipped bool
}

// Bind stores a resolved reference entity as the current one of its kind.
func (c Context) Bind(ref schema.Ref) Context {
	switch ref.Kind {
	case schema.KindDivision:
		c.Division = ref
	case schema.KindEduForm:
		c.EduForm = ref
	case schema.KindFinancing:
		c.Financing = ref
	case schema.KindEduLevel:
		c.EduLevel = ref
	}
	return c
}

// BindProgram stores the persisted program of the current block.
func (c Context) BindProgram(p schema.EduProgram) Context {
	c.Program = p
	return c
}

// nextBlock clears everything a header block derives, ahead of a new block.
func (c Context) nextBlock() Context {
	return Context{State: StateHeader}
}

// Package core ingests university admission ranking lists.
//
// A ranking list is a spreadsheet with no fixed schema: merged header cells
// carry free Russian text naming the division, form of study, financing and
// program of the list that follows, a "№ п/п" row opens the table header,
// and applicant rows run until the next merged header cell.
//
// # Pipeline
//
//	workbook.Book ──► Driver ──► Machine.Step ──► []Command ──► Resolver / Store
//
// [Machine] is a pure state machine: it consumes one cell and a [Context]
// and returns the next Context, the commands the cell produced and a
// [Result]. [Driver] walks the cells, re-dispatches a cell while the result
// is [Again] (bounded by [DefaultMaxRedispatch]), and executes commands
// against the [Store]. Reference entities are deduplicated by [Resolver].
//
// # Layouts
//
// Column meaning is data, not code. Each [Layout] is registered at init time
// with its exam title columns, list trigger, field columns and end column:
//
//	core.Register(Layout{
//	    Kind:             LayoutCollege,
//	    ExamTitleColumns: [3]int{5, 7, -1},
//	    Trigger:          ListTrigger{AfterColumn: 7},
//	    Fields:           []FieldSpec{{Column: 3, Name: fieldHasOriginal, Type: FieldFlag, Match: "Оригинал"}},
//	    EndColumn:        12,
//	})
//
// [ModeExtended] picks the university or college layout per header block;
// [ModeSimple] always uses the simple layout.
//
// # Header Classification
//
// Merged header text is classified by an ordered rule table, embedded from
// rules.yaml and replaceable with [LoadClassifier].
//
// # Error Handling
//
// Only [ErrUnsupportedFormat], decode failures and store failures abort a
// document. Unclassified headers, unrecognized levels and unparsable numbers
// degrade to warnings or unset fields. Technical errors are mapped to
// user-facing messages with [MapError].
package core

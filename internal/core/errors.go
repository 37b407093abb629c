package core

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned before any parsing when the document
// extension is not one the workbook decoder reads.
var ErrUnsupportedFormat = errors.New("unsupported file type")

// ErrEmptyWorkbook is returned when a document decodes to no cells at all.
var ErrEmptyWorkbook = errors.New("empty workbook")

// ErrRedispatchLimit is returned when one cell is fed back to the state
// machine more often than the state graph allows.
var ErrRedispatchLimit = errors.New("redispatch limit exceeded")

// ErrDecode wraps failures of the workbook decoder.
var ErrDecode = errors.New("workbook decode failure")

// CellError locates a failure at a cell of the document.
type CellError struct {
	Sheet string
	Row   int
	Col   int
	Err   error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("sheet %q row %d col %d: %v", e.Sheet, e.Row+1, e.Col+1, e.Err)
}

func (e *CellError) Unwrap() error {
	return e.Err
}

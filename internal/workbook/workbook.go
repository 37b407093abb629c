// Package workbook turns spreadsheet documents into a stream of cells.
//
// A Book holds sheets in document order; each Sheet holds its present rows in
// row order and the list of merged regions. Coordinates are zero-based.
package workbook

import (
	"io"
	"path/filepath"
	"strings"
)

// Formats lists the file extensions the decoders understand.
var Formats = []string{".xlsx", ".xlsm", ".xls"}

// isLegacy reports whether name is a BIFF (.xls) workbook.
func isLegacy(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xls")
}

// Read decodes a workbook from r, picking the decoder by the extension of name.
func Read(name string, r io.Reader) (*Book, error) {
	if isLegacy(name) {
		return OpenXLSReader(r)
	}
	return OpenReader(r)
}

// IsSupported reports whether the file name carries a recognized extension.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, f := range Formats {
		if ext == f {
			return true
		}
	}
	return false
}

// Region is an inclusive rectangular range of merged cells.
type Region struct {
	FirstRow int
	LastRow  int
	FirstCol int
	LastCol  int
}

// Contains reports whether the cell at (row, col) lies inside the region.
func (r Region) Contains(row, col int) bool {
	return row >= r.FirstRow && row <= r.LastRow && col >= r.FirstCol && col <= r.LastCol
}

// Cells returns the number of cells covered by the region.
func (r Region) Cells() int {
	return (r.LastRow - r.FirstRow + 1) * (r.LastCol - r.FirstCol + 1)
}

// Cell is a single cell handed to the parser.
// Merge is nil when the cell is not part of a merged region.
type Cell struct {
	Row   int
	Col   int
	Value string
	Merge *Region
}

// IsMerged reports whether the cell belongs to a merged region.
func (c Cell) IsMerged() bool {
	return c.Merge != nil
}

// MergeCells returns the size of the cell's merged region, or zero.
func (c Cell) MergeCells() int {
	if c.Merge == nil {
		return 0
	}
	return c.Merge.Cells()
}

// RawCell is a present cell of a row: column index and trimmed display value.
type RawCell struct {
	Col   int
	Value string
}

// Row is a present row. Rows the decoder considers empty are not listed.
type Row struct {
	Index int
	Cells []RawCell
}

// Sheet is one worksheet.
type Sheet struct {
	Name   string
	Rows   []Row
	Merges []Region
}

// MergeAt returns the merged region containing (row, col), or nil.
//
// When regions overlap, the smallest enclosing region wins; ties go to the
// region listed first.
func (s *Sheet) MergeAt(row, col int) *Region {
	var best *Region
	for i := range s.Merges {
		r := &s.Merges[i]
		if !r.Contains(row, col) {
			continue
		}
		if best == nil || r.Cells() < best.Cells() {
			best = r
		}
	}
	return best
}

// Cell builds the parser cell for a raw cell of the given row.
func (s *Sheet) Cell(row int, raw RawCell) Cell {
	return Cell{
		Row:   row,
		Col:   raw.Col,
		Value: raw.Value,
		Merge: s.MergeAt(row, raw.Col),
	}
}

// Book is a decoded workbook.
type Book struct {
	Sheets []Sheet
}

// CellCount returns the number of present cells across all sheets.
func (b *Book) CellCount() int {
	n := 0
	for _, s := range b.Sheets {
		for _, r := range s.Rows {
			n += len(r.Cells)
		}
	}
	return n
}

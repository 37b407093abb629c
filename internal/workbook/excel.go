package workbook

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Open decodes the workbook at path.
func Open(path string) (*Book, error) {
	if isLegacy(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		defer f.Close()
		return OpenXLSReader(f)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readBook(f)
}

// OpenReader decodes a workbook from r.
func OpenReader(r io.Reader) (*Book, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readBook(f)
}

func readBook(f *excelize.File) (*Book, error) {
	book := &Book{}
	for _, name := range f.GetSheetList() {
		sheet, err := readSheet(f, name)
		if err != nil {
			return nil, err
		}
		book.Sheets = append(book.Sheets, sheet)
	}
	return book, nil
}

// readSheet collects formatted cell values and merged regions of one sheet.
// Trailing empty cells are dropped; rows left without cells are treated as absent.
func readSheet(f *excelize.File, name string) (Sheet, error) {
	sheet := Sheet{Name: name}

	rows, err := f.GetRows(name)
	if err != nil {
		return sheet, fmt.Errorf("read rows of %q: %w", name, err)
	}

	for i, values := range rows {
		last := len(values) - 1
		for last >= 0 && strings.TrimSpace(values[last]) == "" {
			last--
		}
		if last < 0 {
			continue
		}
		row := Row{Index: i, Cells: make([]RawCell, 0, last+1)}
		for j := 0; j <= last; j++ {
			row.Cells = append(row.Cells, RawCell{Col: j, Value: strings.TrimSpace(values[j])})
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	merges, err := f.GetMergeCells(name)
	if err != nil {
		return sheet, fmt.Errorf("read merged cells of %q: %w", name, err)
	}
	for _, mc := range merges {
		region, err := regionFromAxes(mc.GetStartAxis(), mc.GetEndAxis())
		if err != nil {
			return sheet, fmt.Errorf("merged range in %q: %w", name, err)
		}
		sheet.Merges = append(sheet.Merges, region)
	}

	return sheet, nil
}

// regionFromAxes converts A1-style corner references to a zero-based region.
func regionFromAxes(start, end string) (Region, error) {
	c1, r1, err := excelize.CellNameToCoordinates(start)
	if err != nil {
		return Region{}, err
	}
	c2, r2, err := excelize.CellNameToCoordinates(end)
	if err != nil {
		return Region{}, err
	}
	if r2 < r1 {
		r1, r2 = r2, r1
	}
	if c2 < c1 {
		c1, c2 = c2, c1
	}
	return Region{FirstRow: r1 - 1, LastRow: r2 - 1, FirstCol: c1 - 1, LastCol: c2 - 1}, nil
}

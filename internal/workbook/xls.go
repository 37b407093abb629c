package workbook

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/extrame/ole2"
	"github.com/extrame/xls"
)

// BIFF8 record ids read directly from the workbook stream.
const (
	recEOF         = 0x000A
	recFormula     = 0x0006
	recString      = 0x0207
	recBoundSheet  = 0x0085
	recMergedCells = 0x00E5
)

// maxXLSColumns is the column limit of the BIFF8 format.
const maxXLSColumns = 256

// formulaPlaceholder is what the xls decoder returns for every formula cell.
const formulaPlaceholder = "FormulaCol"

var errNoWorkbookStream = errors.New("no Workbook stream in compound document")

// sheetExtras holds what the xls decoder does not expose: merged ranges and
// cached formula results.
type sheetExtras struct {
	merges   []Region
	formulas map[[2]int]string
}

// OpenXLSReader decodes a legacy BIFF8 (.xls) workbook from r.
func OpenXLSReader(r io.Reader) (book *Book, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	// The decoder indexes records without bounds checks.
	defer func() {
		if p := recover(); p != nil {
			book, err = nil, fmt.Errorf("open workbook: malformed xls: %v", p)
		}
	}()

	stream, err := workbookStream(data)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	extras, err := scanSheets(stream)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if wb == nil {
		return nil, fmt.Errorf("open workbook: %w", errNoWorkbookStream)
	}

	book = &Book{}
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		var ex sheetExtras
		if i < len(extras) {
			ex = extras[i]
		}
		book.Sheets = append(book.Sheets, readXLSSheet(ws, ex))
	}
	return book, nil
}

func readXLSSheet(ws *xls.WorkSheet, ex sheetExtras) Sheet {
	sheet := Sheet{Name: ws.Name, Merges: ex.merges}

	for i := 0; i <= int(ws.MaxRow); i++ {
		r := xlsRow(ws, i)
		if r == nil {
			continue
		}

		values := make([]string, maxXLSColumns)
		last := -1
		for j := range values {
			v := strings.TrimSpace(r.Col(j))
			if v == formulaPlaceholder {
				v = ex.formulas[[2]int{i, j}]
			}
			values[j] = v
			if v != "" {
				last = j
			}
		}
		if last < 0 {
			continue
		}

		row := Row{Index: i, Cells: make([]RawCell, 0, last+1)}
		for j := 0; j <= last; j++ {
			row.Cells = append(row.Cells, RawCell{Col: j, Value: values[j]})
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

// xlsRow returns row i, or nil when the sheet has no such row.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	// WorkSheet.Row dereferences the row before checking it exists.
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

// workbookStream extracts the BIFF stream from the compound document.
func workbookStream(data []byte) ([]byte, error) {
	doc, err := ole2.Open(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	dir, err := doc.ListDir()
	if err != nil {
		return nil, err
	}

	var book, root *ole2.File
	for _, f := range dir {
		switch f.Name() {
		case "Workbook", "Book":
			book = f
		case "Root Entry":
			root = f
		}
	}
	if book == nil || root == nil {
		return nil, errNoWorkbookStream
	}
	return io.ReadAll(doc.OpenFile(book, root))
}

type biffRecord struct {
	id   uint16
	data []byte
}

// biffRecords splits stream into records starting at offset, up to and
// including the first EOF record.
func biffRecords(stream []byte, offset int) ([]biffRecord, error) {
	var recs []biffRecord
	for pos := offset; pos+4 <= len(stream); {
		id := binary.LittleEndian.Uint16(stream[pos:])
		size := int(binary.LittleEndian.Uint16(stream[pos+2:]))
		pos += 4
		if pos+size > len(stream) {
			return nil, fmt.Errorf("record 0x%04X at %d overruns the stream", id, pos-4)
		}
		recs = append(recs, biffRecord{id: id, data: stream[pos : pos+size]})
		pos += size
		if id == recEOF {
			return recs, nil
		}
	}
	return recs, nil
}

// scanSheets reads merged ranges and formula results of every sheet, in
// BOUNDSHEET order.
func scanSheets(stream []byte) ([]sheetExtras, error) {
	globals, err := biffRecords(stream, 0)
	if err != nil {
		return nil, err
	}

	var out []sheetExtras
	for _, rec := range globals {
		if rec.id != recBoundSheet || len(rec.data) < 4 {
			continue
		}
		pos := int(binary.LittleEndian.Uint32(rec.data))
		if pos >= len(stream) {
			return nil, fmt.Errorf("sheet offset %d outside the stream", pos)
		}
		recs, err := biffRecords(stream, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, sheetExtrasOf(recs))
	}
	return out, nil
}

func sheetExtrasOf(recs []biffRecord) sheetExtras {
	ex := sheetExtras{formulas: make(map[[2]int]string)}
	var pending *[2]int

	for _, rec := range recs {
		d := rec.data
		switch rec.id {
		case recMergedCells:
			if len(d) < 2 {
				continue
			}
			n := int(binary.LittleEndian.Uint16(d))
			for i := 0; i < n && 2+8*i+8 <= len(d); i++ {
				p := d[2+8*i:]
				ex.merges = append(ex.merges, Region{
					FirstRow: int(binary.LittleEndian.Uint16(p)),
					LastRow:  int(binary.LittleEndian.Uint16(p[2:])),
					FirstCol: int(binary.LittleEndian.Uint16(p[4:])),
					LastCol:  int(binary.LittleEndian.Uint16(p[6:])),
				})
			}

		case recFormula:
			pending = nil
			if len(d) < 14 {
				continue
			}
			at := [2]int{int(binary.LittleEndian.Uint16(d)), int(binary.LittleEndian.Uint16(d[2:]))}
			result := d[6:14]
			if result[6] == 0xFF && result[7] == 0xFF {
				// Non-numeric result; a string result follows in a STRING record.
				if result[0] == 0 {
					pending = &at
				}
				continue
			}
			f := math.Float64frombits(binary.LittleEndian.Uint64(result))
			ex.formulas[at] = strconv.FormatFloat(f, 'f', -1, 64)

		case recString:
			if pending != nil {
				ex.formulas[*pending] = strings.TrimSpace(biffString(d))
				pending = nil
			}
		}
	}
	return ex
}

// biffString decodes an XLUnicodeString: character count, option flags and
// either compressed 8-bit or UTF-16LE characters.
func biffString(d []byte) string {
	if len(d) < 3 {
		return ""
	}
	n := int(binary.LittleEndian.Uint16(d))
	wide := d[2]&0x01 != 0
	d = d[3:]
	if !wide {
		if n > len(d) {
			n = len(d)
		}
		units := make([]uint16, n)
		for i := 0; i < n; i++ {
			units[i] = uint16(d[i])
		}
		return string(utf16.Decode(units))
	}
	if 2*n > len(d) {
		n = len(d) / 2
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(d[2*i:])
	}
	return string(utf16.Decode(units))
}

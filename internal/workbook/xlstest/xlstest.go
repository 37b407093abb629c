// Package xlstest writes small legacy .xls workbooks for tests.
//
// The output is a BIFF8 stream inside a version 3 compound document with
// one FAT sector and one directory sector. Strings go to a single shared
// string table record, so a workbook holds a few kilobytes of text at most.
package xlstest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"unicode/utf16"
)

const (
	sectorSize   = 512
	miniCutoff   = 4096
	endOfChain   = 0xFFFFFFFE
	freeSector   = 0xFFFFFFFF
	fatSector    = 0xFFFFFFFD
	noStream     = 0xFFFFFFFF
	maxRecordLen = 8224
)

type cellKind int

const (
	kindString cellKind = iota
	kindNumber
	kindFormulaNumber
	kindFormulaString
)

type cell struct {
	row, col int
	kind     cellKind
	text     string
	number   float64
}

type merge struct {
	firstRow, lastRow, firstCol, lastCol int
}

// Sheet is a worksheet under construction.
type Sheet struct {
	name   string
	cells  []cell
	merges []merge
}

// Workbook is a workbook under construction.
type Workbook struct {
	sheets []*Sheet
}

// New returns an empty workbook.
func New() *Workbook {
	return &Workbook{}
}

// AddSheet appends a sheet.
func (w *Workbook) AddSheet(name string) *Sheet {
	s := &Sheet{name: name}
	w.sheets = append(w.sheets, s)
	return s
}

// SetString stores a text cell. Coordinates are zero-based.
func (s *Sheet) SetString(row, col int, v string) {
	s.cells = append(s.cells, cell{row: row, col: col, kind: kindString, text: v})
}

// SetNumber stores a numeric cell.
func (s *Sheet) SetNumber(row, col int, v float64) {
	s.cells = append(s.cells, cell{row: row, col: col, kind: kindNumber, number: v})
}

// SetFormula stores a formula cell whose cached result is v.
func (s *Sheet) SetFormula(row, col int, v float64) {
	s.cells = append(s.cells, cell{row: row, col: col, kind: kindFormulaNumber, number: v})
}

// SetFormulaString stores a formula cell whose cached result is the text v.
func (s *Sheet) SetFormulaString(row, col int, v string) {
	s.cells = append(s.cells, cell{row: row, col: col, kind: kindFormulaString, text: v})
}

// Merge merges the inclusive range and writes text into its first cell.
func (s *Sheet) Merge(firstRow, lastRow, firstCol, lastCol int, text string) {
	s.SetString(firstRow, firstCol, text)
	s.merges = append(s.merges, merge{firstRow, lastRow, firstCol, lastCol})
}

// Row writes values into consecutive cells of row starting at column 0.
// float64 and int values become numeric cells, strings text cells, and
// empty strings are skipped.
func (s *Sheet) Row(row int, values ...any) {
	for col, v := range values {
		switch v := v.(type) {
		case string:
			if v != "" {
				s.SetString(row, col, v)
			}
		case int:
			s.SetNumber(row, col, float64(v))
		case float64:
			s.SetNumber(row, col, v)
		default:
			panic(fmt.Sprintf("xlstest: unsupported value %T", v))
		}
	}
}

// Bytes encodes the workbook as an .xls file.
func (w *Workbook) Bytes() []byte {
	return compoundDocument(w.biff())
}

type recordWriter struct {
	bytes.Buffer
}

func (r *recordWriter) record(id uint16, body []byte) {
	if len(body) > maxRecordLen {
		panic(fmt.Sprintf("xlstest: record 0x%04X exceeds %d bytes", id, maxRecordLen))
	}
	binary.Write(&r.Buffer, binary.LittleEndian, id)
	binary.Write(&r.Buffer, binary.LittleEndian, uint16(len(body)))
	r.Write(body)
}

func le(values ...any) []byte {
	var b bytes.Buffer
	for _, v := range values {
		binary.Write(&b, binary.LittleEndian, v)
	}
	return b.Bytes()
}

// wideString encodes text as UTF-16LE preceded by the option flags byte.
func wideString(text string) []byte {
	return append([]byte{0x01}, le(utf16.Encode([]rune(text)))...)
}

func bof(kind uint16) []byte {
	return le(uint16(0x0600), kind, uint16(0), uint16(0), uint32(0), uint32(0x0600))
}

func (w *Workbook) biff() []byte {
	var sst []string
	index := make(map[string]uint32)
	for _, s := range w.sheets {
		for _, c := range s.cells {
			if c.kind != kindString {
				continue
			}
			if _, ok := index[c.text]; !ok {
				index[c.text] = uint32(len(sst))
				sst = append(sst, c.text)
			}
		}
	}

	var globals recordWriter
	globals.record(0x0809, bof(0x0005))
	if len(sst) > 0 {
		body := le(uint32(len(sst)), uint32(len(sst)))
		for _, text := range sst {
			body = append(body, le(uint16(len(utf16.Encode([]rune(text)))))...)
			body = append(body, wideString(text)...)
		}
		globals.record(0x00FC, body)
	}

	// BOUNDSHEET offsets are patched once the globals length is known.
	patch := make([]int, len(w.sheets))
	for i, s := range w.sheets {
		patch[i] = globals.Len() + 4
		name := le(uint32(0), uint8(0), uint8(0), uint8(len(utf16.Encode([]rune(s.name)))))
		globals.record(0x0085, append(name, wideString(s.name)...))
	}
	globals.record(0x000A, nil)

	stream := globals.Bytes()
	for i, s := range w.sheets {
		binary.LittleEndian.PutUint32(stream[patch[i]:], uint32(len(stream)))
		stream = append(stream, s.biff(index)...)
	}
	return stream
}

func (s *Sheet) biff(sst map[string]uint32) []byte {
	cells := append([]cell(nil), s.cells...)
	sort.SliceStable(cells, func(i, j int) bool {
		if cells[i].row != cells[j].row {
			return cells[i].row < cells[j].row
		}
		return cells[i].col < cells[j].col
	})

	var r recordWriter
	r.record(0x0809, bof(0x0010))
	for _, c := range cells {
		at := le(uint16(c.row), uint16(c.col), uint16(0))
		switch c.kind {
		case kindString:
			r.record(0x00FD, append(at, le(sst[c.text])...))
		case kindNumber:
			r.record(0x0203, append(at, le(c.number)...))
		case kindFormulaNumber:
			r.record(0x0006, append(at, formulaTail(le(math.Float64bits(c.number)))...))
		case kindFormulaString:
			r.record(0x0006, append(at, formulaTail([]byte{0, 0, 0, 0, 0, 0, 0xFF, 0xFF})...))
			r.record(0x0207, append(le(uint16(len(utf16.Encode([]rune(c.text))))), wideString(c.text)...))
		}
	}
	if len(s.merges) > 0 {
		body := le(uint16(len(s.merges)))
		for _, m := range s.merges {
			body = append(body, le(uint16(m.firstRow), uint16(m.lastRow), uint16(m.firstCol), uint16(m.lastCol))...)
		}
		r.record(0x00E5, body)
	}
	r.record(0x000A, nil)
	return r.Bytes()
}

// formulaTail is the cached result, option flags, reserved field and a
// constant-integer formula.
func formulaTail(result []byte) []byte {
	tail := append([]byte(nil), result...)
	tail = append(tail, le(uint16(0), uint32(0))...)
	return append(tail, le(uint16(3), uint8(0x1E), uint16(0))...)
}

// compoundDocument wraps stream as the "Workbook" stream of a compound
// document: sector 0 holds the FAT, sector 1 the directory and the stream
// follows from sector 2.
func compoundDocument(stream []byte) []byte {
	size := len(stream)
	if size < miniCutoff {
		size = miniCutoff
	}
	if rem := size % sectorSize; rem != 0 {
		size += sectorSize - rem
	}
	data := make([]byte, size)
	copy(data, stream)

	n := size / sectorSize
	if 2+n > sectorSize/4 {
		panic("xlstest: workbook exceeds one FAT sector")
	}

	header := make([]byte, sectorSize)
	copy(header, le(uint32(0xE011CFD0), uint32(0xE11AB1A1)))
	copy(header[24:], le(uint16(0x003E), uint16(3), uint16(0xFFFE), uint16(9), uint16(6)))
	copy(header[44:], le(uint32(1), uint32(1), uint32(0), uint32(miniCutoff),
		uint32(endOfChain), uint32(0), uint32(endOfChain), uint32(0)))
	copy(header[76:], le(uint32(0)))
	for i := 1; i < 109; i++ {
		copy(header[76+4*i:], le(uint32(freeSector)))
	}

	fat := make([]uint32, sectorSize/4)
	for i := range fat {
		fat[i] = freeSector
	}
	fat[0] = fatSector
	fat[1] = endOfChain
	for i := 0; i < n; i++ {
		fat[2+i] = uint32(3 + i)
	}
	fat[2+n-1] = endOfChain

	dir := make([]byte, sectorSize)
	copy(dir[0:], dirEntry("Root Entry", 5, 1, endOfChain, 0))
	copy(dir[128:], dirEntry("Workbook", 2, noStream, 2, uint32(size)))
	copy(dir[256:], dirEntry("", 0, noStream, 0, 0))
	copy(dir[384:], dirEntry("", 0, noStream, 0, 0))

	var out bytes.Buffer
	out.Write(header)
	out.Write(le(fat))
	out.Write(dir)
	out.Write(data)
	return out.Bytes()
}

func dirEntry(name string, kind uint8, child, start, size uint32) []byte {
	e := make([]byte, 128)
	if name != "" {
		units := utf16.Encode([]rune(name))
		copy(e, le(units))
		binary.LittleEndian.PutUint16(e[64:], uint16(2*(len(units)+1)))
	}
	e[66] = kind
	e[67] = 1
	copy(e[68:], le(uint32(noStream), uint32(noStream), child))
	copy(e[116:], le(start, size))
	return e
}

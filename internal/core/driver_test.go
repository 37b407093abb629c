package core

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/applicants/internal/schema"
	"github.com/JonMunkholm/applicants/internal/store/memory"
	"github.com/JonMunkholm/applicants/internal/workbook"
)

// failingStore fails applicant inserts.
type failingStore struct {
	*memory.Store
	failApplicants bool
}

func (s *failingStore) InsertApplicant(ctx context.Context, a schema.Applicant) (int64, error) {
	if s.failApplicants {
		return 0, errors.New("insert applicant: connection reset by peer")
	}
	return s.Store.InsertApplicant(ctx, a)
}

// loopingStepper asks for every cell to be processed again.
type loopingStepper struct{ steps int }

func (l *loopingStepper) Step(pc Context, _ workbook.Cell) (Context, []Command, Result) {
	l.steps++
	return pc, nil, Again
}

func (l *loopingStepper) EndRow(pc Context) (Context, []Command) { return pc, nil }

func singleCellBook() *workbook.Book {
	return &workbook.Book{Sheets: []workbook.Sheet{{
		Name: "Лист1",
		Rows: []workbook.Row{{Index: 4, Cells: []workbook.RawCell{{Col: 2, Value: "x"}}}},
	}}}
}

func TestDriver_RedispatchLimit(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		wantSteps int
	}{
		{"default bound", 0, DefaultMaxRedispatch + 1},
		{"custom bound", 5, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &loopingStepper{}
			d := NewDriver(st, memory.New(), 1).WithMaxRedispatch(tt.max)

			err := d.Run(context.Background(), singleCellBook(), newSummary())
			if !errors.Is(err, ErrRedispatchLimit) {
				t.Fatalf("Run() error = %v, want ErrRedispatchLimit", err)
			}
			var cellErr *CellError
			if !errors.As(err, &cellErr) || cellErr.Row != 4 || cellErr.Col != 2 || cellErr.Sheet != "Лист1" {
				t.Errorf("Run() error = %#v, want location Лист1 row 4 col 2", err)
			}
			if st.steps != tt.wantSteps {
				t.Errorf("Step calls = %d, want %d", st.steps, tt.wantSteps)
			}
		})
	}
}

func TestDriver_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDriver(NewMachine(ModeExtended, nil, 0), memory.New(), 1)
	if err := d.Run(ctx, singleCellBook(), newSummary()); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestDriver_WarningsCarrySheet(t *testing.T) {
	book := &workbook.Book{Sheets: []workbook.Sheet{{
		Name: "Магистратура",
		Rows: []workbook.Row{{Index: 0, Cells: []workbook.RawCell{{Col: 0, Value: "Список поступающих"}}}},
		Merges: []workbook.Region{{FirstRow: 0, LastRow: 0, FirstCol: 0, LastCol: 12}},
	}}}

	sum := newSummary()
	d := NewDriver(NewMachine(ModeExtended, nil, 0), memory.New(), 1)
	if err := d.Run(context.Background(), book, sum); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(sum.Warnings) != 1 {
		t.Fatalf("Warnings = %+v, want 1", sum.Warnings)
	}
	w := sum.Warnings[0]
	if w.Code != WarnUnclassifiedHeader || w.Sheet != "Магистратура" || w.Row != 0 {
		t.Errorf("warning = %+v", w)
	}
	if sum.Rows != 1 || sum.Cells != 1 || sum.Sheets != 1 {
		t.Errorf("counters rows=%d cells=%d sheets=%d, want 1 each", sum.Rows, sum.Cells, sum.Sheets)
	}
}

func TestDriver_ContextSpansSheets(t *testing.T) {
	merged := []workbook.Region{
		{FirstRow: 0, LastRow: 0, FirstCol: 0, LastCol: 12},
		{FirstRow: 1, LastRow: 1, FirstCol: 0, LastCol: 12},
		{FirstRow: 2, LastRow: 2, FirstCol: 0, LastCol: 12},
		{FirstRow: 3, LastRow: 3, FirstCol: 0, LastCol: 12},
	}
	row := func(i int, values ...string) workbook.Row {
		r := workbook.Row{Index: i}
		for c, v := range values {
			r.Cells = append(r.Cells, workbook.RawCell{Col: c, Value: v})
		}
		return r
	}

	book := &workbook.Book{Sheets: []workbook.Sheet{
		{
			Name: "1",
			Rows: []workbook.Row{
				row(0, "Институт физики"),
				row(1, "форма обучения: заочная"),
				row(2, "договор"),
				row(3, "магистратуры «Физика»"),
				row(4, "№ п/п", "ФИО", "", "", "Физика", "", "", "ИД"),
			},
			Merges: merged,
		},
		{
			Name: "2",
			Rows: []workbook.Row{row(0, "1", "Лебедев Л.Л.")},
		},
	}}

	store := memory.New()
	sum := newSummary()
	d := NewDriver(NewMachine(ModeExtended, nil, 0), store, 9)
	if err := d.Run(context.Background(), book, sum); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if sum.Applicants != 1 {
		t.Fatalf("Applicants = %d, want 1", sum.Applicants)
	}
	a := store.Applicants()[0]
	if a.SourceFileID != 9 || a.Name != "Лебедев Л.Л." {
		t.Errorf("applicant = %+v", a)
	}
	if got := d.Resolver().Created()[schema.KindEduLevel]; got != 1 {
		t.Errorf("levels created = %d, want 1", got)
	}
	if levels := store.Refs(schema.KindEduLevel); levels[0].Title != "магистратура" {
		t.Errorf("level = %q, want магистратура", levels[0].Title)
	}
}

package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/applicants/internal/logging"
	"github.com/JonMunkholm/applicants/internal/metrics"
	"github.com/JonMunkholm/applicants/internal/workbook"
)

// DefaultMaxRedispatch bounds how often one cell may be fed back to the
// state machine. The state graph needs at most one extra pass per cell.
const DefaultMaxRedispatch = 2

// stepper is the state machine as seen by the driver.
type stepper interface {
	Step(pc Context, cell workbook.Cell) (Context, []Command, Result)
	EndRow(pc Context) (Context, []Command)
}

// Driver walks a workbook through the state machine and executes the
// commands it returns.
//
// One Context is carried across every sheet of the document.
type Driver struct {
	machine       stepper
	resolver      *Resolver
	store         Store
	metrics       *metrics.Metrics
	maxRedispatch int
	sourceFileID  int64
}

// NewDriver builds a driver for one document. Applicants it inserts are
// stamped with sourceFileID.
func NewDriver(machine stepper, store Store, sourceFileID int64) *Driver {
	return &Driver{
		machine:       machine,
		resolver:      NewResolver(store),
		store:         store,
		maxRedispatch: DefaultMaxRedispatch,
		sourceFileID:  sourceFileID,
	}
}

// WithMaxRedispatch overrides the redispatch bound; n <= 0 keeps the default.
func (d *Driver) WithMaxRedispatch(n int) *Driver {
	if n > 0 {
		d.maxRedispatch = n
	}
	return d
}

// WithMetrics attaches metrics collectors.
func (d *Driver) WithMetrics(m *metrics.Metrics) *Driver {
	d.metrics = m
	return d
}

// Resolver returns the driver's entity resolver.
func (d *Driver) Resolver() *Resolver {
	return d.resolver
}

// Run feeds every cell of book to the state machine and fills sum.
// The returned error aborts the document; recoverable conditions end up
// in sum.Warnings instead.
func (d *Driver) Run(ctx context.Context, book *workbook.Book, sum *Summary) error {
	log := logging.FromContext(ctx)
	var pc Context

	// Entities committed before a failure stay in the store, so they are
	// reported either way.
	defer func() {
		for kind, n := range d.resolver.Created() {
			sum.Created[kind] += n
			d.metrics.Create(string(kind), n)
		}
	}()

	for si := range book.Sheets {
		sheet := &book.Sheets[si]
		sum.Sheets++
		log.Debug("sheet started", "sheet", sheet.Name, "rows", len(sheet.Rows), "merges", len(sheet.Merges))

		for _, row := range sheet.Rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum.Rows++

			var err error
			pc, err = d.runRow(ctx, log, pc, sheet, row, sum)
			if err != nil {
				return err
			}

			var cmds []Command
			pc, cmds = d.machine.EndRow(pc)
			if pc, err = d.exec(ctx, log, pc, cmds, sheet.Name, sum); err != nil {
				last := row.Cells[len(row.Cells)-1].Col
				return &CellError{Sheet: sheet.Name, Row: row.Index, Col: last, Err: err}
			}
		}
	}
	return nil
}

func (d *Driver) runRow(ctx context.Context, log *slog.Logger, pc Context, sheet *workbook.Sheet, row workbook.Row, sum *Summary) (Context, error) {
	for _, raw := range row.Cells {
		cell := sheet.Cell(row.Index, raw)
		sum.Cells++

		for pass := 0; ; pass++ {
			if pass > d.maxRedispatch {
				return pc, &CellError{Sheet: sheet.Name, Row: cell.Row, Col: cell.Col, Err: ErrRedispatchLimit}
			}

			prev := pc.State
			var cmds []Command
			var res Result
			pc, cmds, res = d.machine.Step(pc, cell)
			if prev != pc.State {
				log.Debug("state changed", "sheet", sheet.Name, "row", cell.Row, "col", cell.Col,
					"from", prev.String(), "to", pc.State.String())
				if pc.State == StateList {
					sum.Blocks++
				}
			}

			var err error
			if pc, err = d.exec(ctx, log, pc, cmds, sheet.Name, sum); err != nil {
				return pc, &CellError{Sheet: sheet.Name, Row: cell.Row, Col: cell.Col, Err: err}
			}

			if res == SkipRow {
				return pc, nil
			}
			if res != Again {
				break
			}
		}
	}
	return pc, nil
}

// exec runs commands in order, binding resolved ids into pc as it goes.
func (d *Driver) exec(ctx context.Context, log *slog.Logger, pc Context, cmds []Command, sheet string, sum *Summary) (Context, error) {
	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case UpsertRef:
			ref, err := d.resolver.Ref(ctx, c.Kind, c.Title)
			if err != nil {
				return pc, err
			}
			pc = pc.Bind(ref)

		case UpsertProgram:
			p, err := d.resolver.Program(ctx, c.Program)
			if err != nil {
				return pc, err
			}
			pc = pc.BindProgram(p)

		case InsertApplicant:
			a := c.Applicant
			a.SourceFileID = d.sourceFileID
			if _, err := d.store.InsertApplicant(ctx, a); err != nil {
				return pc, fmt.Errorf("insert applicant %d %q: %w", a.Order, a.Name, err)
			}
			sum.Applicants++
			d.metrics.Applicant()

		case DropApplicant:
			sum.Skipped++
			d.metrics.Drop(c.Reason)
			log.Debug("applicant dropped", "sheet", sheet, "order", c.Order, "name", c.Name, "reason", c.Reason)

		case Warn:
			sum.Warnings = append(sum.Warnings, Warning{
				Code:    c.Code,
				Message: c.Message,
				Sheet:   sheet,
				Row:     c.Row,
				Col:     c.Col,
			})
			d.metrics.Warn(c.Code)
			log.Warn(c.Message, "code", c.Code, "sheet", sheet, "row", c.Row+1, "col", c.Col+1)

		default:
			return pc, fmt.Errorf("unknown command %T", cmd)
		}
	}
	return pc, nil
}

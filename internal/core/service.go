package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/JonMunkholm/applicants/internal/logging"
	"github.com/JonMunkholm/applicants/internal/metrics"
	"github.com/JonMunkholm/applicants/internal/schema"
	"github.com/JonMunkholm/applicants/internal/workbook"
	"github.com/google/uuid"
)

// DefaultHistorySize is how many recent ingestion summaries a Service keeps.
const DefaultHistorySize = 20

// Options configures a Service. Zero values select defaults.
type Options struct {
	Mode          Mode
	MinMergeCells int
	MaxRedispatch int
	MaxFileSize   int64
	Timeout       time.Duration
	Classifier    *Classifier
	Limiter       *IngestLimiter
	Metrics       *metrics.Metrics
	HistorySize   int
}

// Document is one ranking list to ingest.
// Mode overrides the service default when set.
type Document struct {
	Name    string
	ModTime time.Time
	Size    int64
	Reader  io.Reader
	Mode    Mode
}

// Service ingests ranking list documents into a Store.
type Service struct {
	store Store
	opts  Options

	mu      sync.RWMutex
	history []Summary
}

// NewService creates a Service writing to store.
func NewService(store Store, opts Options) *Service {
	if opts.Mode == "" {
		opts.Mode = ModeExtended
	}
	if opts.Classifier == nil {
		opts.Classifier = DefaultClassifier()
	}
	if opts.Limiter == nil {
		opts.Limiter = NewIngestLimiter(DefaultMaxConcurrentIngests, DefaultMaxWaitTime)
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	return &Service{store: store, opts: opts}
}

// Mode returns the default mode of the service.
func (s *Service) Mode() Mode {
	return s.opts.Mode
}

// Ingest parses one document and writes its records to the store.
//
// Unsupported extensions fail before the store is touched. On any later
// error the uncommitted applicants of the document are rolled back;
// reference entities already committed are kept. The returned Summary is
// non-nil whenever parsing started.
func (s *Service) Ingest(ctx context.Context, doc Document) (*Summary, error) {
	if !workbook.IsSupported(doc.Name) {
		s.opts.Metrics.File(metrics.ResultUnsupported, 0)
		return nil, fmt.Errorf("ingest %s: %w", doc.Name, ErrUnsupportedFormat)
	}
	if s.opts.MaxFileSize > 0 && doc.Size > s.opts.MaxFileSize {
		return nil, fmt.Errorf("ingest %s: file too large: %d bytes exceeds limit of %d", doc.Name, doc.Size, s.opts.MaxFileSize)
	}

	mode := doc.Mode
	if mode == "" {
		mode = s.opts.Mode
	}

	if err := s.opts.Limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", doc.Name, err)
	}
	defer s.opts.Limiter.Release()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	sum := newSummary()
	sum.RunID = uuid.New()
	sum.Filename = doc.Name
	sum.Mode = mode
	ctx = logging.WithRunID(ctx, sum.RunID)
	log := logging.WithFields(ctx, "file", doc.Name, "mode", string(mode))

	start := time.Now()
	err := s.ingest(ctx, doc, sum)
	sum.Duration = time.Since(start)

	if err != nil {
		if rbErr := s.store.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Error("rollback failed", "error", rbErr)
		}
		s.opts.Metrics.File(metrics.ResultFailed, sum.Duration)
		log.Error("ingest failed", "error", err, "code", MapError(err).Code)
		s.record(*sum)
		return sum, fmt.Errorf("ingest %s: %w", doc.Name, err)
	}

	s.opts.Metrics.File(metrics.ResultOK, sum.Duration)
	log.Info("ingest completed",
		"sheets", sum.Sheets,
		"blocks", sum.Blocks,
		"applicants", sum.Applicants,
		"skipped", sum.Skipped,
		"warnings", len(sum.Warnings),
		"duration", sum.Duration,
	)
	s.record(*sum)
	return sum, nil
}

func (s *Service) ingest(ctx context.Context, doc Document, sum *Summary) error {
	book, err := workbook.Read(doc.Name, doc.Reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if book.CellCount() == 0 {
		return ErrEmptyWorkbook
	}

	sfID, err := s.store.InsertSourceFile(ctx, schema.SourceFile{
		RunID:            sum.RunID,
		Filename:         doc.Name,
		LastWriteTimeUTC: doc.ModTime.UTC(),
		Length:           doc.Size,
		Mode:             string(sum.Mode),
	})
	if err != nil {
		return fmt.Errorf("insert source file: %w", err)
	}
	if err := s.store.Commit(ctx); err != nil {
		return fmt.Errorf("commit source file: %w", err)
	}
	sum.SourceFileID = sfID

	machine := NewMachine(sum.Mode, s.opts.Classifier, s.opts.MinMergeCells)
	driver := NewDriver(machine, s.store, sfID).
		WithMaxRedispatch(s.opts.MaxRedispatch).
		WithMetrics(s.opts.Metrics)

	if err := driver.Run(ctx, book, sum); err != nil {
		return err
	}
	if err := s.store.Commit(ctx); err != nil {
		return fmt.Errorf("commit applicants: %w", err)
	}
	return nil
}

func (s *Service) record(sum Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, sum)
	if over := len(s.history) - s.opts.HistorySize; over > 0 {
		s.history = append([]Summary(nil), s.history[over:]...)
	}
}

// History returns recent ingestion summaries, newest first.
func (s *Service) History() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, len(s.history))
	for i, sum := range s.history {
		out[len(s.history)-1-i] = sum
	}
	return out
}

// Stats returns record counts of the store.
func (s *Service) Stats(ctx context.Context) (schema.Stats, error) {
	return s.store.Stats(ctx)
}

// LimiterStatus reports the ingestion slots in use.
func (s *Service) LimiterStatus() IngestLimiterStatus {
	return s.opts.Limiter.Status()
}

// Drain waits for running ingestions to finish.
func (s *Service) Drain(ctx context.Context) error {
	return s.opts.Limiter.WaitForDrain(ctx)
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/applicants/internal/core"
	"github.com/JonMunkholm/applicants/internal/schema"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // One or more documents failed to ingest
	ExitCommandError = 2 // Command error (bad flags, unreachable store, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or JSON lines.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// ingestFailure is the JSON form of a failed document.
type ingestFailure struct {
	Location string `json:"location"`
	Error    string `json:"error"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// Summary prints the outcome of one ingest.
func (f *OutputFormatter) Summary(s *core.Summary) {
	if f.Format == "json" {
		f.json(s)
		return
	}
	fmt.Fprintf(f.Writer, "%s: %d applicants in %d blocks, %d skipped, %d warnings (%s)\n",
		s.Filename, s.Applicants, s.Blocks, s.Skipped, len(s.Warnings), s.Duration.Round(time.Millisecond))
	for _, w := range s.Warnings {
		fmt.Fprintf(f.Writer, "  warning %s: %s (sheet %q row %d)\n", w.Code, w.Message, w.Sheet, w.Row+1)
	}
}

// IngestError prints a failed document with its user-facing message.
func (f *OutputFormatter) IngestError(loc string, err error) {
	msg := core.MapError(err)
	if f.Format == "json" {
		f.json(ingestFailure{Location: loc, Error: err.Error(), Code: msg.Code, Message: msg.Message})
		return
	}
	fmt.Fprintf(f.Writer, "%s: %s\n  %v\n", loc, core.FormatUserError(err), err)
}

// Stats prints store record counts.
func (f *OutputFormatter) Stats(s schema.Stats) error {
	if f.Format == "json" {
		return f.json(s)
	}
	rows := []struct {
		label string
		n     int64
	}{
		{"divisions", s.Divisions},
		{"edu_forms", s.EduForms},
		{"financings", s.Financings},
		{"edu_levels", s.EduLevels},
		{"edu_programs", s.EduPrograms},
		{"applicants", s.Applicants},
		{"source_files", s.SourceFiles},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(f.Writer, "%-13s %d\n", r.label, r.n); err != nil {
			return err
		}
	}
	return nil
}

func (f *OutputFormatter) json(v any) error {
	return json.NewEncoder(f.Writer).Encode(v)
}

package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/JonMunkholm/applicants/internal/core"
	"github.com/JonMunkholm/applicants/internal/logging"
	"github.com/JonMunkholm/applicants/internal/web/templates"
)

var errNoFile = errors.New("no file provided")

// handleIndex renders the upload page with store counts and recent ingests.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.service.Stats(ctx)
	if err != nil {
		// Render the page anyway; the counts just stay at zero.
		logging.FromContext(ctx).Warn("stats unavailable", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Index(templates.IndexParams{
		Stats:   stats,
		History: s.service.History(),
		Limiter: s.service.LimiterStatus(),
		Modes:   []core.Mode{s.service.Mode(), otherMode(s.service.Mode())},
	}).Render(ctx, w)
}

// handleIngest ingests one uploaded workbook.
//
// Form fields: "file" (required) and "mode" (extended or simple, optional).
// Responds with the ingest Summary as JSON, or as an HTML page for browser
// form posts.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize)
	if err := r.ParseMultipartForm(s.opts.MaxUploadSize); err != nil {
		s.respondError(w, r, errors.New("file too large or invalid form: "+err.Error()), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	mode, ok := core.ParseMode(r.FormValue("mode"))
	if !ok {
		s.respondError(w, r, errors.New("unknown mode "+r.FormValue("mode")), http.StatusBadRequest)
		return
	}
	if r.FormValue("mode") == "" {
		mode = s.service.Mode()
	}

	sum, err := s.service.Ingest(r.Context(), core.Document{
		Name:    header.Filename,
		ModTime: time.Now(),
		Size:    header.Size,
		Reader:  file,
		Mode:    mode,
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, sum)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.SummaryPage(*sum).Render(r.Context(), w)
}

// handleStats returns row counts of every collection.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleHistory returns recent ingest summaries, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.History())
}

// handleIngestStatus returns the current state of the ingest limiter.
func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Time: time.Now().UTC()})
}

func otherMode(m core.Mode) core.Mode {
	if m == core.ModeSimple {
		return core.ModeExtended
	}
	return core.ModeSimple
}

// Package remote serves the record store over HTTP and provides the client
// that screens use as their remote query source and save target.
package remote

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewbaird/recordview/internal/event"
	"github.com/matthewbaird/recordview/internal/persist"
	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/signals"
	"github.com/matthewbaird/recordview/internal/store"
)

// Backend is the data behind the server.
type Backend interface {
	query.Source
	persist.Applier
	Get(ctx context.Context, ref record.Ref) (*record.Row, error)
}

// JournalReader reads the event journal of a record.
type JournalReader interface {
	QueryByRecord(ctx context.Context, ref record.Ref, opts store.JournalOptions) ([]event.Entry, string, int, error)
}

// ApplyRequest is the body of POST /v1/records.
type ApplyRequest struct {
	Operations []record.Operation `json:"operations"`
}

// ApplyResponse is the reply to POST /v1/records.
type ApplyResponse struct {
	Refs []record.Ref `json:"refs"`
}

// CountResponse is the reply to POST /v1/count.
type CountResponse struct {
	Count int `json:"count"`
}

// JournalResponse is the reply to GET /v1/journal/{info_area}/{record_id}.
type JournalResponse struct {
	Entries    []event.Entry `json:"entries"`
	NextCursor string        `json:"next_cursor,omitempty"`
	TotalCount int           `json:"total_count"`
}

// Handler implements the record service.
type Handler struct {
	backend Backend
	journal JournalReader
}

// NewHandler creates a handler. journal may be nil.
func NewHandler(backend Backend, journal JournalReader) *Handler {
	return &Handler{backend: backend, journal: journal}
}

// RegisterRoutes registers the record service routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", h.Find)
		r.Post("/count", h.Count)
		r.Post("/records", h.Apply)
		r.Get("/records/{info_area}/{record_id}", h.GetRecord)
		r.Get("/journal/{info_area}/{record_id}", h.Journal)
		r.Get("/journal/{info_area}/{record_id}/summary", h.JournalSummary)
	})
}

// Router returns a chi router with the service routes and the standard
// middleware stack.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Logging)
	h.RegisterRoutes(r)
	return r
}

// Find runs a query.
// POST /v1/query
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	q, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	rs, err := h.backend.Find(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	if rs.Rows == nil {
		rs.Rows = []*record.Row{}
	}
	writeJSON(w, http.StatusOK, rs)
}

// Count counts the matches of a query.
// POST /v1/count
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	q, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	n, err := h.backend.Count(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// Apply performs a batch of operations atomically.
// POST /v1/records
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if len(req.Operations) == 0 {
		writeError(w, http.StatusBadRequest, "NO_OPERATIONS", "operations must not be empty")
		return
	}
	refs, err := h.backend.Apply(r.Context(), req.Operations)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ApplyResponse{Refs: refs})
}

// GetRecord returns one record.
// GET /v1/records/{info_area}/{record_id}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	ref, ok := refParam(w, r)
	if !ok {
		return
	}
	row, err := h.backend.Get(r.Context(), ref)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// Journal returns the newest journal entries of a record.
// GET /v1/journal/{info_area}/{record_id}
func (h *Handler) Journal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "NO_JOURNAL", "journal is not enabled")
		return
	}
	ref, ok := refParam(w, r)
	if !ok {
		return
	}
	opts := store.JournalOptions{
		Limit:     queryInt(r, "limit", 100, 500),
		Cursor:    r.URL.Query().Get("cursor"),
		MinWeight: r.URL.Query().Get("min_weight"),
	}
	if s := r.URL.Query().Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			opts.Since = &t
		}
	}
	if cats := r.URL.Query().Get("categories"); cats != "" {
		opts.Categories = strings.Split(cats, ",")
	}
	entries, next, total, err := h.journal.QueryByRecord(r.Context(), ref, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	if entries == nil {
		entries = []event.Entry{}
	}
	writeJSON(w, http.StatusOK, JournalResponse{Entries: entries, NextCursor: next, TotalCount: total})
}

// JournalSummary condenses the recent journal of a record into a health
// summary. The window is the last days days (default 7, at most 90).
// GET /v1/journal/{info_area}/{record_id}/summary
func (h *Handler) JournalSummary(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "NO_JOURNAL", "journal is not enabled")
		return
	}
	ref, ok := refParam(w, r)
	if !ok {
		return
	}
	until := time.Now()
	since := until.AddDate(0, 0, -queryInt(r, "days", 7, 90))
	entries, _, _, err := h.journal.QueryByRecord(r.Context(), ref, store.JournalOptions{
		Since: &since,
		Until: &until,
		Limit: 500,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, signals.Summarize(entries, ref, since, until, signals.DefaultRules))
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (query.Query, bool) {
	var q query.Query
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return q, false
	}
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return q, false
	}
	return q, true
}

func refParam(w http.ResponseWriter, r *http.Request) (record.Ref, bool) {
	ref := record.Ref{
		InfoArea: chi.URLParam(r, "info_area"),
		RecordID: chi.URLParam(r, "record_id"),
	}
	if ref.InfoArea == "" || ref.RecordID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "info_area and record_id are required")
		return ref, false
	}
	return ref, true
}

// storeErrorToHTTP maps store errors to HTTP responses.
func storeErrorToHTTP(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	writeError(w, http.StatusUnprocessableEntity, "APPLY_FAILED", err.Error())
}

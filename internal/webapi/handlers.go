// Package webapi is the read-only JSON API over stored run reports and the
// baseline log.
package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/timsvoice/specimin/internal/baseline"
	"github.com/timsvoice/specimin/internal/models"
)

// Version is reported by the health endpoint. The CLI sets it at startup.
var Version = "dev"

var (
	sortFields = []string{"", "timestamp", "pass_rate", "tests", "id"}
	sortOrders = []string{"", "asc", "desc"}
)

// Handlers serves the API routes.
type Handlers struct {
	store   RunStore
	history HistorySource
	policy  baseline.Policy
}

// NewHandlers creates a new Handlers. history may be nil, in which case the
// baseline endpoint reports an empty log.
func NewHandlers(store RunStore, history HistorySource, policy baseline.Policy) *Handlers {
	return &Handlers{store: store, history: history, policy: policy}
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/summary", h.HandleSummary)
	mux.HandleFunc("GET /api/runs", h.HandleRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.HandleRunDetail)
	mux.HandleFunc("GET /api/runs/{id}/cases/{case}", h.HandleCase)
	mux.HandleFunc("GET /api/baseline", h.HandleBaseline)
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}

// HandleSummary returns totals across all runs.
func (h *Handlers) HandleSummary(w http.ResponseWriter, _ *http.Request) {
	summary, err := h.store.Summary()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleRuns lists runs. ?sort is one of timestamp, pass_rate, tests or id;
// ?order is asc or desc. Newest first by default.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	field, order := r.URL.Query().Get("sort"), r.URL.Query().Get("order")
	if !slices.Contains(sortFields, field) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid sort field %q", field))
		return
	}
	if !slices.Contains(sortOrders, order) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid sort order %q", order))
		return
	}

	runs, err := h.store.ListRuns(field, order)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleRunDetail returns one run with its per-case results.
func (h *Handlers) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.store.GetRun(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleCase returns a single case of a run, matched by test ID.
func (h *Handlers) HandleCase(w http.ResponseWriter, r *http.Request) {
	detail, err := h.store.GetRun(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	id := r.PathValue("case")
	i := slices.IndexFunc(detail.Cases, func(c CaseResult) bool { return c.TestID == id })
	if i < 0 {
		writeError(w, http.StatusNotFound, "case not found")
		return
	}
	writeJSON(w, http.StatusOK, detail.Cases[i])
}

// HandleBaseline returns the baseline log, oldest first, and the verdict of
// its newest entry against the one before it.
func (h *Handlers) HandleBaseline(w http.ResponseWriter, r *http.Request) {
	resp := BaselineResponse{Entries: []models.BaselineEntry{}}
	if h.history != nil {
		if entries := h.history.History(r.Context()); entries != nil {
			resp.Entries = entries
		}
	}

	if n := len(resp.Entries); n > 0 {
		var previous *models.BaselineEntry
		if n > 1 {
			previous = &resp.Entries[n-2]
		}
		v := baseline.Compare(previous, resp.Entries[n-1], h.policy)
		resp.Verdict = &v
	}

	writeJSON(w, http.StatusOK, resp)
}

// CORSMiddleware allows cross-origin GETs from the listed origins. Requests
// from other origins get no CORS headers. Preflight requests are answered
// here and never reach next.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(allowedOrigins) > 0 {
			w.Header().Add("Vary", "Origin")
		}
		if origin := r.Header.Get("Origin"); origin != "" && slices.Contains(allowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	slog.Error("reading run store", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}

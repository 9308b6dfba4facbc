package webserver

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/timsvoice/specimin/internal/models"
	"github.com/timsvoice/specimin/internal/reporting"
	"github.com/timsvoice/specimin/internal/webapi"
)

// registerRoutes sets up the JSON API and the rendered report pages on mux.
func registerRoutes(mux *http.ServeMux, cfg Config) {
	webapi.RegisterRoutes(mux, webapi.NewHandlers(cfg.Store, cfg.History, cfg.Policy))

	pages := &pageHandlers{store: cfg.Store, threshold: cfg.PassThreshold}
	mux.HandleFunc("GET /{$}", pages.handleIndex)
	mux.HandleFunc("GET /runs/{id}", pages.handleReport)
	mux.HandleFunc("GET /runs/{id}/junit.xml", pages.handleJUnit)
}

type pageHandlers struct {
	store     webapi.RunStore
	threshold float64
}

// handleIndex renders the run list, newest first.
func (p *pageHandlers) handleIndex(w http.ResponseWriter, _ *http.Request) {
	runs, err := p.store.ListRuns("timestamp", "desc")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	b.WriteString("# Evaluation Runs\n\n")
	if len(runs) == 0 {
		b.WriteString("No runs with a report yet.\n")
	} else {
		b.WriteString("| Run | Timestamp | Tests | Passed | Pass Rate | Status |\n")
		b.WriteString("|-----|-----------|-------|--------|-----------|--------|\n")
		for _, r := range runs {
			status := "FAILING"
			if r.Passing {
				status = "PASSING"
			}
			fmt.Fprintf(&b, "| [%s](/runs/%s) | %s | %d | %d | %.2f%% | %s |\n",
				r.ID, r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.TotalTests, r.Passed, r.PassRate, status)
		}
	}

	writePage(w, "Evaluation Runs", b.String())
}

// handleReport renders one run's report as HTML.
func (p *pageHandlers) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := p.report(w, r)
	if !ok {
		return
	}

	page, err := reporting.RenderHTML(report, p.threshold)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page) //nolint:errcheck
}

// handleJUnit serves one run's report as JUnit XML.
func (p *pageHandlers) handleJUnit(w http.ResponseWriter, r *http.Request) {
	report, ok := p.report(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(xml.Header)) //nolint:errcheck
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	enc.Encode(reporting.ConvertToJUnit(report, p.threshold)) //nolint:errcheck
}

func (p *pageHandlers) report(w http.ResponseWriter, r *http.Request) (_ *models.Report, ok bool) {
	report, err := p.store.Report(r.PathValue("id"))
	if errors.Is(err, webapi.ErrRunNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return report, true
}

func writePage(w http.ResponseWriter, title, markdown string) {
	page, err := reporting.MarkdownPage(title, markdown)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page) //nolint:errcheck
}

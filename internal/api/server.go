// Package api serves review history, the rule catalog and on-demand scans
// over HTTP.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/reporting"
	"github.com/jeryldev/patingin/internal/review"
	"github.com/jeryldev/patingin/internal/rules"
	"github.com/jeryldev/patingin/internal/storage"
)

// Store is the minimal contract the API needs.
type Store interface {
	SaveRun(run *ir.Run) error
	ListRuns(limit, offset int) ([]storage.RunRow, error)
	LoadRun(id string) (ir.Run, error)
	LoadLatestRun() (ir.Run, error)
	ListViolations(runID string, min ir.Severity) ([]ir.Violation, error)

	ListWaivers(activeOnly bool) ([]storage.Waiver, error)
	ActiveWaivers() ([]rules.Waiver, error)
	CreateWaiver(w rules.Waiver, createdBy string) (int64, error)
	RevokeWaiver(id int64, by string) error
}

type Server struct {
	DB             Store
	Engine         *review.Engine
	Logger         *slog.Logger
	AllowedOrigins []string
	// MaxDiffBytes caps POST /scan bodies; zero means 10 MiB.
	MaxDiffBytes int64
	// TokenHash, when set, is the bcrypt hash of the bearer token required
	// by every POST endpoint.
	TokenHash string

	metrics *metrics
}

func (s *Server) Routes() http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	s.metrics = newMetrics(reg)

	mux := http.NewServeMux()
	withCORS := s.withCORS

	// Health
	mux.HandleFunc("GET /api/v1/health", withCORS(s.handleHealth))

	// Runs
	mux.HandleFunc("GET /api/v1/runs", withCORS(s.handleListRuns))
	mux.HandleFunc("GET /api/v1/runs/latest", withCORS(s.handleGetLatest))
	mux.HandleFunc("GET /api/v1/runs/{id}", withCORS(s.handleGetRun))
	mux.HandleFunc("GET /api/v1/runs/{id}/violations", withCORS(s.handleListViolations))
	mux.HandleFunc("GET /api/v1/runs/{base}/diff/{head}", withCORS(s.handleDiffRuns))
	mux.HandleFunc("POST /api/v1/scan", withCORS(s.requireToken(s.handleScan)))

	// Rule catalog
	mux.HandleFunc("GET /api/v1/rules", withCORS(s.handleRules))
	mux.HandleFunc("GET /api/v1/rules/{id}", withCORS(s.handleRule))

	// Waivers
	mux.HandleFunc("GET /api/v1/waivers", withCORS(s.handleListWaivers))
	mux.HandleFunc("POST /api/v1/waivers", withCORS(s.requireToken(s.handleCreateWaiver)))
	mux.HandleFunc("POST /api/v1/waivers/{id}/revoke", withCORS(s.requireToken(s.handleRevokeWaiver)))

	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Fallback 404
	mux.HandleFunc("/", withCORS(func(w http.ResponseWriter, r *http.Request) {
		s.err(w, http.StatusNotFound, "not found")
	}))
	return s.logRequests(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"ok":        true,
		"timestamp": time.Now().UTC(),
		"version":   ir.Version,
	}
	if s.Engine != nil {
		resp["rules"] = s.Engine.Registry().Usable()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := clamp(parseInt(q.Get("limit"), 20), 1, 200)
	offset := max(parseInt(q.Get("offset"), 0), 0)

	rows, err := s.DB.ListRuns(limit, offset)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	if rows == nil {
		rows = []storage.RunRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": rows, "limit": limit, "offset": offset,
	})
}

// GET /api/v1/runs/latest
func (s *Server) handleGetLatest(w http.ResponseWriter, r *http.Request) {
	run, err := s.DB.LoadLatestRun()
	if err != nil {
		s.notFoundOr500(w, err, "no runs")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.DB.LoadRun(r.PathValue("id"))
	if err != nil {
		s.notFoundOr500(w, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListViolations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	min := ir.SeverityWarning
	if raw := r.URL.Query().Get("min_severity"); raw != "" {
		sev, err := ir.ParseSeverity(raw)
		if err != nil {
			s.err(w, http.StatusBadRequest, err.Error())
			return
		}
		min = sev
	}
	items, err := s.DB.ListViolations(id, min)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": id, "min_severity": min, "items": items,
	})
}

func (s *Server) handleDiffRuns(w http.ResponseWriter, r *http.Request) {
	base, err := s.DB.LoadRun(r.PathValue("base"))
	if err != nil {
		s.notFoundOr500(w, err, "base run not found")
		return
	}
	head, err := s.DB.LoadRun(r.PathValue("head"))
	if err != nil {
		s.notFoundOr500(w, err, "head run not found")
		return
	}
	writeJSON(w, http.StatusOK, reporting.DiffRuns(&base, &head))
}

func (s *Server) notFoundOr500(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, sql.ErrNoRows) {
		s.err(w, http.StatusNotFound, msg)
		return
	}
	s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
}

func (s *Server) err(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return def
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

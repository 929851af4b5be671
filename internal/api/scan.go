package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jeryldev/patingin/internal/review"
	"github.com/jeryldev/patingin/internal/rules"
)

type scanReq struct {
	Diff    string `json:"diff"`
	Scope   string `json:"scope,omitempty"`
	Branch  string `json:"branch,omitempty"`
	Project string `json:"project,omitempty"`
	// Save defaults to true.
	Save *bool `json:"save,omitempty"`
}

// POST /api/v1/scan reviews a unified diff. The body is either JSON
// (scanReq) or the raw diff text.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.Engine == nil {
		s.err(w, http.StatusServiceUnavailable, "scanning disabled")
		return
	}
	limit := s.MaxDiffBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var in scanReq
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			s.bodyErr(w, err, "invalid json")
			return
		}
	} else {
		var b bytes.Buffer
		if _, err := b.ReadFrom(r.Body); err != nil {
			s.bodyErr(w, err, "unreadable body")
			return
		}
		in.Diff = b.String()
	}
	if in.Scope == "" {
		in.Scope = "api"
	}

	waivers, err := s.DB.ActiveWaivers()
	if err != nil {
		s.Logger.Warn("load waivers", "err", err)
	}

	start := time.Now()
	run, err := s.Engine.Review(r.Context(), review.Input{
		Diff: in.Diff, Scope: in.Scope, Branch: in.Branch, Project: in.Project, Waivers: waivers,
	})
	s.metrics.scanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.scans.WithLabelValues("error").Inc()
		code := http.StatusInternalServerError
		if errors.Is(err, rules.ErrEmptyRegistry) {
			code = http.StatusServiceUnavailable
		}
		s.err(w, code, err.Error())
		return
	}
	s.metrics.scans.WithLabelValues("ok").Inc()
	s.metrics.observe(run)

	if in.Save == nil || *in.Save {
		if err := s.DB.SaveRun(run); err != nil {
			s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, run)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// bodyErr answers 413 when the body hit the size limit and 400 otherwise.
func (s *Server) bodyErr(w http.ResponseWriter, err error, msg string) {
	if errors.As(err, new(*http.MaxBytesError)) {
		s.err(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	s.err(w, http.StatusBadRequest, msg)
}

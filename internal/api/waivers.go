package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jeryldev/patingin/internal/rules"
)

type waiverCreateReq struct {
	RuleID    string `json:"rule_id"`
	Path      string `json:"path,omitempty"`
	Contains  string `json:"contains,omitempty"`
	Reason    string `json:"reason"`
	ExpiresAt string `json:"expires_at,omitempty"` // RFC3339; empty never expires
}

func (s *Server) handleListWaivers(w http.ResponseWriter, r *http.Request) {
	active := strings.ToLower(r.URL.Query().Get("active"))
	only := active == "1" || active == "true" || active == "yes"
	ws, err := s.DB.ListWaivers(only)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": ws, "active_only": only})
}

func (s *Server) handleCreateWaiver(w http.ResponseWriter, r *http.Request) {
	var in waiverCreateReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.err(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(in.RuleID) == "" || strings.TrimSpace(in.Reason) == "" {
		s.err(w, http.StatusBadRequest, "rule_id and reason required")
		return
	}
	if in.Path != "" && !doublestar.ValidatePattern(in.Path) {
		s.err(w, http.StatusBadRequest, "bad path glob")
		return
	}
	wv := rules.Waiver{RuleID: in.RuleID, Path: in.Path, Contains: in.Contains, Reason: in.Reason}
	if in.ExpiresAt != "" {
		exp, err := time.Parse(time.RFC3339Nano, in.ExpiresAt)
		if err != nil {
			s.err(w, http.StatusBadRequest, "bad expires_at (use RFC3339)")
			return
		}
		wv.Expires = exp
	}
	id, err := s.DB.CreateWaiver(wv, actor(r))
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleRevokeWaiver(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.err(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.DB.RevokeWaiver(id, actor(r)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.err(w, http.StatusNotFound, "no active waiver with that id")
			return
		}
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

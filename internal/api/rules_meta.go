package api

import (
	"errors"
	"net/http"

	"github.com/jeryldev/patingin/internal/ir"
	"github.com/jeryldev/patingin/internal/rules"
)

type ruleView struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Language      ir.Language     `json:"language"`
	Severity      ir.Severity     `json:"severity"`
	Description   string          `json:"description"`
	Detection     string          `json:"detection"`
	Pattern       string          `json:"pattern,omitempty"`
	FixSuggestion string          `json:"fix_suggestion,omitempty"`
	SourceURL     string          `json:"source_url,omitempty"`
	AIFixable     bool            `json:"ai_fixable"`
	Enabled       bool            `json:"enabled"`
	Scope         rules.Scope     `json:"scope"`
	Tags          []string        `json:"tags,omitempty"`
	Examples      []rules.Example `json:"examples,omitempty"`
}

func viewOf(r rules.Rule, detail bool) ruleView {
	v := ruleView{
		ID: r.ID, Name: r.Name, Language: r.Language, Severity: r.Severity,
		Description: r.Description, FixSuggestion: r.FixSuggestion, SourceURL: r.SourceURL,
		AIFixable: r.AIFixable, Enabled: r.Enabled, Scope: r.Scope, Tags: r.Tags,
	}
	if r.Detection != nil {
		v.Detection = string(r.Detection.Kind())
		v.Pattern = r.Detection.Pattern()
	}
	if detail {
		v.Examples = r.Examples
	}
	return v
}

// GET /api/v1/rules?language=&q=
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if s.Engine == nil {
		s.err(w, http.StatusServiceUnavailable, "no rule registry")
		return
	}
	reg := s.Engine.Registry()
	q := r.URL.Query()

	var lang ir.Language
	if raw := q.Get("language"); raw != "" {
		l, ok := ir.ParseLanguage(raw)
		if !ok {
			s.err(w, http.StatusBadRequest, "unknown language: "+raw)
			return
		}
		lang = l
	}

	out := []ruleView{}
	for _, rr := range reg.Search(q.Get("q")) {
		if lang != "" && rr.Language != lang {
			continue
		}
		out = append(out, viewOf(rr, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
}

// GET /api/v1/rules/{id}?language=
func (s *Server) handleRule(w http.ResponseWriter, r *http.Request) {
	if s.Engine == nil {
		s.err(w, http.StatusServiceUnavailable, "no rule registry")
		return
	}
	reg := s.Engine.Registry()
	id := r.PathValue("id")

	var (
		rule rules.Rule
		err  error
	)
	if raw := r.URL.Query().Get("language"); raw != "" {
		lang, ok := ir.ParseLanguage(raw)
		if !ok {
			s.err(w, http.StatusBadRequest, "unknown language: "+raw)
			return
		}
		rule, err = reg.FindIn(lang, id)
	} else {
		rule, err = reg.Find(id)
	}
	if errors.Is(err, rules.ErrRuleNotFound) {
		s.err(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.err(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(rule, true))
}

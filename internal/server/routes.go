package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/instinct/internal/engine"
	"github.com/lazypower/instinct/internal/store"
)

// instinctView is the wire shape of one instinct.
type instinctView struct {
	ID               string   `json:"id"`
	Domain           string   `json:"domain"`
	Category         string   `json:"category"`
	Trigger          string   `json:"trigger"`
	Action           string   `json:"action"`
	Confidence       float64  `json:"confidence"`
	Source           string   `json:"source"`
	AutoApproved     bool     `json:"auto_approved"`
	Status           string   `json:"status"`
	Sessions         []string `json:"contributing_sessions,omitempty"`
	SkillID          string   `json:"skill_id,omitempty"`
	CreatedAt        int64    `json:"created_at"`
	LastReinforcedAt int64    `json:"last_reinforced_at"`
}

func viewOf(in *store.Instinct) instinctView {
	return instinctView{
		ID:               in.ID,
		Domain:           in.Domain,
		Category:         in.Category,
		Trigger:          in.Trigger,
		Action:           in.Action,
		Confidence:       in.Confidence,
		Source:           in.Source,
		AutoApproved:     in.AutoApproved,
		Status:           in.Status,
		Sessions:         in.Sessions,
		SkillID:          in.SkillID,
		CreatedAt:        in.CreatedAt,
		LastReinforcedAt: in.LastReinforcedAt,
	}
}

func (s *Server) handleListInstincts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = store.StatusActive
	}
	if status == "all" {
		status = ""
	}

	instincts, err := store.ListInstincts(s.db, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	domain := r.URL.Query().Get("domain")
	views := make([]instinctView, 0, len(instincts))
	for _, in := range instincts {
		if domain != "" && in.Domain != domain {
			continue
		}
		views = append(views, viewOf(in))
	}
	writeJSON(w, http.StatusOK, map[string]any{"instincts": views, "count": len(views)})
}

func (s *Server) handleGetInstinct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "instinctID")
	in, err := store.GetInstinct(s.db, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if in == nil {
		writeError(w, http.StatusNotFound, "instinct not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(in))
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := store.ListSkills(s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"skills": skills, "count": len(skills)})
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "skillID")
	skill, err := store.GetSkill(s.db, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if skill == nil {
		writeError(w, http.StatusNotFound, "skill not found")
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

func (s *Server) handleSkillUsage(w http.ResponseWriter, r *http.Request) {
	skillID := chi.URLParam(r, "skillID")

	var req struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.EventID == "" {
		writeError(w, http.StatusBadRequest, "event_id required")
		return
	}

	fresh, err := s.engine.ApplySkillUsage(skillID, req.EventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorded": fresh})
}

// handleObserve runs one lifecycle pass. A concurrent pass yields 409.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Replay bool `json:"replay"`
		Evolve bool `json:"evolve"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	report, err := s.engine.Run(engine.Options{Replay: req.Replay, Evolve: req.Evolve})
	if errors.Is(err, engine.ErrLocked) {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "busy"})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	data, err := store.LatestReport(s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if data == nil {
		writeError(w, http.StatusNotFound, "no pass has run yet")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleRunState(w http.ResponseWriter, r *http.Request) {
	states, err := store.ListRunState(s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make(map[string]any, len(states))
	for _, rs := range states {
		out[rs.Source] = map[string]int64{"offset": rs.Offset, "last_run_at": rs.LastRunAt}
	}
	writeJSON(w, http.StatusOK, out)
}

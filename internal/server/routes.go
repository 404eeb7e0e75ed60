package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/lazypower/reverie/internal/engine"
	"github.com/lazypower/reverie/internal/memory"
	"github.com/lazypower/reverie/internal/store"
)

// maxBodyBytes bounds request bodies; imports carry whole memories.
const maxBodyBytes = 32 << 20

// providerTimeout bounds calls that may reach an LLM or embedding backend.
const providerTimeout = 60 * time.Second

// writeError maps engine and memory errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrUnknownAgent), errors.Is(err, memory.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrAgentExists):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInvalidInput), errors.Is(err, engine.ErrInvalidFact):
		status = http.StatusBadRequest
	case errors.Is(err, memory.ErrMalformedRecord), errors.Is(err, memory.ErrUnsupportedKind):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, memory.ErrMalformedRecord) || errors.Is(err, memory.ErrUnsupportedKind) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]string{"error": "invalid json: " + err.Error()})
		return false
	}
	return true
}

func memoryParam(w http.ResponseWriter, r *http.Request) (store.Memory, bool) {
	m, err := store.ParseMemory(r.URL.Query().Get("memory"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return "", false
	}
	return m, true
}

func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	clk := s.engine.Clock
	writeJSON(w, http.StatusOK, map[string]any{
		"now":   memory.FormatTime(clk.Now()),
		"ticks": clk.Ticks(),
		"step":  clk.Step().String(),
	})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Steps int `json:"steps"`
	}{Steps: 1}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	now, err := s.engine.Tick(req.Steps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"now":   memory.FormatTime(now),
		"ticks": s.engine.Clock.Ticks(),
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.engine.Agents()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(agents),
		"agents": agents,
	})
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		Currently     string `json:"currently"`
		AttentionSpan int    `json:"attention_span"`
		LearnedTraits string `json:"learned_traits"`
	}
	if !decode(w, r, &req) {
		return
	}

	info, err := s.engine.CreateAgent(req.Name, req.Currently, req.AttentionSpan, req.LearnedTraits)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.Info(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteAgent(chi.URLParam(r, "name")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handlePerceive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Facts []memory.Fact `json:"facts"`
	}
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	res, err := s.engine.Perceive(ctx, chi.URLParam(r, "name"), req.Facts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req memory.Fact
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	c, err := s.engine.RecordAction(ctx, chi.URLParam(r, "name"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListConcepts(w http.ResponseWriter, r *http.Request) {
	which, ok := memoryParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var (
		concepts []engine.ConceptView
		err      error
	)
	if q.Get("kind") != "" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		concepts, err = s.engine.FindConcepts(chi.URLParam(r, "name"), which, engine.ConceptQuery{
			Kind:    q.Get("kind"),
			Keyword: q.Get("keyword"),
			Limit:   limit,
		})
	} else {
		concepts, err = s.engine.Concepts(chi.URLParam(r, "name"), which)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"memory":   which,
		"count":    len(concepts),
		"concepts": concepts,
	})
}

func (s *Server) handleAddConcept(w http.ResponseWriter, r *http.Request) {
	which, ok := memoryParam(w, r)
	if !ok {
		return
	}
	var req engine.ThoughtInput
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	c, err := s.engine.AddThought(ctx, chi.URLParam(r, "name"), which, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	which, ok := memoryParam(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id must be an integer"})
		return
	}

	if err := s.engine.Forget(chi.URLParam(r, "name"), which, id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "forgotten", "id": id, "memory": which})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Memory      string   `json:"memory"`
		FocalPoints []string `json:"focal_points"`
	}
	if !decode(w, r, &req) {
		return
	}
	which, err := store.ParseMemory(req.Memory)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), providerTimeout)
	defer cancel()

	results, err := s.engine.Retrieve(ctx, chi.URLParam(r, "name"), which, req.FocalPoints)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"memory":  which,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleCurrentEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.engine.CurrentEvents(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"now":    memory.FormatTime(s.engine.Clock.Now()),
		"count":  len(events),
		"events": events,
	})
}

func (s *Server) handlePerceptions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	perceptions, err := s.engine.Perceptions(chi.URLParam(r, "name"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if perceptions == nil {
		perceptions = []store.Perception{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(perceptions),
		"perceptions": perceptions,
	})
}

func (s *Server) handleReviseTraits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LearnedTraits string `json:"learned_traits"`
	}
	if !decode(w, r, &req) {
		return
	}
	info, err := s.engine.ReviseTraits(chi.URLParam(r, "name"), req.LearnedTraits)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Export(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var snap engine.Snapshot
	if !decode(w, r, &snap) {
		return
	}
	info, err := s.engine.Import(chi.URLParam(r, "name"), snap)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/praxislabs/praxis/internal/drift"
	"github.com/praxislabs/praxis/internal/engine"
	"github.com/praxislabs/praxis/internal/mood"
	"github.com/praxislabs/praxis/internal/persona"
)

// maxBodyBytes caps request bodies. Conversation histories are the
// largest legitimate payload and stay well under this.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding response failed")
	}
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors onto status codes: 400 for validation,
// 404 for missing records, 403 for built-in mutations, 409 for
// duplicates, 502 for generation backend failures, 503 when corrective
// action is not wired.
func writeError(w http.ResponseWriter, err error) {
	var (
		reqErr  *engine.ValidationError
		perErr  *persona.ValidationError
		moodErr *mood.ValidationError
		upErr   *engine.UpstreamError
	)
	switch {
	case errors.Is(err, context.Canceled):
		// Client gave up; nothing useful to write.
	case errors.As(err, &reqErr), errors.As(err, &perErr), errors.As(err, &moodErr):
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, persona.ErrNotFound), errors.Is(err, mood.ErrNotFound),
		errors.Is(err, mood.ErrPersonaNotFound):
		writeErrorMsg(w, http.StatusNotFound, err.Error())
	case errors.Is(err, persona.ErrExists):
		writeErrorMsg(w, http.StatusConflict, err.Error())
	case errors.Is(err, persona.ErrBuiltIn):
		writeErrorMsg(w, http.StatusForbidden, err.Error())
	case errors.As(err, &upErr):
		writeErrorMsg(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, engine.ErrNoCorrector):
		writeErrorMsg(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"cache":  s.engine.CacheStats(),
	})
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := s.engine.Personas().List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, personas)
}

func (s *Server) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	var p persona.Persona
	if !decodeBody(w, r, &p) {
		return
	}
	if err := s.engine.Personas().Create(r.Context(), &p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &p)
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Personas().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePersona(w http.ResponseWriter, r *http.Request) {
	var p persona.Persona
	if !decodeBody(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	if err := s.engine.Personas().Update(r.Context(), &p); err != nil {
		writeError(w, err)
		return
	}
	// Definitional changes invalidate content generated under the old
	// definition.
	s.engine.InvalidateResponses()
	writeJSON(w, http.StatusOK, &p)
}

func (s *Server) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Personas().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	s.engine.InvalidateResponses()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if !decodeBody(w, r, &req) {
		return
	}
	req.PersonaID = chi.URLParam(r, "id")

	resp, err := s.engine.Respond(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMoods(w http.ResponseWriter, r *http.Request) {
	q := mood.Query{
		PersonaID:  chi.URLParam(r, "id"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeErrorMsg(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		q.Limit = limit
	}

	obs, err := s.engine.Observations(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	if obs == nil {
		obs = []*mood.Observation{}
	}
	writeJSON(w, http.StatusOK, obs)
}

func (s *Server) handleAddMood(w http.ResponseWriter, r *http.Request) {
	var obs mood.Observation
	if !decodeBody(w, r, &obs) {
		return
	}
	obs.PersonaID = chi.URLParam(r, "id")
	if err := s.engine.AddObservation(r.Context(), &obs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &obs)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeErrorMsg(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	analysis, err := s.engine.Analytics(r.Context(), chi.URLParam(r, "id"), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Consistency(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.CheckDrift(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	report, corrections, err := s.engine.Correct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if corrections == nil {
		corrections = []*drift.Correction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":      report,
		"corrections": corrections,
	})
}

func (s *Server) handleCorrectionHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeErrorMsg(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	history, err := s.engine.CorrectionHistory(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if history == nil {
		history = []*drift.Correction{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleAdaptation(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		writeErrorMsg(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	var userMood *int
	if raw := r.URL.Query().Get("userMood"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "userMood must be an integer")
			return
		}
		userMood = &parsed
	}

	adaptation, err := s.engine.Adaptation(r.Context(), chi.URLParam(r, "id"), message, userMood)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adaptation)
}

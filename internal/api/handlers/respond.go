package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/cognicore/internal/api/middleware"
	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/loop"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func queryFloat(r *http.Request, key string) float64 {
	v, _ := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	return v
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+key)
		return uuid.Nil, false
	}
	return id, true
}

// scopeFor resolves the agent in the path and checks that it belongs to the
// calling tenant.
func scopeFor(w http.ResponseWriter, r *http.Request, agents *service.AgentService) (domain.Scope, bool) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return domain.Scope{}, false
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return domain.Scope{}, false
	}
	agent, err := agents.GetByID(r.Context(), id, tenant.ID)
	if err != nil {
		writeServiceError(w, err, "failed to load agent")
		return domain.Scope{}, false
	}
	return domain.ScopeOf(agent), true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrAgentNotFound),
		errors.Is(err, service.ErrGoalNotFound),
		errors.Is(err, service.ErrIntentionNotFound),
		errors.Is(err, service.ErrBeliefNotFound),
		errors.Is(err, service.ErrProcedureNotFound),
		errors.Is(err, service.ErrFactNotFound),
		errors.Is(err, service.ErrEpisodeNotFound),
		errors.Is(err, service.ErrWorkingMemoryItemMissing):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAgentConflict),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, loop.ErrAlreadyRunning),
		errors.Is(err, loop.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, loop.ErrMissingCapability),
		errors.Is(err, service.ErrDependencyCycle):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrAgentNameEmpty),
		errors.Is(err, service.ErrAgentExternalID),
		errors.Is(err, service.ErrGoalDescriptionEmpty),
		errors.Is(err, service.ErrInvalidGoalType),
		errors.Is(err, service.ErrEmptyPlan),
		errors.Is(err, service.ErrInvalidProposition),
		errors.Is(err, service.ErrProcedureNameEmpty),
		errors.Is(err, service.ErrProcedureNoSteps),
		errors.Is(err, service.ErrInvalidProcedureType),
		errors.Is(err, service.ErrInvalidFact),
		errors.Is(err, service.ErrInvalidContextType),
		errors.Is(err, service.ErrEmptyQuery):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeServiceError maps a service error to its status. Internal errors are
// reported with msg instead of their text.
func writeServiceError(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, msg)
		return
	}
	writeError(w, status, err.Error())
}

package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/go-chi/chi/v5"
)

type BeliefHandler struct {
	agents  *service.AgentService
	beliefs *service.BeliefService
}

func NewBeliefHandler(agents *service.AgentService, beliefs *service.BeliefService) *BeliefHandler {
	return &BeliefHandler{agents: agents, beliefs: beliefs}
}

// List returns beliefs. Confidence is reported decayed to now.
// GET /v1/agents/{id}/beliefs?subject=&predicate=&source=&min_confidence=&include_archived=&limit=
func (h *BeliefHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := domain.BeliefFilter{
		Subject:         q.Get("subject"),
		Predicate:       q.Get("predicate"),
		MinConfidence:   queryFloat(r, "min_confidence"),
		IncludeArchived: q.Get("include_archived") == "true",
		Limit:           queryInt(r, "limit", 0),
	}
	if src := q.Get("source"); src != "" {
		if !domain.ValidBeliefSource(src) {
			writeError(w, http.StatusBadRequest, "invalid source")
			return
		}
		filter.Source = domain.BeliefSource(src)
	}

	beliefs, err := h.beliefs.List(r.Context(), scope, filter)
	if err != nil {
		writeServiceError(w, err, "failed to list beliefs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"beliefs": beliefs})
}

// About returns live beliefs whose subject or object mentions the entity.
// GET /v1/agents/{id}/beliefs/about/{entity}
func (h *BeliefHandler) About(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	beliefs, err := h.beliefs.About(r.Context(), scope, chi.URLParam(r, "entity"))
	if err != nil {
		writeServiceError(w, err, "failed to load beliefs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"beliefs": beliefs})
}

package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/google/uuid"
)

type IntentionHandler struct {
	agents     *service.AgentService
	intentions *service.IntentionEngine
}

func NewIntentionHandler(agents *service.AgentService, intentions *service.IntentionEngine) *IntentionHandler {
	return &IntentionHandler{agents: agents, intentions: intentions}
}

type adoptIntentionRequest struct {
	Description string      `json:"description"`
	Plan        domain.Plan `json:"plan"`
	Priority    int         `json:"priority"`
}

// Adopt commits the agent to an opportunistic plan that serves no goal.
// POST /v1/agents/{id}/intentions
func (h *IntentionHandler) Adopt(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	var req adoptIntentionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}
	if req.Priority < 0 || req.Priority > 10 {
		writeError(w, http.StatusBadRequest, "priority must be between 1 and 10")
		return
	}

	in, err := h.intentions.Adopt(r.Context(), scope, req.Description, req.Plan, req.Priority)
	if err != nil {
		writeServiceError(w, err, "failed to adopt intention")
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

// List returns intentions.
// GET /v1/agents/{id}/intentions?status=planned,in_progress&goal_id=&limit=
func (h *IntentionHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := domain.IntentionFilter{Limit: queryInt(r, "limit", 0)}
	for _, s := range splitList(q.Get("status")) {
		filter.Statuses = append(filter.Statuses, domain.IntentionStatus(s))
	}
	if g := q.Get("goal_id"); g != "" {
		id, err := uuid.Parse(g)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid goal_id")
			return
		}
		filter.GoalID = &id
	}

	intentions, err := h.intentions.List(r.Context(), scope, filter)
	if err != nil {
		writeServiceError(w, err, "failed to list intentions")
		return
	}
	if intentions == nil {
		intentions = []domain.Intention{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"intentions": intentions})
}

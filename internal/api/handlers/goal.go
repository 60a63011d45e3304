package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/google/uuid"
)

type GoalHandler struct {
	agents *service.AgentService
	goals  *service.GoalService
}

func NewGoalHandler(agents *service.AgentService, goals *service.GoalService) *GoalHandler {
	return &GoalHandler{agents: agents, goals: goals}
}

// Create assigns a goal to the agent.
// POST /v1/agents/{id}/goals
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	var in service.GoalInput
	if !decode(w, r, &in) {
		return
	}
	goal, err := h.goals.Assign(r.Context(), scope, in)
	if err != nil {
		writeServiceError(w, err, "failed to assign goal")
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

// List returns goals, highest priority first.
// GET /v1/agents/{id}/goals?status=active,blocked&type=&limit=
func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := domain.GoalFilter{Limit: queryInt(r, "limit", 0)}
	for _, s := range splitList(q.Get("status")) {
		filter.Statuses = append(filter.Statuses, domain.GoalStatus(s))
	}
	if t := q.Get("type"); t != "" {
		if !domain.ValidGoalType(t) {
			writeError(w, http.StatusBadRequest, "invalid goal type")
			return
		}
		filter.Type = domain.GoalType(t)
	}

	goals, err := h.goals.List(r.Context(), scope, filter)
	if err != nil {
		writeServiceError(w, err, "failed to list goals")
		return
	}
	if goals == nil {
		goals = []domain.Goal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": goals})
}

type goalReasonRequest struct {
	Reason string `json:"reason"`
}

// POST /v1/agents/{id}/goals/{goalID}/abandon
func (h *GoalHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.goals.Abandon)
}

// POST /v1/agents/{id}/goals/{goalID}/block
func (h *GoalHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.goals.Block)
}

// POST /v1/agents/{id}/goals/{goalID}/unblock
func (h *GoalHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, scope domain.Scope, id uuid.UUID, _ string) (*domain.Goal, error) {
		return h.goals.Unblock(ctx, scope, id)
	})
}

func (h *GoalHandler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, scope domain.Scope, id uuid.UUID, reason string) (*domain.Goal, error)) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	goalID, ok := pathID(w, r, "goalID")
	if !ok {
		return
	}
	// The reason is optional, so an empty body is fine.
	var req goalReasonRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	goal, err := fn(r.Context(), scope, goalID, req.Reason)
	if err != nil {
		writeServiceError(w, err, "failed to update goal")
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

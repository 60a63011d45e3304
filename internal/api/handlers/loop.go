package handlers

import (
	"context"
	"net/http"

	"github.com/Harshitk-cp/cognicore/internal/loop"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/google/uuid"
)

// LoopHandler is the control surface over agents' proactive loops.
type LoopHandler struct {
	agents  *service.AgentService
	manager *loop.Manager
}

func NewLoopHandler(agents *service.AgentService, manager *loop.Manager) *LoopHandler {
	return &LoopHandler{agents: agents, manager: manager}
}

// Start starts the agent's loop.
// POST /v1/agents/{id}/loop/start
func (h *LoopHandler) Start(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	status, err := h.manager.Start(r.Context(), scope)
	if err != nil {
		writeServiceError(w, err, "failed to start loop")
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

// POST /v1/agents/{id}/loop/stop
func (h *LoopHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.manager.Stop)
}

// POST /v1/agents/{id}/loop/pause
func (h *LoopHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.manager.Pause)
}

// POST /v1/agents/{id}/loop/resume
func (h *LoopHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.manager.Resume)
}

// GET /v1/agents/{id}/loop/status
func (h *LoopHandler) Status(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.manager.Status(scope.AgentID))
}

func (h *LoopHandler) control(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) error) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	if err := fn(r.Context(), scope.AgentID); err != nil {
		writeServiceError(w, err, "loop control failed")
		return
	}
	writeJSON(w, http.StatusOK, h.manager.Status(scope.AgentID))
}

package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/cognicore/internal/api/middleware"
	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/loop"
	"github.com/Harshitk-cp/cognicore/internal/service"
)

type AgentHandler struct {
	agents *service.AgentService
	loops  *loop.Manager
}

func NewAgentHandler(agents *service.AgentService, loops *loop.Manager) *AgentHandler {
	return &AgentHandler{agents: agents, loops: loops}
}

type createAgentRequest struct {
	ExternalID   string         `json:"external_id"`
	Name         string         `json:"name"`
	Role         string         `json:"role"`
	Capabilities []string       `json:"capabilities"`
	Metadata     map[string]any `json:"metadata"`
}

// agentView is an agent together with the state of its proactive loop.
type agentView struct {
	*domain.Agent
	Loop loop.Status `json:"loop"`
}

func (h *AgentHandler) view(a *domain.Agent) agentView {
	return agentView{Agent: a, Loop: h.loops.Status(a.ID)}
}

// Create registers a digital employee. Its loop is not started.
// POST /v1/agents
func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createAgentRequest
	if !decode(w, r, &req) {
		return
	}

	agent := &domain.Agent{
		TenantID:     tenant.ID,
		ExternalID:   req.ExternalID,
		Name:         req.Name,
		Role:         req.Role,
		Capabilities: req.Capabilities,
		Metadata:     req.Metadata,
	}
	if err := h.agents.Create(r.Context(), agent); err != nil {
		writeServiceError(w, err, "failed to create agent")
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

// GET /v1/agents/{id}
func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	agent, err := h.agents.GetByID(r.Context(), id, tenant.ID)
	if err != nil {
		writeServiceError(w, err, "failed to get agent")
		return
	}
	writeJSON(w, http.StatusOK, h.view(agent))
}

// List returns the tenant's agents with their loop states.
// GET /v1/agents
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	agents, err := h.agents.List(r.Context(), tenant.ID)
	if err != nil {
		writeServiceError(w, err, "failed to list agents")
		return
	}
	out := make([]agentView, 0, len(agents))
	for i := range agents {
		out = append(out, h.view(&agents[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}

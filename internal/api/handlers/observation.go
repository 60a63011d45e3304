package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/cognicore/internal/capability"
	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
)

const (
	defaultActionLimit = 50
	defaultEventLimit  = 100
	maxObservations    = 100
)

// InboxHandler feeds observations to agents and reports what they did.
type InboxHandler struct {
	agents *service.AgentService
	hub    *capability.InboxHub
	events domain.EventStore
}

func NewInboxHandler(agents *service.AgentService, hub *capability.InboxHub, events domain.EventStore) *InboxHandler {
	return &InboxHandler{agents: agents, hub: hub, events: events}
}

type observationRequest struct {
	Observations []domain.Observation `json:"observations"`
}

type observationResponse struct {
	Queued  int `json:"queued"`
	Pending int `json:"pending"`
}

// Observe queues observations for the agent's next perception.
// POST /v1/agents/{id}/observations
func (h *InboxHandler) Observe(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}

	var req observationRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Observations) == 0 {
		writeError(w, http.StatusBadRequest, "at least one observation is required")
		return
	}
	if len(req.Observations) > maxObservations {
		writeError(w, http.StatusBadRequest, "too many observations")
		return
	}
	for i := range req.Observations {
		o := &req.Observations[i]
		if o.Content == "" && len(o.Propositions) == 0 {
			writeError(w, http.StatusBadRequest, "observation needs content or propositions")
			return
		}
		if o.Kind == "" {
			o.Kind = domain.SourceObservation
		}
		if !domain.ValidBeliefSource(string(o.Kind)) {
			writeError(w, http.StatusBadRequest, "invalid observation kind")
			return
		}
	}

	inbox := h.hub.For(scope.AgentID)
	inbox.Push(req.Observations...)
	writeJSON(w, http.StatusAccepted, observationResponse{
		Queued:  len(req.Observations),
		Pending: inbox.Pending(),
	})
}

// Actions lists what the agent dispatched through its inbox, newest first.
// With ?drain=true the outbox is emptied and returned in order.
// GET /v1/agents/{id}/actions
func (h *InboxHandler) Actions(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	inbox := h.hub.For(scope.AgentID)

	var actions []capability.DispatchedAction
	if r.URL.Query().Get("drain") == "true" {
		actions = inbox.Drain()
	} else {
		actions = inbox.Actions(queryInt(r, "limit", defaultActionLimit))
	}
	if actions == nil {
		actions = []capability.DispatchedAction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

// Events lists the agent's telemetry, newest first.
// GET /v1/agents/{id}/events?kind=goal.transition&limit=100
func (h *InboxHandler) Events(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	kind := domain.EventKind(r.URL.Query().Get("kind"))
	events, err := h.events.List(r.Context(), scope, kind, queryInt(r, "limit", defaultEventLimit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

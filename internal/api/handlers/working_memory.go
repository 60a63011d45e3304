package handlers

import (
	"net/http"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/google/uuid"
)

type WorkingMemoryHandler struct {
	agents  *service.AgentService
	working *service.WorkingMemory
}

func NewWorkingMemoryHandler(agents *service.AgentService, working *service.WorkingMemory) *WorkingMemoryHandler {
	return &WorkingMemoryHandler{agents: agents, working: working}
}

type insertItemRequest struct {
	ContextType domain.ContextType `json:"context_type"`
	Key         string             `json:"key"`
	Payload     domain.Value       `json:"payload"`
	Priority    float64            `json:"priority"`
	TTLSeconds  int                `json:"ttl_seconds,omitempty"`
}

type insertItemResponse struct {
	Item    *domain.WorkingMemoryItem `json:"item"`
	Evicted []uuid.UUID               `json:"evicted"`
}

// Insert adds an item to the agent's working memory. Lower-priority items
// are evicted when capacity is exceeded.
// POST /v1/agents/{id}/working-memory
func (h *WorkingMemoryHandler) Insert(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	var req insertItemRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TTLSeconds < 0 {
		writeError(w, http.StatusBadRequest, "ttl_seconds must not be negative")
		return
	}

	item := &domain.WorkingMemoryItem{
		ContextType: req.ContextType,
		Key:         req.Key,
		Payload:     req.Payload,
		Priority:    req.Priority,
	}
	if req.TTLSeconds > 0 {
		exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
		item.ExpiresAt = &exp
	}

	evicted, err := h.working.Insert(r.Context(), scope, item)
	if err != nil {
		writeServiceError(w, err, "failed to insert item")
		return
	}
	if evicted == nil {
		evicted = []uuid.UUID{}
	}
	writeJSON(w, http.StatusCreated, insertItemResponse{Item: item, Evicted: evicted})
}

// List returns live items, highest priority first.
// GET /v1/agents/{id}/working-memory?context_type=current_task
func (h *WorkingMemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	ct := r.URL.Query().Get("context_type")
	if ct != "" && !domain.ValidContextType(ct) {
		writeError(w, http.StatusBadRequest, "invalid context_type")
		return
	}
	items, err := h.working.List(r.Context(), scope, domain.ContextType(ct))
	if err != nil {
		writeServiceError(w, err, "failed to list working memory")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":    items,
		"capacity": h.working.Capacity(),
	})
}

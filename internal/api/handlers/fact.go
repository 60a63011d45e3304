package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
)

type FactHandler struct {
	agents *service.AgentService
	facts  *service.SemanticMemory
}

func NewFactHandler(agents *service.AgentService, facts *service.SemanticMemory) *FactHandler {
	return &FactHandler{agents: agents, facts: facts}
}

type upsertFactRequest struct {
	Subject    string       `json:"subject"`
	Predicate  string       `json:"predicate"`
	Object     domain.Value `json:"object"`
	FactType   string       `json:"fact_type"`
	Confidence float64      `json:"confidence"`
	Verified   bool         `json:"verified"`
}

type upsertFactResponse struct {
	Fact    *domain.Fact `json:"fact"`
	Created bool         `json:"created"`
}

// Upsert stores a semantic fact keyed by subject and predicate.
// POST /v1/agents/{id}/facts
func (h *FactHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	var req upsertFactRequest
	if !decode(w, r, &req) {
		return
	}
	f, created, err := h.facts.Upsert(r.Context(), scope, &domain.Fact{
		Subject:    req.Subject,
		Predicate:  req.Predicate,
		Object:     req.Object,
		FactType:   req.FactType,
		Confidence: req.Confidence,
		Verified:   req.Verified,
	})
	if err != nil {
		writeServiceError(w, err, "failed to store fact")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, upsertFactResponse{Fact: f, Created: created})
}

// Related walks facts outward from a subject.
// GET /v1/agents/{id}/facts/related?subject=acme&depth=2
func (h *FactHandler) Related(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}
	facts, err := h.facts.Related(r.Context(), scope, subject, queryInt(r, "depth", service.DefaultRelatedDepth))
	if err != nil {
		writeServiceError(w, err, "failed to load related facts")
		return
	}
	if facts == nil {
		facts = []domain.Fact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"facts": facts})
}

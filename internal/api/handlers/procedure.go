package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
)

type ProcedureHandler struct {
	agents     *service.AgentService
	procedures *service.ProceduralMemory
}

func NewProcedureHandler(agents *service.AgentService, procedures *service.ProceduralMemory) *ProcedureHandler {
	return &ProcedureHandler{agents: agents, procedures: procedures}
}

type upsertProcedureRequest struct {
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Type          domain.ProcedureType   `json:"type"`
	Origin        domain.ProcedureOrigin `json:"origin"`
	Steps         []domain.PlanStep      `json:"steps"`
	Conditions    []string               `json:"conditions"`
	GoalTypes     []domain.GoalType      `json:"goal_types"`
	Preconditions []domain.Precondition  `json:"preconditions"`
	SuccessRate   float64                `json:"success_rate"`
}

// Upsert teaches the agent a procedure, or redefines one it already knows.
// Learned statistics survive a redefinition.
// POST /v1/agents/{id}/procedures
func (h *ProcedureHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	var req upsertProcedureRequest
	if !decode(w, r, &req) {
		return
	}
	for _, gt := range req.GoalTypes {
		if !domain.ValidGoalType(string(gt)) {
			writeError(w, http.StatusBadRequest, "invalid goal type")
			return
		}
	}
	origin := req.Origin
	if origin == "" {
		origin = domain.OriginDemonstration
	}

	p, err := h.procedures.Upsert(r.Context(), scope, &domain.Procedure{
		Name:          req.Name,
		Description:   req.Description,
		Type:          req.Type,
		Origin:        origin,
		Steps:         req.Steps,
		Conditions:    req.Conditions,
		GoalTypes:     req.GoalTypes,
		Preconditions: req.Preconditions,
		SuccessRate:   req.SuccessRate,
	})
	if err != nil {
		writeServiceError(w, err, "failed to store procedure")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// List returns every procedure, most successful first.
// GET /v1/agents/{id}/procedures
func (h *ProcedureHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	procs, err := h.procedures.List(r.Context(), scope)
	if err != nil {
		writeServiceError(w, err, "failed to list procedures")
		return
	}
	if procs == nil {
		procs = []domain.Procedure{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"procedures": procs})
}

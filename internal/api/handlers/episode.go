package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
)

type EpisodeHandler struct {
	agents   *service.AgentService
	episodes *service.EpisodicMemory
}

func NewEpisodeHandler(agents *service.AgentService, episodes *service.EpisodicMemory) *EpisodeHandler {
	return &EpisodeHandler{agents: agents, episodes: episodes}
}

// Recall returns episodes similar to the query. Recalled episodes are marked
// so that consolidation treats them as in use.
// GET /v1/agents/{id}/episodes/recall?q=acme+renewal&limit=10&min_similarity=0.5
func (h *EpisodeHandler) Recall(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFor(w, r, h.agents)
	if !ok {
		return
	}
	opts := service.RecallOptions{
		Limit:         queryInt(r, "limit", service.DefaultRecallLimit),
		MinSimilarity: queryFloat(r, "min_similarity"),
	}
	episodes, err := h.episodes.Recall(r.Context(), scope, r.URL.Query().Get("q"), opts)
	if err != nil {
		writeServiceError(w, err, "failed to recall episodes")
		return
	}
	if episodes == nil {
		episodes = []domain.EpisodeWithScore{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"episodes": episodes})
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"github.com/google/uuid"
)

type AgentService struct {
	store domain.AgentStore
}

func NewAgentService(s domain.AgentStore) *AgentService {
	return &AgentService{store: s}
}

var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrAgentConflict   = errors.New("agent with this external_id already exists")
	ErrAgentNameEmpty  = errors.New("name is required")
	ErrAgentExternalID = errors.New("external_id is required")
)

// Create registers a digital employee. Capability names are normalised to
// lower case and deduplicated.
func (s *AgentService) Create(ctx context.Context, a *domain.Agent) error {
	if a.ExternalID == "" {
		return ErrAgentExternalID
	}
	if a.Name == "" {
		return ErrAgentNameEmpty
	}
	a.Capabilities = normaliseCapabilities(a.Capabilities)

	err := s.store.Create(ctx, a)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrAgentConflict
		}
		return err
	}
	return nil
}

func (s *AgentService) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Agent, error) {
	a, err := s.store.GetByID(ctx, id, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AgentService) List(ctx context.Context, tenantID uuid.UUID) ([]domain.Agent, error) {
	return s.store.ListByTenant(ctx, tenantID)
}

func normaliseCapabilities(caps []string) []string {
	seen := make(map[string]bool, len(caps))
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

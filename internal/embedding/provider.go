package embedding

import (
	"fmt"

	"github.com/Harshitk-cp/cognicore/internal/domain"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewClient builds the embedding client for provider. Extra options only apply
// to OpenAI-compatible providers.
func NewClient(provider, apiKey string, opts ...OpenAIOption) (domain.EmbeddingClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
		}
		return NewOpenAIClient(apiKey, opts...), nil
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid options: openai, mock)", provider)
	}
}

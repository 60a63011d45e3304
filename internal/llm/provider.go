package llm

import (
	"fmt"

	"github.com/Harshitk-cp/cognicore/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// NewReasoner creates a reasoning client based on the provider name. An empty
// model selects the provider default.
// Returns an error if the provider is unknown or the API key is empty (except for mock).
func NewReasoner(provider, apiKey, model string) (domain.Reasoner, error) {
	switch provider {
	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		return NewAnthropicReasoner(apiKey, model), nil

	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIReasoner(apiKey, model), nil

	case ProviderMock:
		return NewMockReasoner(), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: anthropic, openai, mock)", provider)
	}
}

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/cognicore/internal/buildconfig"
	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultModel = "claude-3-5-haiku-20241022"

// AnthropicReasoner synthesizes plans and extracts propositions with Claude.
type AnthropicReasoner struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicReasoner(apiKey, model string) *AnthropicReasoner {
	if model == "" {
		model = anthropicDefaultModel
	}
	c := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHeader("User-Agent", buildconfig.UserAgent()),
		// Retries happen at the call site.
		option.WithMaxRetries(0),
	)
	return &AnthropicReasoner{client: &c, model: model}
}

func (r *AnthropicReasoner) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		System: []anthropic.TextBlockParam{
			{Text: "You are a precise planning and extraction component. Output only valid JSON."},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			return strings.TrimSpace(resp.Content[i].Text), nil
		}
	}
	return "", fmt.Errorf("anthropic API returned no content")
}

func (r *AnthropicReasoner) SynthesizePlan(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	out, err := r.complete(ctx, renderPlanPrompt(req), 2048)
	if err != nil {
		return nil, fmt.Errorf("synthesize plan: %w", err)
	}
	return parsePlan(out)
}

func (r *AnthropicReasoner) ExtractPropositions(ctx context.Context, req domain.ExtractionRequest) ([]domain.Proposition, error) {
	out, err := r.complete(ctx, renderExtractPrompt(req), 1024)
	if err != nil {
		return nil, fmt.Errorf("extract propositions: %w", err)
	}
	return parsePropositions(out)
}

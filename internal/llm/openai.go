package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/buildconfig"
	"github.com/Harshitk-cp/cognicore/internal/domain"
)

const (
	openAIChatURL      = "https://api.openai.com/v1/chat/completions"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAIReasoner talks to the chat completions endpoint directly.
type OpenAIReasoner struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

func NewOpenAIReasoner(apiKey, model string) *OpenAIReasoner {
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAIReasoner{
		apiKey:     apiKey,
		model:      model,
		url:        openAIChatURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIReasoner) complete(ctx context.Context, prompt string, temp float32) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "Output only valid JSON."},
			{Role: "user", Content: prompt},
		},
		Temperature: temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", buildconfig.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal chat response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("chat API error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (c *OpenAIReasoner) SynthesizePlan(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	out, err := c.complete(ctx, renderPlanPrompt(req), 0.3)
	if err != nil {
		return nil, fmt.Errorf("synthesize plan: %w", err)
	}
	return parsePlan(out)
}

func (c *OpenAIReasoner) ExtractPropositions(ctx context.Context, req domain.ExtractionRequest) ([]domain.Proposition, error) {
	out, err := c.complete(ctx, renderExtractPrompt(req), 0.2)
	if err != nil {
		return nil, fmt.Errorf("extract propositions: %w", err)
	}
	return parsePropositions(out)
}

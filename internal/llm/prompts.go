package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
)

const planPrompt = `You are the planning step of an autonomous agent. Produce a plan that moves the goal below toward its target.

Use only these capabilities: %s
Do not return a plan identical to any of these rejected plan fingerprints: %s
%s
Goal:
%s

Current beliefs (subject | predicate | object | confidence):
%s

Respond ONLY with JSON, no markdown:
{"rationale":"one sentence","strategic":false,"steps":[{"capability":"name","operation":"op","parameters":{},"description":"what it does","estimated_seconds":60}]}`

const extractPrompt = `Extract factual propositions from the observation below as (subject, predicate, object) triples.
Objects may be strings, numbers, booleans or flat JSON objects. Use short lowercase identifiers for subject and predicate.

Respond ONLY with a JSON array. No markdown, no explanation. Example:
[{"subject":"pipeline","predicate":"coverage","object":2.0}]

If nothing can be extracted, respond with an empty array: []

Observation (source %s):
%s`

func renderPlanPrompt(req domain.PlanRequest) string {
	var goal strings.Builder
	if req.Goal != nil {
		g := req.Goal
		fmt.Fprintf(&goal, "type=%s description=%q", g.Type, g.Description)
		if g.Target.Subject != "" {
			fmt.Fprintf(&goal, " target=%s.%s value=%g threshold=%g", g.Target.Subject, g.Target.Predicate, g.Target.TargetValue, g.Target.Threshold)
		}
		if g.Target.Deadline != nil {
			fmt.Fprintf(&goal, " deadline=%s", g.Target.Deadline.Format(time.RFC3339))
		}
	}

	var beliefs strings.Builder
	for _, b := range req.Beliefs {
		fmt.Fprintf(&beliefs, "%s | %s | %s | %.2f\n", b.Subject, b.Predicate, b.Object.String(), b.Confidence)
	}
	if beliefs.Len() == 0 {
		beliefs.WriteString("(none)\n")
	}

	excluded := "(none)"
	if len(req.Excluded) > 0 {
		excluded = strings.Join(req.Excluded, ", ")
	}
	failure := ""
	if req.PriorFailure != "" {
		failure = "The previous attempt failed: " + req.PriorFailure + "\n"
	}

	return fmt.Sprintf(planPrompt, strings.Join(req.Capabilities, ", "), excluded, failure, goal.String(), beliefs.String())
}

func renderExtractPrompt(req domain.ExtractionRequest) string {
	obs := req.Observation
	content := obs.Content
	if len(obs.Payload) > 0 {
		content += "\npayload: " + domain.Map(obs.Payload).String()
	}
	return fmt.Sprintf(extractPrompt, obs.Source, content)
}

type planStepJSON struct {
	Capability       string                  `json:"capability"`
	Operation        string                  `json:"operation"`
	Parameters       map[string]domain.Value `json:"parameters"`
	Description      string                  `json:"description"`
	EstimatedSeconds float64                 `json:"estimated_seconds"`
}

type planJSON struct {
	Rationale string         `json:"rationale"`
	Strategic bool           `json:"strategic"`
	Steps     []planStepJSON `json:"steps"`
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parsePlan(raw string) (*domain.Plan, error) {
	var parsed planJSON
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	if len(parsed.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}

	plan := &domain.Plan{
		Source:    domain.PlanFromReasoner,
		Strategic: parsed.Strategic,
		Rationale: parsed.Rationale,
	}
	for i, s := range parsed.Steps {
		if s.Capability == "" || s.Operation == "" {
			return nil, fmt.Errorf("plan step %d: capability and operation are required", i)
		}
		plan.Steps = append(plan.Steps, domain.PlanStep{
			Capability:        s.Capability,
			Operation:         s.Operation,
			Parameters:        s.Parameters,
			Description:       s.Description,
			EstimatedDuration: time.Duration(s.EstimatedSeconds * float64(time.Second)),
		})
	}
	return plan, nil
}

func parsePropositions(raw string) ([]domain.Proposition, error) {
	var props []domain.Proposition
	if err := json.Unmarshal([]byte(stripFences(raw)), &props); err != nil {
		return nil, fmt.Errorf("unmarshal propositions: %w", err)
	}
	out := props[:0]
	for _, p := range props {
		if p.Subject == "" || p.Predicate == "" || p.Object.IsZero() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

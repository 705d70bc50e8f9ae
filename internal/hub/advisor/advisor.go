// Package advisor implements the optional advisory fallback gate
// (§4.14): when the scheduler is about to dispatch a task to a node
// that did not pass the requirements filter (the fallback path), an
// enabled advisor gets one chance to veto the dispatch. Modeled
// directly on the teacher's pkg/aigate.AIGate — same fail-open
// philosophy, same client, same markdown-fenced-JSON recovery — with
// the domain narrowed from cluster-cost recommendations to a single
// scheduling decision.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Request carries the context the advisor needs to judge one
// fallback dispatch.
type Request struct {
	TaskID             string
	TaskType           string
	Priority           int
	NodeID             string
	ReadinessScore     int
	CurrentLoad        int
	MaxConcurrentTasks int
	GPUAvailable       bool
	RequiresGPU        bool
}

// Verdict is the advisor's parsed response.
type Verdict struct {
	Approved  bool   `json:"approved"`
	Reasoning string `json:"reasoning"`
}

// Advisor calls the Anthropic Messages API to gate a fallback
// dispatch. A disabled or nil Advisor always approves (fail-open):
// the advisory gate exists to catch the occasional bad fallback
// dispatch, not to become a new single point of scheduling failure.
type Advisor struct {
	client  *anthropic.Client
	model   string
	enabled bool
	timeout time.Duration
}

// New builds an Advisor. If !enabled, the returned Advisor always
// approves without contacting the API. apiKey is passed explicitly to
// the client rather than left to the ANTHROPIC_API_KEY env var, since
// ValidateHubDetailed requires advisor.apiKey whenever the gate is
// enabled and a key set only in YAML must actually take effect.
func New(enabled bool, apiKey, model string, timeout time.Duration) *Advisor {
	if !enabled {
		return &Advisor{enabled: false}
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Advisor{
		client:  &client,
		model:   model,
		enabled: true,
		timeout: timeout,
	}
}

// Approve judges whether a fallback dispatch should proceed. A nil
// Advisor, a disabled Advisor, an API error, or an unparseable
// response all approve: this gate only ever adds a reason to skip a
// dispatch, never a reason the scheduler itself breaks.
func (a *Advisor) Approve(ctx context.Context, req Request) (Verdict, error) {
	if a == nil || !a.enabled {
		return Verdict{Approved: true, Reasoning: "advisor disabled, approving by default"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt := buildPrompt(req)

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(512),
		System: []anthropic.TextBlockParam{
			{Text: advisorSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Verdict{Approved: true, Reasoning: fmt.Sprintf("advisor API error (failing open): %v", err)}, nil
	}

	verdict, err := parseVerdict(resp)
	if err != nil {
		return Verdict{Approved: true, Reasoning: fmt.Sprintf("advisor response unparseable (failing open): %v", err)}, nil
	}
	return verdict, nil
}

const advisorSystemPrompt = `You are a scheduling advisor for a distributed AI inference system.
You will be given one candidate node that did not meet the normal
dispatch requirements, and asked whether dispatching this task to it
anyway (the fallback path) is a reasonable choice. Respond with ONLY a
JSON object: {"approved": bool, "reasoning": string}.`

func buildPrompt(req Request) string {
	return fmt.Sprintf(
		"task_id=%s task_type=%s priority=%d\nnode_id=%s readiness_score=%d current_load=%d/%d gpu_available=%t requires_gpu=%t\n\nShould this fallback dispatch proceed?",
		req.TaskID, req.TaskType, req.Priority,
		req.NodeID, req.ReadinessScore, req.CurrentLoad, req.MaxConcurrentTasks, req.GPUAvailable, req.RequiresGPU,
	)
}

func parseVerdict(resp *anthropic.Message) (Verdict, error) {
	if len(resp.Content) == 0 {
		return Verdict{}, fmt.Errorf("empty response from advisor")
	}
	text := resp.Content[0].Text

	var v Verdict
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, nil
	}

	start := findJSONStart(text)
	if start < 0 {
		return Verdict{}, fmt.Errorf("no JSON object found in advisor response: %s", text)
	}
	end := findJSONEnd(text, start)
	if end <= start {
		return Verdict{}, fmt.Errorf("unterminated JSON object in advisor response: %s", text)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return Verdict{}, fmt.Errorf("parsing advisor response: %w (raw: %s)", err, text)
	}
	return v, nil
}

func findJSONStart(s string) int {
	for i, c := range s {
		if c == '{' {
			return i
		}
	}
	return -1
}

func findJSONEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

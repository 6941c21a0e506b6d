package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-livehost-be/pkg/llm"
)

const scoringPrompt = `You score incoming viewer messages for a live AI video host.
For each message decide how worth reacting to it is, on a scale of 0 (spam,
noise, abuse) to 10 (funny, novel, or a direct question the host should answer).

Messages:
%s

Reply with ONLY a JSON array, one object per message in the same order:
[{"priority": <0-10>, "reason": "<short justification>"}]`

// LLMEvaluator scores message batches by prompting a text model and parsing
// the JSON array it returns.
type LLMEvaluator struct {
	provider llm.LLMProvider
}

var _ Evaluator = &LLMEvaluator{}

func NewLLMEvaluator(provider llm.LLMProvider) *LLMEvaluator {
	return &LLMEvaluator{provider: provider}
}

type scoredEntry struct {
	Priority int    `json:"priority"`
	Reason   string `json:"reason"`
}

func (e *LLMEvaluator) Evaluate(ctx context.Context, inputs []Input) ([]Result, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for i, in := range inputs {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, in.SenderId, in.Text)
	}

	raw, err := e.provider.Generate(ctx, fmt.Sprintf(scoringPrompt, sb.String()),
		llm.WithTemperature(0.2))
	if err != nil {
		return nil, fmt.Errorf("evaluator llm call: %w", err)
	}

	entries, err := parseScores(raw)
	if err != nil {
		return nil, err
	}
	if len(entries) != len(inputs) {
		return nil, fmt.Errorf("evaluator returned %d scores for %d messages", len(entries), len(inputs))
	}

	results := make([]Result, len(inputs))
	for i, in := range inputs {
		results[i] = Result{
			SenderId:  in.SenderId,
			Text:      in.Text,
			Timestamp: in.Timestamp,
			Priority:  clamp(entries[i].Priority, 0, 10),
			Reason:    entries[i].Reason,
		}
	}
	return results, nil
}

// parseScores tolerates prose around the array; models love to add it.
func parseScores(raw string) ([]scoredEntry, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in evaluator output: %q", truncate(raw, 200))
	}
	var entries []scoredEntry
	if err := json.Unmarshal([]byte(raw[start:end+1]), &entries); err != nil {
		return nil, fmt.Errorf("unmarshal evaluator output: %w", err)
	}
	return entries, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package evaluator

import (
	"context"
	"time"
)

// Input is one message awaiting a priority score.
type Input struct {
	SenderId  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Result echoes an input with the score the adapter assigned to it.
type Result struct {
	SenderId  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Priority  int       `json:"priority"`
	Reason    string    `json:"reason"`
}

// Evaluator scores a batch of messages. Implementations must return exactly
// one result per input, in input order. On total failure the caller falls
// back to a fixed default priority per item instead of failing admission.
type Evaluator interface {
	Evaluate(ctx context.Context, inputs []Input) ([]Result, error)
}

package llm

import "context"

// Message is a single turn of a chat exchange.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Options holds per-call generation parameters.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Option mutates call options.
type Option func(*Options)

func WithModel(model string) Option {
	return func(o *Options) { o.Model = model }
}

func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// LLMProvider is the narrow contract every text-generation backend satisfies.
type LLMProvider interface {
	Chat(ctx context.Context, history []Message, opts ...Option) (string, error)
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)
}

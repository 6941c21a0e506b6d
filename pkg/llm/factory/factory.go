package factory

import (
	"fmt"

	"ai-livehost-be/pkg/llm"
	"ai-livehost-be/pkg/llm/ollama"
	"ai-livehost-be/pkg/llm/openaicompat"
)

// NewLLMProvider selects a concrete text-generation backend once at startup.
func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewProvider(baseURL, modelName), nil
	case "openai", "vllm":
		if baseURL == "" {
			baseURL = "http://localhost:8000"
		}
		return openaicompat.NewProvider(baseURL, modelName, apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}

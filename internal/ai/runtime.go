package ai

import "context"

// Runtime is a chat backend: a hosted OpenAI-compatible API or a local
// Ollama daemon.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	// GenerateStream invokes onDelta with each partial content chunk.
	GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error
}

// Provider identifiers accepted by the provider config key.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

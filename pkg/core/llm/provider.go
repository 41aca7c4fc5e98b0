package llm

import (
	"context"
)

// Provider is the interface for all LLM providers used by the pipeline
// (currently table summarization only).
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
}

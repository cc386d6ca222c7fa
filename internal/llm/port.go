// Package llm defines the LLM Provider port (spec §6): the narrow surface
// the reflection engine needs from a language model, distinct from the
// teacher's much larger tool-calling/streaming chat Provider interface.
package llm

import "context"

// Turn is one message in a conversation passed to GenerateWithContext.
type Turn struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// Provider is the LLM Provider port used by the reflection engine to
// summarize clusters of memories, extract entities, and count tokens for
// budget decisions.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithContext(ctx context.Context, turns []Turn) (string, error)
	CountTokens(ctx context.Context, text string) (int, error)
	Summarize(ctx context.Context, texts []string) (string, error)
	ExtractEntities(ctx context.Context, text string) ([]string, error)
}

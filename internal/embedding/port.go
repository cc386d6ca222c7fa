// Package embedding defines the Embedding Provider port (spec §6): turning
// text into vectors for the Vector Store, with distinct task types for
// queries versus documents since several embedding models (notably Cohere
// and Nomic-style models, and OpenAI's text-embedding-3 family by
// convention) produce better retrieval quality when the caller tags which
// side of the search a piece of text is on.
package embedding

import "context"

// TaskType distinguishes an embedding call made for a search query from one
// made for a document being indexed.
type TaskType string

const (
	TaskSearchQuery    TaskType = "search_query"
	TaskSearchDocument TaskType = "search_document"
)

// Provider is the Embedding Provider port.
type Provider interface {
	EmbedText(ctx context.Context, text string, task TaskType) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, task TaskType) ([][]float32, error)
	Dimension() int
}

package model

import "github.com/google/uuid"

// Embedding is a vector representation of a memory under a specific
// embedding model. A memory may carry embeddings from more than one model
// (spec §3: "(memory_id, model_name) -> vector + model_name"); callers
// identify which one they want by model name.
type Embedding struct {
	MemoryID  uuid.UUID
	ModelName string
	Vector    []float32
}

// Dimensions reports the length of the embedding vector.
func (e Embedding) Dimensions() int { return len(e.Vector) }

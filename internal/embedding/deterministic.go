package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// Deterministic is a hash-based embedding provider for tests and for local
// development without a real model: it derives a unit vector from the SHA-256
// digest of the (task, text) pair, so identical inputs always embed to the
// same vector and cosine similarity is reproducible.
type Deterministic struct {
	dimension int
}

// NewDeterministic returns a Deterministic provider with the given vector
// dimension (defaults to 32 when <= 0).
func NewDeterministic(dimension int) *Deterministic {
	if dimension <= 0 {
		dimension = 32
	}
	return &Deterministic{dimension: dimension}
}

func (d *Deterministic) Dimension() int { return d.dimension }

func (d *Deterministic) EmbedText(_ context.Context, text string, task TaskType) ([]float32, error) {
	return d.vector(string(task) + ":" + text), nil
}

func (d *Deterministic) EmbedBatch(_ context.Context, texts []string, task TaskType) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.vector(string(task) + ":" + t)
	}
	return out, nil
}

func (d *Deterministic) vector(seed string) []float32 {
	out := make([]float32, d.dimension)
	block := sha256.Sum256([]byte(seed))
	counter := uint32(0)
	for i := 0; i < d.dimension; i++ {
		if i%8 == 0 && i > 0 {
			counter++
			var ctrBytes [4]byte
			binary.BigEndian.PutUint32(ctrBytes[:], counter)
			next := sha256.Sum256(append(block[:], ctrBytes[:]...))
			block = next
		}
		byteVal := block[i%32]
		out[i] = (float32(byteVal)/255.0)*2 - 1
	}
	normalize(out)
	return out
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

var _ Provider = (*Deterministic)(nil)

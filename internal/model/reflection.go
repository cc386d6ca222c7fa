package model

import (
	"time"

	"github.com/google/uuid"
)

// ReflectionType classifies what kind of derived insight a reflection
// captures (spec §4.9).
type ReflectionType int

const (
	ReflectionInsight ReflectionType = iota
	ReflectionPattern
	ReflectionContradiction
	ReflectionSummary
)

func (t ReflectionType) String() string {
	switch t {
	case ReflectionInsight:
		return "INSIGHT"
	case ReflectionPattern:
		return "PATTERN"
	case ReflectionContradiction:
		return "CONTRADICTION"
	case ReflectionSummary:
		return "SUMMARY"
	default:
		return "UNKNOWN"
	}
}

// Reflection is the output of a reflection cycle: a REFLECTIVE memory's
// domain-specific payload, persisted alongside its backing Record (whose
// SourceMemoryIDs field carries the cluster this was derived from).
type Reflection struct {
	MemoryID        uuid.UUID
	Type            ReflectionType
	Confidence      float64
	SourceMemoryIDs []uuid.UUID
	CreatedAt       time.Time
}

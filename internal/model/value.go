// Package model defines the core data types of the memory engine: the
// Memory Record, its embeddings, reflections, and sync peers (spec §3).
package model

// Kind tags the concrete type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
)

// Value is a tagged union over the handful of JSON-like shapes memory
// metadata can carry. Metadata arrives from callers and peers as loosely
// typed data; a tagged union keeps that dynamism explicit instead of
// smuggling it through `any` at every call site.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Flt  float64
	Bool bool
	List []Value
	Map  map[string]Value
}

func NewString(s string) Value          { return Value{Kind: KindString, Str: s} }
func NewInt(i int64) Value              { return Value{Kind: KindInt, Int: i} }
func NewFloat(f float64) Value          { return Value{Kind: KindFloat, Flt: f} }
func NewBool(b bool) Value              { return Value{Kind: KindBool, Bool: b} }
func NewList(v []Value) Value           { return Value{Kind: KindList, List: v} }
func NewMap(v map[string]Value) Value   { return Value{Kind: KindMap, Map: v} }

// Equal reports deep equality between two values.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return v.Str == o.Str
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Flt == o.Flt
	case KindBool:
		return v.Bool == o.Bool
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, a := range v.Map {
			b, ok := o.Map[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

// Metadata is the opaque key-value map carried on every Memory Record.
type Metadata map[string]Value

// Clone returns a copy of the metadata map. Only the top level is copied:
// nested List and Map values share their backing storage with the original.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MergeKeywise merges b into a, b's keys winning on conflict. Used by the
// sync coordinator's field-merge conflict resolution strategy (spec §4.7).
func MergeKeywise(a, b Metadata) Metadata {
	out := a.Clone()
	if out == nil {
		out = Metadata{}
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

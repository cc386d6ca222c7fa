// Package config loads the engine's runtime configuration: one YAML file
// with environment variable overrides for secrets, following the pattern
// of the teacher's internal/config/loader.go (defaults first, then a YAML
// file overlays them, then environment variables override both).
package config

import (
	"encoding/json"
	"time"

	"github.com/memoryfabric/agentic-memory/internal/obs"
)

// StoreConfig configures the C4 Memory Store adapter.
type StoreConfig struct {
	Backend string `yaml:"backend" json:"backend"` // "memory" | "postgres"
	DSN     string `yaml:"dsn" json:"dsn"`
}

// VectorConfig configures the C5 Vector Store adapter.
type VectorConfig struct {
	Backend    string `yaml:"backend" json:"backend"` // "memory" | "qdrant" | "postgres"
	DSN        string `yaml:"dsn" json:"dsn"`
	Collection string `yaml:"collection" json:"collection"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	Metric     string `yaml:"metric" json:"metric"` // "cosine" | "l2" | "ip"
}

// CacheConfig configures the search-result cache.
type CacheConfig struct {
	Backend string        `yaml:"backend" json:"backend"` // "memory" | "redis"
	Addr    string        `yaml:"addr" json:"addr"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
}

// EmbeddingConfig configures the embedding-provider port.
type EmbeddingConfig struct {
	Backend    string `yaml:"backend" json:"backend"` // "deterministic" | "openai" | "http"
	APIKey     string `yaml:"api_key" json:"api_key"`
	Model      string `yaml:"model" json:"model"`
	BaseURL    string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`

	// Path/Headers/APIHeader/TimeoutSeconds configure the "http" backend,
	// which targets self-hosted OpenAI-compatible embedding servers instead
	// of the official OpenAI API.
	Path           string            `yaml:"path,omitempty" json:"path,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	APIHeader      string            `yaml:"api_header,omitempty" json:"api_header,omitempty"`
	TimeoutSeconds int               `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

// LLMConfig configures the LLM-provider port used by the reflection engine.
type LLMConfig struct {
	Backend string `yaml:"backend" json:"backend"` // "mock" | "anthropic"
	APIKey  string `yaml:"api_key" json:"api_key"`
	Model   string `yaml:"model" json:"model"`
}

// ScoringConfig holds the tunable weights and decay parameters of the
// scoring kernel (spec §4.1); defaults match spec.md's stated constants.
type ScoringConfig struct {
	RelevanceWeight  float64 `yaml:"relevance_weight" json:"relevance_weight"`
	ImportanceWeight float64 `yaml:"importance_weight" json:"importance_weight"`
	RecencyWeight    float64 `yaml:"recency_weight" json:"recency_weight"`
	DecayBase        float64 `yaml:"decay_base" json:"decay_base"`
	DecayMin         float64 `yaml:"decay_min" json:"decay_min"`
	DecayMax         float64 `yaml:"decay_max" json:"decay_max"`
}

// RetrievalConfig holds retrieval pipeline tunables (spec §4.3-§4.5).
type RetrievalConfig struct {
	StrategyTimeout time.Duration `yaml:"strategy_timeout" json:"strategy_timeout"`
	DefaultLimit    int           `yaml:"default_limit" json:"default_limit"`
	BM25K1          float64       `yaml:"bm25_k1" json:"bm25_k1"`
	BM25B           float64       `yaml:"bm25_b" json:"bm25_b"`
}

// PolicyConfig holds the bandit's tunables (spec §4.4).
type PolicyConfig struct {
	Epsilon      float64 `yaml:"epsilon" json:"epsilon"`
	UCBConstant  float64 `yaml:"ucb_constant" json:"ucb_constant"`
	WindowSize   int     `yaml:"window_size" json:"window_size"`
	DriftEvery   int     `yaml:"drift_every" json:"drift_every"`
	DriftDropPct float64 `yaml:"drift_drop_pct" json:"drift_drop_pct"`
}

// SyncConfig holds the sync coordinator's tunables (spec §4.7).
type SyncConfig struct {
	ProtocolVersion     int    `yaml:"protocol_version" json:"protocol_version"`
	ConflictGapSeconds  int    `yaml:"conflict_gap_seconds" json:"conflict_gap_seconds"`
	EncryptionKeyBase64 string `yaml:"encryption_key_base64" json:"encryption_key_base64"`
}

// ReconcileConfig holds the consistency reconciler's tunables (spec §4.8).
type ReconcileConfig struct {
	PageSize int `yaml:"page_size" json:"page_size"`
}

// Config is the root configuration object.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	Store     StoreConfig     `yaml:"store" json:"store"`
	Vector    VectorConfig    `yaml:"vector" json:"vector"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	LLM       LLMConfig       `yaml:"llm" json:"llm"`
	Scoring   ScoringConfig   `yaml:"scoring" json:"scoring"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	Policy    PolicyConfig    `yaml:"policy" json:"policy"`
	Sync      SyncConfig      `yaml:"sync" json:"sync"`
	Reconcile ReconcileConfig `yaml:"reconcile" json:"reconcile"`
}

// Defaults returns a Config with every tunable set to the constants spec.md
// states explicitly, suitable as a base before YAML/env overrides apply.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Store:    StoreConfig{Backend: "memory"},
		Vector:   VectorConfig{Backend: "memory", Metric: "cosine", Dimensions: 1536},
		Cache:    CacheConfig{Backend: "memory", TTL: 300 * time.Second},
		Embedding: EmbeddingConfig{
			Backend:    "deterministic",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		LLM: LLMConfig{Backend: "mock", Model: "claude-sonnet-4-5"},
		Scoring: ScoringConfig{
			RelevanceWeight:  0.5,
			ImportanceWeight: 0.3,
			RecencyWeight:    0.2,
			DecayBase:        0.001,
			DecayMin:         0.0001,
			DecayMax:         0.01,
		},
		Retrieval: RetrievalConfig{
			StrategyTimeout: 2 * time.Second,
			DefaultLimit:    10,
			BM25K1:          1.5,
			BM25B:           0.75,
		},
		Policy: PolicyConfig{
			Epsilon:      0.1,
			UCBConstant:  1.41421356237,
			WindowSize:   100,
			DriftEvery:   20,
			DriftDropPct: 0.5,
		},
		Sync: SyncConfig{
			ProtocolVersion:    1,
			ConflictGapSeconds: 1,
		},
		Reconcile: ReconcileConfig{PageSize: 100},
	}
}

// SafeJSON renders the config as JSON with credential-shaped fields
// (API keys, the sync encryption key, DSNs) blanked, for startup logging.
func (c Config) SafeJSON() (json.RawMessage, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return obs.RedactJSON(raw), nil
}

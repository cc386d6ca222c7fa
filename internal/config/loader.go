package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Load reads Defaults(), overlays a YAML file at path if it exists, then
// applies environment variable overrides for secrets and connection
// strings. This mirrors the teacher's layering order (env-aware defaults,
// then file, then explicit env overrides for anything secret-shaped).
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets secrets and deployment-specific endpoints be
// supplied without editing the YAML file, the way the teacher's loader.go
// reads OPENAI_API_KEY/ANTHROPIC_API_KEY/etc. from the environment.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("MEMORYENGINE_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMORYENGINE_STORE_DSN")); v != "" {
		cfg.Store.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMORYENGINE_VECTOR_DSN")); v != "" {
		cfg.Vector.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMORYENGINE_CACHE_ADDR")); v != "" {
		cfg.Cache.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMORYENGINE_SYNC_KEY")); v != "" {
		cfg.Sync.EncryptionKeyBase64 = v
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}

// Package config loads kindex configuration from an optional YAML file
// merged with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all kindex configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Decay     DecayConfig     `koanf:"decay"`
	Embedding EmbeddingConfig `koanf:"embedding"`
}

type ServerConfig struct {
	Bind string `koanf:"bind"`
	Port int    `koanf:"port"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// RetrievalConfig tunes the ranking pipeline.
type RetrievalConfig struct {
	MaxHops   int     `koanf:"max_hops"`   // BFS hop bound
	MinWeight float64 `koanf:"min_weight"` // cumulative path weight pruning threshold
	RRFK      int     `koanf:"rrf_k"`      // rank fusion damping constant
	Limit     int     `koanf:"limit"`      // surfaced results per query
}

// DecayConfig governs how unaccessed weights shrink over time.
// Rates are per cycle; the defaults give nodes a 90-day half-life and
// edges a 30-day half-life at daily cycles.
type DecayConfig struct {
	CycleHours int     `koanf:"cycle_hours"` // length of one maintenance cycle
	GraceHours int     `koanf:"grace_hours"` // access within this window exempts an item
	NodeRate   float64 `koanf:"node_rate"`   // in (0,1)
	EdgeRate   float64 `koanf:"edge_rate"`   // in (0,1)
	Floor      float64 `koanf:"floor"`       // weights never decay below this
}

type EmbeddingConfig struct {
	Enabled   bool   `koanf:"enabled"`
	OllamaURL string `koanf:"ollama_url"`
	Model     string `koanf:"model"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37707,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Retrieval: RetrievalConfig{
			MaxHops:   2,
			MinWeight: 0.1,
			RRFK:      60,
			Limit:     10,
		},
		Decay: DecayConfig{
			CycleHours: 24,
			GraceHours: 24,
			NodeRate:   0.9923, // 0.5^(1/90)
			EdgeRate:   0.9772, // 0.5^(1/30)
			Floor:      0.01,
		},
		Embedding: EmbeddingConfig{
			Enabled:   true,
			OllamaURL: "http://localhost:11434",
			Model:     "nomic-embed-text",
		},
	}
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides (KINDEX_PORT, KINDEX_DB_PATH, KINDEX_OLLAMA_URL).
// A missing file is not an error; an unreadable one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			k := koanf.New(".")
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("load config file %s: %w", path, err)
			}
			if err := k.Unmarshal("", &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("KINDEX_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("KINDEX_PORT must be an integer: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("KINDEX_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("KINDEX_OLLAMA_URL"); v != "" {
		cfg.Embedding.OllamaURL = v
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Decay.NodeRate <= 0 || c.Decay.NodeRate >= 1 {
		return fmt.Errorf("decay.node_rate must be in (0,1), got %v", c.Decay.NodeRate)
	}
	if c.Decay.EdgeRate <= 0 || c.Decay.EdgeRate >= 1 {
		return fmt.Errorf("decay.edge_rate must be in (0,1), got %v", c.Decay.EdgeRate)
	}
	if c.Decay.Floor < 0 || c.Decay.Floor > 1 {
		return fmt.Errorf("decay.floor must be in [0,1], got %v", c.Decay.Floor)
	}
	if c.Decay.CycleHours <= 0 {
		return fmt.Errorf("decay.cycle_hours must be positive, got %d", c.Decay.CycleHours)
	}
	if c.Retrieval.MaxHops < 0 {
		return fmt.Errorf("retrieval.max_hops must not be negative, got %d", c.Retrieval.MaxHops)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

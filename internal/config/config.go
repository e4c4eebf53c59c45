// Package config loads and defaults the engine's YAML configuration,
// mirroring every tunable the index manager, retrieval, and analysis
// components read at construction time.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	ConfigDirName  = ".opencode/code-intel"
	ConfigFileName = "config.yaml"
)

// Config is the full set of engine tunables, loaded once at startup.
type Config struct {
	DBPath   string `yaml:"db_path"`
	CachePath string `yaml:"cache_path"`

	Embedder EmbedderConfig `yaml:"embedder"`
	Store    StoreConfig    `yaml:"store"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Scan     ScanConfig     `yaml:"scan"`
	Index    IndexConfig    `yaml:"index"`
	Graph    GraphConfig    `yaml:"graph"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Watch    WatchConfig    `yaml:"watch"`
}

type EmbedderConfig struct {
	Provider   string `yaml:"provider"` // synthetic | http
	Endpoint   string `yaml:"endpoint,omitempty"`
	Model      string `yaml:"model,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	Dimension  int    `yaml:"embedding_dimension"`
	CacheSize  int    `yaml:"embedding_cache_size"`
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"` // sqlite | postgres | qdrant
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection,omitempty"`
}

type ChunkingConfig struct {
	MaxChunkLines int `yaml:"max_chunk_lines"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
}

type ScanConfig struct {
	IncludePatterns []string `yaml:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

type IndexConfig struct {
	Parallelism          int  `yaml:"parallelism"`
	EmbeddingBatchSize   int  `yaml:"embedding_batch_size"`
	AutoRefresh          bool `yaml:"auto_refresh"`
	AutoRefreshCooldownMs int `yaml:"auto_refresh_cooldown_ms"`
	AutoRefreshMaxFiles  int  `yaml:"auto_refresh_max_files"`
}

type GraphConfig struct {
	Depth              int     `yaml:"graph_depth"`
	MaxFanOut          int     `yaml:"max_fan_out"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

type RetrievalConfig struct {
	MaxTokens      int     `yaml:"max_tokens"`
	RRFK           int     `yaml:"rrf_k"`
	ExactNameBoost float64 `yaml:"exact_name_boost"`
	RetrievalLimit int     `yaml:"retrieval_limit"`
}

type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

// DefaultConfig returns the engine's out-of-the-box tunables.
func DefaultConfig() *Config {
	return &Config{
		DBPath:    ".opencode/code-intel/index.db",
		CachePath: ".opencode/code-intel/merkle-cache.json",
		Embedder: EmbedderConfig{
			Provider:  "synthetic",
			Dimension: 768,
			CacheSize: 1000,
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
		Chunking: ChunkingConfig{
			MaxChunkLines: 100,
			ChunkOverlap:  10,
		},
		Scan: ScanConfig{},
		Index: IndexConfig{
			Parallelism:           10,
			EmbeddingBatchSize:    100,
			AutoRefresh:           true,
			AutoRefreshCooldownMs: 30_000,
			AutoRefreshMaxFiles:   10_000,
		},
		Graph: GraphConfig{
			Depth:               2,
			MaxFanOut:           10,
			ConfidenceThreshold: 0.5,
		},
		Retrieval: RetrievalConfig{
			MaxTokens:      8000,
			RRFK:           60,
			ExactNameBoost: 2.0,
			RetrievalLimit: 20,
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
	}
}

func Dir(projectRoot string) string  { return filepath.Join(projectRoot, ConfigDirName) }
func Path(projectRoot string) string { return filepath.Join(Dir(projectRoot), ConfigFileName) }

func Exists(projectRoot string) bool {
	_, err := os.Stat(Path(projectRoot))
	return err == nil
}

// Load reads config.yaml under projectRoot and applies defaults for any
// field the file leaves at its zero value, so old config files remain
// valid as new tunables are added.
func Load(projectRoot string) (*Config, error) {
	data, err := os.ReadFile(Path(projectRoot))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.CachePath == "" {
		c.CachePath = d.CachePath
	}
	if c.Embedder.Dimension == 0 {
		c.Embedder.Dimension = d.Embedder.Dimension
	}
	if c.Embedder.CacheSize == 0 {
		c.Embedder.CacheSize = d.Embedder.CacheSize
	}
	if c.Embedder.Provider == "" {
		c.Embedder.Provider = d.Embedder.Provider
	}
	if c.Store.Backend == "" {
		c.Store.Backend = d.Store.Backend
	}
	if c.Chunking.MaxChunkLines == 0 {
		c.Chunking.MaxChunkLines = d.Chunking.MaxChunkLines
	}
	if c.Chunking.ChunkOverlap == 0 {
		c.Chunking.ChunkOverlap = d.Chunking.ChunkOverlap
	}
	if c.Index.Parallelism == 0 {
		c.Index.Parallelism = d.Index.Parallelism
	}
	if c.Index.EmbeddingBatchSize == 0 {
		c.Index.EmbeddingBatchSize = d.Index.EmbeddingBatchSize
	}
	if c.Index.AutoRefreshCooldownMs == 0 {
		c.Index.AutoRefreshCooldownMs = d.Index.AutoRefreshCooldownMs
	}
	if c.Index.AutoRefreshMaxFiles == 0 {
		c.Index.AutoRefreshMaxFiles = d.Index.AutoRefreshMaxFiles
	}
	if c.Graph.Depth == 0 {
		c.Graph.Depth = d.Graph.Depth
	}
	if c.Graph.Depth > 3 {
		c.Graph.Depth = 3
	}
	if c.Graph.MaxFanOut == 0 {
		c.Graph.MaxFanOut = d.Graph.MaxFanOut
	}
	if c.Graph.ConfidenceThreshold == 0 {
		c.Graph.ConfidenceThreshold = d.Graph.ConfidenceThreshold
	}
	if c.Retrieval.MaxTokens == 0 {
		c.Retrieval.MaxTokens = d.Retrieval.MaxTokens
	}
	if c.Retrieval.RRFK == 0 {
		c.Retrieval.RRFK = d.Retrieval.RRFK
	}
	if c.Retrieval.ExactNameBoost == 0 {
		c.Retrieval.ExactNameBoost = d.Retrieval.ExactNameBoost
	}
	if c.Retrieval.RetrievalLimit == 0 {
		c.Retrieval.RetrievalLimit = d.Retrieval.RetrievalLimit
	}
	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = d.Watch.DebounceMs
	}
}

// Save writes cfg to config.yaml under projectRoot, creating the config
// directory if needed.
func (c *Config) Save(projectRoot string) error {
	if err := os.MkdirAll(Dir(projectRoot), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(Path(projectRoot), data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// AbsDBPath resolves DBPath against projectRoot when relative.
func (c *Config) AbsDBPath(projectRoot string) string {
	if filepath.IsAbs(c.DBPath) {
		return c.DBPath
	}
	return filepath.Join(projectRoot, c.DBPath)
}

// AbsCachePath resolves CachePath against projectRoot when relative.
func (c *Config) AbsCachePath(projectRoot string) string {
	if filepath.IsAbs(c.CachePath) {
		return c.CachePath
	}
	return filepath.Join(projectRoot, c.CachePath)
}

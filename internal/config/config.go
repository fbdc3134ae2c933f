// Package config loads the application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EmbeddingConfig configures the OpenAI-compatible embedding client.
type EmbeddingConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	BatchSize   int    `yaml:"batch_size"`
	MaxRetries  int    `yaml:"max_retries"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Timeout returns the request timeout as a duration.
func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// APIKey resolves the API key from the configured environment variable.
func (c EmbeddingConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// ChunkerConfig configures how extracted text is split into token windows.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// SearchConfig carries the retrieval defaults.
type SearchConfig struct {
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Format string `yaml:"format"` // "text" or "json"
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
}

// Config is the root application configuration.
type Config struct {
	ListenAddr     string          `yaml:"listen_addr"`
	DataDir        string          `yaml:"data_dir"`
	MaxUploadBytes int64           `yaml:"max_upload_bytes"`
	WatchDir       string          `yaml:"watch_dir"`      // optional drop folder
	WatchOwnerID   string          `yaml:"watch_owner_id"` // owner for drop-folder ingests
	Chunker        ChunkerConfig   `yaml:"chunker"`
	Embedding      EmbeddingConfig `yaml:"embedding"`
	Search         SearchConfig    `yaml:"search"`
	Log            LogConfig       `yaml:"log"`
}

// Load reads the config from path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		ListenAddr:     ":8080",
		DataDir:        "./data",
		MaxUploadBytes: 50 << 20,
		WatchOwnerID:   "operator",
		Chunker: ChunkerConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Embedding: EmbeddingConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "text-embedding-ada-002",
			BatchSize:   20,
			MaxRetries:  3,
			TimeoutSecs: 30,
		},
		Search: SearchConfig{
			TopK:           5,
			ScoreThreshold: 0.7,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.WatchOwnerID == "" {
		cfg.WatchOwnerID = def.WatchOwnerID
	}
	if cfg.Chunker.ChunkSize <= 0 {
		cfg.Chunker.ChunkSize = def.Chunker.ChunkSize
	}
	if cfg.Chunker.ChunkOverlap <= 0 {
		cfg.Chunker.ChunkOverlap = def.Chunker.ChunkOverlap
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = def.Embedding.BaseURL
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = def.Embedding.APIKeyEnv
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if cfg.Embedding.MaxRetries <= 0 {
		cfg.Embedding.MaxRetries = def.Embedding.MaxRetries
	}
	if cfg.Embedding.TimeoutSecs <= 0 {
		cfg.Embedding.TimeoutSecs = def.Embedding.TimeoutSecs
	}
	if cfg.Search.TopK <= 0 {
		cfg.Search.TopK = def.Search.TopK
	}
	if cfg.Search.ScoreThreshold <= 0 {
		cfg.Search.ScoreThreshold = def.Search.ScoreThreshold
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full server configuration, loaded from a YAML file and
// CODECOMPASS_* environment variables.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Repositories RepositoriesConfig `mapstructure:"repositories"`
	Search       SearchConfig       `mapstructure:"search"`
	Embedding    EmbeddingConfig    `mapstructure:"embedding"`
	Chunking     ChunkingConfig     `mapstructure:"chunking"`
	Todos        TodosConfig        `mapstructure:"todos"`
}

// ServerConfig identifies the server and its working directories.
type ServerConfig struct {
	Name     string `mapstructure:"name"`
	CacheDir string `mapstructure:"cache_dir"`
}

// RepositoriesConfig declares the indexable roots. Anything outside them
// is refused at the path guard.
type RepositoriesConfig struct {
	Roots          []string `mapstructure:"roots"`
	MaxFileBytes   int64    `mapstructure:"max_file_bytes"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
	Workers        int      `mapstructure:"workers"`
}

// SearchConfig tunes the query engine.
type SearchConfig struct {
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds"`
	RRFConstant     float64 `mapstructure:"rrf_constant"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	Provider      string `mapstructure:"provider"`
	Model         string `mapstructure:"model"`
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	CacheSize     int    `mapstructure:"cache_size"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

// ChunkingConfig sets the chunk size constants.
type ChunkingConfig struct {
	WindowBytes   int `mapstructure:"window_bytes"`
	OverlapBytes  int `mapstructure:"overlap_bytes"`
	MaxChunkBytes int `mapstructure:"max_chunk_bytes"`
}

// TodosConfig customizes marker-comment extraction. Empty markers use the
// default set (TODO, FIXME, HACK, NOTE, XXX, BUG).
type TodosConfig struct {
	Markers []string `mapstructure:"markers"`
}

// Defaults applied before any file or environment override.
const (
	DefaultMaxFileBytes = 10 << 20 // 10 MiB
	DefaultTimeoutSec   = 10
	DefaultCacheTTLSec  = 60
)

// Load reads configuration. path may be empty, in which case only the
// default search locations and environment variables apply. Environment
// variables use the CODECOMPASS_ prefix with underscores for nesting,
// e.g. CODECOMPASS_EMBEDDING_PROVIDER=ollama.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.name", "codecompass-mcp")
	v.SetDefault("server.cache_dir", defaultCacheDir())
	v.SetDefault("repositories.max_file_bytes", DefaultMaxFileBytes)
	v.SetDefault("repositories.workers", 0)
	v.SetDefault("search.timeout_seconds", DefaultTimeoutSec)
	v.SetDefault("search.cache_ttl_seconds", DefaultCacheTTLSec)
	v.SetDefault("search.rrf_constant", 60.0)
	v.SetDefault("embedding.provider", "none")
	v.SetDefault("chunking.window_bytes", 512)
	v.SetDefault("chunking.overlap_bytes", 50)
	v.SetDefault("chunking.max_chunk_bytes", 8192)

	v.SetEnvPrefix("CODECOMPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("codecompass")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".codecompass"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Repositories.Roots) == 0 {
		return fmt.Errorf("config: at least one repository root is required")
	}
	if c.Repositories.MaxFileBytes <= 0 {
		c.Repositories.MaxFileBytes = DefaultMaxFileBytes
	}
	return nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codecompass/cache"
	}
	return filepath.Join(home, ".codecompass", "cache")
}

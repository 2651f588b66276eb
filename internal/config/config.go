// Package config handles configuration for the glasshouse service.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/glasshouse-ai/glasshouse/pkg/agents"
	"github.com/glasshouse-ai/glasshouse/pkg/chunking"
	"github.com/glasshouse-ai/glasshouse/pkg/embedding"
	"github.com/glasshouse-ai/glasshouse/pkg/scoring"
	"github.com/glasshouse-ai/glasshouse/pkg/streaming"
)

// Vector store drivers.
const (
	VectorDriverPostgres = "postgres"
	VectorDriverMemory   = "memory"
)

// Model providers.
const (
	ProviderGoogle = "google"
	ProviderMock   = "mock"
)

// Config represents the complete configuration for the service.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Vector     VectorConfig     `mapstructure:"vector"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Generative GenerativeConfig `mapstructure:"generative"`
	Pipeline   agents.Config    `mapstructure:"pipeline"`
	Stream     streaming.Config `mapstructure:"stream"`
	Ingestion  IngestionConfig  `mapstructure:"ingestion"`
	Scoring    scoring.Config   `mapstructure:"scoring"`
	Ranking    RankingConfig    `mapstructure:"ranking"`
}

// ServiceConfig contains service-level settings.
type ServiceConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DatabaseConfig contains Postgres connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode)
}

// RedisConfig contains Redis connection settings. Redis is the optional
// L2 embedding cache tier; a failed connection degrades to L1 only.
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	Database    int           `mapstructure:"database"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	PoolSize    int           `mapstructure:"pool_size"`
}

// VectorConfig selects and tunes the evidence store.
type VectorConfig struct {
	Driver      string `mapstructure:"driver"`
	UpsertBatch int    `mapstructure:"upsert_batch"`
}

// EmbeddingConfig contains embedding provider settings.
type EmbeddingConfig struct {
	Provider       string                `mapstructure:"provider"`
	APIKey         string                `mapstructure:"api_key"`
	Model          string                `mapstructure:"model"`
	Endpoint       string                `mapstructure:"endpoint"`
	RequestTimeout time.Duration         `mapstructure:"request_timeout"`
	RateLimitRPS   float64               `mapstructure:"rate_limit_rps"`
	Burst          int                   `mapstructure:"burst"`
	MaxRetries     int                   `mapstructure:"max_retries"`
	Cache          embedding.CacheConfig `mapstructure:"cache"`
}

// GenerativeConfig contains generative provider settings.
type GenerativeConfig struct {
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Endpoint        string        `mapstructure:"endpoint"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	Burst           int           `mapstructure:"burst"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

// IngestionConfig contains evidence ingestion settings.
type IngestionConfig struct {
	Concurrency  int `mapstructure:"concurrency"`
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	MaxBatchSize int `mapstructure:"max_batch_size"`
}

// RankingConfig contains ranking batch settings.
type RankingConfig struct {
	Schedule   string        `mapstructure:"schedule"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	Lookback   time.Duration `mapstructure:"lookback"`
}

// Load loads configuration from the default config paths and the
// environment.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration from an explicit file path, falling back
// to the default search paths when path is empty.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("glasshouse")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/glasshouse")
		v.AddConfigPath(".")
	}

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine when searching default paths; an
		// explicit path that fails to read is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Service defaults
	v.SetDefault("service.port", 8090)
	v.SetDefault("service.shutdown_timeout", "30s")
	v.SetDefault("service.log_level", "info")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "glasshouse")
	v.SetDefault("database.username", "glasshouse")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.pool_size", 10)

	// Vector store defaults
	v.SetDefault("vector.driver", VectorDriverPostgres)
	v.SetDefault("vector.upsert_batch", 50)

	// Embedding defaults
	v.SetDefault("embedding.provider", ProviderGoogle)
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.request_timeout", "30s")
	v.SetDefault("embedding.rate_limit_rps", 5.0)
	v.SetDefault("embedding.burst", 10)
	v.SetDefault("embedding.max_retries", 3)
	v.SetDefault("embedding.cache.l1_size", 2048)
	v.SetDefault("embedding.cache.ttl", "24h")
	v.SetDefault("embedding.cache.prefix", "glasshouse:embedding")

	// Generative defaults
	v.SetDefault("generative.provider", ProviderGoogle)
	v.SetDefault("generative.model", "")
	v.SetDefault("generative.request_timeout", "90s")
	v.SetDefault("generative.temperature", 0.2)
	v.SetDefault("generative.max_output_tokens", 4096)
	v.SetDefault("generative.rate_limit_rps", 2.0)
	v.SetDefault("generative.burst", 4)
	v.SetDefault("generative.max_retries", 3)

	// Pipeline defaults
	v.SetDefault("pipeline.stage_timeout", "120s")
	v.SetDefault("pipeline.news_top_k", agents.DefaultNewsTopK)
	v.SetDefault("pipeline.image_top_k", agents.DefaultImageTopK)
	v.SetDefault("pipeline.patent_top_k", agents.DefaultPatentTopK)

	// Stream defaults
	v.SetDefault("stream.buffer_size", streaming.DefaultBufferSize)

	// Ingestion defaults
	v.SetDefault("ingestion.concurrency", 4)
	v.SetDefault("ingestion.chunk_size", chunking.DefaultChunkSize)
	v.SetDefault("ingestion.chunk_overlap", chunking.DefaultOverlap)
	v.SetDefault("ingestion.max_batch_size", 200)

	// Scoring defaults
	v.SetDefault("scoring.min_evidence_count", 1)

	// Ranking defaults
	v.SetDefault("ranking.schedule", "")
	v.SetDefault("ranking.run_timeout", "5m")
	v.SetDefault("ranking.lookback", "720h")
}

func bindEnvVars(v *viper.Viper) {
	v.AutomaticEnv()

	// Service bindings
	_ = v.BindEnv("service.port", "GLASSHOUSE_PORT")
	_ = v.BindEnv("service.log_level", "LOG_LEVEL")

	// Database bindings
	_ = v.BindEnv("database.host", "DATABASE_HOST")
	_ = v.BindEnv("database.port", "DATABASE_PORT")
	_ = v.BindEnv("database.database", "DATABASE_NAME")
	_ = v.BindEnv("database.username", "DATABASE_USER")
	_ = v.BindEnv("database.password", "DATABASE_PASSWORD")
	_ = v.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	// Redis bindings
	_ = v.BindEnv("redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("redis.address", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Vector store bindings
	_ = v.BindEnv("vector.driver", "VECTOR_DRIVER")

	// Provider bindings: GOOGLE_API_KEY covers both providers, the
	// GLASSHOUSE_* variants override per provider.
	_ = v.BindEnv("embedding.api_key", "GLASSHOUSE_EMBEDDING_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("embedding.provider", "GLASSHOUSE_EMBEDDING_PROVIDER")
	_ = v.BindEnv("generative.api_key", "GLASSHOUSE_GENERATIVE_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("generative.provider", "GLASSHOUSE_GENERATIVE_PROVIDER")

	// Ranking bindings
	_ = v.BindEnv("ranking.schedule", "RANKING_SCHEDULE")
}

func validate(cfg *Config) error {
	if cfg.Service.Port <= 0 || cfg.Service.Port > 65535 {
		return fmt.Errorf("invalid service port: %d", cfg.Service.Port)
	}

	switch cfg.Vector.Driver {
	case VectorDriverPostgres, VectorDriverMemory:
	default:
		return fmt.Errorf("unknown vector driver: %q", cfg.Vector.Driver)
	}

	switch cfg.Embedding.Provider {
	case ProviderGoogle:
		if cfg.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required for the google provider")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown embedding provider: %q", cfg.Embedding.Provider)
	}

	switch cfg.Generative.Provider {
	case ProviderGoogle:
		if cfg.Generative.APIKey == "" {
			return fmt.Errorf("generative.api_key is required for the google provider")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown generative provider: %q", cfg.Generative.Provider)
	}

	if cfg.Ingestion.ChunkOverlap >= cfg.Ingestion.ChunkSize {
		return fmt.Errorf("ingestion.chunk_overlap %d must be smaller than chunk_size %d",
			cfg.Ingestion.ChunkOverlap, cfg.Ingestion.ChunkSize)
	}

	return nil
}

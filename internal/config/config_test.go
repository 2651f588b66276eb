package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Service.Port)
	assert.Equal(t, 30*time.Second, cfg.Service.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Service.LogLevel)

	assert.Equal(t, VectorDriverPostgres, cfg.Vector.Driver)
	assert.Equal(t, 50, cfg.Vector.UpsertBatch)

	assert.Equal(t, ProviderGoogle, cfg.Embedding.Provider)
	assert.Equal(t, "test-key", cfg.Embedding.APIKey)
	assert.Equal(t, "test-key", cfg.Generative.APIKey)
	assert.Equal(t, 2048, cfg.Embedding.Cache.L1Size)
	assert.Equal(t, 24*time.Hour, cfg.Embedding.Cache.TTL)

	assert.Equal(t, 120*time.Second, cfg.Pipeline.StageTimeout)
	assert.Equal(t, 8, cfg.Pipeline.NewsTopK)
	assert.Equal(t, 5, cfg.Pipeline.ImageTopK)
	assert.Equal(t, 10, cfg.Pipeline.PatentTopK)

	assert.Equal(t, 16, cfg.Stream.BufferSize)
	assert.Equal(t, 1, cfg.Scoring.MinEvidenceCount)
	assert.Equal(t, 4, cfg.Ingestion.Concurrency)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Ranking.RunTimeout)
	assert.Equal(t, 720*time.Hour, cfg.Ranking.Lookback)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("GLASSHOUSE_PORT", "9000")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("DATABASE_PASSWORD", "secret")
	t.Setenv("VECTOR_DRIVER", "memory")
	t.Setenv("GLASSHOUSE_EMBEDDING_PROVIDER", "mock")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, VectorDriverMemory, cfg.Vector.Driver)
	assert.Equal(t, ProviderMock, cfg.Embedding.Provider)
}

func TestLoad_ProviderKeySplit(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "shared-key")
	t.Setenv("GLASSHOUSE_GENERATIVE_API_KEY", "generative-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "shared-key", cfg.Embedding.APIKey)
	assert.Equal(t, "generative-key", cfg.Generative.APIKey)
}

func TestLoad_RequiresAPIKeyForGoogle(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GLASSHOUSE_EMBEDDING_API_KEY", "")
	t.Setenv("GLASSHOUSE_GENERATIVE_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
}

func TestLoad_MockProvidersNeedNoKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GLASSHOUSE_EMBEDDING_PROVIDER", "mock")
	t.Setenv("GLASSHOUSE_GENERATIVE_PROVIDER", "mock")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderMock, cfg.Embedding.Provider)
	assert.Equal(t, ProviderMock, cfg.Generative.Provider)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("VECTOR_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vector driver")
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		Database: "glasshouse",
		Username: "svc",
		Password: "secret",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=svc password=secret dbname=glasshouse sslmode=require",
		d.DSN())
}

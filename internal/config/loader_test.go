package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eventsage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const fileConfig = `
db_path: /var/lib/eventsage/events.db
http_addr: ":9090"
cors_origins:
  - https://events.example.edu
  - http://localhost:3000
vector_weight: 0.3
lexical_weight: 0.7
query_cache_ttl: 10m
index_workers: 3
`

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults only", func(t *testing.T) {
		t.Setenv(EnvPrefix+"CONFIG", "")
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, New().DBPath, cfg.DBPath)
		assert.Equal(t, New().HTTPAddr, cfg.HTTPAddr)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv(EnvPrefix+"CONFIG", "")
		t.Setenv(EnvPrefix+"HTTP_ADDR", ":7070")
		t.Setenv(EnvPrefix+"DEFAULT_LIMIT", "8")
		t.Setenv(EnvPrefix+"LLM_TIMEOUT", "15s")
		t.Setenv(EnvPrefix+"LEXICAL_THRESHOLD", "0.25")

		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, ":7070", cfg.HTTPAddr)
		assert.Equal(t, 8, cfg.DefaultLimit)
		assert.Equal(t, 15*time.Second, cfg.LLMTimeout)
		assert.InDelta(t, 0.25, cfg.LexicalThreshold, 1e-9)
	})

	t.Run("yaml file", func(t *testing.T) {
		cfg, err := Load(ctx, writeConfigFile(t, fileConfig))
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/eventsage/events.db", cfg.DBPath)
		assert.Equal(t, ":9090", cfg.HTTPAddr)
		assert.Equal(t, []string{"https://events.example.edu", "http://localhost:3000"}, cfg.CORSOrigins)
		assert.InDelta(t, 0.3, cfg.VectorWeight, 1e-9)
		assert.Equal(t, 10*time.Minute, cfg.QueryCacheTTL)
		assert.Equal(t, 3, cfg.IndexWorkers)
	})

	t.Run("file from environment", func(t *testing.T) {
		t.Setenv(EnvPrefix+"CONFIG", writeConfigFile(t, fileConfig))
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.HTTPAddr)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv(EnvPrefix+"HTTP_ADDR", ":8181")
		t.Setenv(EnvPrefix+"INDEX_WORKERS", "6")

		cfg, err := Load(ctx, writeConfigFile(t, fileConfig))
		require.NoError(t, err)
		assert.Equal(t, ":8181", cfg.HTTPAddr)
		assert.Equal(t, 6, cfg.IndexWorkers)
		assert.Equal(t, "/var/lib/eventsage/events.db", cfg.DBPath)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(ctx, writeConfigFile(t, "invalid: yaml: content: ["))
		assert.ErrorIs(t, err, ErrLoadConfig)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(ctx, filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, ErrLoadConfig)
	})

	t.Run("loaded values are validated", func(t *testing.T) {
		t.Setenv(EnvPrefix+"CONFIG", "")
		t.Setenv(EnvPrefix+"LLM_PROVIDER", "openai")
		_, err := Load(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

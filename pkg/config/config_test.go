package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"STORE_BACKEND", "STORE_KEY", "ALLOWED_ORIGINS", "CACHE_TTL_SECONDS", "APP_ENV"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "default", cfg.Store.Key)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 60, cfg.Cache.TTLSeconds)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "localhost:6379", cfg.Redis.RedisAddr())
}

func TestLoad_StoreConfig(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("STORE_KEY", "contract-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBackendRedis, cfg.Store.Backend)
	assert.Equal(t, "contract-1", cfg.Store.Key)
}

func TestLoad_UnsupportedBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=require", cfg.DatabaseDSN())
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("OTEL_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.OTEL.Enabled)
}

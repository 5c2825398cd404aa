package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "session-secret")
	t.Setenv("STREAM_SIGNING_SECRET", "stream-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 600*time.Second, cfg.Stream.LinkTTL())
	assert.Equal(t, 300*time.Second, cfg.Cache.TTL())
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "a")
	t.Setenv("STREAM_SIGNING_SECRET", "b")
	t.Setenv("CACHE_TTL", "60")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("BASE_EXTERNAL_URL", "https://media.example.com/")
	t.Setenv("STORAGE_BACKEND", "S3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Cache.TTL())
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "https://media.example.com", cfg.Server.BaseExternalURL)
	assert.Equal(t, "s3", cfg.Storage.Backend)
}

func TestValidateRejectsSharedSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "same")
	t.Setenv("STREAM_SIGNING_SECRET", "same")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "a")
	t.Setenv("STREAM_SIGNING_SECRET", "b")
	t.Setenv("STORAGE_BACKEND", "ftp")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "media", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/media?sslmode=disable", c.DSN())

	c.URL = "postgres://override"
	assert.Equal(t, "postgres://override", c.DSN())
}

func TestProxyList(t *testing.T) {
	assert.Nil(t, ServerConfig{}.ProxyList())
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, ServerConfig{TrustedProxies: " 10.0.0.0/8, ,127.0.0.1"}.ProxyList())
}

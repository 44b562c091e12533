package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ./data/test.db
api:
  auth:
    jwt_secret: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, 24*60, cfg.API.Auth.TokenTTLMinutes)
	assert.Equal(t, float64(20), cfg.API.RateLimit.RPS)
	assert.Equal(t, 20, cfg.Notifications.FeedCap)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout())
	assert.Equal(t, 30*time.Second, cfg.Reconciler.PollInterval())
	assert.Equal(t, 150, cfg.Gateway.LatencyMinMs)
	assert.Equal(t, 900, cfg.Gateway.LatencyMaxMs)
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")
	path := writeConfig(t, `
database:
  path: ./data/test.db
api:
  auth:
    jwt_secret: ${TEST_JWT_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.API.Auth.JWTSecret)
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ./data/test.db
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoadRejectsBadGatewaySettings(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ./data/test.db
api:
  auth:
    jwt_secret: secret
gateway:
  decline_rate: 1.5
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decline_rate")

	path = writeConfig(t, `
database:
  path: ./data/test.db
api:
  auth:
    jwt_secret: secret
gateway:
  latency_min_ms: 500
  latency_max_ms: 100
`)

	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latency_max_ms")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

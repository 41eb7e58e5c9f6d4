package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sql", cfg.StorageDriver)
	assert.Equal(t, "hmac", cfg.TokenMode)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 3*time.Second, cfg.StorageTimeout)
	assert.Equal(t, 6, cfg.CodeLength)
	assert.False(t, cfg.GoogleEnabled())
	assert.False(t, cfg.SyncClickRecording)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shortlink.yaml")
	err := os.WriteFile(path, []byte(`
port: "9090"
storage_driver: redis
redis_url: redis://cache:6379/1
storage_timeout: 750ms
token_ttl: 24h
log_format: json
code_length: 8
sync_click_recording: true
`), 0o600)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port, "environment wins over file")
	assert.Equal(t, "redis", cfg.StorageDriver)
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, 750*time.Millisecond, cfg.StorageTimeout)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 8, cfg.CodeLength)
	assert.True(t, cfg.SyncClickRecording)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown driver", "STORAGE_DRIVER", "mongo"},
		{"unknown token mode", "TOKEN_MODE", "paseto"},
		{"bad duration", "STORAGE_TIMEOUT", "soon"},
		{"negative timeout", "STORAGE_TIMEOUT", "-1s"},
		{"bad code length", "CODE_LENGTH", "two"},
		{"short code length", "CODE_LENGTH", "2"},
		{"bad sync flag", "SYNC_CLICK_RECORDING", "sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidateProductionSecret(t *testing.T) {
	cfg := defaults()
	cfg.AppEnv = "production"
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "a-real-secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidateIssuerMode(t *testing.T) {
	cfg := defaults()
	cfg.TokenMode = "issuer"
	assert.Error(t, cfg.Validate())

	cfg.TokenPublicKeyFile = "/etc/shortlink/jwt.pub"
	assert.NoError(t, cfg.Validate())
}

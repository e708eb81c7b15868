package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsValid(t *testing.T) {
	assert.NoError(t, New().Validate())
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 200, c.Query.ChunkSize)
	assert.Equal(t, 2*time.Second, c.Sync.RetryDelay)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HISTORY_DB_PATH", ":memory:")
	t.Setenv("HISTORY_CHUNK_SIZE", "50")
	t.Setenv("SYNC_RETRY_DELAY", "500ms")
	t.Setenv("LIVE_API_URL", "http://localhost:8080/json")
	t.Setenv("LIVE_API_TOKEN", "secret-token")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", c.Store.Path)
	assert.Equal(t, 50, c.Query.ChunkSize)
	assert.Equal(t, 500*time.Millisecond, c.Sync.RetryDelay)
	assert.Equal(t, "http://localhost:8080/json", c.API.BaseURL)
	assert.Equal(t, slog.LevelDebug, c.LogLevel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero chunk size", "HISTORY_CHUNK_SIZE", "0"},
		{"negative retry delay", "SYNC_RETRY_DELAY", "-1s"},
		{"bad api url", "LIVE_API_URL", "ftp://example.com"},
		{"unparsable duration", "LIVE_API_TIMEOUT", "soon"},
		{"unknown log level", "LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestPrintHidesToken(t *testing.T) {
	c := New()
	c.API.Token = "secret-token"

	var buf bytes.Buffer
	c.Print(&buf)
	assert.Contains(t, buf.String(), "Store:")
	assert.Contains(t, buf.String(), "Sync:")
	assert.NotContains(t, buf.String(), "secret-token")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"NOTES_SERVER_URL", "NOTES_THEME", "NOTES_LOG_FILE", "NOTES_DEBUG",
		"NOTES_LISTEN_ADDR", "NOTES_STORE", "NOTES_DB_PATH", "NOTES_SERVER_TOKEN",
		"NOTES_ALLOWED_ORIGINS", "NOTES_CALL_TIMEOUT", "NOTES_RATE_LIMIT",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOTES_CONFIG", writeConfig(t, ""))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.False(t, cfg.Debug)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOTES_CONFIG", writeConfig(t, `
server_url: http://notes.internal:9000
theme: neon
call_timeout: 3s
store: sqlite
db_path: /var/lib/notes.db
allowed_origins: [http://a.example]
`))
	t.Setenv("NOTES_THEME", "mono")
	t.Setenv("NOTES_DEBUG", "true")
	t.Setenv("NOTES_ALLOWED_ORIGINS", "http://b.example, http://c.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://notes.internal:9000", cfg.ServerURL)
	assert.Equal(t, "mono", cfg.Theme)
	assert.Equal(t, 3*time.Second, cfg.CallTimeout)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "/var/lib/notes.db", cfg.DBPath)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"http://b.example", "http://c.example"}, cfg.AllowedOrigins)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOTES_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadInputs(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad timeout", "NOTES_CALL_TIMEOUT", "soon"},
		{"unknown store", "NOTES_STORE", "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("NOTES_CONFIG", writeConfig(t, ""))
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no server url", func(c *Config) { c.ServerURL = "" }, true},
		{"zero timeout", func(c *Config) { c.CallTimeout = 0 }, true},
		{"sqlite without path", func(c *Config) { c.Store = StoreSQLite; c.DBPath = "" }, true},
		{"sqlite with path", func(c *Config) { c.Store = StoreSQLite }, false},
		{"rate limit", func(c *Config) { c.RateLimit = "20-S" }, false},
		{"bad rate limit", func(c *Config) { c.RateLimit = "lots" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRate(t *testing.T) {
	c := Default()
	_, ok, err := c.Rate()
	require.NoError(t, err)
	assert.False(t, ok)

	c.RateLimit = "100-M"
	rate, ok, err := c.Rate()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(100), rate.Limit)
	assert.Equal(t, time.Minute, rate.Period)
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("NOTES_TEST_BOOL", "yes")
	assert.True(t, getEnvBool("NOTES_TEST_BOOL", false))
	t.Setenv("NOTES_TEST_BOOL", "0")
	assert.False(t, getEnvBool("NOTES_TEST_BOOL", true))
	t.Setenv("NOTES_TEST_BOOL", "")
	assert.True(t, getEnvBool("NOTES_TEST_BOOL", true))
}

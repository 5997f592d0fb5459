package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"server_endpoint_addr":  "www.example:9000",
		"transport":             "rest",
		"rest_base_url":         "https://api.example",
		"database_path":         "/var/lib/vax.db",
		"guardian_id":           "g-7",
		"access_token":          "secret",
		"online_check_interval": "10s",
		"request_timeout":       "5s",
		"max_attempts":          8,
		"retry_base_delay":      "1s",
		"retry_max_delay":       "1m",
		"log_backend":           "zap",
		"log_level":             "warn",
	})

	t.Run("loads every field", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", full}

		cfg := &Config{}
		parseJson(cfg)

		want := &Config{
			ServerEndpointAddr:  "www.example:9000",
			Transport:           "rest",
			RESTBaseURL:         "https://api.example",
			DatabasePath:        "/var/lib/vax.db",
			GuardianID:          "g-7",
			AccessToken:         "secret",
			OnlineCheckInterval: 10 * time.Second,
			RequestTimeout:      5 * time.Second,
			MaxAttempts:         8,
			RetryBaseDelay:      time.Second,
			RetryMaxDelay:       time.Minute,
			LogBackend:          "zap",
			LogLevel:            "warn",
		}
		assert.Empty(t, cmp.Diff(want, cfg))
	})

	t.Run("absent fields keep defaults", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"guardian_id": "g-9"})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		want := *cfg
		want.GuardianID = "g-9"

		parseJson(cfg)
		assert.Empty(t, cmp.Diff(&want, cfg))
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{ServerEndpointAddr: "defaults:1234", OnlineCheckInterval: 42 * time.Second}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.ServerEndpointAddr)
		assert.Equal(t, 42*time.Second, cfg.OnlineCheckInterval)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		os.Args = []string{"testbin", "-config", bad}

		require.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "nope.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd", "serve",
				"-a", "127.0.0.1:9090", "-d", "db", "-e", "redis:6379", "-n", "2", "-i", "12",
				"-s", "secret", "-t", "15", "-b", "slog", "-l", "debug",
			},
			expected: &Config{
				EndpointAddrGRPC:            "127.0.0.1:9090",
				DatabaseDSN:                 "db",
				RedisAddr:                   "redis:6379",
				RedisDB:                     2,
				IdempotencyTTL:              12 * time.Hour,
				SecretKey:                   "secret",
				AccessTokenValidityDuration: 15 * time.Minute,
				LogBackend:                  "slog",
				LogLevel:                    "debug",
			},
		},
		{
			name: "cobra flags are ignored",
			args: []string{"cmd", "token", "--guardian", "g1", "-s", "secret"},
			expected: &Config{
				SecretKey: "secret",
			},
		},
		{
			name:        "non-numeric ttl",
			args:        []string{"cmd", "-i", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

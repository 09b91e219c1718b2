package config

import (
	"os"
	"testing"

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
			args: []string{"cmd",
				"-a", "0.0.0.0:8080", "-g", ":6000", "-s", "acc", "-r", "ref", "-b", "postgres",
				"-u", "http://couch", "-n", "people", "-d", "postgres://db", "-k", "12", "-R", "redis:6379", "-l", "zap",
			},
			expected: &Config{
				HTTPAddr:           "0.0.0.0:8080",
				GRPCAddr:           ":6000",
				AccessTokenSecret:  "acc",
				RefreshTokenSecret: "ref",
				StoreBackend:       "postgres",
				CouchDBURL:         "http://couch",
				CouchDBDatabase:    "people",
				DatabaseDSN:        "postgres://db",
				BcryptCost:         12,
				RedisAddr:          "redis:6379",
				LogBackend:         "zap",
			},
		},
		{
			name:     "foreign flags are ignored",
			args:     []string{"cmd", "-c", "conf.json", "-x", "1", "-s", "only-secret"},
			expected: &Config{AccessTokenSecret: "only-secret"},
		},
		{
			name:        "bad int panics",
			args:        []string{"cmd", "-k", "twelve"},
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

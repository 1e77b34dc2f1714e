package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected  *Config
		name      string
		args      []string
		expectErr bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:8081", "-g", ":50052", "-m", ":9091", "-d", "db", "-s", "memory",
				"-t", "2m", "-r", "48h", "-redis", "redis://r:6379/0", "-hasher", "bcrypt", "-l", "warn",
			},
			expected: &Config{
				HTTPAddr:        "127.0.0.1:8081",
				GRPCHealthAddr:  ":50052",
				MetricsAddr:     ":9091",
				DatabaseDSN:     "db",
				Storage:         "memory",
				AccessTokenTTL:  2 * time.Minute,
				RefreshTokenTTL: 48 * time.Hour,
				RedisURL:        "redis://r:6379/0",
				Hasher:          HasherConfig{Algorithm: "bcrypt"},
				Log:             LogConfig{Level: "warn"},
			},
		},
		{
			name:     "unknown flags are filtered out",
			args:     []string{"-c", "cfg.yaml", "-x", "1", "-a", ":1"},
			expected: &Config{HTTPAddr: ":1"},
		},
		{
			name:      "bad duration",
			args:      []string{"-t", "soon"},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			err := parseFlags(config, tt.args)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(config, tt.expected))
		})
	}
}

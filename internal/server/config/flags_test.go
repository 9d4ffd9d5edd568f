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
		name        string
		args        []string
		expected    func() *Config
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret", "-alg", "HS256",
				"-iss", "issuer", "-aud", "clients", "-t", "5", "-r", "60",
				"-cache", "memory", "-redis", "redis:6379", "-redis-db", "2", "-l", "100", "-log", "debug",
				"-audit-interval", "1h", "-audit-prefix", "trail",
				"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
			},
			expected: func() *Config {
				return &Config{
					HTTPAddress:          "127.0.0.1:9090",
					DatabaseDSN:          "db",
					LogLevel:             "debug",
					SecretKey:            "secret",
					SigningAlgorithm:     "HS256",
					Issuer:               "issuer",
					Audience:             "clients",
					AccessTokenLifetime:  5 * time.Minute,
					RefreshTokenLifetime: time.Hour,
					CacheBackend:         CacheMemory,
					RedisAddr:            "redis:6379",
					RedisDB:              2,
					LoginRateLimit:       100,
					AuditExportInterval:  time.Hour,
					AuditExportPrefix:    "trail",
					S3AccessKey:          "user",
					S3SecretKey:          "password",
					S3Bucket:             "bucket",
					S3Region:             "us-west-1",
					S3BaseEndpoint:       "http://endpoint",
				}
			},
		},
		{
			name: "no flags keep sub-minute lifetimes",
			args: []string{"cmd", "-unrelated", "x"},
			expected: func() *Config {
				return &Config{AccessTokenLifetime: 30 * time.Second, RefreshTokenLifetime: 90 * time.Second}
			},
		},
		{
			name:        "bad integer panics",
			args:        []string{"cmd", "-t", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			config := &Config{AccessTokenLifetime: 30 * time.Second, RefreshTokenLifetime: 90 * time.Second}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected(), config))
		})
	}
}

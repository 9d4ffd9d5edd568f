package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	c := &Config{}
	c.LoadDefaults()
	c.SecretKey = "0123456789abcdef0123456789abcdef"
	return c
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.HTTPAddress)
	assert.Equal(t, "HS512", c.SigningAlgorithm)
	assert.Equal(t, 15*time.Minute, c.AccessTokenLifetime)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenLifetime)
	assert.Equal(t, CacheRedis, c.CacheBackend)
	assert.Empty(t, c.SecretKey)
	assert.Zero(t, c.AuditExportInterval)
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-s", "from-flag"}
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

	t.Setenv(EnvSecretKey, "from-env")
	t.Setenv(EnvDatabaseDSN, "postgres://env")
	t.Setenv(EnvRedisPassword, "redis-pw")
	t.Setenv(EnvS3SecretKey, "")

	c := LoadConfig()
	require.NotNil(t, c)
	assert.Equal(t, "from-env", c.SecretKey)
	assert.Equal(t, "postgres://env", c.DatabaseDSN)
	assert.Equal(t, "redis-pw", c.RedisPassword)
	assert.Empty(t, c.S3SecretKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults plus key", func(*Config) {}, true},
		{"memory backend", func(c *Config) { c.CacheBackend = CacheMemory; c.RedisAddr = "" }, true},
		{"missing key", func(c *Config) { c.SecretKey = "" }, false},
		{"RS256 not supported", func(c *Config) { c.SigningAlgorithm = "RS256" }, false},
		{"no issuer", func(c *Config) { c.Issuer = "" }, false},
		{"no audience", func(c *Config) { c.Audience = "" }, false},
		{"zero access lifetime", func(c *Config) { c.AccessTokenLifetime = 0 }, false},
		{"negative refresh lifetime", func(c *Config) { c.RefreshTokenLifetime = -time.Hour }, false},
		{"refresh shorter than access", func(c *Config) { c.RefreshTokenLifetime = time.Minute }, false},
		{"unknown backend", func(c *Config) { c.CacheBackend = "memcached" }, false},
		{"redis without address", func(c *Config) { c.RedisAddr = "" }, false},
		{"negative rate limit", func(c *Config) { c.LoginRateLimit = -1 }, false},
		{"audit without bucket", func(c *Config) { c.AuditExportInterval = time.Hour; c.S3Bucket = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, common.ErrConfiguration)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	c := validConfig()
	c.SecretKey = ""
	c.Issuer = ""
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret key is not set")
	assert.Contains(t, err.Error(), "issuer is not set")
}

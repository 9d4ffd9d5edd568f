package config

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

// Validate rejects settings the server must not start with. Every error
// wraps common.ErrConfiguration.
func (c *Config) Validate() error {
	var problems []string

	if c.SecretKey == "" {
		problems = append(problems, "secret key is not set")
	}
	switch c.SigningAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		problems = append(problems, fmt.Sprintf("unsupported signing algorithm %q", c.SigningAlgorithm))
	}
	if c.Issuer == "" {
		problems = append(problems, "issuer is not set")
	}
	if c.Audience == "" {
		problems = append(problems, "audience is not set")
	}
	if c.AccessTokenLifetime <= 0 {
		problems = append(problems, "access token lifetime must be positive")
	}
	if c.RefreshTokenLifetime <= 0 {
		problems = append(problems, "refresh token lifetime must be positive")
	}
	if c.RefreshTokenLifetime > 0 && c.RefreshTokenLifetime < c.AccessTokenLifetime {
		problems = append(problems, "refresh token lifetime is shorter than access token lifetime")
	}
	switch c.CacheBackend {
	case CacheRedis:
		if c.RedisAddr == "" {
			problems = append(problems, "redis address is not set")
		}
	case CacheMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown cache backend %q", c.CacheBackend))
	}
	if c.LoginRateLimit < 0 {
		problems = append(problems, "login rate limit must not be negative")
	}
	if c.AuditExportInterval < 0 {
		problems = append(problems, "audit export interval must not be negative")
	}
	if c.AuditExportInterval > 0 && c.S3Bucket == "" {
		problems = append(problems, "audit export needs an S3 bucket")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", common.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

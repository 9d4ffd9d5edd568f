package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
)

var serverFlags = []string{
	"-a", "-d", "-s", "-alg", "-iss", "-aud", "-t", "-r",
	"-cache", "-redis", "-redis-db", "-l", "-log",
	"-audit-interval", "-audit-prefix",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags overlays command-line flags onto config.
//
//	-a string          HTTP bind address (":8080")
//	-d string          PostgreSQL DSN
//	-s string          JWT HMAC secret key
//	-alg string        signing algorithm (HS256, HS384, HS512)
//	-iss string        token issuer
//	-aud string        token audience
//	-t int             access token lifetime, minutes
//	-r int             refresh token lifetime, minutes
//	-cache string      session cache backend (redis, memory)
//	-redis string      redis address
//	-redis-db int      redis database number
//	-l int             login rate limit, requests per minute per client (0 = off)
//	-log string        log level
//	-audit-interval d  audit export interval ("1h"; 0 = off)
//	-audit-prefix s    audit export key prefix
//	-u/-p string       S3 access key / secret key
//	-b/-g/-e string    S3 bucket / region / base endpoint
//
// Malformed flags panic.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddress, "a", config.HTTPAddress, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.SigningAlgorithm, "alg", config.SigningAlgorithm, "signing algorithm")
	fs.StringVar(&config.Issuer, "iss", config.Issuer, "token issuer")
	fs.StringVar(&config.Audience, "aud", config.Audience, "token audience")

	accessLifetime := fs.Int("t", int(config.AccessTokenLifetime.Minutes()), "access token lifetime (in minutes)")
	refreshLifetime := fs.Int("r", int(config.RefreshTokenLifetime.Minutes()), "refresh token lifetime (in minutes)")

	fs.StringVar(&config.CacheBackend, "cache", config.CacheBackend, "session cache backend")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.IntVar(&config.RedisDB, "redis-db", config.RedisDB, "redis database")
	fs.IntVar(&config.LoginRateLimit, "l", config.LoginRateLimit, "login rate limit per minute")
	fs.StringVar(&config.LogLevel, "log", config.LogLevel, "log level")

	fs.DurationVar(&config.AuditExportInterval, "audit-interval", config.AuditExportInterval, "audit export interval")
	fs.StringVar(&config.AuditExportPrefix, "audit-prefix", config.AuditExportPrefix, "audit export prefix")

	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Only explicit flags replace lifetimes; sub-minute JSON values survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenLifetime = time.Duration(*accessLifetime) * time.Minute
		case "r":
			config.RefreshTokenLifetime = time.Duration(*refreshLifetime) * time.Minute
		}
	})
}

func applyEnv(config *Config) {
	flagx.EnvOverride(&config.SecretKey, EnvSecretKey)
	flagx.EnvOverride(&config.DatabaseDSN, EnvDatabaseDSN)
	flagx.EnvOverride(&config.RedisPassword, EnvRedisPassword)
	flagx.EnvOverride(&config.S3SecretKey, EnvS3SecretKey)
}

package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept "15m" style
// strings or integer nanoseconds.
type JsonConfig struct {
	HTTPAddress string `json:"http_address"`
	DatabaseDSN string `json:"database_dsn"`
	LogLevel    string `json:"log_level"`

	SecretKey            string         `json:"secret_key"`
	SigningAlgorithm     string         `json:"signing_algorithm"`
	Issuer               string         `json:"issuer"`
	Audience             string         `json:"audience"`
	AccessTokenLifetime  timex.Duration `json:"access_token_lifetime"`
	RefreshTokenLifetime timex.Duration `json:"refresh_token_lifetime"`
	SecureCookies        bool           `json:"secure_cookies"`

	CacheBackend  string `json:"cache_backend"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	LoginRateLimit int `json:"login_rate_limit"`

	AuditExportInterval timex.Duration `json:"audit_export_interval"`
	AuditExportPrefix   string         `json:"audit_export_prefix"`

	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddress:          c.HTTPAddress,
		DatabaseDSN:          c.DatabaseDSN,
		LogLevel:             c.LogLevel,
		SecretKey:            c.SecretKey,
		SigningAlgorithm:     c.SigningAlgorithm,
		Issuer:               c.Issuer,
		Audience:             c.Audience,
		AccessTokenLifetime:  timex.Duration{Duration: c.AccessTokenLifetime},
		RefreshTokenLifetime: timex.Duration{Duration: c.RefreshTokenLifetime},
		SecureCookies:        c.SecureCookies,
		CacheBackend:         c.CacheBackend,
		RedisAddr:            c.RedisAddr,
		RedisPassword:        c.RedisPassword,
		RedisDB:              c.RedisDB,
		LoginRateLimit:       c.LoginRateLimit,
		AuditExportInterval:  timex.Duration{Duration: c.AuditExportInterval},
		AuditExportPrefix:    c.AuditExportPrefix,
		S3AccessKey:          c.S3AccessKey,
		S3SecretKey:          c.S3SecretKey,
		S3Bucket:             c.S3Bucket,
		S3Region:             c.S3Region,
		S3BaseEndpoint:       c.S3BaseEndpoint,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddress = j.HTTPAddress
	c.DatabaseDSN = j.DatabaseDSN
	c.LogLevel = j.LogLevel
	c.SecretKey = j.SecretKey
	c.SigningAlgorithm = j.SigningAlgorithm
	c.Issuer = j.Issuer
	c.Audience = j.Audience
	c.AccessTokenLifetime = j.AccessTokenLifetime.Duration
	c.RefreshTokenLifetime = j.RefreshTokenLifetime.Duration
	c.SecureCookies = j.SecureCookies
	c.CacheBackend = j.CacheBackend
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.LoginRateLimit = j.LoginRateLimit
	c.AuditExportInterval = j.AuditExportInterval.Duration
	c.AuditExportPrefix = j.AuditExportPrefix
	c.S3AccessKey = j.S3AccessKey
	c.S3SecretKey = j.S3SecretKey
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
}

// parseJson overlays the file named by -c/-config onto config. Keys missing
// from the file keep their current values. An unreadable file or invalid
// JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}

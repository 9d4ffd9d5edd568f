package config

import "time"

// Config holds runtime settings for the sessionkeeper CLI.
type Config struct {
	// ServerURL is the base URL of the session server, e.g. "http://127.0.0.1:8080".
	ServerURL      string
	RequestTimeout time.Duration
}

func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig applies defaults, then the JSON file (-c/-config), then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

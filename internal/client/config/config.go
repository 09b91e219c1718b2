package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the notematic CLI.
//
// Fields:
//   - ServerURL: base URL of the auth server's HTTP API.
//   - RequestTimeout: upper bound for a single API call.
//   - SessionFile: where tokens are kept between runs.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration
	SessionFile    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
	c.SessionFile = defaultSessionFile()
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".notematic-session.json"
	}
	return filepath.Join(home, ".notematic", "session.json")
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the runtime configuration for the dashboard process.
type Config struct {
	Addr       string `yaml:"listen_addr"` // Operator UI listen address
	BackendURL string `yaml:"backend_url"` // Affectra backend origin
	TokenPage  string `yaml:"token_page"`  // Backend page carrying the csrf-token meta tag
	CSRFToken  string `yaml:"csrf_token"`  // Skips token discovery when set

	StatsInterval   time.Duration `yaml:"stats_interval"`
	CamerasInterval time.Duration `yaml:"cameras_interval"`
	BannerTimeout   time.Duration `yaml:"banner_timeout"` // Success and camera-error banners
	StatusTimeout   time.Duration `yaml:"status_timeout"` // Camera selection status line
	RequestTimeout  time.Duration `yaml:"request_timeout"` // 0 = transport default

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "text" or "json"
	LogColor  bool   `yaml:"log_color"`

	path string
}

// DefaultConfig returns a config aligned with the browser dashboard timings.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8090",
		BackendURL:      "http://localhost:5000",
		TokenPage:       "/",
		StatsInterval:   30 * time.Second,
		CamerasInterval: 10 * time.Second,
		BannerTimeout:   5 * time.Second,
		StatusTimeout:   3 * time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
		LogColor:        true,
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	cfg.path = path
	return cfg, nil
}

// Path returns the file the config was loaded from, if any.
func (c Config) Path() string { return c.path }

// ApplyEnv overrides fields from AFFECTRA_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("AFFECTRA_BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
	if v := getenv("AFFECTRA_CSRF_TOKEN"); v != "" {
		c.CSRFToken = v
	}
	if v := getenv("AFFECTRA_LISTEN_ADDR"); v != "" {
		c.Addr = v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("backend_url is required")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend_url %q must be an absolute http(s) URL", c.BackendURL)
	}
	if c.Addr == "" {
		return errors.New("listen_addr is required")
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"stats_interval", c.StatsInterval},
		{"cameras_interval", c.CamerasInterval},
		{"banner_timeout", c.BannerTimeout},
		{"status_timeout", c.StatusTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.d)
		}
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format %q must be text or json", c.LogFormat)
	}
	return nil
}

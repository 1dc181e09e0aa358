package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"expensetracker/internal/log"
)

const (
	BackendHTTP   = "http"
	BackendMemory = "memory"
)

type Config struct {
	// Remote service
	BaseURL     string        `env:"EXPENSE_API_BASE_URL"`
	Backend     string        `env:"EXPENSE_BACKEND"`
	HTTPTimeout time.Duration `env:"EXPENSE_HTTP_TIMEOUT"`

	// Memory backend seed directory
	DataDirectory string `env:"EXPENSE_DATA_DIR"`

	LogLevel     string `env:"EXPENSE_LOG_LEVEL"`
	StrictDelete bool   `env:"EXPENSE_STRICT_DELETE"`

	// Filled from the profile only
	ProfilePath string
	Username    string
}

// Default returns the built-in settings, before profile and environment.
func Default() *Config {
	return &Config{
		BaseURL:       "http://localhost:8080",
		Backend:       BackendHTTP,
		HTTPTimeout:   15 * time.Second,
		DataDirectory: "data",
		LogLevel:      "info",
	}
}

// Load resolves the configuration from the defaults, the TOML profile and
// the environment, in that order of increasing precedence. profilePath
// overrides EXPENSE_PROFILE; with neither set the XDG default is tried. A
// missing profile is not an error.
func Load(profilePath string) (*Config, error) {
	if profilePath == "" {
		profilePath = os.Getenv("EXPENSE_PROFILE")
	}
	if profilePath == "" {
		profilePath = DefaultProfilePath()
	}

	profile, err := LoadProfile(profilePath)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	profile.applyTo(cfg)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.ProfilePath = profilePath
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	validBackends := []string{BackendHTTP, BackendMemory}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.Backend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid backend '%s': must be one of %v", c.Backend, validBackends))
	}

	if c.Backend == BackendHTTP {
		if c.BaseURL == "" {
			errors = append(errors, "base URL cannot be empty when using http backend")
		} else if u, err := url.Parse(c.BaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid base URL '%s': %v", c.BaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		} else if u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid base URL '%s': missing host", c.BaseURL))
		}
	}

	if c.HTTPTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at least 1 second", c.HTTPTimeout))
	} else if c.HTTPTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at most 5 minutes", c.HTTPTimeout))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

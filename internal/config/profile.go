package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Profile is the optional TOML file, e.g.
//
//	[service]
//	base_url = "https://expenses.example.com"
//	backend = "http"
//	timeout = "10s"
//
//	[session]
//	username = "alice"
type Profile struct {
	Service ServiceProfile `toml:"service"`
	Session SessionProfile `toml:"session"`
}

type ServiceProfile struct {
	BaseURL *string `toml:"base_url"`
	Backend *string `toml:"backend"`
	Timeout *string `toml:"timeout"`
}

type SessionProfile struct {
	Username *string `toml:"username"`
}

// LoadProfile reads a TOML profile from the given path. Missing file is not an error.
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return Profile{}, fmt.Errorf("profile path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("stat profile: %w", err)
	}
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if p.Service.Timeout != nil {
		if _, err := time.ParseDuration(*p.Service.Timeout); err != nil {
			return Profile{}, fmt.Errorf("decode profile: service.timeout: %w", err)
		}
	}
	return p, nil
}

func (p Profile) applyTo(c *Config) {
	if p.Service.BaseURL != nil {
		c.BaseURL = *p.Service.BaseURL
	}
	if p.Service.Backend != nil {
		c.Backend = *p.Service.Backend
	}
	if p.Service.Timeout != nil {
		if d, err := time.ParseDuration(*p.Service.Timeout); err == nil {
			c.HTTPTimeout = d
		}
	}
	if p.Session.Username != nil {
		c.Username = *p.Session.Username
	}
}

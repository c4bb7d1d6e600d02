// Package gateway wires the security interceptor in front of an HTTP
// service: configuration, realm construction, and the protected server.
package gateway

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the gateway configuration.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen"`
	// DBPath is the SQLite account database path.
	DBPath string `yaml:"db"`
	// Passphrase protects credential tokens. Never logged.
	Passphrase string `yaml:"passphrase"`
	// Base64Transport declares the token header as base64 text.
	// HTTP transport always requires this; it defaults to true.
	Base64Transport bool `yaml:"base64"`
	// AlwaysReauthenticate forces a fresh login on every request.
	AlwaysReauthenticate bool `yaml:"reauthenticate"`
	// RequiredPermissions is the ordered permission set; any one admits.
	RequiredPermissions []string `yaml:"permissions"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8470",
		DBPath:          "gatewarden.db",
		Base64Transport: true,
	}
}

// LoadFile merges settings from a YAML file into the config.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration overrides from environment variables.
func (c *Config) LoadFromEnv() error {
	if addr := os.Getenv("GATEWARDEN_LISTEN"); addr != "" {
		c.ListenAddr = addr
	}
	if db := os.Getenv("GATEWARDEN_DB"); db != "" {
		c.DBPath = db
	}
	if pass := os.Getenv("GATEWARDEN_PASSPHRASE"); pass != "" {
		c.Passphrase = pass
	}
	if v := os.Getenv("GATEWARDEN_BASE64"); v != "" {
		c.Base64Transport = v == "true" || v == "1"
	}
	if v := os.Getenv("GATEWARDEN_REAUTH"); v != "" {
		c.AlwaysReauthenticate = v == "true" || v == "1"
	}
	if v := os.Getenv("GATEWARDEN_PERMISSIONS"); v != "" {
		c.RequiredPermissions = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.RequiredPermissions = append(c.RequiredPermissions, p)
			}
		}
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Passphrase == "" {
		return fmt.Errorf("passphrase is required")
	}
	if !c.Base64Transport {
		return fmt.Errorf("http transport requires base64 tokens")
	}
	return nil
}

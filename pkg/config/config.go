// Package config handles configuration for onboard-runner.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
	"gopkg.in/yaml.v3"
)

// DefaultServerURL is the Appium server used when none is configured.
const DefaultServerURL = "http://127.0.0.1:4723"

// Config represents the runner configuration (config.yaml or config.json).
type Config struct {
	// Automation server
	ServerURL    string                 // Appium endpoint
	Capabilities map[string]interface{} // Passed through unopened to session creation

	// Engine defaults
	Timeout time.Duration // Default element wait, 0 means the step default

	// Outputs
	LogFile string
	Output  string // Report directory
}

// fileConfig is the on-disk shape. Both the snake_case keys of the
// original capability files and camelCase keys are accepted.
type fileConfig struct {
	ServerURI    string                 `yaml:"server_uri"`
	ServerURL    string                 `yaml:"serverURL"`
	DesiredCaps  map[string]interface{} `yaml:"desired_caps"`
	Capabilities map[string]interface{} `yaml:"capabilities"`
	TimeoutMs    int                    `yaml:"timeoutMs"`
	LogFile      string                 `yaml:"logFile"`
	Output       string                 `yaml:"output"`
}

// Load loads configuration from a YAML or JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse decodes configuration content. JSON is read as YAML.
func Parse(data []byte, source string) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s: invalid config", source)).WithCause(err)
	}

	cfg := &Config{
		ServerURL:    first(fc.ServerURL, fc.ServerURI),
		Capabilities: fc.Capabilities,
		Timeout:      time.Duration(fc.TimeoutMs) * time.Millisecond,
		LogFile:      fc.LogFile,
		Output:       fc.Output,
	}
	if cfg.Capabilities == nil {
		cfg.Capabilities = fc.DesiredCaps
	}

	if fc.TimeoutMs < 0 {
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s: timeoutMs must not be negative", source))
	}
	if cfg.ServerURL != "" {
		if err := ValidateServerURL(cfg.ServerURL); err != nil {
			return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s: %v", source, err))
		}
	}
	return cfg, nil
}

// LoadFromDir looks for config.yaml, config.yml or config.json in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, return empty config
	return &Config{}, nil
}

// ValidateServerURL checks that s is an absolute http(s) URL.
func ValidateServerURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", s, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server url %q: expected http(s)://host:port", s)
	}
	return nil
}

// ResolvedServerURL returns the configured server or DefaultServerURL.
func (c *Config) ResolvedServerURL() string {
	if c.ServerURL != "" {
		return c.ServerURL
	}
	return DefaultServerURL
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

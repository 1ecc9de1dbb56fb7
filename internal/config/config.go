// Package config provides configuration loading and management for the index data server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/emory-libraries/fedora-indexdata/internal/telemetry"
)

const (
	// EnvPrefix is the prefix for environment variables read through viper
	EnvPrefix = "INDEXDATA"

	// AllowAnyAddress is the allow-list sentinel that permits every caller
	AllowAnyAddress = "ANY"

	// FedoraPasswordEnv is the environment variable consulted when no password file is configured
	FedoraPasswordEnv = "INDEXDATA_FEDORA_PASSWORD"

	// DefaultFedoraTimeout is used when fedora.timeout is not set
	DefaultFedoraTimeout = 10 * time.Second
)

// ErrConfigurationMissing is returned when a setting required by a request is absent.
// It signals a deployment defect and is never downgraded to a default.
var ErrConfigurationMissing = errors.New("required configuration is missing")

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// SolrURL is the search index endpoint handed to the indexer
	SolrURL string `yaml:"solrUrl,omitempty"`

	// AllowedIPs is the allow-list policy for the discovery endpoint.
	// Either the string "ANY" or a list of addresses.
	AllowedIPs *AllowList `yaml:"allowedIps,omitempty"`

	// ProtectIndexData applies the allow-list to the per-object endpoint as well
	ProtectIndexData bool `yaml:"protectIndexData,omitempty"`

	// TrustedProxies lists the proxy addresses whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the connection address is used.
	TrustedProxies []string `yaml:"trustedProxies,omitempty"`

	Fedora      FedoraConfig       `yaml:"fedora"`
	ObjectTypes []ObjectTypeConfig `yaml:"objectTypes,omitempty"`
	Telemetry   *telemetry.Config  `yaml:"telemetry,omitempty"`
}

// AllowList is the parsed form of the allowedIps setting
type AllowList struct {
	Any       bool
	Addresses []string
}

// UnmarshalYAML accepts either the ANY sentinel, a single address or a list of addresses
func (a *AllowList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var value string
		if err := node.Decode(&value); err != nil {
			return err
		}
		if value == AllowAnyAddress {
			a.Any = true
			a.Addresses = nil
			return nil
		}
		a.Addresses = []string{value}
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		a.Any = false
		a.Addresses = values
		return nil
	default:
		return fmt.Errorf("allowedIps must be %q or a list of addresses", AllowAnyAddress)
	}
}

// Contains reports whether addr is explicitly listed
func (a *AllowList) Contains(addr string) bool {
	return slices.Contains(a.Addresses, addr)
}

// FedoraConfig defines how the repository is reached
type FedoraConfig struct {
	// BaseURL is the Fedora REST root, e.g. http://localhost:8080/fedora/
	BaseURL string `yaml:"baseUrl"`

	// Username for HTTP basic auth; empty means anonymous access
	Username string `yaml:"username,omitempty"`

	// PasswordFile is the path to a file containing the Fedora password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Timeout bounds each request to the repository (e.g. "10s")
	Timeout string `yaml:"timeout,omitempty"`
}

// ObjectTypeConfig registers an object type without code
type ObjectTypeConfig struct {
	Name          string   `yaml:"name"`
	ContentModels []string `yaml:"contentModels,omitempty"`
}

// GetPassword returns the Fedora password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from the INDEXDATA_FEDORA_PASSWORD environment variable
//
// An empty password is valid when no username is configured.
func (f *FedoraConfig) GetPassword() (string, error) {
	if f.PasswordFile != "" {
		cleanPath := filepath.Clean(f.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", f.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(FedoraPasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	if f.Username != "" {
		return "", fmt.Errorf(
			"no fedora password configured: set passwordFile or %s environment variable", FedoraPasswordEnv,
		)
	}
	return "", nil
}

// GetTimeout returns the parsed request timeout, defaulting to DefaultFedoraTimeout
func (f *FedoraConfig) GetTimeout() time.Duration {
	if f.Timeout == "" {
		return DefaultFedoraTimeout
	}
	d, err := time.ParseDuration(f.Timeout)
	if err != nil || d <= 0 {
		return DefaultFedoraTimeout
	}
	return d
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// Parse decodes and validates YAML configuration bytes
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetSolrURL returns the configured search index URL or ErrConfigurationMissing
func (c *Config) GetSolrURL() (string, error) {
	if c == nil || c.SolrURL == "" {
		return "", fmt.Errorf("solrUrl: %w", ErrConfigurationMissing)
	}
	return c.SolrURL, nil
}

// GetAllowList returns the allow-list policy or ErrConfigurationMissing
func (c *Config) GetAllowList() (*AllowList, error) {
	if c == nil || c.AllowedIPs == nil {
		return nil, fmt.Errorf("allowedIps: %w", ErrConfigurationMissing)
	}
	return c.AllowedIPs, nil
}

// TrustsProxy reports whether forwarded headers from addr are honoured
func (c *Config) TrustsProxy(addr string) bool {
	return c != nil && slices.Contains(c.TrustedProxies, addr)
}

// Validate performs validation on the configuration.
// solrUrl and allowedIps are intentionally optional here; requests that need
// them report ErrConfigurationMissing instead.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateFedoraConfig(&c.Fedora); err != nil {
		return err
	}

	if c.SolrURL != "" {
		if _, err := url.ParseRequestURI(c.SolrURL); err != nil {
			return fmt.Errorf("solrUrl must be a valid URL: %w", err)
		}
	}

	for i, p := range c.TrustedProxies {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("trustedProxies[%d] must not be empty", i)
		}
	}

	names := make(map[string]bool)
	for i, ot := range c.ObjectTypes {
		if ot.Name == "" {
			return fmt.Errorf("objectTypes[%d]: name is required", i)
		}
		if names[ot.Name] {
			return fmt.Errorf("objectTypes[%d]: duplicate object type name '%s'", i, ot.Name)
		}
		names[ot.Name] = true

		for j, cm := range ot.ContentModels {
			if strings.TrimSpace(cm) == "" {
				return fmt.Errorf("objectTypes[%d] (%s): contentModels[%d] must not be empty", i, ot.Name, j)
			}
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

// validateFedoraConfig validates repository connection settings
func validateFedoraConfig(f *FedoraConfig) error {
	if f.BaseURL == "" {
		return fmt.Errorf("fedora.baseUrl is required")
	}

	u, err := url.Parse(f.BaseURL)
	if err != nil {
		return fmt.Errorf("fedora.baseUrl must be a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("fedora.baseUrl must use http or https, got %q", u.Scheme)
	}

	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("fedora.timeout must be a valid duration (e.g., '10s', '1m'): %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("fedora.timeout must be positive, got %s", f.Timeout)
		}
	}

	return nil
}

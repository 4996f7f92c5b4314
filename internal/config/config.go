// Package config loads and persists the user-level tool configuration: the
// token service URL, the default username and realm, and the TLS verification
// opt-out. The file lives under the user config directory as YAML and is
// written back when the interactive flow learns a new service URL.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// configDirName is the directory under the user config dir holding both the
// configuration file and the token cache.
const configDirName = "ztoken"

// Config holds the persisted tool settings.
type Config struct {
	// URL of the OAuth access token service.
	URL string `yaml:"url" validate:"omitempty,url"`
	// User is the default username for token requests.
	User string `yaml:"user"`
	// Realm is the default issuer realm.
	Realm string `yaml:"realm"`
	// Insecure disables TLS certificate verification for token requests.
	Insecure bool `yaml:"insecure"`
}

// Validate validates the configuration using struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// DefaultPath returns the default configuration file path.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(configDir, configDirName, "ztoken.yaml"), nil
}

// DefaultCachePath returns the default token cache file path.
func DefaultCachePath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(configDir, configDirName, "tokens.yaml"), nil
}

// Store reads and writes the configuration file.
type Store struct {
	path string
}

// NewStore creates a Store for the given path, or for the default path when
// empty.
func NewStore(path string) (*Store, error) {
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}
	return &Store{path: path}, nil
}

// Path returns the configuration file path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Load reads the configuration file. A missing file yields a zero Config;
// an unreadable or invalid file is an error, since the configuration (unlike
// the token cache) is authoritative.
func (s *Store) Load() (*Config, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return &Config{}, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(s.path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file %s: %w", s.path, err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save rewrites the configuration file, creating the parent directory if
// needed.
func (s *Store) Save(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Package config loads the sync configuration from a YAML file with
// environment variable overrides. Core packages never read the process
// environment themselves; everything is resolved here and passed down.
package config

import (
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/vulnwatch/kevsync/kev"
	"github.com/vulnwatch/kevsync/utils"
)

const (
	defaultStoreURL   = "http://localhost:8529"
	defaultStoreUser  = "root"
	defaultDatabase   = "vulnmgt"
	defaultCollection = "kev"

	defaultRetry       = 5
	defaultConcurrency = 8
)

// Store holds the document store connection parameters.
type Store struct {
	URL        string `yaml:"url"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// Config is the full sync configuration.
type Config struct {
	FeedURL     string `yaml:"feed_url"`
	SchemaURL   string `yaml:"schema_url"`
	Retry       int    `yaml:"retry"`
	Concurrency int    `yaml:"concurrency"`
	Store       Store  `yaml:"store"`
}

// Load reads the configuration file at path, if it exists, and applies
// environment overrides on top of the defaults. A missing file is not an
// error; defaults and environment are enough to run against a local store.
func Load(appFs afero.Fs, path string) (*Config, error) {
	cfg := &Config{
		FeedURL:     kev.DefaultFeedURL,
		SchemaURL:   kev.DefaultSchemaURL,
		Retry:       defaultRetry,
		Concurrency: defaultConcurrency,
		Store: Store{
			URL:        defaultStoreURL,
			User:       defaultStoreUser,
			Database:   defaultDatabase,
			Collection: defaultCollection,
		},
	}

	exists, err := afero.Exists(appFs, path)
	if err != nil {
		return nil, xerrors.Errorf("failed to check config file: %w", err)
	}
	if exists {
		b, err := afero.ReadFile(appFs, path)
		if err != nil {
			return nil, xerrors.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, xerrors.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.FeedURL = utils.LookupEnv("KEVSYNC_FEED_URL", cfg.FeedURL)
	cfg.SchemaURL = utils.LookupEnv("KEVSYNC_SCHEMA_URL", cfg.SchemaURL)
	cfg.Store.URL = utils.LookupEnv("ARANGO_URL", cfg.Store.URL)
	cfg.Store.User = utils.LookupEnv("ARANGO_USER", cfg.Store.User)
	cfg.Store.Password = utils.LookupEnv("ARANGO_PASS", cfg.Store.Password)

	if cfg.Retry < 0 {
		return nil, xerrors.Errorf("retry must not be negative: %d", cfg.Retry)
	}
	if cfg.Concurrency < 1 {
		return nil, xerrors.Errorf("concurrency must be positive: %d", cfg.Concurrency)
	}

	return cfg, nil
}

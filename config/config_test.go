package config_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnwatch/kevsync/config"
	"github.com/vulnwatch/kevsync/kev"
)

func TestLoad(t *testing.T) {
	t.Run("defaults when file is missing", func(t *testing.T) {
		cfg, err := config.Load(afero.NewMemMapFs(), "kevsync.yaml")
		require.NoError(t, err)

		assert.Equal(t, kev.DefaultFeedURL, cfg.FeedURL)
		assert.Equal(t, kev.DefaultSchemaURL, cfg.SchemaURL)
		assert.Equal(t, "http://localhost:8529", cfg.Store.URL)
		assert.Equal(t, "vulnmgt", cfg.Store.Database)
		assert.Equal(t, "kev", cfg.Store.Collection)
		assert.Equal(t, 8, cfg.Concurrency)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		appFs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(appFs, "kevsync.yaml", []byte(`
feed_url: https://feeds.example.com/kev.json
concurrency: 2
store:
  url: http://db.example.com:8529
  user: kevsync
  password: hunter2
  database: cyhy
  collection: kev_docs
`), 0o644))

		cfg, err := config.Load(appFs, "kevsync.yaml")
		require.NoError(t, err)

		assert.Equal(t, "https://feeds.example.com/kev.json", cfg.FeedURL)
		assert.Equal(t, kev.DefaultSchemaURL, cfg.SchemaURL)
		assert.Equal(t, 2, cfg.Concurrency)
		assert.Equal(t, "http://db.example.com:8529", cfg.Store.URL)
		assert.Equal(t, "kevsync", cfg.Store.User)
		assert.Equal(t, "cyhy", cfg.Store.Database)
		assert.Equal(t, "kev_docs", cfg.Store.Collection)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		appFs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(appFs, "kevsync.yaml", []byte(`
feed_url: https://feeds.example.com/kev.json
store:
  url: http://db.example.com:8529
`), 0o644))

		t.Setenv("KEVSYNC_FEED_URL", "https://mirror.example.com/kev.json")
		t.Setenv("ARANGO_URL", "http://other.example.com:8529")
		t.Setenv("ARANGO_PASS", "secret")

		cfg, err := config.Load(appFs, "kevsync.yaml")
		require.NoError(t, err)

		assert.Equal(t, "https://mirror.example.com/kev.json", cfg.FeedURL)
		assert.Equal(t, "http://other.example.com:8529", cfg.Store.URL)
		assert.Equal(t, "secret", cfg.Store.Password)
	})

	t.Run("sad path, malformed yaml", func(t *testing.T) {
		appFs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(appFs, "kevsync.yaml", []byte(`feed_url: [`), 0o644))

		_, err := config.Load(appFs, "kevsync.yaml")
		assert.ErrorContains(t, err, "failed to parse config file")
	})

	t.Run("sad path, non-positive concurrency", func(t *testing.T) {
		appFs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(appFs, "kevsync.yaml", []byte(`concurrency: 0`), 0o644))

		_, err := config.Load(appFs, "kevsync.yaml")
		assert.ErrorContains(t, err, "concurrency must be positive")
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vidsite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "slug", cfg.Site.Naming)
	assert.Equal(t, 10000, cfg.Quota.DailyCap)
	assert.Equal(t, "America/Los_Angeles", cfg.Quota.Timezone)
	assert.Equal(t, 7, cfg.Sync.StalenessDays)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.Publish.DefaultCommitMessage)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
site:
  base_url: https://videos.example.com
  repo_path: /srv/site
  naming: id
channel:
  handle: "@example"
quota:
  daily_cap: 5000
  timezone: UTC
sync:
  staleness_days: 3
  max_pages: 10
publish:
  enable_indexnow: true
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://videos.example.com", cfg.Site.BaseURL)
	assert.Equal(t, "id", cfg.Site.Naming)
	assert.Equal(t, "@example", cfg.Channel.Handle)
	assert.Equal(t, 5000, cfg.Quota.DailyCap)
	assert.Equal(t, "UTC", cfg.Quota.Timezone)
	assert.Equal(t, 3, cfg.Sync.StalenessDays)
	assert.Equal(t, 10, cfg.Sync.MaxPages)
	assert.True(t, cfg.Publish.EnableIndexNow)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvExpansionInFile(t *testing.T) {
	t.Setenv("TEST_VIDSITE_KEY", "secret-from-env")
	path := writeConfig(t, `
channel:
  api_key: ${TEST_VIDSITE_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Channel.APIKey)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	t.Setenv("VIDSITE_API_KEY", "override-key")
	t.Setenv("VIDSITE_DAILY_CAP", "250")
	path := writeConfig(t, `
channel:
  api_key: file-key
quota:
  daily_cap: 5000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override-key", cfg.Channel.APIKey)
	assert.Equal(t, 250, cfg.Quota.DailyCap)
}

func TestValidateRejectsBadNaming(t *testing.T) {
	path := writeConfig(t, `
site:
  naming: uuid
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site.naming")
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	path := writeConfig(t, `
quota:
  timezone: Mars/Olympus_Mons
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota.timezone")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPathHelpers(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/vidsite"}
	assert.Equal(t, "/var/lib/vidsite/store", cfg.StoreDir())
	assert.Equal(t, "/var/lib/vidsite/quota.json", cfg.QuotaPath())
	assert.Equal(t, "/var/lib/vidsite/preview", cfg.PreviewDir())
}

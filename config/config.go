// Package config loads the application configuration from a YAML file with
// environment expansion and VIDSITE_* overrides. A .env file next to the
// working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"vidsite/quota"
	"vidsite/render"
)

// Config is the full application configuration.
type Config struct {
	Site     SiteConfig    `yaml:"site"`
	Channel  ChannelConfig `yaml:"channel"`
	Quota    QuotaConfig   `yaml:"quota"`
	Sync     SyncConfig    `yaml:"sync"`
	Publish  PublishConfig `yaml:"publish"`
	DataDir  string        `yaml:"data_dir"`
	LogLevel string        `yaml:"log_level"`
}

// SiteConfig describes the published site and its working tree.
type SiteConfig struct {
	BaseURL  string `yaml:"base_url"`
	RepoPath string `yaml:"repo_path"`
	Naming   string `yaml:"naming"` // "slug" or "id"
}

// ChannelConfig identifies the source channel and credentials.
type ChannelConfig struct {
	Handle string `yaml:"handle"`
	APIKey string `yaml:"api_key"`
}

// QuotaConfig bounds daily API spend.
type QuotaConfig struct {
	DailyCap int    `yaml:"daily_cap"`
	Timezone string `yaml:"timezone"`
}

// SyncConfig tunes refresh and discovery passes.
type SyncConfig struct {
	StalenessDays int `yaml:"staleness_days"`
	MaxPages      int `yaml:"max_pages"`
}

// PublishConfig tunes the publish pipeline.
type PublishConfig struct {
	EnableIndexNow       bool   `yaml:"enable_indexnow"`
	DefaultCommitMessage string `yaml:"default_commit_message"`
	TemplateDir          string `yaml:"template_dir"`
}

// Load reads the configuration file at path, expanding ${VAR} references
// from the environment after loading a .env file if one exists. When path
// is empty, defaults apply with environment overrides only.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VIDSITE_API_KEY"); v != "" {
		c.Channel.APIKey = v
	}
	if v := os.Getenv("VIDSITE_CHANNEL_HANDLE"); v != "" {
		c.Channel.Handle = v
	}
	if v := os.Getenv("VIDSITE_SITE_URL"); v != "" {
		c.Site.BaseURL = v
	}
	if v := os.Getenv("VIDSITE_REPO_PATH"); v != "" {
		c.Site.RepoPath = v
	}
	if v := os.Getenv("VIDSITE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("VIDSITE_DAILY_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Quota.DailyCap = n
		}
	}
	if v := os.Getenv("VIDSITE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) setDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Site.Naming == "" {
		c.Site.Naming = render.NamingSlug
	}
	if c.Quota.DailyCap == 0 {
		c.Quota.DailyCap = quota.DefaultDailyCap
	}
	if c.Quota.Timezone == "" {
		c.Quota.Timezone = quota.DefaultTimezone
	}
	if c.Sync.StalenessDays == 0 {
		c.Sync.StalenessDays = 7
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Publish.DefaultCommitMessage == "" {
		c.Publish.DefaultCommitMessage = "Update site content"
	}
}

// Validate checks fields whose bad values would only surface deep inside a
// run. Credentials are not required here; operations that need them fail
// with a configuration error at the point of use.
func (c *Config) Validate() error {
	if c.Site.Naming != render.NamingSlug && c.Site.Naming != render.NamingID {
		return fmt.Errorf("site.naming must be %q or %q, got %q", render.NamingSlug, render.NamingID, c.Site.Naming)
	}
	if c.Quota.DailyCap < 0 {
		return fmt.Errorf("quota.daily_cap must not be negative, got %d", c.Quota.DailyCap)
	}
	if c.Sync.StalenessDays < 0 {
		return fmt.Errorf("sync.staleness_days must not be negative, got %d", c.Sync.StalenessDays)
	}
	if c.Sync.MaxPages < 0 {
		return fmt.Errorf("sync.max_pages must not be negative, got %d", c.Sync.MaxPages)
	}
	if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
		return fmt.Errorf("quota.timezone: %w", err)
	}
	return nil
}

// StoreDir is where the record store keeps its documents.
func (c *Config) StoreDir() string { return filepath.Join(c.DataDir, "store") }

// QuotaPath is the quota ledger document.
func (c *Config) QuotaPath() string { return filepath.Join(c.DataDir, "quota.json") }

// PreviewDir is where dry runs stage their artifacts.
func (c *Config) PreviewDir() string { return filepath.Join(c.DataDir, "preview") }

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/laurenamos/sustainable-model-chooser/internal/openrouter"
)

// Config holds all configuration for openrouter-sync.
type Config struct {
	CatalogPath string        `mapstructure:"catalog_path"`
	SourceURL   string        `mapstructure:"source_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	UserAgent   string        `mapstructure:"user_agent"`
	CacheDir    string        `mapstructure:"cache_dir"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	Revalidate  bool          `mapstructure:"revalidate"`
	DryRun      bool          `mapstructure:"dry_run"`
	AtomicWrite bool          `mapstructure:"atomic_write"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"`
	GitHub      GitHubConfig  `mapstructure:"github"`
	Git         GitConfig     `mapstructure:"git"`
}

// GitHubConfig holds GitHub-related settings.
type GitHubConfig struct {
	Token      string `mapstructure:"token"`
	Owner      string `mapstructure:"owner"`
	Repo       string `mapstructure:"repo"`
	BaseBranch string `mapstructure:"base_branch"`
}

// GitConfig holds the commit identity used when publishing changes.
type GitConfig struct {
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
}

// PublishEnabled reports whether a pull request should be opened after a sync.
func (c *Config) PublishEnabled() bool {
	return c.GitHub.Token != "" && c.GitHub.Owner != "" && c.GitHub.Repo != ""
}

// Load reads configuration from file, environment, .env and defaults.
func Load(cfgFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()

	// Defaults
	v.SetDefault("catalog_path", filepath.Join("data", "models.json"))
	v.SetDefault("source_url", openrouter.DefaultURL)
	v.SetDefault("timeout", "30s")
	v.SetDefault("rate_limit", 0)
	v.SetDefault("user_agent", "openrouter-sync")
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("cache_ttl", "24h")
	v.SetDefault("revalidate", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("atomic_write", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("github.token", "")
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.base_branch", "main")
	v.SetDefault("git.author_name", "openrouter-sync")
	v.SetDefault("git.author_email", "openrouter-sync@users.noreply.github.com")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/openrouter-sync")
	}

	// Environment variables
	v.SetEnvPrefix("ORSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars
	_ = v.BindEnv("github.token", "ORSYNC_GITHUB_TOKEN", "GITHUB_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Resolve catalog path to absolute
	if !filepath.IsAbs(cfg.CatalogPath) {
		abs, err := filepath.Abs(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("resolving catalog path: %w", err)
		}
		cfg.CatalogPath = abs
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog_path must not be empty")
	}
	if c.SourceURL == "" {
		return fmt.Errorf("source_url must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %v", c.RateLimit)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// loadEnvFiles loads .env files from the working directory. Variables already
// present in the environment win.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		}
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "openrouter-sync-cache")
	}
	return filepath.Join(dir, "openrouter-sync")
}

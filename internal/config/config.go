// Package config provides configuration loading for ghstore.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	GitHub GitHubConfig

	// DBPath is the SQLite database location.
	DBPath string

	// AppsDir is where installed applications live.
	AppsDir string

	// StagingDir is where downloads are staged before install.
	StagingDir string

	// CheckInterval is the time between background update sweeps.
	CheckInterval time.Duration

	// HistoryRetentionDays bounds how long update history is kept. Zero
	// disables the purge.
	HistoryRetentionDays int
}

// GitHubConfig holds the API and OAuth settings.
type GitHubConfig struct {
	// ClientID is the OAuth app client id used for the device flow.
	ClientID string

	// APIBase is the REST API base URL.
	APIBase string

	// AuthBase is the OAuth endpoint base URL.
	AuthBase string

	// Scope is the OAuth scope requested during login.
	Scope string
}

// Dir returns the ghstore config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/ghstore if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "ghstore"), nil
}

// DataDir returns the ghstore data directory (~/.ghstore).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ghstore"), nil
}

// Load reads configuration from the given file, or from {Dir()}/config.yaml
// when path is empty. A missing config file yields the defaults.
// Every key can also be set through GHSTORE_* environment variables, e.g.
// GHSTORE_GITHUB_CLIENT_ID.
func Load(path string) (*Config, error) {
	v := viper.New()

	dataDir, err := DataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	v.SetDefault("github.client_id", "")
	v.SetDefault("github.api_base", "https://api.github.com")
	v.SetDefault("github.auth_base", "https://github.com")
	v.SetDefault("github.scope", "repo")
	v.SetDefault("db_path", filepath.Join(dataDir, "ghstore.db"))
	v.SetDefault("apps_dir", filepath.Join(dataDir, "apps"))
	v.SetDefault("staging_dir", filepath.Join(dataDir, "staging"))
	v.SetDefault("check_interval", "1h")
	v.SetDefault("history_retention_days", 90)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("GHSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Absence of the default config file is fine; an explicit --config
		// path that cannot be read is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	interval, err := time.ParseDuration(v.GetString("check_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid check_interval: %w", err)
	}

	return &Config{
		GitHub: GitHubConfig{
			ClientID: v.GetString("github.client_id"),
			APIBase:  v.GetString("github.api_base"),
			AuthBase: v.GetString("github.auth_base"),
			Scope:    v.GetString("github.scope"),
		},
		DBPath:               v.GetString("db_path"),
		AppsDir:              v.GetString("apps_dir"),
		StagingDir:           v.GetString("staging_dir"),
		CheckInterval:        interval,
		HistoryRetentionDays: v.GetInt("history_retention_days"),
	}, nil
}

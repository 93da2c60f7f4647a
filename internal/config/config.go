package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the TOML config file for user preferences.
const ConfigFileName = "config.toml"

// AppDirName is the dot-directory holding config, logs and the cache database.
const AppDirName = ".copilot-chat-manager"

// Config represents user-facing configuration in TOML format.
// Every field is a policy knob; absent fields fall back to defaults and a
// missing file is not an error.
type Config struct {
	// StorageRoot overrides the auto-detected VS Code workspaceStorage root.
	StorageRoot string `toml:"storage_root"`

	// MaxRecent caps the most-recent-first session listing (default: 25).
	MaxRecent int `toml:"max_recent"`

	// ConfirmDestructive asks before overwriting files on export (default: true).
	ConfirmDestructive bool `toml:"confirm_destructive"`

	// Watch enables the filesystem watcher that invalidates the scan
	// freshness window when session files change (default: true).
	Watch bool `toml:"watch"`

	// Logs configures structured logging.
	Logs LogSettings `toml:"logs"`
}

// LogSettings mirrors logging.Config for the TOML surface.
type LogSettings struct {
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxRecent:          25,
		ConfirmDestructive: true,
		Watch:              true,
		Logs: LogSettings{
			Level:    "info",
			Format:   "json",
			Compress: true,
		},
	}
}

// AppDir returns the application directory (~/.copilot-chat-manager),
// creating nothing. Falls back to the current directory if the home
// directory cannot be determined.
func AppDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return AppDirName
	}
	return filepath.Join(home, AppDirName)
}

// Load reads config.toml from the app directory. A missing file returns
// defaults; a malformed file returns the parse error alongside defaults so
// callers can keep running.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(AppDir(), ConfigFileName))
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return Default(), err
	}

	cfg.StorageRoot = ExpandTilde(cfg.StorageRoot)
	cfg.Logs.Dir = ExpandTilde(cfg.Logs.Dir)
	if cfg.MaxRecent <= 0 {
		cfg.MaxRecent = 25
	}
	return cfg, nil
}

// ExpandTilde expands a leading ~ to the user's home directory, rejecting
// paths that escape the home directory after cleaning.
func ExpandTilde(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	cleaned := filepath.Clean(filepath.Join(home, path[2:]))
	if !strings.HasPrefix(cleaned, home) {
		return path
	}
	return cleaned
}

// Package config loads and persists the gateway configuration: sandbox
// root, owner identity, allow-lists, rate thresholds, and file locations.
// The configuration never holds the bot token; that lives in the vault.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/flexfinRTP/telecode/internal/policy"
)

const appDirName = "telecode"

// Config is the on-disk configuration, one JSON file in the platform config
// directory. Changes take effect on the next start.
type Config struct {
	// SandboxRoot is the only directory tree the gateway may touch.
	SandboxRoot string `json:"sandbox_root"`
	// OwnerID is the single authorized user identity.
	OwnerID int64 `json:"owner_id"`
	// AllowedBinaries overrides the built-in executable allow-list when
	// non-empty.
	AllowedBinaries []string `json:"allowed_binaries,omitempty"`

	// CommandsPerMinute and AuthFailuresPerMinute are the rate thresholds;
	// zero means the built-in default.
	CommandsPerMinute     int `json:"commands_per_minute,omitempty"`
	AuthFailuresPerMinute int `json:"auth_failures_per_minute,omitempty"`
	// LockoutSeconds is how long an identity stays locked after repeated
	// authentication failures.
	LockoutSeconds int `json:"lockout_seconds,omitempty"`

	// PromptRulesPath optionally extends the built-in prompt screen with a
	// YAML rule file.
	PromptRulesPath string `json:"prompt_rules_path,omitempty"`

	LogLevel  string `json:"log_level"` // debug, info, warn, error, none
	LogPath   string `json:"-"`
	AuditPath string `json:"-"`
	AuditDB   string `json:"-"`
	VaultPath string `json:"-"`
	LockPath  string `json:"-"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, appDirName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", appDirName)
	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Application Support", appDirName)
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, appDirName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appDirName)
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, appDirName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", appDirName)
	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Application Support", appDirName)
	default:
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, appDirName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", appDirName)
	}
}

// Path returns the configuration file location.
func Path() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// DefaultConfig returns the shipped defaults. SandboxRoot and OwnerID are
// intentionally empty; setup fills them in.
func DefaultConfig() *Config {
	stateDir := defaultStateDir()
	return &Config{
		LogLevel:  "info",
		LogPath:   filepath.Join(stateDir, "telecode.log"),
		AuditPath: filepath.Join(stateDir, "audit.jsonl"),
		AuditDB:   filepath.Join(stateDir, "audit.db"),
		VaultPath: filepath.Join(stateDir, "vault.bin"),
		LockPath:  filepath.Join(stateDir, "telecode.lock"),
	}
}

// Load reads the configuration file, applying defaults for derived paths.
// A missing file returns the defaults without error.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads a configuration file from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration with restrictive permissions, creating the
// directory on first use.
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the configuration to an explicit path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Validate reports whether the configuration is complete enough to run.
func (c *Config) Validate() error {
	if c.SandboxRoot == "" {
		return fmt.Errorf("sandbox_root is not set; run setup first")
	}
	info, err := os.Stat(c.SandboxRoot)
	if err != nil {
		return fmt.Errorf("sandbox_root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("sandbox_root %s is not a directory", c.SandboxRoot)
	}
	if c.OwnerID == 0 {
		return fmt.Errorf("owner_id is not set; run setup first")
	}
	for _, name := range c.AllowedBinaries {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("allowed_binaries contains an empty entry")
		}
	}
	if c.CommandsPerMinute < 0 || c.AuthFailuresPerMinute < 0 || c.LockoutSeconds < 0 {
		return fmt.Errorf("rate thresholds must not be negative")
	}
	return nil
}

// Policy builds the command policy from the configured allow-list.
func (c *Config) Policy() *policy.Policy {
	return policy.New(c.AllowedBinaries)
}

// Lockout returns the configured lockout duration, or zero for the default.
func (c *Config) Lockout() time.Duration {
	return time.Duration(c.LockoutSeconds) * time.Second
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.SandboxRoot)
	assert.NotEmpty(t, cfg.AuditPath)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.SandboxRoot = "/work/project"
	cfg.OwnerID = 42
	cfg.AllowedBinaries = []string{"git", "cursor-agent"}
	cfg.CommandsPerMinute = 20
	cfg.LockoutSeconds = 600
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.SandboxRoot, loaded.SandboxRoot)
	assert.Equal(t, cfg.OwnerID, loaded.OwnerID)
	assert.Equal(t, cfg.AllowedBinaries, loaded.AllowedBinaries)
	assert.Equal(t, 20, loaded.CommandsPerMinute)
	assert.Equal(t, 10*time.Minute, loaded.Lockout())
}

func TestSaveRestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, DefaultConfig().SaveTo(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"complete", func(c *Config) {}, false},
		{"missing root", func(c *Config) { c.SandboxRoot = "" }, true},
		{"root not a directory", func(c *Config) {
			f := filepath.Join(root, "file")
			os.WriteFile(f, nil, 0600)
			c.SandboxRoot = f
		}, true},
		{"missing owner", func(c *Config) { c.OwnerID = 0 }, true},
		{"empty binary entry", func(c *Config) { c.AllowedBinaries = []string{"git", " "} }, true},
		{"negative threshold", func(c *Config) { c.CommandsPerMinute = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SandboxRoot = root
			cfg.OwnerID = 42
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedBinaries = []string{"git"}
	p := cfg.Policy()
	assert.True(t, p.Allowed("git"))
	assert.False(t, p.Allowed("cursor-agent"))

	// Empty list falls back to the built-in set.
	cfg.AllowedBinaries = nil
	assert.True(t, cfg.Policy().Allowed("cursor-agent"))
}

//go:build linux

package sandbox

import (
	"os"

	landlock "github.com/landlock-lsm/go-landlock/landlock"

	"github.com/flexfinRTP/telecode/internal/logger"
)

// Confine applies a Landlock policy to this process: read-write inside the
// sandbox root, read-only on the system paths git and the editor CLI need.
// Children inherit the restriction, so a subverted subprocess cannot write
// outside the root even if every other check failed. Best effort: on kernels
// without Landlock the gateway runs with the path checks alone.
// extraRW lists directories outside the root that must stay writable (the
// config dir holding the vault, logs, and audit trail).
func Confine(root string, extraRW ...string) error {
	rules := []landlock.Rule{landlock.RWDirs(root)}

	for _, ro := range []string{"/usr", "/lib", "/lib64", "/bin", "/sbin", "/etc", "/opt", "/proc/self"} {
		if _, err := os.Stat(ro); err == nil {
			rules = append(rules, landlock.RODirs(ro))
		}
	}
	// git reads the user's gitconfig.
	if home, err := os.UserHomeDir(); err == nil {
		rules = append(rules, landlock.RODirs(home).IgnoreIfMissing())
	}
	if tmp := os.TempDir(); tmp != "" {
		rules = append(rules, landlock.RWDirs(tmp).IgnoreIfMissing())
	}
	for _, rw := range extraRW {
		rules = append(rules, landlock.RWDirs(rw).IgnoreIfMissing())
	}

	if err := landlock.V5.BestEffort().RestrictPaths(rules...); err != nil {
		logger.Warn("landlock restriction unavailable, relying on path checks only: %v", err)
		return err
	}
	logger.Info("landlock confinement active (rw: %s)", root)
	return nil
}

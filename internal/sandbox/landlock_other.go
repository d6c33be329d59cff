//go:build !linux

package sandbox

import "github.com/flexfinRTP/telecode/internal/logger"

// Confine is a no-op on platforms without Landlock; path validation remains
// the only filesystem boundary there.
func Confine(root string, extraRW ...string) error {
	logger.Debug("landlock not available on this platform")
	return nil
}

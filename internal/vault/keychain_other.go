//go:build !darwin

package vault

// NewKeychainBackend returns nil on platforms without a supported native
// secret store; callers fall back to the encrypted file backend.
func NewKeychainBackend() Backend { return nil }

//go:build darwin

package vault

import (
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"
)

const (
	keychainService = "TeleCode"
	keychainAccount = "bot_token"
)

// KeychainBackend stores the encrypted record in the macOS Keychain via the
// security(1) command. The record is already ciphertext, so the Keychain
// entry alone is not enough to recover the token off-machine.
type KeychainBackend struct{}

// NewKeychainBackend returns the Keychain backend, or nil if security(1) is
// not available.
func NewKeychainBackend() *KeychainBackend {
	if _, err := exec.LookPath("security"); err != nil {
		return nil
	}
	return &KeychainBackend{}
}

// Kind implements Backend.
func (b *KeychainBackend) Kind() string { return "keychain" }

// Store implements Backend.
func (b *KeychainBackend) Store(data []byte) error {
	// Replace any existing entry first; add-generic-password -U only updates
	// some attributes.
	_ = exec.Command("security", "delete-generic-password",
		"-s", keychainService, "-a", keychainAccount).Run()

	encoded := base64.StdEncoding.EncodeToString(data)
	cmd := exec.Command("security", "add-generic-password",
		"-s", keychainService, "-a", keychainAccount, "-w", encoded, "-U")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("keychain store failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Retrieve implements Backend.
func (b *KeychainBackend) Retrieve() ([]byte, error) {
	cmd := exec.Command("security", "find-generic-password",
		"-s", keychainService, "-a", keychainAccount, "-w")
	out, err := cmd.Output()
	if err != nil {
		return nil, ErrNotFound
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt keychain entry", ErrInvalidPayload)
	}
	return data, nil
}

// Clear implements Backend.
func (b *KeychainBackend) Clear() error {
	_ = exec.Command("security", "delete-generic-password",
		"-s", keychainService, "-a", keychainAccount).Run()
	return nil
}

package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no record has been stored yet.
var ErrNotFound = errors.New("no vault record found")

// Backend stores one opaque encrypted record. Backends never see the
// plaintext token; encryption happens in the vault before the record is
// handed over.
type Backend interface {
	// Kind identifies the backend in the persisted record ("keychain",
	// "file").
	Kind() string
	// Store persists the encrypted record, replacing any previous one.
	Store(data []byte) error
	// Retrieve returns the encrypted record, or ErrNotFound.
	Retrieve() ([]byte, error)
	// Clear removes the record. Clearing an absent record is not an error.
	Clear() error
}

// FileBackend persists the record as a mode-0600 file.
type FileBackend struct {
	path string
}

// NewFileBackend creates a file backend rooted at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Kind implements Backend.
func (b *FileBackend) Kind() string { return "file" }

// Store implements Backend.
func (b *FileBackend) Store(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0700); err != nil {
		return fmt.Errorf("create vault directory: %w", err)
	}
	// Write-then-rename so a crash never leaves a half-written record.
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write vault file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace vault file: %w", err)
	}
	return nil
}

// Retrieve implements Backend.
func (b *FileBackend) Retrieve() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read vault file: %w", err)
	}
	return data, nil
}

// Clear implements Backend.
func (b *FileBackend) Clear() error {
	// Overwrite before unlinking so the ciphertext does not linger on disk.
	if info, err := os.Stat(b.path); err == nil {
		junk := make([]byte, info.Size())
		_ = os.WriteFile(b.path, junk, 0600)
	}
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove vault file: %w", err)
	}
	return nil
}

// Package vault encrypts and stores the bot's authentication token. The key
// is derived from machine-specific material, so a copied record is useless
// on another host; between uses the token lives in locked memory only.
package vault

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/flexfinRTP/telecode/internal/logger"
	"github.com/flexfinRTP/telecode/internal/securemem"
)

// ErrInvalidTokenFormat is returned when a stored token does not look like a
// Telegram bot token.
var ErrInvalidTokenFormat = errors.New("invalid token format")

// tokenFormat matches Telegram bot tokens: numeric bot ID, colon, secret.
var tokenFormat = regexp.MustCompile(`^\d{8,10}:[A-Za-z0-9_-]{35,40}$`)

// Vault manages the single bot token: encrypt on store, decrypt on
// retrieve, locked memory in between.
type Vault struct {
	mu       sync.Mutex
	backend  Backend
	material []byte
	cached   *securemem.String
	log      *logger.Logger
}

// Option customizes vault construction.
type Option func(*Vault)

// WithMaterial overrides the machine-derived key material. Tests use this to
// simulate a record copied to a different machine.
func WithMaterial(material []byte) Option {
	return func(v *Vault) { v.material = material }
}

// New creates a vault over the given backend.
func New(backend Backend, opts ...Option) *Vault {
	v := &Vault{
		backend: backend,
		log:     logger.Global().WithPrefix("vault"),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.material == nil {
		v.material = MachineMaterial()
	}
	return v
}

// DefaultBackend prefers the platform secret store and falls back to an
// encrypted file at fallbackPath.
func DefaultBackend(fallbackPath string) Backend {
	if kb := NewKeychainBackend(); kb != nil {
		return kb
	}
	return NewFileBackend(fallbackPath)
}

// ValidateTokenFormat reports whether token matches the expected shape.
func ValidateTokenFormat(token string) bool {
	return tokenFormat.MatchString(token)
}

// Store validates, encrypts, and persists the token.
func (v *Vault) Store(token string) error {
	if !ValidateTokenFormat(token) {
		return ErrInvalidTokenFormat
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	payload, err := encryptBytes([]byte(token), v.material)
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}
	payload.Backend = v.backend.Kind()

	data, err := EncodePayload(payload)
	if err != nil {
		return err
	}
	if err := v.backend.Store(data); err != nil {
		return err
	}

	if v.cached != nil {
		v.cached.Destroy()
	}
	v.cached = securemem.NewString(token)
	v.log.Info("token stored (%s backend)", v.backend.Kind())
	return nil
}

// Retrieve returns the token in locked memory. The vault retains ownership
// of the returned value; callers must not destroy it. Fails closed: a record
// that cannot be decrypted is an error, never an empty token.
func (v *Vault) Retrieve() (*securemem.String, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cached != nil && !v.cached.IsEmpty() {
		return v.cached, nil
	}

	data, err := v.backend.Retrieve()
	if err != nil {
		return nil, err
	}
	payload, err := DecodePayload(data)
	if err != nil {
		return nil, err
	}
	plaintext, err := decryptBytes(payload, v.material)
	if err != nil {
		return nil, err
	}

	// NewStringFromBytes wipes plaintext for us.
	v.cached = securemem.NewStringFromBytes(plaintext)
	return v.cached, nil
}

// Clear removes the stored record and wipes the in-memory copy.
func (v *Vault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cached != nil {
		v.cached.Destroy()
		v.cached = nil
	}
	return v.backend.Clear()
}

// Close wipes the in-memory token without touching persisted state.
func (v *Vault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cached != nil {
		v.cached.Destroy()
		v.cached = nil
	}
}

// MaskToken renders a token for display, keeping only enough characters to
// recognize it.
func MaskToken(token string) string {
	if len(token) < 10 {
		return "[INVALID]"
	}
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 || len(parts[1]) < 6 {
		return "[INVALID]"
	}
	id, secret := parts[0], parts[1]
	maskedID := id[:3] + strings.Repeat("*", len(id)-3)
	maskedSecret := secret[:3] + strings.Repeat("*", len(secret)-6) + secret[len(secret)-3:]
	return maskedID + ":" + maskedSecret
}

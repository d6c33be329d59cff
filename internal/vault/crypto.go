package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// payloadVersion allows the encryption format to evolve while remaining
// backward compatible.
const payloadVersion = 1

var (
	// ErrDecryptionFailed is returned when the stored record cannot be
	// decrypted with this machine's derivation material. Callers must treat
	// this as fatal, never as "no token configured".
	ErrDecryptionFailed = errors.New("vault decryption failed")
	// ErrInvalidPayload indicates the stored record is malformed.
	ErrInvalidPayload = errors.New("invalid vault payload")
)

// Payload is the encrypted record handed to a storage backend. The
// derivation salt travels with the ciphertext; the key material never does.
type Payload struct {
	Version    int    `json:"version"`
	Backend    string `json:"backend"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// encryptBytes seals data with AES-256-GCM under a scrypt key derived from
// the machine material and a fresh salt.
func encryptBytes(data, material []byte) (*Payload, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key, err := deriveKey(material, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, data, nil)

	return &Payload{
		Version:    payloadVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// decryptBytes opens a payload with the given machine material. A GCM
// authentication failure (wrong machine, tampered record) surfaces as
// ErrDecryptionFailed.
func decryptBytes(payload *Payload, material []byte) ([]byte, error) {
	if payload == nil {
		return nil, ErrInvalidPayload
	}
	if payload.Version != payloadVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, payload.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(payload.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: decode salt: %v", ErrInvalidPayload, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: decode nonce: %v", ErrInvalidPayload, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: decode ciphertext: %v", ErrInvalidPayload, err)
	}

	key, err := deriveKey(material, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: invalid nonce size", ErrInvalidPayload)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// EncodePayload serializes the payload as JSON bytes.
func EncodePayload(payload *Payload) ([]byte, error) {
	if payload == nil {
		return nil, ErrInvalidPayload
	}
	return json.Marshal(payload)
}

// DecodePayload parses JSON bytes into a Payload instance.
func DecodePayload(data []byte) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.Version == 0 || payload.Salt == "" || payload.Nonce == "" || payload.Ciphertext == "" {
		return nil, ErrInvalidPayload
	}
	return &payload, nil
}

func deriveKey(material, salt []byte) ([]byte, error) {
	key, err := scrypt.Key(material, salt, 1<<15, 8, 1, 32) // N=32768
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

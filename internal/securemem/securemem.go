// Package securemem stores the gateway's one long-lived secret in
// memguard-locked memory so it cannot be read from a core dump, swap, or a
// casual debugger between uses.
package securemem

import (
	"crypto/subtle"

	"github.com/awnumar/memguard"
)

// Init wires memguard's interrupt handler so locked buffers are wiped on
// SIGINT/SIGTERM. Call once from main before any secret is loaded.
func Init() {
	memguard.CatchInterrupt()
}

// Purge wipes every live locked buffer. Call on shutdown.
func Purge() {
	memguard.Purge()
}

// Wipe zeroes a plaintext copy that escaped into regular memory.
func Wipe(data []byte) {
	memguard.WipeBytes(data)
}

// String holds sensitive text in encrypted, locked memory.
type String struct {
	buf     *memguard.LockedBuffer
	invalid bool
}

// NewString creates a secure string from plaintext.
func NewString(plaintext string) *String {
	return &String{buf: memguard.NewBufferFromBytes([]byte(plaintext))}
}

// NewStringFromBytes creates a secure string from bytes.
// NOTE: memguard wipes the input slice.
func NewStringFromBytes(data []byte) *String {
	return &String{buf: memguard.NewBufferFromBytes(data)}
}

// String returns a plaintext copy in regular memory. Callers should wipe the
// copy when done.
func (s *String) String() string {
	if s == nil || s.invalid || s.buf == nil {
		return ""
	}
	return string(s.buf.Bytes())
}

// Bytes returns a plaintext copy in regular memory. Callers should wipe the
// copy when done.
func (s *String) Bytes() []byte {
	if s == nil || s.invalid || s.buf == nil {
		return nil
	}
	b := s.buf.Bytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// IsEmpty returns true if the string is empty or destroyed.
func (s *String) IsEmpty() bool {
	if s == nil || s.invalid || s.buf == nil {
		return true
	}
	return len(s.buf.Bytes()) == 0
}

// Len returns the plaintext length.
func (s *String) Len() int {
	if s == nil || s.invalid || s.buf == nil {
		return 0
	}
	return len(s.buf.Bytes())
}

// Equal compares against a plaintext string in constant time.
func (s *String) Equal(other string) bool {
	if s == nil || s.invalid || s.buf == nil {
		return other == ""
	}
	return subtle.ConstantTimeCompare(s.buf.Bytes(), []byte(other)) == 1
}

// WithBytes runs fn against a plaintext copy that is wiped afterwards. The
// callback must not retain the slice.
func (s *String) WithBytes(fn func([]byte)) {
	if s == nil || s.invalid || s.buf == nil {
		return
	}
	b := s.buf.Bytes()
	cp := make([]byte, len(b))
	copy(cp, b)
	defer memguard.WipeBytes(cp)
	fn(cp)
}

// Destroy wipes the secret. The string must not be used afterwards.
func (s *String) Destroy() {
	if s == nil || s.invalid {
		return
	}
	if s.buf != nil {
		s.buf.Destroy()
		s.buf = nil
	}
	s.invalid = true
}

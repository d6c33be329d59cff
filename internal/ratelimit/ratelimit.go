// Package ratelimit tracks per-identity request windows: a command-rate
// counter and an authentication-failure counter with lockout. It is the only
// mutable shared state in the access boundary, so check-and-increment is
// atomic under one lock.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Kind selects which counter a check applies to.
type Kind int

const (
	// KindCommand is the per-minute request counter.
	KindCommand Kind = iota
	// KindAuth is the authentication-failure counter with lockout.
	KindAuth
)

// LimitExceededError is returned when the command window is full. The caller
// may retry after RetryAfter.
type LimitExceededError struct {
	RetryAfter time.Duration
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}

// LockedOutError is returned while an identity is locked out after repeated
// authentication failures.
type LockedOutError struct {
	Until time.Time
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("locked out until %s", e.Until.Format(time.RFC3339))
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config holds the limiter thresholds.
type Config struct {
	// CommandsPerWindow is the number of requests allowed per window.
	CommandsPerWindow int
	// AuthFailuresPerWindow is the number of failed authentications per
	// window before lockout.
	AuthFailuresPerWindow int
	// Window is the fixed window length.
	Window time.Duration
	// LockoutDuration is how long an identity stays locked out.
	LockoutDuration time.Duration
}

// DefaultConfig mirrors the shipped thresholds: 30 commands/minute, 5 auth
// failures/minute, 5 minute lockout.
func DefaultConfig() Config {
	return Config{
		CommandsPerWindow:     30,
		AuthFailuresPerWindow: 5,
		Window:                time.Minute,
		LockoutDuration:       5 * time.Minute,
	}
}

type window struct {
	count        int
	start        time.Time
	lockoutUntil time.Time
}

// Limiter is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	cfg      Config
	clock    Clock
	commands map[int64]*window
	failures map[int64]*window
}

// Option customizes limiter construction.
type Option func(*Limiter)

// WithClock injects a clock; tests use this to drive window rollover.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// New creates a limiter. Zero config fields fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Limiter {
	def := DefaultConfig()
	if cfg.CommandsPerWindow <= 0 {
		cfg.CommandsPerWindow = def.CommandsPerWindow
	}
	if cfg.AuthFailuresPerWindow <= 0 {
		cfg.AuthFailuresPerWindow = def.AuthFailuresPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}

	l := &Limiter{
		cfg:      cfg,
		clock:    systemClock{},
		commands: make(map[int64]*window),
		failures: make(map[int64]*window),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one request of the given kind and reports whether it is
// allowed. For KindCommand this counts against the command window; for
// KindAuth it only enforces an active lockout (failures are counted via
// RecordFailure so successful authentications are free).
func (l *Limiter) Check(identity int64, kind Kind) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneLocked(now)

	if err := l.lockoutLocked(identity, now); err != nil {
		return err
	}
	if kind == KindAuth {
		return nil
	}

	w := l.windowLocked(l.commands, identity, now)
	if now.Sub(w.start) >= l.cfg.Window {
		w.count = 0
		w.start = now
	}
	w.count++
	if w.count > l.cfg.CommandsPerWindow {
		retry := w.start.Add(l.cfg.Window).Sub(now)
		if retry <= 0 {
			retry = time.Second
		}
		return &LimitExceededError{RetryAfter: retry}
	}
	return nil
}

// RecordFailure counts one failed authentication. The failure that reaches
// the threshold starts the lockout.
func (l *Limiter) RecordFailure(identity int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w := l.windowLocked(l.failures, identity, now)
	if now.Sub(w.start) >= l.cfg.Window {
		w.count = 0
		w.start = now
	}
	w.count++
	if w.count >= l.cfg.AuthFailuresPerWindow {
		w.lockoutUntil = now.Add(l.cfg.LockoutDuration)
		w.count = 0
	}
}

// Reset clears failures and lockout for an identity after a successful
// authentication.
func (l *Limiter) Reset(identity int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, identity)
}

func (l *Limiter) lockoutLocked(identity int64, now time.Time) error {
	w, ok := l.failures[identity]
	if !ok {
		return nil
	}
	if now.Before(w.lockoutUntil) {
		return &LockedOutError{Until: w.lockoutUntil}
	}
	return nil
}

func (l *Limiter) windowLocked(m map[int64]*window, identity int64, now time.Time) *window {
	w, ok := m[identity]
	if !ok {
		w = &window{start: now}
		m[identity] = w
	}
	return w
}

// pruneLocked drops windows that expired and carry no active lockout, so
// state stays bounded over the process lifetime.
func (l *Limiter) pruneLocked(now time.Time) {
	for _, m := range []map[int64]*window{l.commands, l.failures} {
		for id, w := range m {
			if now.Sub(w.start) >= l.cfg.Window && now.After(w.lockoutUntil) {
				delete(m, id)
			}
		}
	}
}

// Package lockfile enforces the single-gateway rule. Two instances sharing
// one vault and audit trail would interleave writes and double-apply
// commands, so the second process must refuse to start.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrHeld is returned when a live process already holds the lock.
var ErrHeld = errors.New("another instance is running")

// staleAfter treats a lock older than this as abandoned even when a process
// with the recorded PID exists; PIDs get recycled.
const staleAfter = 24 * time.Hour

// Lock is a PID file with stale detection. It guards against concurrent
// processes, not concurrent goroutines.
type Lock struct {
	path string
	held bool
}

// New prepares a lock at path without acquiring it.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Acquire takes the lock, replacing it when the previous holder is gone.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	err := l.create()
	if !os.IsExist(err) {
		return err
	}

	holder, stale := l.inspect()
	if !stale {
		return fmt.Errorf("%w (pid %d)", ErrHeld, holder)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale lock: %w", err)
	}
	if err := l.create(); err != nil {
		if os.IsExist(err) {
			// Another process won the race for the stale slot.
			return ErrHeld
		}
		return err
	}
	return nil
}

// create writes pid and timestamp exclusively.
func (l *Lock) create() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return err
		}
		return fmt.Errorf("create lock: %w", err)
	}
	defer file.Close()

	_, err = fmt.Fprintf(file, "%d\n%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		os.Remove(l.path)
		return fmt.Errorf("write lock: %w", err)
	}
	if err := file.Sync(); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("sync lock: %w", err)
	}
	l.held = true
	return nil
}

// inspect reads the existing lock and decides whether it is stale. An
// unreadable or malformed lock counts as stale; a live holder does not.
func (l *Lock) inspect() (pid int, stale bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, true
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	pid, err = strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || pid <= 0 {
		return 0, true
	}

	if !processAlive(pid) {
		return pid, true
	}
	if len(lines) >= 2 {
		if written, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1])); err == nil {
			if time.Since(written) > staleAfter {
				return pid, true
			}
		}
	}
	return pid, false
}

// Release removes the lock if this process holds it.
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// Held reports whether this process holds the lock.
func (l *Lock) Held() bool { return l.held }

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

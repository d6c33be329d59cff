// Package audit writes the append-only security event trail. Every entry is
// redacted before it touches disk: the configured secret, anything
// credential-shaped, and absolute paths outside the sandbox are replaced
// with placeholders. Recording never fails the caller; a write error
// degrades to a warning because the security decision it describes has
// already been made.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/flexfinRTP/telecode/internal/logger"
	"github.com/flexfinRTP/telecode/internal/secretdetect"
)

// Outcome of an authorization decision.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
)

// Entry is one audit record, serialized as a single JSON line.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Identity  int64     `json:"identity"`
	Action    string    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail"`
}

// absPathPattern matches Unix and Windows absolute paths inside free text.
// Components with spaces are not recognizable here without swallowing the
// surrounding prose; the gate substitutes denied paths before they arrive.
var absPathPattern = regexp.MustCompile(`(?:[A-Za-z]:)?[/\\][\w.~@()+,'=%-]+(?:[/\\][\w.~@()+,'=%-]+)+`)

// Logger appends redacted entries to a JSONL file and optionally mirrors
// them into the query store.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	detector *secretdetect.Detector
	root     string
	store    *Store
	log      *logger.Logger
}

// NewLogger opens (or creates) the audit file in append mode. root is the
// sandbox root; absolute paths outside it are redacted from details.
// detector may be nil, store may be nil.
func NewLogger(path string, detector *secretdetect.Detector, root string, store *Store) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Logger{
		file:     file,
		detector: detector,
		root:     root,
		store:    store,
		log:      logger.Global().WithPrefix("audit"),
	}, nil
}

// Record appends one entry. It never returns an error and never panics; a
// failed write is reported through the application log only.
func (a *Logger) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.Detail = a.redact(e.Detail)

	a.mu.Lock()
	defer a.mu.Unlock()

	line, err := json.Marshal(e)
	if err != nil {
		a.log.Warn("audit entry not serializable: %v", err)
		return
	}
	if a.file != nil {
		if _, err := a.file.Write(append(line, '\n')); err != nil {
			a.log.Warn("audit write failed: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Insert(e); err != nil {
			a.log.Warn("audit store insert failed: %v", err)
		}
	}
}

// Close closes the underlying file. The store is owned by the caller.
func (a *Logger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// redact strips newlines (log injection), credential material, and
// out-of-sandbox absolute paths from a detail string.
func (a *Logger) redact(detail string) string {
	detail = strings.ReplaceAll(detail, "\n", " ")
	detail = strings.ReplaceAll(detail, "\r", " ")

	if a.detector != nil {
		detail = a.detector.Redact(detail)
	}

	if a.root != "" {
		detail = absPathPattern.ReplaceAllStringFunc(detail, func(p string) string {
			if p == a.root || strings.HasPrefix(p, a.root+string(filepath.Separator)) {
				return p
			}
			return "[PATH]"
		})
	}

	const maxDetail = 500
	if len(detail) > maxDetail {
		cut := maxDetail
		// Back off to a rune boundary so the cap never splits UTF-8.
		for cut > 0 && !utf8.RuneStart(detail[cut]) {
			cut--
		}
		detail = detail[:cut] + "..."
	}
	return detail
}

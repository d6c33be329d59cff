// Package sandbox confines all filesystem activity to a single root
// directory. Resolve canonicalizes a caller-supplied path (symlinks and
// dot-segments eliminated) before the containment check, so no string
// games on the raw input can escape the root. On Linux the package also
// applies a Landlock policy so even a subverted subprocess cannot write
// outside the root.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ViolationError is returned when a path resolves outside the sandbox root.
type ViolationError struct {
	Attempted string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("path escapes sandbox: %s", e.Attempted)
}

// BlockedFileError is returned when a path inside the sandbox matches a
// sensitive filename pattern.
type BlockedFileError struct {
	Pattern string
}

func (e *BlockedFileError) Error() string {
	return fmt.Sprintf("access to protected file blocked (%s)", e.Pattern)
}

// blockedFilePatterns are filenames that must never be readable through the
// gateway, sandbox or not: credential files, private keys, certificates.
var blockedFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.env$`),
	regexp.MustCompile(`(?i)\.env\.`),
	regexp.MustCompile(`(?i)id_rsa`),
	regexp.MustCompile(`(?i)id_ed25519`),
	regexp.MustCompile(`(?i)id_ecdsa`),
	regexp.MustCompile(`(?i)\.pem$`),
	regexp.MustCompile(`(?i)\.key$`),
	regexp.MustCompile(`(?i)[/\\]\.ssh([/\\]|$)`),
	regexp.MustCompile(`(?i)credentials`),
	regexp.MustCompile(`(?i)secrets?\.(json|ya?ml)`),
	regexp.MustCompile(`(?i)\.git[/\\]config$`),
	regexp.MustCompile(`(?i)\.gitconfig$`),
	regexp.MustCompile(`(?i)\.npmrc$`),
	regexp.MustCompile(`(?i)\.pypirc$`),
}

// Resolver validates candidate paths against an immutable root. It is pure
// path arithmetic plus the stat calls needed to resolve symlinks; safe for
// concurrent use.
type Resolver struct {
	root string
}

// NewResolver canonicalizes root and returns a resolver jailed to it. The
// root must exist; it is fixed for the resolver's lifetime.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("sandbox root not usable: %w", err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("sandbox root not usable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root is not a directory: %s", canonical)
	}
	return &Resolver{root: canonical}, nil
}

// Root returns the canonical sandbox root.
func (r *Resolver) Root() string { return r.root }

// Resolve canonicalizes candidate (joined onto the root if relative) and
// returns the absolute path if it is the root or a descendant of it and does
// not name a protected file. Any canonicalization failure denies.
func (r *Resolver) Resolve(candidate string) (string, error) {
	if strings.ContainsRune(candidate, 0) {
		return "", &ViolationError{Attempted: "<contains NUL>"}
	}

	p := candidate
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.root, p)
	}

	canonical, err := canonicalize(p)
	if err != nil {
		// Dangling symlink, permission error, cyclic link: fail closed.
		return "", &ViolationError{Attempted: candidate}
	}

	if !contains(r.root, canonical) {
		return "", &ViolationError{Attempted: candidate}
	}

	for _, pat := range blockedFilePatterns {
		if pat.MatchString(canonical) {
			return "", &BlockedFileError{Pattern: pat.String()}
		}
	}

	return canonical, nil
}

// canonicalize resolves symlinks for the deepest existing ancestor of p and
// rejoins the non-existent remainder. p must already be absolute and is
// cleaned first, so no dot-segments survive into the remainder.
func canonicalize(p string) (string, error) {
	p = filepath.Clean(p)

	existing := p
	var suffix []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		suffix = append([]string{filepath.Base(existing)}, suffix...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{resolved}, suffix...)...), nil
}

// contains reports whether target equals root or is a strict descendant,
// compared component-wise rather than by string prefix.
func contains(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

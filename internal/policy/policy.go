// Package policy decides which executables the gateway may spawn and vets
// every argument for shell metacharacters. Commands are executed without a
// shell, but arguments can still be echoed into logs, prompts, or other
// subprocesses later, so the scan applies regardless.
package policy

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NotAllowedError is returned when the executable is not on the allow-list.
type NotAllowedError struct {
	Executable string
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("command not allowed: %s", e.Executable)
}

// ArgumentError is returned when an argument contains shell metacharacters
// or control characters.
type ArgumentError struct {
	Argument string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("unsafe command argument: %q", e.Argument)
}

// DefaultAllowedBinaries is the fixed set of programs the gateway will ever
// spawn: version control, the editor launchers, and basic listing/creation
// utilities for project scaffolding.
var DefaultAllowedBinaries = []string{
	"git",
	"cursor",
	"cursor-agent",
	"code",
	"ls",
	"dir",
	"cat",
	"type",
	"mkdir",
	"md",
}

// metacharacters that deny an argument outright, wherever they appear.
var metacharacters = []string{
	"&&", "||", ";", "|", "`", "$(", "${", ">", "<", "\n", "\r", "\x00",
}

// Policy is a whitelist of executables plus the argument scanner. Immutable
// after construction; safe for concurrent use.
type Policy struct {
	allowed map[string]bool
}

// New builds a policy from an allow-list of binary basenames. An empty list
// falls back to DefaultAllowedBinaries.
func New(allowed []string) *Policy {
	if len(allowed) == 0 {
		allowed = DefaultAllowedBinaries
	}
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[normalizeBinary(name)] = true
	}
	return &Policy{allowed: set}
}

// Check validates the executable name and every argument. It returns nil
// only when the basename is allow-listed and no argument carries a shell
// metacharacter; one bad argument denies the whole command.
func (p *Policy) Check(executable string, args []string) error {
	if !p.allowed[normalizeBinary(executable)] {
		return &NotAllowedError{Executable: executable}
	}
	for _, arg := range args {
		for _, meta := range metacharacters {
			if strings.Contains(arg, meta) {
				return &ArgumentError{Argument: arg}
			}
		}
	}
	return nil
}

// Allowed reports whether the executable alone passes the allow-list.
func (p *Policy) Allowed(executable string) bool {
	return p.allowed[normalizeBinary(executable)]
}

// normalizeBinary reduces an executable reference to a comparable form:
// basename, lowercase, Windows extension stripped.
func normalizeBinary(name string) string {
	base := strings.ToLower(filepath.Base(strings.TrimSpace(name)))
	base = strings.TrimSuffix(base, ".exe")
	base = strings.TrimSuffix(base, ".cmd")
	base = strings.TrimSuffix(base, ".bat")
	return base
}

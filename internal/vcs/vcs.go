// Package vcs is the git bridge. Every operation maps to one git invocation
// vetted by the command policy and executed with the scrubbed environment,
// so the subprocess never sees credential-bearing variables from the parent.
package vcs

import (
	"context"
)

// FileStat is the per-file summary of a diff.
type FileStat struct {
	Path    string
	Added   int
	Deleted int
}

// Repository is the operation surface the command router drives. Implemented
// by Git; the scripted fake in mock.go serves router tests.
type Repository interface {
	// Status returns short-format working tree status with branch header.
	Status(ctx context.Context) (string, error)
	// Diff returns the full unified diff of the working tree.
	Diff(ctx context.Context) (string, error)
	// DiffStat returns per-file added/deleted line counts.
	DiffStat(ctx context.Context) ([]FileStat, error)
	// Log returns the latest n commits, one line each.
	Log(ctx context.Context, n int) (string, error)
	// Pull fast-forwards from the default remote.
	Pull(ctx context.Context) (string, error)
	// Push publishes the current branch.
	Push(ctx context.Context) (string, error)
	// CommitAll stages everything and commits with the given message.
	CommitAll(ctx context.Context, message string) (string, error)
	// RestoreAll discards uncommitted working tree changes.
	RestoreAll(ctx context.Context) error
	// Branches lists local branches, current first.
	Branches(ctx context.Context) ([]string, error)
	// Checkout switches to an existing branch.
	Checkout(ctx context.Context, branch string) (string, error)
	// CurrentBranch returns the checked-out branch, or "" when detached.
	CurrentBranch(ctx context.Context) (string, error)
	// In returns a Repository bound to another working directory.
	In(dir string) Repository
}

package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/flexfinRTP/telecode/internal/logger"
	"github.com/flexfinRTP/telecode/internal/policy"
)

// defaultTimeout bounds every git invocation. Pull and push get longer.
const (
	defaultTimeout = 30 * time.Second
	networkTimeout = 2 * time.Minute
)

// runner executes one vetted command and returns combined output. Swapped
// out in tests.
type runner func(ctx context.Context, dir, name string, args ...string) (string, error)

func execRunner(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = policy.SafeEnv()

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	out := strings.TrimRight(buf.String(), "\n")
	if err != nil {
		if out != "" {
			return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, out)
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// Git runs git against one working directory inside the sandbox. The caller
// resolves the directory through the sandbox before constructing this.
type Git struct {
	dir    string
	policy *policy.Policy
	run    runner
	log    *logger.Logger
}

// NewGit binds a Git bridge to a working directory.
func NewGit(dir string, pol *policy.Policy) *Git {
	return &Git{
		dir:    dir,
		policy: pol,
		run:    execRunner,
		log:    logger.Global().WithPrefix("vcs"),
	}
}

// In returns a bridge for another working directory, sharing policy and
// runner.
func (g *Git) In(dir string) Repository {
	clone := *g
	clone.dir = dir
	return &clone
}

// git vets the argument vector and runs it with a deadline.
func (g *Git) git(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	if err := g.policy.Check("git", args); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g.log.Debug("git %s", strings.Join(args, " "))
	return g.run(ctx, g.dir, "git", args...)
}

func (g *Git) Status(ctx context.Context) (string, error) {
	out, err := g.git(ctx, defaultTimeout, "status", "--short", "--branch")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "clean", nil
	}
	return out, nil
}

func (g *Git) Diff(ctx context.Context) (string, error) {
	return g.git(ctx, defaultTimeout, "diff")
}

// DiffStat parses the working tree diff into per-file line counts.
func (g *Git) DiffStat(ctx context.Context) ([]FileStat, error) {
	raw, err := g.Diff(ctx)
	if err != nil {
		return nil, err
	}
	return ParseDiffStat(raw)
}

// ParseDiffStat converts a unified diff into per-file stats. Empty input
// yields an empty slice.
func ParseDiffStat(raw string) ([]FileStat, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	files, err := diff.ParseMultiFileDiff([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	stats := make([]FileStat, 0, len(files))
	for _, f := range files {
		s := f.Stat()
		stats = append(stats, FileStat{
			Path:    diffPath(f),
			Added:   int(s.Added + s.Changed),
			Deleted: int(s.Deleted + s.Changed),
		})
	}
	return stats, nil
}

// diffPath picks the post-image name, falling back to the pre-image for
// deletions. git prefixes names with a/ and b/.
func diffPath(f *diff.FileDiff) string {
	name := f.NewName
	if name == "" || name == "/dev/null" {
		name = f.OrigName
	}
	name = strings.TrimPrefix(name, "b/")
	name = strings.TrimPrefix(name, "a/")
	return name
}

func (g *Git) Log(ctx context.Context, n int) (string, error) {
	if n <= 0 {
		n = 10
	}
	return g.git(ctx, defaultTimeout, "log", "--oneline", "-n", fmt.Sprint(n))
}

func (g *Git) Pull(ctx context.Context) (string, error) {
	return g.git(ctx, networkTimeout, "pull", "--ff-only")
}

func (g *Git) Push(ctx context.Context) (string, error) {
	return g.git(ctx, networkTimeout, "push")
}

// CommitAll stages all changes and commits. The message is sanitized so it
// travels as one argument with no control characters.
func (g *Git) CommitAll(ctx context.Context, message string) (string, error) {
	message = policy.SanitizeForSubprocess(message)
	if message == "" {
		message = "changes via telecode"
	}
	if _, err := g.git(ctx, defaultTimeout, "add", "-A"); err != nil {
		return "", err
	}
	return g.git(ctx, defaultTimeout, "commit", "-m", message)
}

// RestoreAll discards all uncommitted changes in the working tree.
func (g *Git) RestoreAll(ctx context.Context) error {
	_, err := g.git(ctx, defaultTimeout, "checkout", "--", ".")
	return err
}

func (g *Git) Branches(ctx context.Context) ([]string, error) {
	out, err := g.git(ctx, defaultTimeout, "branch", "--list", "--format", "%(refname:short)")
	if err != nil {
		return nil, err
	}
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

func (g *Git) Checkout(ctx context.Context, branch string) (string, error) {
	branch = strings.TrimSpace(branch)
	if branch == "" || strings.HasPrefix(branch, "-") {
		return "", fmt.Errorf("invalid branch name %q", branch)
	}
	return g.git(ctx, defaultTimeout, "checkout", branch)
}

func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.git(ctx, defaultTimeout, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		// Detached.
		return "", nil
	}
	return branch, nil
}

// Package editor drives the AI editor's headless CLI. The prompt travels
// over stdin so it is never visible in the process list, the subprocess gets
// the scrubbed environment, and output is secret-scanned before anyone sees
// it.
package editor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/flexfinRTP/telecode/internal/logger"
	"github.com/flexfinRTP/telecode/internal/policy"
	"github.com/flexfinRTP/telecode/internal/secretdetect"
)

// DefaultTimeout bounds one editor run. Agent sessions that chew on a large
// refactor can be slow, so this is generous.
const DefaultTimeout = 5 * time.Minute

// candidates, in preference order. Only allow-listed names are considered.
var candidates = []string{"cursor-agent", "cursor", "code"}

// NotFoundError is returned when no editor CLI is installed.
type NotFoundError struct {
	Tried []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no editor CLI found (tried %s)", strings.Join(e.Tried, ", "))
}

// runner executes the editor process. Swapped out in tests.
type runner func(ctx context.Context, dir, name string, args []string, stdin string) (string, error)

func execRunner(ctx context.Context, dir, name string, args []string, stdin string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = policy.SafeEnv()
	cmd.Stdin = strings.NewReader(stdin)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	out := strings.TrimSpace(buf.String())
	if err != nil {
		if out != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, out)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Bridge invokes the editor CLI inside one working directory.
type Bridge struct {
	dir      string
	policy   *policy.Policy
	detector *secretdetect.Detector
	timeout  time.Duration
	run      runner
	lookPath func(string) (string, error)
	log      *logger.Logger
}

// New binds a bridge to a working directory. detector may be nil.
func New(dir string, pol *policy.Policy, detector *secretdetect.Detector) *Bridge {
	return &Bridge{
		dir:      dir,
		policy:   pol,
		detector: detector,
		timeout:  DefaultTimeout,
		run:      execRunner,
		lookPath: exec.LookPath,
		log:      logger.Global().WithPrefix("editor"),
	}
}

// In returns a bridge for another working directory.
func (b *Bridge) In(dir string) *Bridge {
	clone := *b
	clone.dir = dir
	return &clone
}

// Executable locates the editor CLI on PATH. Every candidate is vetted
// against the command policy before it is even probed.
func (b *Bridge) Executable() (string, error) {
	var tried []string
	for _, name := range candidates {
		if !b.policy.Allowed(name) {
			continue
		}
		tried = append(tried, name)
		if path, err := b.lookPath(name); err == nil {
			return path, nil
		}
	}
	if len(tried) == 0 {
		tried = candidates
	}
	return "", &NotFoundError{Tried: tried}
}

// RunPrompt pipes the prompt to the editor CLI and returns its sanitized
// output. The caller authorizes the prompt through the gate first; this
// layer only handles execution hygiene.
func (b *Bridge) RunPrompt(ctx context.Context, prompt string) (string, error) {
	path, err := b.Executable()
	if err != nil {
		return "", err
	}
	name := filepath.Base(path)
	if err := b.policy.Check(name, nil); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	args := agentArgs(name)
	b.log.Info("running %s in %s", name, b.dir)
	out, err := b.run(ctx, b.dir, path, args, prompt)
	if err != nil {
		return "", err
	}
	if b.detector != nil {
		out = b.detector.Redact(out)
	}
	return out, nil
}

// agentArgs picks the invocation shape per CLI. cursor-agent reads the
// prompt from stdin in print mode; the plain editor launchers just open the
// directory.
func agentArgs(name string) []string {
	switch name {
	case "cursor-agent":
		return []string{"--print"}
	default:
		return nil
	}
}

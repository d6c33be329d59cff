// Package router maps incoming text commands onto gateway operations. It is
// transport-agnostic: an adapter feeds it (identity, text) pairs and relays
// the replies. Every handler authorizes through the access gate before doing
// anything, and every reply is secret-scanned and capped before it leaves.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/flexfinRTP/telecode/internal/audit"
	"github.com/flexfinRTP/telecode/internal/gate"
	"github.com/flexfinRTP/telecode/internal/logger"
	"github.com/flexfinRTP/telecode/internal/sandbox"
	"github.com/flexfinRTP/telecode/internal/secretdetect"
	"github.com/flexfinRTP/telecode/internal/vcs"
)

// MaxReply is the transport message cap; longer replies are truncated.
const MaxReply = 4096

// maxReadBytes bounds /read so a huge file cannot flood the transport.
const maxReadBytes = 64 * 1024

// PromptRunner executes one editor prompt. Implemented by editor.Bridge.
type PromptRunner interface {
	RunPrompt(ctx context.Context, prompt string) (string, error)
}

// Options wires a Router. Gate, Repo and Root are required; the rest
// degrade gracefully when nil.
type Options struct {
	Gate *gate.Gate
	Repo vcs.Repository
	// Editor builds a prompt runner bound to a working directory.
	Editor func(dir string) PromptRunner
	// Detector scrubs replies before they leave the machine.
	Detector *secretdetect.Detector
	// Store answers /audit queries.
	Store *audit.Store
	// Root is the sandbox root; the initial working directory.
	Root string
}

// Router dispatches commands. Safe for concurrent use; the only mutable
// state is the working directory.
type Router struct {
	opts Options
	log  *logger.Logger

	mu  sync.Mutex
	cwd string
}

// New builds a router rooted at opts.Root.
func New(opts Options) *Router {
	return &Router{
		opts: opts,
		log:  logger.Global().WithPrefix("router"),
		cwd:  opts.Root,
	}
}

// Handle processes one message and returns the reply text. It never returns
// an empty string for a non-empty message.
func (r *Router) Handle(ctx context.Context, from int64, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	command, arg := splitCommand(text)
	reply := r.dispatch(ctx, from, command, arg)
	return r.sanitize(reply)
}

// splitCommand separates "/diff stat" into ("/diff", "stat"). Bare text
// becomes an /ai prompt, matching how the gateway is used from a phone.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "/ai", text
	}
	parts := strings.SplitN(text, " ", 2)
	command := strings.ToLower(parts[0])
	// Strip the bot-mention suffix some transports append: /status@name.
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return command, arg
}

func (r *Router) dispatch(ctx context.Context, from int64, command, arg string) string {
	switch command {
	case "/start":
		return r.control(from, "start", r.startText)
	case "/help":
		return r.control(from, "help", func() string { return helpText })
	case "/status":
		return r.git(ctx, from, "status", func(repo vcs.Repository) (string, error) {
			return repo.Status(ctx)
		})
	case "/diff":
		return r.diff(ctx, from)
	case "/log":
		n, _ := strconv.Atoi(arg)
		return r.git(ctx, from, "log", func(repo vcs.Repository) (string, error) {
			return repo.Log(ctx, n)
		})
	case "/pull":
		return r.git(ctx, from, "pull", func(repo vcs.Repository) (string, error) {
			return repo.Pull(ctx)
		})
	case "/push":
		return r.git(ctx, from, "push", func(repo vcs.Repository) (string, error) {
			return repo.Push(ctx)
		})
	case "/accept":
		return r.git(ctx, from, "commit", func(repo vcs.Repository) (string, error) {
			return repo.CommitAll(ctx, arg)
		})
	case "/revert":
		return r.git(ctx, from, "checkout", func(repo vcs.Repository) (string, error) {
			if err := repo.RestoreAll(ctx); err != nil {
				return "", err
			}
			return "working tree restored", nil
		})
	case "/branch":
		return r.branches(ctx, from)
	case "/checkout":
		if arg == "" {
			return "usage: /checkout <branch>"
		}
		return r.git(ctx, from, "checkout", func(repo vcs.Repository) (string, error) {
			return repo.Checkout(ctx, arg)
		})
	case "/cd":
		return r.cd(from, arg)
	case "/pwd":
		return r.control(from, "pwd", r.pwdText)
	case "/ls":
		return r.ls(from, arg)
	case "/read":
		if arg == "" {
			return "usage: /read <file>"
		}
		return r.read(from, arg)
	case "/ai":
		if arg == "" {
			return "usage: /ai <prompt>"
		}
		return r.ai(ctx, from, arg)
	case "/audit":
		n, _ := strconv.Atoi(arg)
		return r.auditQuery(from, n)
	default:
		return fmt.Sprintf("unknown command %s; try /help", command)
	}
}

// control runs a side-effect-free handler behind the gate.
func (r *Router) control(from int64, name string, body func() string) string {
	if _, err := r.opts.Gate.Authorize(from, gate.ControlAction(name)); err != nil {
		return denyText(err)
	}
	return body()
}

// git authorizes one git subcommand and runs it in the current directory.
func (r *Router) git(ctx context.Context, from int64, subcommand string, body func(vcs.Repository) (string, error)) string {
	if _, err := r.opts.Gate.Authorize(from, gate.CommandAction("git", subcommand)); err != nil {
		return denyText(err)
	}
	out, err := body(r.opts.Repo.In(r.workdir()))
	if err != nil {
		r.log.Warn("git %s: %v", subcommand, err)
		return "git " + subcommand + " failed: " + err.Error()
	}
	if out == "" {
		out = "done"
	}
	return out
}

func (r *Router) diff(ctx context.Context, from int64) string {
	if _, err := r.opts.Gate.Authorize(from, gate.CommandAction("git", "diff")); err != nil {
		return denyText(err)
	}
	repo := r.opts.Repo.In(r.workdir())

	stats, err := repo.DiffStat(ctx)
	if err != nil {
		return "git diff failed: " + err.Error()
	}
	if len(stats) == 0 {
		return "no changes"
	}

	var b strings.Builder
	totalAdded, totalDeleted := 0, 0
	for _, s := range stats {
		fmt.Fprintf(&b, "%s  +%d -%d\n", s.Path, s.Added, s.Deleted)
		totalAdded += s.Added
		totalDeleted += s.Deleted
	}
	fmt.Fprintf(&b, "%d file(s), +%d -%d\n", len(stats), totalAdded, totalDeleted)

	if raw, err := repo.Diff(ctx); err == nil && raw != "" {
		b.WriteString("\n")
		b.WriteString(raw)
	}
	return b.String()
}

func (r *Router) branches(ctx context.Context, from int64) string {
	if _, err := r.opts.Gate.Authorize(from, gate.CommandAction("git", "branch")); err != nil {
		return denyText(err)
	}
	repo := r.opts.Repo.In(r.workdir())

	branches, err := repo.Branches(ctx)
	if err != nil {
		return "git branch failed: " + err.Error()
	}
	current, _ := repo.CurrentBranch(ctx)

	var b strings.Builder
	for _, branch := range branches {
		marker := "  "
		if branch == current {
			marker = "* "
		}
		b.WriteString(marker + branch + "\n")
	}
	if b.Len() == 0 {
		return "no branches"
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) cd(from int64, arg string) string {
	if arg == "" {
		return "usage: /cd <dir>"
	}
	target := arg
	if !filepath.IsAbs(target) {
		target = filepath.Join(r.workdir(), target)
	}
	res, err := r.opts.Gate.Authorize(from, gate.PathAction(target))
	if err != nil {
		return denyText(err)
	}
	info, err := os.Stat(res.ResolvedPath)
	if err != nil {
		return "cannot enter " + arg + ": " + err.Error()
	}
	if !info.IsDir() {
		return arg + " is not a directory"
	}

	r.mu.Lock()
	r.cwd = res.ResolvedPath
	r.mu.Unlock()
	return "now in " + r.pwdText()
}

func (r *Router) ls(from int64, arg string) string {
	target := r.workdir()
	if arg != "" {
		if !filepath.IsAbs(arg) {
			arg = filepath.Join(r.workdir(), arg)
		}
		target = arg
	}
	res, err := r.opts.Gate.Authorize(from, gate.PathAction(target))
	if err != nil {
		return denyText(err)
	}

	entries, err := os.ReadDir(res.ResolvedPath)
	if err != nil {
		return "cannot list: " + err.Error()
	}
	if len(entries) == 0 {
		return "(empty)"
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "\n")
}

func (r *Router) read(from int64, arg string) string {
	target := arg
	if !filepath.IsAbs(target) {
		target = filepath.Join(r.workdir(), target)
	}
	res, err := r.opts.Gate.Authorize(from, gate.PathAction(target))
	if err != nil {
		return denyText(err)
	}

	f, err := os.Open(res.ResolvedPath)
	if err != nil {
		return "cannot read: " + err.Error()
	}
	defer f.Close()

	// One byte past the cap tells truncation apart from an exact fit.
	data, err := io.ReadAll(io.LimitReader(f, maxReadBytes+1))
	if err != nil {
		return "cannot read: " + err.Error()
	}
	if len(data) == 0 {
		return "(empty file)"
	}
	out := string(data[:min(len(data), maxReadBytes)])
	if len(data) > maxReadBytes {
		out += "\n...(truncated)"
	}
	return out
}

func (r *Router) ai(ctx context.Context, from int64, prompt string) string {
	if _, err := r.opts.Gate.Authorize(from, gate.PromptAction(prompt)); err != nil {
		return denyText(err)
	}
	if r.opts.Editor == nil {
		return "editor bridge is not configured"
	}
	out, err := r.opts.Editor(r.workdir()).RunPrompt(ctx, prompt)
	if err != nil {
		r.log.Warn("editor run: %v", err)
		return "editor run failed: " + err.Error()
	}
	if out == "" {
		return "done (no output)"
	}
	return out
}

func (r *Router) auditQuery(from int64, n int) string {
	if _, err := r.opts.Gate.Authorize(from, gate.ControlAction("audit")); err != nil {
		return denyText(err)
	}
	if r.opts.Store == nil {
		return "audit store is not configured"
	}
	if n <= 0 {
		n = 10
	}
	entries, err := r.opts.Store.RecentDenials(n)
	if err != nil {
		return "audit query failed: " + err.Error()
	}
	if len(entries) == 0 {
		return "no recent denials"
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %s  %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Detail)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) startText() string {
	return "connected to " + r.opts.Root + "\n" + helpText
}

func (r *Router) pwdText() string {
	rel, err := filepath.Rel(r.opts.Root, r.workdir())
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

func (r *Router) workdir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cwd
}

// sanitize scrubs credential-shaped strings and enforces the message cap.
func (r *Router) sanitize(reply string) string {
	if r.opts.Detector != nil {
		reply = r.opts.Detector.Redact(reply)
	}
	if len(reply) > MaxReply {
		const marker = "\n...(truncated)"
		reply = reply[:MaxReply-len(marker)] + marker
	}
	return reply
}

// denyText turns a gate denial into a short reply. Blocked-file denials are
// reduced to a category: the raw denylist pattern belongs in the audit
// trail, not in a remote reply.
func denyText(err error) string {
	var blocked *sandbox.BlockedFileError
	if errors.As(err, &blocked) {
		return "denied: access to sensitive files is blocked"
	}
	return "denied: " + err.Error()
}

const helpText = `commands:
/status          working tree status
/diff            changes with per-file stats
/log [n]         recent commits
/pull /push      sync with the remote
/accept [msg]    commit all changes
/revert          discard uncommitted changes
/branch          list branches
/checkout <b>    switch branch
/cd <dir> /pwd   change or show directory
/ls [dir]        list directory
/read <file>     show a file
/ai <prompt>     run the AI editor (or just type text)
/audit [n]       recent denied requests`

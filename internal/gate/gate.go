// Package gate composes the access checks into one decision point. Every
// request from the transport passes through Authorize before anything
// touches the filesystem, a subprocess, or the editor. Checks run in a fixed
// order and stop at the first denial; both outcomes are written to the audit
// trail.
package gate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flexfinRTP/telecode/internal/audit"
	"github.com/flexfinRTP/telecode/internal/logger"
	"github.com/flexfinRTP/telecode/internal/policy"
	"github.com/flexfinRTP/telecode/internal/promptguard"
	"github.com/flexfinRTP/telecode/internal/ratelimit"
	"github.com/flexfinRTP/telecode/internal/sandbox"
)

// ErrUnauthorized is returned when the requesting identity is not the
// configured owner. The error carries no hint about what the right identity
// would be.
var ErrUnauthorized = errors.New("unauthorized")

// PromptBlockedError is returned when the prompt guard matched a rule.
type PromptBlockedError struct {
	Verdict promptguard.Verdict
}

func (e *PromptBlockedError) Error() string {
	return fmt.Sprintf("prompt rejected: %s", e.Verdict)
}

// Kind discriminates what an action wants to do.
type Kind int

const (
	// KindPath reads or creates a filesystem entry.
	KindPath Kind = iota + 1
	// KindCommand spawns an allow-listed subprocess.
	KindCommand
	// KindPrompt forwards free text to the AI editor.
	KindPrompt
	// KindControl is a side-effect-free bot command (/help, /status). It is
	// rate limited and audited but has no content to check.
	KindControl
)

func (k Kind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindCommand:
		return "command"
	case KindPrompt:
		return "prompt"
	case KindControl:
		return "control"
	default:
		return "unknown"
	}
}

// Action is one requested operation.
type Action struct {
	Kind       Kind
	Path       string   // KindPath
	Executable string   // KindCommand
	Args       []string // KindCommand
	Prompt     string   // KindPrompt
	Name       string   // KindControl, e.g. "status"
}

// PathAction requests access to a filesystem path (absolute or relative to
// the sandbox root).
func PathAction(path string) Action {
	return Action{Kind: KindPath, Path: path}
}

// CommandAction requests spawning an executable with arguments.
func CommandAction(executable string, args ...string) Action {
	return Action{Kind: KindCommand, Executable: executable, Args: args}
}

// PromptAction requests forwarding text to the editor.
func PromptAction(prompt string) Action {
	return Action{Kind: KindPrompt, Prompt: prompt}
}

// ControlAction requests a named control command with no content to vet.
func ControlAction(name string) Action {
	return Action{Kind: KindControl, Name: name}
}

// Result carries the outputs of a successful authorization.
type Result struct {
	// ResolvedPath is the canonical absolute path, set for KindPath.
	ResolvedPath string
}

// Gate holds the composed checks. Construct once at startup; safe for
// concurrent use.
type Gate struct {
	owner    int64
	limiter  *ratelimit.Limiter
	resolver *sandbox.Resolver
	policy   *policy.Policy
	guard    *promptguard.Guard
	audit    *audit.Logger
	log      *logger.Logger
}

// New wires the gate. All dependencies are required except audit, which may
// be nil in tests.
func New(owner int64, limiter *ratelimit.Limiter, resolver *sandbox.Resolver, pol *policy.Policy, guard *promptguard.Guard, auditLog *audit.Logger) *Gate {
	return &Gate{
		owner:    owner,
		limiter:  limiter,
		resolver: resolver,
		policy:   pol,
		guard:    guard,
		audit:    auditLog,
		log:      logger.Global().WithPrefix("gate"),
	}
}

// Authorize runs the check chain for one action:
// lockout → identity → command rate → content (sandbox / policy / guard).
// A denial at any step short-circuits the rest; every call produces exactly
// one audit entry.
func (g *Gate) Authorize(identity int64, action Action) (Result, error) {
	res, err := g.check(identity, action)
	g.record(identity, action, err)
	return res, err
}

func (g *Gate) check(identity int64, action Action) (Result, error) {
	// An active lockout denies everything, including further identity
	// probing.
	if err := g.limiter.Check(identity, ratelimit.KindAuth); err != nil {
		return Result{}, err
	}

	if identity != g.owner {
		g.limiter.RecordFailure(identity)
		return Result{}, ErrUnauthorized
	}
	g.limiter.Reset(identity)

	if err := g.limiter.Check(identity, ratelimit.KindCommand); err != nil {
		return Result{}, err
	}

	switch action.Kind {
	case KindPath:
		resolved, err := g.resolver.Resolve(action.Path)
		if err != nil {
			return Result{}, err
		}
		return Result{ResolvedPath: resolved}, nil

	case KindCommand:
		if err := g.policy.Check(action.Executable, action.Args); err != nil {
			return Result{}, err
		}
		return Result{}, nil

	case KindPrompt:
		if v := g.guard.Scan(action.Prompt); v.Blocked {
			return Result{}, &PromptBlockedError{Verdict: v}
		}
		return Result{}, nil

	case KindControl:
		return Result{}, nil

	default:
		return Result{}, fmt.Errorf("unknown action kind %d", action.Kind)
	}
}

func (g *Gate) record(identity int64, action Action, err error) {
	if g.audit == nil {
		return
	}
	entry := audit.Entry{
		Identity: identity,
		Action:   actionLabel(action),
		Outcome:  audit.OutcomeAllowed,
		Detail:   actionDetail(action),
	}
	if err != nil {
		entry.Outcome = audit.OutcomeDenied
		entry.Detail = deniedDetail(entry.Detail, action, err)
	}
	g.audit.Record(entry)
}

// deniedDetail composes the audit detail for a denial. A denied path must
// never reach the trail verbatim, so the attempted path (both as typed and
// as canonicalized) is substituted here, at the source; the audit logger's
// regex scrub cannot recognize every path shape (components with spaces,
// say). Blocked in-sandbox files keep their path: it is inside the root and
// naming it is what makes the entry useful.
func deniedDetail(detail string, action Action, err error) string {
	detail = fmt.Sprintf("%s: %v", detail, err)

	var blocked *sandbox.BlockedFileError
	if action.Kind != KindPath || errors.As(err, &blocked) {
		return detail
	}
	if action.Path != "" {
		detail = strings.ReplaceAll(detail, action.Path, "[PATH]")
	}
	var violation *sandbox.ViolationError
	if errors.As(err, &violation) && violation.Attempted != "" {
		detail = strings.ReplaceAll(detail, violation.Attempted, "[PATH]")
	}
	return detail
}

// actionLabel is the coarse audit key, e.g. "command:git".
func actionLabel(a Action) string {
	switch a.Kind {
	case KindCommand:
		return "command:" + strings.ToLower(a.Executable)
	case KindControl:
		return "control:" + a.Name
	default:
		return a.Kind.String()
	}
}

// actionDetail describes the attempt. The audit logger redacts secrets and
// out-of-sandbox paths before this reaches disk.
func actionDetail(a Action) string {
	switch a.Kind {
	case KindPath:
		return a.Path
	case KindCommand:
		return strings.Join(append([]string{a.Executable}, a.Args...), " ")
	case KindPrompt:
		// Never log prompt bodies; length is enough to correlate.
		return fmt.Sprintf("prompt length=%d", len(a.Prompt))
	case KindControl:
		return a.Name
	default:
		return ""
	}
}

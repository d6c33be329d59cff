package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flexfinRTP/telecode/internal/audit"
	"github.com/flexfinRTP/telecode/internal/config"
	"github.com/flexfinRTP/telecode/internal/editor"
	"github.com/flexfinRTP/telecode/internal/gate"
	"github.com/flexfinRTP/telecode/internal/lockfile"
	"github.com/flexfinRTP/telecode/internal/logger"
	"github.com/flexfinRTP/telecode/internal/promptguard"
	"github.com/flexfinRTP/telecode/internal/ratelimit"
	"github.com/flexfinRTP/telecode/internal/router"
	"github.com/flexfinRTP/telecode/internal/sandbox"
	"github.com/flexfinRTP/telecode/internal/secretdetect"
	"github.com/flexfinRTP/telecode/internal/vault"
	"github.com/flexfinRTP/telecode/internal/vcs"
)

func newRunCommand() *cobra.Command {
	var console bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "start the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(cmd.Context(), console)
		},
	}
	cmd.Flags().BoolVar(&console, "console", true, "serve commands on stdin/stdout")
	return cmd
}

func runGateway(parent context.Context, console bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Global().Close()

	detector := secretdetect.NewDetector()
	logger.SetGlobalRedactor(detector.Redact)
	log := logger.Global().WithPrefix("main")

	lock := lockfile.New(cfg.LockPath)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	resolver, err := sandbox.NewResolver(cfg.SandboxRoot)
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	root := resolver.Root()

	// State and config directories stay writable; everything else outside
	// the sandbox root is off limits for this process and its children.
	stateDir := filepath.Dir(cfg.AuditPath)
	if err := sandbox.Confine(root, stateDir, filepath.Dir(config.Path())); err != nil {
		log.Warn("filesystem confinement unavailable: %v", err)
	}

	v := vault.New(vault.DefaultBackend(cfg.VaultPath))
	defer v.Close()
	if token, err := v.Retrieve(); err == nil {
		// The messaging transport picks the token up from the vault; here it
		// only confirms setup happened.
		log.Info("credential loaded: %s", vault.MaskToken(token.String()))
	} else {
		log.Warn("no credential in vault (%v); run setup to store one", err)
	}

	guard := promptguard.New()
	if cfg.PromptRulesPath != "" {
		guard, err = promptguard.NewFromFile(cfg.PromptRulesPath)
		if err != nil {
			return fmt.Errorf("prompt rules: %w", err)
		}
	}
	log.Info("prompt screen: %d rules, fingerprint %s", guard.RuleCount(), guard.Fingerprint())

	limiter := ratelimit.New(ratelimit.Config{
		CommandsPerWindow:     cfg.CommandsPerMinute,
		AuthFailuresPerWindow: cfg.AuthFailuresPerMinute,
		LockoutDuration:       cfg.Lockout(),
	})

	store, err := audit.OpenStore(cfg.AuditDB)
	if err != nil {
		return fmt.Errorf("audit store: %w", err)
	}
	defer store.Close()

	auditLog, err := audit.NewLogger(cfg.AuditPath, detector, root, store)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	defer auditLog.Close()

	pol := cfg.Policy()
	g := gate.New(cfg.OwnerID, limiter, resolver, pol, guard, auditLog)

	bridge := editor.New(root, pol, detector)
	r := router.New(router.Options{
		Gate:     g,
		Repo:     vcs.NewGit(root, pol),
		Detector: detector,
		Store:    store,
		Root:     root,
		Editor: func(dir string) router.PromptRunner {
			return bridge.In(dir)
		},
	})

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopWatch, err := config.Watch(ctx, config.Path(), cfg.PromptRulesPath)
	if err != nil {
		log.Warn("config watcher unavailable: %v", err)
	} else {
		defer stopWatch()
	}

	log.Info("gateway ready, sandbox %s, owner %d", root, cfg.OwnerID)
	if !console {
		log.Info("no transport selected; waiting for shutdown signal")
		<-ctx.Done()
		return nil
	}

	transport := &router.Console{Identity: cfg.OwnerID, In: os.Stdin, Out: os.Stdout}
	return transport.Run(ctx, r.Handle)
}

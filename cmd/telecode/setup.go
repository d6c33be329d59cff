package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/flexfinRTP/telecode/internal/config"
	"github.com/flexfinRTP/telecode/internal/securemem"
	"github.com/flexfinRTP/telecode/internal/vault"
)

func newSetupCommand() *cobra.Command {
	var (
		root    string
		ownerID int64
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "configure the sandbox, owner identity, and bot token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(root, ownerID)
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "sandbox root directory (the only tree the gateway may touch)")
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "authorized user identity")
	return cmd
}

func runSetup(root string, ownerID int64) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reader := bufio.NewReader(os.Stdin)

	if root == "" {
		root = cfg.SandboxRoot
		root, err = promptLine(reader, "sandbox root", root)
		if err != nil {
			return err
		}
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("sandbox root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("sandbox root %s is not a directory", root)
	}

	if ownerID == 0 {
		current := ""
		if cfg.OwnerID != 0 {
			current = strconv.FormatInt(cfg.OwnerID, 10)
		}
		answer, err := promptLine(reader, "owner user ID", current)
		if err != nil {
			return err
		}
		ownerID, err = strconv.ParseInt(answer, 10, 64)
		if err != nil || ownerID == 0 {
			return fmt.Errorf("owner user ID must be a non-zero integer")
		}
	}

	cfg.SandboxRoot = root
	cfg.OwnerID = ownerID
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Println("configuration written to", config.Path())

	return storeToken(cfg)
}

// storeToken reads the bot token without echo and seals it in the vault.
func storeToken(cfg *config.Config) error {
	fmt.Print("bot token (input hidden, empty to keep existing): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	defer securemem.Wipe(raw)

	token := strings.TrimSpace(string(raw))
	if token == "" {
		fmt.Println("token unchanged")
		return nil
	}
	if !vault.ValidateTokenFormat(token) {
		return vault.ErrInvalidTokenFormat
	}

	v := vault.New(vault.DefaultBackend(cfg.VaultPath))
	defer v.Close()
	if err := v.Store(token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	fmt.Println("token stored:", vault.MaskToken(token))
	return nil
}

func promptLine(reader *bufio.Reader, label, current string) (string, error) {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		if current == "" {
			return "", fmt.Errorf("%s is required", label)
		}
		return current, nil
	}
	return line, nil
}

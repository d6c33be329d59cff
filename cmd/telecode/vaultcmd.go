package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexfinRTP/telecode/internal/config"
	"github.com/flexfinRTP/telecode/internal/vault"
)

func newVaultCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "inspect or clear the stored credential",
	}
	cmd.AddCommand(newVaultShowCommand(), newVaultClearCommand())
	return cmd
}

func openVault() (*vault.Vault, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return vault.New(vault.DefaultBackend(cfg.VaultPath)), nil
}

func newVaultShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "print the stored token, masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			token, err := v.Retrieve()
			if err != nil {
				return err
			}
			fmt.Println(vault.MaskToken(token.String()))
			return nil
		},
	}
}

func newVaultClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "remove the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.Close()

			if err := v.Clear(); err != nil {
				return err
			}
			fmt.Println("credential cleared")
			return nil
		},
	}
}

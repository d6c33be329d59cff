package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "telecode",
		Short:         "remote-control gateway for git and the AI editor",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCommand(),
		newSetupCommand(),
		newVaultCommand(),
		newAuditCommand(),
	)
	return root
}

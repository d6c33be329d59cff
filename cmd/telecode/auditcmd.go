package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexfinRTP/telecode/internal/audit"
	"github.com/flexfinRTP/telecode/internal/config"
)

func newAuditCommand() *cobra.Command {
	var (
		limit      int
		deniedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "show recent security events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := audit.OpenStore(cfg.AuditDB)
			if err != nil {
				return err
			}
			defer store.Close()

			var entries []audit.Entry
			if deniedOnly {
				entries, err = store.RecentDenials(limit)
			} else {
				entries, err = store.Recent(limit)
			}
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no events recorded")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-7s  %-20s  %s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.Outcome, e.Action, e.Detail)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	cmd.Flags().BoolVar(&deniedOnly, "denied", false, "only show denied requests")
	return cmd
}

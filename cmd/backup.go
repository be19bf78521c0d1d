package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newBackupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the configured storage backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.shutdown(context.Background())

			visitors, err := rt.manager.StoredVisitors(cmd.Context())
			if err != nil {
				return err
			}
			if err := rt.backend.Backup(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup of %s storage complete (%d visitors)\n", rt.cfg.Storage.Type, len(visitors))
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate up|down|status",
		Short:     "Apply, revert or inspect the postgres schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := application.OpenDB(configuration.Use().Database.Opts)
			if err != nil {
				return withCode(exitDB, err)
			}
			defer db.Close()
			if err := db.PingContext(ctx); err != nil {
				return withCode(exitDB, fmt.Errorf("ping db: %w", err))
			}

			m := newMigrations()
			switch args[0] {
			case "up":
				return withCode(exitDB, m.Run(ctx, db))
			case "down":
				return withCode(exitDB, m.Rollback(ctx, db))
			default:
				status, err := m.Status(ctx, db)
				if err != nil {
					return withCode(exitDB, err)
				}
				for _, s := range status {
					if err := writeJSONLine(cmd.OutOrStdout(), s); err != nil {
						return err
					}
				}
				return nil
			}
		},
	}
	return cmd
}

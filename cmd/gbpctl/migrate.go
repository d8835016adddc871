package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gbp-politico/backend/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if err := database.Migrate(cmd.Context(), a.pool, a.logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		names, err := database.Migrations()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d migrations applied\n", len(names))
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

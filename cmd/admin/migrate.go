package main

import (
	"fmt"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update every table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initDB(); err != nil {
			return err
		}
		if err := postgres.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(postgres.Models))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [category...]",
	Short: "Insert skill categories that do not exist yet",
	Long: `Insert skill categories by name. Existing categories are left alone.

With no arguments the default category list is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initDB(); err != nil {
			return err
		}

		names := args
		if len(names) == 0 {
			names = domain.DefaultCategories
		}
		if err := svc.Catalog.EnsureCategories(cmd.Context(), names); err != nil {
			return fmt.Errorf("seed categories: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ensured %d categories\n", len(names))
		return nil
	},
}

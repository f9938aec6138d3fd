package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/rental-backend/internal/db"
)

func migrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить недостающие миграции",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := db.RunMigrations(cmd.Context(), a.DB, e.cfg.MigrationsPath)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "новых миграций нет")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "применена %s\n", name)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Показать неприменённые миграции",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			pending, err := db.PendingMigrations(cmd.Context(), a.DB, e.cfg.MigrationsPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-40s  %-8s\n", "Migration", "Status")
			for _, name := range pending {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s  %-8s\n", name, "Pending")
			}
			return nil
		},
	})
	return cmd
}

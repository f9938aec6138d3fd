package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/rental-backend/internal/service"
)

var sweepNames = []string{"reminders", "emi", "expiry", "badges", "all"}

// runSweep запускает проход по имени.
func runSweep(ctx context.Context, s *service.Sweeper, name string) ([]service.SweepReport, error) {
	var single func(context.Context) (service.SweepReport, error)
	switch name {
	case "reminders":
		single = s.Reminders
	case "emi":
		single = s.EMI
	case "expiry":
		single = s.Expiry
	case "badges":
		single = s.Badges
	case "all":
		return s.RunAll(ctx)
	default:
		return nil, fmt.Errorf("cli: неизвестный проход %q", name)
	}
	report, err := single(ctx)
	return []service.SweepReport{report}, err
}

func printSweepReports(w io.Writer, reports []service.SweepReport) {
	fmt.Fprintf(w, "%-10s  %8s  %9s  %6s\n", "Sweep", "Scanned", "Processed", "Failed")
	for _, r := range reports {
		fmt.Fprintf(w, "%-10s  %8d  %9d  %6d\n", r.Name, r.Scanned, r.Processed, r.Failed)
	}
}

func sweepCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "sweep [reminders|emi|expiry|badges|all]",
		Short:     "Выполнить фоновый проход вручную",
		ValidArgs: sweepNames,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			reports, err := runSweep(cmd.Context(), a.Sweeper, args[0])
			printSweepReports(cmd.OutOrStdout(), reports)
			return err
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/rental-backend/internal/service"
)

func outboxCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Очередь отложенных событий",
	}

	var drain bool
	dispatch := &cobra.Command{
		Use:   "dispatch",
		Short: "Обработать готовые события",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var total service.DispatchReport
			for {
				report, err := a.Dispatcher.DispatchOnce(cmd.Context())
				if err != nil {
					return err
				}
				total.Claimed += report.Claimed
				total.Processed += report.Processed
				total.Retried += report.Retried
				total.Dead += report.Dead
				if !drain || report.Claimed < e.cfg.OutboxBatchSize {
					break
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "claimed=%d processed=%d retried=%d dead=%d\n",
				total.Claimed, total.Processed, total.Retried, total.Dead)
			return nil
		},
	}
	dispatch.Flags().BoolVar(&drain, "drain", false, "повторять, пока очередь отдаёт полные пачки")

	cmd.AddCommand(dispatch)
	return cmd
}

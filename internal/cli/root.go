// Package cli содержит служебные команды rentalctl: миграции, ручные проходы
// планировщика, разбор очереди и выпуск токенов.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/rental-backend/internal/app"
	"github.com/ignatzorin/rental-backend/internal/config"
	"github.com/ignatzorin/rental-backend/internal/db"
	"github.com/ignatzorin/rental-backend/internal/logger"
)

// env - общее состояние команд, заполняется в PersistentPreRunE.
type env struct {
	cfg      *config.Config
	logLevel string
}

// open подключается к базе и собирает сервисы. Уведомления без вебсокетов
// только сохраняются, пользователь увидит их в ленте.
func (e *env) open(ctx context.Context) (*app.App, error) {
	pool := db.DefaultPool
	pool.MaxOpenConns = 10
	a, err := app.New(ctx, e.cfg, pool, nil)
	if err != nil {
		return nil, fmt.Errorf("cli: подключение к базе %w", err)
	}
	return a, nil
}

// NewRootCmd собирает дерево команд rentalctl.
func NewRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "rentalctl",
		Short:         "Служебные команды сервиса аренды",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg

			level := cfg.LogLevel
			if e.logLevel != "" {
				level = e.logLevel
			}
			logger.Init(level)
			logger.SetTextFormatter()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "уровень логирования (по умолчанию LOG_LEVEL)")

	root.AddCommand(
		migrateCmd(e),
		sweepCmd(e),
		outboxCmd(e),
		tokenCmd(e),
	)
	return root
}

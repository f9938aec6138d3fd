// Package app собирает репозитории и сервисы жизненного цикла аренды.
// Используется API сервером и утилитой rentalctl.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/rental-backend/internal/config"
	"github.com/ignatzorin/rental-backend/internal/db"
	"github.com/ignatzorin/rental-backend/internal/logger"
	"github.com/ignatzorin/rental-backend/internal/repository"
	"github.com/ignatzorin/rental-backend/internal/service"
)

// App - собранный граф зависимостей.
type App struct {
	Config *config.Config
	DB     *sqlx.DB

	Tokens        *service.TokenManager
	Locks         *service.LockService
	Contracts     *service.ContractService
	Wallets       *service.WalletService
	Loans         *service.LoanService
	Disputes      *service.DisputeService
	Checklists    *service.ChecklistService
	Ratings       *service.RatingService
	Verifications *service.VerificationService
	Notifications *service.NotificationService
	Sweeper       *service.Sweeper
	Dispatcher    *service.OutboxDispatcher
}

// New открывает базу и собирает сервисы. pusher может быть nil - тогда уведомления
// только сохраняются.
func New(ctx context.Context, cfg *config.Config, pool db.PoolConfig, pusher service.Pusher) (*App, error) {
	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL, pool)
	if err != nil {
		return nil, err
	}
	return Build(cfg, conn, pusher), nil
}

// Build собирает сервисы поверх готового подключения.
func Build(cfg *config.Config, conn *sqlx.DB, pusher service.Pusher) *App {
	policy := cfg.Policy

	contractRepo := repository.NewContractRepository(conn)
	bookingRepo := repository.NewBookingRepository(conn)
	userRepo := repository.NewUserRepository(conn)
	listingRepo := repository.NewListingRepository(conn)
	walletRepo := repository.NewWalletRepository(conn)
	loanRepo := repository.NewLoanRepository(conn)
	disputeRepo := repository.NewDisputeRepository(conn)
	checklistRepo := repository.NewChecklistRepository(conn)
	ratingRepo := repository.NewRatingRepository(conn)
	verificationRepo := repository.NewVerificationRepository(conn)
	notificationRepo := repository.NewNotificationRepository(conn)
	outboxRepo := repository.NewOutboxRepository(conn)

	a := &App{Config: cfg, DB: conn}
	a.Tokens = service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	a.Locks = service.NewLockService(listingRepo)
	a.Wallets = service.NewWalletService(walletRepo, contractRepo, outboxRepo, policy)
	a.Contracts = service.NewContractService(contractRepo, bookingRepo, userRepo, listingRepo, a.Locks, a.Wallets, outboxRepo, policy)
	a.Loans = service.NewLoanService(loanRepo, contractRepo, outboxRepo, policy)
	a.Disputes = service.NewDisputeService(disputeRepo, contractRepo, a.Contracts, outboxRepo)
	a.Checklists = service.NewChecklistService(checklistRepo, contractRepo, outboxRepo)
	a.Ratings = service.NewRatingService(ratingRepo, contractRepo, outboxRepo)
	a.Verifications = service.NewVerificationService(verificationRepo, listingRepo, outboxRepo, policy)
	a.Notifications = service.NewNotificationService(notificationRepo, pusher)

	a.Sweeper = service.NewSweeper(a.Contracts, a.Wallets, a.Loans, a.Verifications, cfg.SweepConcurrency)
	a.Dispatcher = service.NewOutboxDispatcher(outboxRepo, cfg.OutboxBatchSize, policy.OutboxMaxAttempts)
	service.RegisterLifecycleHandlers(a.Dispatcher, a.Notifications, a.Contracts)

	return a
}

// Migrate применяет недостающие миграции.
func (a *App) Migrate(ctx context.Context) error {
	applied, err := db.RunMigrations(ctx, a.DB, a.Config.MigrationsPath)
	if err != nil {
		return fmt.Errorf("app: миграции %w", err)
	}
	logger.WithFields(logrus.Fields{"applied": len(applied)}).Info("миграции выполнены")
	return nil
}

// Close закрывает подключение к базе.
func (a *App) Close() {
	if err := a.DB.Close(); err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Warn("ошибка закрытия базы")
	}
}

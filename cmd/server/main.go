package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/rental-backend/internal/app"
	"github.com/ignatzorin/rental-backend/internal/config"
	"github.com/ignatzorin/rental-backend/internal/db"
	"github.com/ignatzorin/rental-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/rental-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/rental-backend/internal/http/router"
	"github.com/ignatzorin/rental-backend/internal/logger"
	"github.com/ignatzorin/rental-backend/internal/storage"
	"github.com/ignatzorin/rental-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	// Вебсокеты нужны раньше сервисов: хаб доставляет уведомления.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, "ws-hub", hub.Run)

	a, err := app.New(ctx, cfg, db.DefaultPool, hub)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer a.Close()

	if err := a.Migrate(ctx); err != nil {
		log.Fatalf("main: %v", err)
	}

	mediaStorage, err := storage.NewMediaStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Фоновые проходы.
	a.Sweeper.Start(ctx, cfg.SweepInterval)
	goroutine.SafeGoWithContext(ctx, "outbox", func(ctx context.Context) {
		a.Dispatcher.Run(ctx, cfg.OutboxInterval)
	})

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Contracts:     httpHandlers.NewContractHandler(a.Contracts),
		Wallets:       httpHandlers.NewWalletHandler(a.Wallets),
		Loans:         httpHandlers.NewLoanHandler(a.Loans),
		Disputes:      httpHandlers.NewDisputeHandler(a.Disputes),
		Checklists:    httpHandlers.NewChecklistHandler(a.Checklists),
		Ratings:       httpHandlers.NewRatingHandler(a.Ratings),
		Verifications: httpHandlers.NewVerificationHandler(a.Verifications),
		Listings:      httpHandlers.NewListingHandler(a.Locks),
		Notifications: httpHandlers.NewNotificationHandler(a.Notifications),
		Media:         httpHandlers.NewMediaHandler(a.Contracts, mediaStorage),
		WS:            httpHandlers.NewWSHandler(hub, a.Tokens, cfg.AllowedOrigins),
		Health:        httpHandlers.NewHealthHandler(a.DB),
	}, a.Tokens)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithFields(logrus.Fields{"error": err}).Error("ошибка остановки http сервера")
		}
	}()

	logger.WithFields(logrus.Fields{"port": cfg.HTTPPort, "env": cfg.Env}).Info("HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

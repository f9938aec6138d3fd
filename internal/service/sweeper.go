package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/rental-backend/internal/goroutine"
	"github.com/ignatzorin/rental-backend/internal/logger"
)

const defaultSweepConcurrency = 8

// SweepReport - итог одного фонового прохода.
type SweepReport struct {
	Name      string `json:"name"`
	Scanned   int    `json:"scanned"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

func sweepLimit(n int) int {
	if n <= 0 {
		return defaultSweepConcurrency
	}
	return n
}

// Sweeper запускает периодические проходы: напоминания, EMI, истечение договоров и бейджей.
type Sweeper struct {
	contracts     *ContractService
	wallets       *WalletService
	loans         *LoanService
	verifications *VerificationService
	concurrency   int
}

func NewSweeper(contracts *ContractService, wallets *WalletService, loans *LoanService, verifications *VerificationService, concurrency int) *Sweeper {
	return &Sweeper{
		contracts:     contracts,
		wallets:       wallets,
		loans:         loans,
		verifications: verifications,
		concurrency:   concurrency,
	}
}

func (s *Sweeper) Reminders(ctx context.Context) (SweepReport, error) {
	return s.wallets.RunReminderSweep(ctx, s.concurrency)
}

func (s *Sweeper) EMI(ctx context.Context) (SweepReport, error) {
	return s.loans.RunEMISweep(ctx, s.concurrency)
}

func (s *Sweeper) Expiry(ctx context.Context) (SweepReport, error) {
	return s.contracts.ExpireDue(ctx, s.concurrency)
}

func (s *Sweeper) Badges(ctx context.Context) (SweepReport, error) {
	return s.verifications.ExpireBadges(ctx)
}

// RunAll выполняет все проходы. Ошибка одного прохода не останавливает остальные.
// Истечение договоров идёт первым, чтобы не слать напоминания по завершённым.
func (s *Sweeper) RunAll(ctx context.Context) ([]SweepReport, error) {
	steps := []func(context.Context) (SweepReport, error){s.Expiry, s.Reminders, s.EMI, s.Badges}

	reports := make([]SweepReport, 0, len(steps))
	var errs []error
	for _, step := range steps {
		report, err := step(ctx)
		reports = append(reports, report)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

// Start запускает проходы в фоне с заданным интервалом.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	goroutine.SafeGoWithContext(ctx, "sweeper", func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			reports, err := s.RunAll(ctx)
			for _, r := range reports {
				logger.WithFields(logrus.Fields{
					"sweep":     r.Name,
					"scanned":   r.Scanned,
					"processed": r.Processed,
					"failed":    r.Failed,
				}).Info("фоновый проход завершён")
			}
			if err != nil && ctx.Err() == nil {
				logger.WithFields(logrus.Fields{"error": err}).Error("фоновый проход завершился ошибкой")
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}

package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/ignatzorin/rental-backend/internal/models"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// randomSuffix - n символов без похожих друг на друга букв и цифр.
func randomSuffix(n int) (string, error) {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("service: random code %w", err)
		}
		out[i] = codeAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// newContractCode - код вида RLC-202610-K7QX2M.
func newContractCode(prefix string, now time.Time) (string, error) {
	suffix, err := randomSuffix(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("200601"), suffix), nil
}

// newDisbursementReference - номер выдачи займа вида DISB-20261019-8MZ4QA.
func newDisbursementReference(now time.Time) (string, error) {
	suffix, err := randomSuffix(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DISB-%s-%s", now.Format("20060102"), suffix), nil
}

// TermsDigest - blake2b-256 от зафиксированных условий договора.
// Подпись стороны сохраняет дайджест условий, которые она видела.
func TermsDigest(c *models.Contract) string {
	canonical := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%.2f|%s|%s|%s|%d|%.2f|%.2f|%.2f",
		c.BookingID, c.ListingID, c.TenantID, c.LandlordID,
		c.RentLockPlan, c.LockDuration, c.LockedRentAmount,
		c.StartDate.UTC().Format("2006-01-02"), c.EndDate.UTC().Format("2006-01-02"),
		c.PaymentFrequency, c.DueDate,
		c.SecurityDeposit, c.MaintenanceCharges, c.LateFeePercentage,
	)
	sum := blake2b.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

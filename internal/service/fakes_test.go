package service

import (
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// Фейки повторяют условия WHERE настоящих репозиториев, чтобы сервисы
// проверялись на тех же гонках и повторах, что и в базе.

type fakeContracts struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*models.Contract
	failCodes int
	// failActivate - сколько следующих вызовов Activate вернут ошибку
	failActivate int
}

func newFakeContracts() *fakeContracts {
	return &fakeContracts{byID: make(map[uuid.UUID]*models.Contract)}
}

func (f *fakeContracts) Create(ctx context.Context, c *models.Contract) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCodes > 0 {
		f.failCodes--
		return fmt.Errorf("contract repository: create %w", repository.ErrDuplicateContractCode)
	}
	for _, existing := range f.byID {
		if existing.BookingID == c.BookingID {
			return fmt.Errorf("contract repository: create %w", common.ErrAlreadyExists)
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeContracts) find(match func(*models.Contract) bool) (*models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.ErrContractNotFound
}

func (f *fakeContracts) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return f.find(func(c *models.Contract) bool { return c.ID == id })
}

func (f *fakeContracts) GetByCode(ctx context.Context, code string) (*models.Contract, error) {
	return f.find(func(c *models.Contract) bool { return c.Code == code })
}

func (f *fakeContracts) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Contract, error) {
	return f.find(func(c *models.Contract) bool { return c.BookingID == bookingID })
}

func (f *fakeContracts) ListByParty(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Contract
	for _, c := range f.byID {
		if c.TenantID == userID || c.LandlordID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeContracts) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Contract
	for _, c := range f.byID {
		if c.Status == valueobject.ContractStatusActive && !c.EndDate.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeContracts) RecordSignature(ctx context.Context, id uuid.UUID, party models.Party, sig models.Signature, digest string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status != valueobject.ContractStatusPendingSignature {
		return false, nil
	}
	at := sig.SignedAt
	switch party {
	case models.PartyTenant:
		if c.TenantSigned {
			return false, nil
		}
		c.TenantSigned, c.TenantSignedAt = true, &at
	case models.PartyLandlord:
		if c.LandlordSigned {
			return false, nil
		}
		c.LandlordSigned, c.LandlordSignedAt = true, &at
	}
	c.TermsDigest = digest
	return true, nil
}

func (f *fakeContracts) Activate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failActivate > 0 {
		f.failActivate--
		return false, errors.New("connection reset")
	}
	c, ok := f.byID[id]
	if !ok || c.Status != valueobject.ContractStatusPendingSignature || !c.BothSigned() {
		return false, nil
	}
	c.Status = valueobject.ContractStatusActive
	c.ActivatedAt = &at
	return true, nil
}

func (f *fakeContracts) Transition(ctx context.Context, id uuid.UUID, change repository.StatusChange) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status != change.From {
		return false, nil
	}
	c.Status = change.To
	if change.To.IsTerminal() {
		at := change.At
		c.TerminatedBy, c.TerminationReason, c.TerminatedAt = change.Actor, change.Reason, &at
	}
	if change.ResetSignatures {
		c.TenantSigned, c.TenantSignedAt = false, nil
		c.LandlordSigned, c.LandlordSignedAt = false, nil
	}
	return true, nil
}

func (f *fakeContracts) put(c models.Contract) *models.Contract {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.byID[c.ID] = &c
	cp := c
	return &cp
}

type fakeBookings struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Booking
}

func newFakeBookings(bookings ...models.Booking) *fakeBookings {
	f := &fakeBookings{byID: make(map[uuid.UUID]*models.Booking)}
	for i := range bookings {
		b := bookings[i]
		f.byID[b.ID] = &b
	}
	return f
}

func (f *fakeBookings) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return nil, apperror.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) UpdateRentalStatus(ctx context.Context, id uuid.UUID, rentalStatus string, cancelIfAccepted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return apperror.ErrBookingNotFound
	}
	rs := rentalStatus
	b.RentalStatus = &rs
	if cancelIfAccepted && b.Status == models.BookingStatusAccepted {
		b.Status = models.BookingStatusCancelled
	}
	return nil
}

func (f *fakeBookings) setStatus(id uuid.UUID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].Status = status
}

type fakeUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.User
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{byID: make(map[uuid.UUID]*models.User)}
	for i := range users {
		u := users[i]
		f.byID[u.ID] = &u
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) AdjustActiveContracts(ctx context.Context, tenantID, landlordID uuid.UUID, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[tenantID]; ok {
		u.ActiveContractsAsTenant = max(0, u.ActiveContractsAsTenant+delta)
	}
	if u, ok := f.byID[landlordID]; ok {
		u.ActiveContractsAsLandlord = max(0, u.ActiveContractsAsLandlord+delta)
	}
	return nil
}

type fakeListings struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Listing
}

func newFakeListings(listings ...models.Listing) *fakeListings {
	f := &fakeListings{byID: make(map[uuid.UUID]*models.Listing)}
	for i := range listings {
		l := listings[i]
		if l.AvailabilityStatus == "" {
			l.AvailabilityStatus = valueobject.AvailabilityAvailable
		}
		f.byID[l.ID] = &l
	}
	return f
}

func (f *fakeListings) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return nil, apperror.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func sameID(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}

func (f *fakeListings) Lock(ctx context.Context, id uuid.UUID, change repository.LockChange) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	if l.AvailabilityStatus != valueobject.AvailabilityAvailable &&
		!sameID(change.Owner.BookingID, l.LockBookingID) &&
		!sameID(change.Owner.ContractID, l.LockContractID) {
		return false, nil
	}
	reason, at := change.Reason, change.At
	l.AvailabilityStatus = change.Status
	l.LockReason = &reason
	l.LockedAt = &at
	if change.Owner.BookingID != nil {
		l.LockBookingID = change.Owner.BookingID
	}
	if change.Owner.ContractID != nil {
		l.LockContractID = change.Owner.ContractID
	}
	l.ReleasedAt, l.ReleaseReason = nil, nil
	return true, nil
}

func (f *fakeListings) Release(ctx context.Context, id uuid.UUID, owner models.LockOwner, reason, description string, force bool, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	matches := force ||
		sameID(owner.ContractID, l.LockContractID) ||
		(l.LockContractID == nil && sameID(owner.BookingID, l.LockBookingID))
	if !matches {
		return false, nil
	}
	r := reason
	l.AvailabilityStatus = valueobject.AvailabilityAvailable
	l.LockReason, l.LockedAt = nil, nil
	l.LockBookingID, l.LockContractID = nil, nil
	l.ReleasedAt, l.ReleaseReason = &at, &r
	return true, nil
}

func (f *fakeListings) SetBadge(ctx context.Context, id uuid.UUID, verified bool, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return apperror.ErrListingNotFound
	}
	l.VerifiedBadge, l.BadgeExpiresAt = verified, expiresAt
	return nil
}

func (f *fakeListings) ClearExpiredBadges(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, l := range f.byID {
		if l.VerifiedBadge && l.BadgeExpiresAt != nil && !l.BadgeExpiresAt.After(now) {
			l.VerifiedBadge = false
			ids = append(ids, l.ID)
		}
	}
	return ids, nil
}

type fakeWallets struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.Wallet
	creates int
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{byID: make(map[uuid.UUID]*models.Wallet)}
}

func (f *fakeWallets) byContract(contractID uuid.UUID) *models.Wallet {
	for _, w := range f.byID {
		if w.ContractID == contractID {
			return w
		}
	}
	return nil
}

func cloneWallet(w *models.Wallet) *models.Wallet {
	cp := *w
	cp.Periods = append([]models.PaymentPeriod(nil), w.Periods...)
	cp.RemindersSent = make(models.ReminderLog, len(w.RemindersSent))
	for k, v := range w.RemindersSent {
		cp.RemindersSent[k] = v
	}
	return &cp
}

func (f *fakeWallets) CreateWithPeriods(ctx context.Context, w *models.Wallet) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byContract(w.ContractID) != nil {
		return false, nil
	}
	w.ID = uuid.New()
	for i := range w.Periods {
		w.Periods[i].ID = uuid.New()
		w.Periods[i].WalletID = w.ID
	}
	f.byID[w.ID] = cloneWallet(w)
	f.creates++
	return true, nil
}

func (f *fakeWallets) GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.byContract(contractID)
	if w == nil {
		return nil, apperror.ErrWalletNotFound
	}
	return cloneWallet(w), nil
}

func (f *fakeWallets) ExistsForContract(ctx context.Context, contractID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byContract(contractID) != nil, nil
}

func (f *fakeWallets) UpdatePeriodStatus(ctx context.Context, walletID uuid.UUID, u repository.PaymentUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byID[walletID]
	if !ok {
		return false, nil
	}
	for i := range w.Periods {
		p := &w.Periods[i]
		if p.Month == u.Month && p.Year == u.Year && p.Status != valueobject.PaymentStatusCompleted {
			p.Status = u.Status
			if u.Reference != nil {
				p.PaymentReference = u.Reference
			}
			if u.PaidAt != nil {
				p.PaidAt = u.PaidAt
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWallets) ClaimReminder(ctx context.Context, walletID uuid.UUID, key string, now, dayStart time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byID[walletID]
	if !ok {
		return false, nil
	}
	if last, sent := w.RemindersSent[key]; sent && !last.Before(dayStart) {
		return false, nil
	}
	if w.RemindersSent == nil {
		w.RemindersSent = models.ReminderLog{}
	}
	w.RemindersSent[key] = now
	return true, nil
}

func (f *fakeWallets) MarkOverdue(ctx context.Context, periodID uuid.UUID, penalty float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.byID {
		for i := range w.Periods {
			p := &w.Periods[i]
			if p.ID == periodID && p.Status.CanAccruePenalty() && p.PenaltyAmount == 0 {
				p.Status = valueobject.PaymentStatusOverdue
				p.PenaltyAmount = penalty
				return true, nil
			}
		}
	}
	return false, nil
}

// ListDue не смотрит на статус договора: в тестах кошельки есть только у активных.
func (f *fakeWallets) ListDue(ctx context.Context, horizon time.Time) ([]models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Wallet
	for _, w := range f.byID {
		cp := cloneWallet(w)
		cp.Periods = nil
		for _, p := range w.Periods {
			if p.Status.IsOutstanding() && !p.DueDate.After(horizon) {
				cp.Periods = append(cp.Periods, p)
			}
		}
		if len(cp.Periods) > 0 {
			out = append(out, *cp)
		}
	}
	return out, nil
}

type fakeLoans struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.RentalLoan
}

func newFakeLoans() *fakeLoans {
	return &fakeLoans{byID: make(map[uuid.UUID]*models.RentalLoan)}
}

func cloneLoan(l *models.RentalLoan) *models.RentalLoan {
	cp := *l
	cp.Schedule = append([]models.EMIPeriod(nil), l.Schedule...)
	cp.RemindersSent = make(models.ReminderLog, len(l.RemindersSent))
	for k, v := range l.RemindersSent {
		cp.RemindersSent[k] = v
	}
	return &cp
}

func loanActive(s valueobject.LoanStatus) bool {
	return s == valueobject.LoanStatusPending || s == valueobject.LoanStatusApproved || s == valueobject.LoanStatusDisbursed
}

func (f *fakeLoans) Create(ctx context.Context, loan *models.RentalLoan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.byID {
		if l.ContractID == loan.ContractID && l.LoanType == loan.LoanType && loanActive(l.Status) {
			return fmt.Errorf("loan repository: create %w", common.ErrAlreadyExists)
		}
	}
	loan.ID = uuid.New()
	for i := range loan.Schedule {
		loan.Schedule[i].ID = uuid.New()
		loan.Schedule[i].LoanID = loan.ID
	}
	f.byID[loan.ID] = cloneLoan(loan)
	return nil
}

func (f *fakeLoans) GetByID(ctx context.Context, id uuid.UUID) (*models.RentalLoan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return nil, apperror.ErrLoanNotFound
	}
	return cloneLoan(l), nil
}

func (f *fakeLoans) FindActive(ctx context.Context, contractID uuid.UUID, loanType string) (*models.RentalLoan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.byID {
		if l.ContractID == contractID && l.LoanType == loanType && loanActive(l.Status) {
			return cloneLoan(l), nil
		}
	}
	return nil, apperror.ErrLoanNotFound
}

func (f *fakeLoans) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.RentalLoan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RentalLoan
	for _, l := range f.byID {
		if l.ContractID == contractID {
			out = append(out, *cloneLoan(l))
		}
	}
	return out, nil
}

func (f *fakeLoans) Transition(ctx context.Context, id uuid.UUID, change repository.LoanChange) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, from := range change.From {
		if l.Status == from {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	l.Status = change.To
	if change.ApprovedBy != nil {
		l.ApprovedBy = change.ApprovedBy
	}
	if change.ApprovedAt != nil {
		l.ApprovedAt = change.ApprovedAt
	}
	if change.RejectionReason != nil {
		l.RejectionReason = change.RejectionReason
	}
	if change.DisbursementDate != nil {
		l.DisbursementDate = change.DisbursementDate
	}
	if change.DisbursementReference != nil {
		l.DisbursementReference = change.DisbursementReference
	}
	return true, nil
}

func (f *fakeLoans) UpdateEMIStatus(ctx context.Context, loanID uuid.UUID, installment int, status valueobject.PaymentStatus, paidAt *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[loanID]
	if !ok {
		return false, nil
	}
	for i := range l.Schedule {
		p := &l.Schedule[i]
		if p.Installment == installment && p.Status != valueobject.PaymentStatusCompleted {
			p.Status = status
			if paidAt != nil {
				p.PaidAt = paidAt
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLoans) CountOutstanding(ctx context.Context, loanID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.byID[loanID].Schedule {
		if p.Status != valueobject.PaymentStatusCompleted {
			count++
		}
	}
	return count, nil
}

func (f *fakeLoans) ClaimReminder(ctx context.Context, loanID uuid.UUID, key string, now, dayStart time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.byID[loanID]
	if last, sent := l.RemindersSent[key]; sent && !last.Before(dayStart) {
		return false, nil
	}
	if l.RemindersSent == nil {
		l.RemindersSent = models.ReminderLog{}
	}
	l.RemindersSent[key] = now
	return true, nil
}

func (f *fakeLoans) MarkOverdue(ctx context.Context, periodID uuid.UUID, penalty float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.byID {
		for i := range l.Schedule {
			p := &l.Schedule[i]
			if p.ID == periodID && p.Status.CanAccruePenalty() && p.PenaltyAmount == 0 {
				p.Status = valueobject.PaymentStatusOverdue
				p.PenaltyAmount = penalty
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeLoans) ListDue(ctx context.Context, horizon time.Time) ([]models.RentalLoan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RentalLoan
	for _, l := range f.byID {
		if l.Status != valueobject.LoanStatusDisbursed {
			continue
		}
		cp := cloneLoan(l)
		cp.Schedule = nil
		for _, p := range l.Schedule {
			if p.Status.IsOutstanding() && !p.DueDate.After(horizon) {
				cp.Schedule = append(cp.Schedule, p)
			}
		}
		if len(cp.Schedule) > 0 {
			out = append(out, *cp)
		}
	}
	return out, nil
}

type fakeDisputes struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*models.Dispute
	messages []models.DisputeMessage
}

func newFakeDisputes() *fakeDisputes {
	return &fakeDisputes{byID: make(map[uuid.UUID]*models.Dispute)}
}

func (f *fakeDisputes) Create(ctx context.Context, d *models.Dispute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.ContractID == d.ContractID && !existing.Status.IsTerminal() {
			return fmt.Errorf("dispute repository: create %w", common.ErrAlreadyExists)
		}
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	cp := *d
	f.byID[d.ID] = &cp
	return nil
}

func (f *fakeDisputes) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[id]
	if !ok {
		return nil, apperror.ErrDisputeNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDisputes) FindActiveByContract(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.byID {
		if d.ContractID == contractID && !d.Status.IsTerminal() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperror.ErrDisputeNotFound
}

func (f *fakeDisputes) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Dispute
	for _, d := range f.byID {
		if d.ContractID == contractID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDisputes) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Dispute
	for _, d := range f.byID {
		if d.RaisedBy == userID || d.RespondentID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDisputes) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DisputeMessage
	for _, m := range f.messages {
		if m.DisputeID == disputeID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeDisputes) AddMessage(ctx context.Context, m *models.DisputeMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[m.DisputeID]
	if !ok || d.Status.IsTerminal() {
		return false, nil
	}
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	f.messages = append(f.messages, *m)
	return true, nil
}

func (f *fakeDisputes) MarkRead(ctx context.Context, disputeID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		m := &f.messages[i]
		if m.DisputeID == disputeID && !m.IsReadBy(userID) {
			m.ReadBy = append(m.ReadBy, userID.String())
		}
	}
	return nil
}

func (f *fakeDisputes) AddEvidence(ctx context.Context, id uuid.UUID, refs []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[id]
	if !ok || d.Status.IsTerminal() {
		return false, nil
	}
	d.Evidence = append(d.Evidence, refs...)
	return true, nil
}

func (f *fakeDisputes) Transition(ctx context.Context, id uuid.UUID, change repository.DisputeChange) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[id]
	if !ok || d.Status != change.From {
		return false, nil
	}
	d.Status = change.To
	if res := change.Resolution; res != nil {
		decidedBy, decision, action := res.DecidedBy, res.Decision, res.Action
		d.ResolutionDecidedBy, d.ResolutionDecision, d.ResolutionAction = &decidedBy, &decision, &action
		d.ResolutionAmount = res.Amount
	}
	if change.EscalatedBy != nil {
		d.EscalatedBy, d.EscalationReason = change.EscalatedBy, change.EscalationReason
	}
	return true, nil
}

type fakeRatings struct {
	mu         sync.Mutex
	byContract map[uuid.UUID]*models.RentalRating
}

func newFakeRatings() *fakeRatings {
	return &fakeRatings{byContract: make(map[uuid.UUID]*models.RentalRating)}
}

func (f *fakeRatings) Ensure(ctx context.Context, contractID, tenantID, landlordID uuid.UUID) (*models.RentalRating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byContract[contractID]
	if !ok {
		r = &models.RentalRating{ID: uuid.New(), ContractID: contractID, TenantID: tenantID, LandlordID: landlordID}
		f.byContract[contractID] = r
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRatings) GetByContractID(ctx context.Context, contractID uuid.UUID) (*models.RentalRating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byContract[contractID]
	if !ok {
		return nil, apperror.ErrRatingNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRatings) Submit(ctx context.Context, contractID uuid.UUID, party models.Party, s models.RatingSubmission) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byContract[contractID]
	if !ok {
		return false, nil
	}
	overall, at := s.Overall, s.RatedAt
	switch party {
	case models.PartyTenant:
		if r.TenantOverall != nil {
			return false, nil
		}
		r.TenantOverall, r.TenantComment, r.TenantDetails, r.TenantRatedAt = &overall, s.Comment, s.Details, &at
	case models.PartyLandlord:
		if r.LandlordOverall != nil {
			return false, nil
		}
		r.LandlordOverall, r.LandlordComment, r.LandlordDetails, r.LandlordRatedAt = &overall, s.Comment, s.Details, &at
	}
	return true, nil
}

func (f *fakeRatings) MarkBothRated(ctx context.Context, contractID uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byContract[contractID]
	if !ok || r.BothRated || !r.HasBothSides() {
		return false, nil
	}
	r.BothRated, r.BothRatedAt = true, &at
	return true, nil
}

type fakeChecklists struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.MoveInOutChecklist
}

func newFakeChecklists() *fakeChecklists {
	return &fakeChecklists{byID: make(map[uuid.UUID]*models.MoveInOutChecklist)}
}

func (f *fakeChecklists) Create(ctx context.Context, c *models.MoveInOutChecklist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.ContractID == c.ContractID && existing.Type == c.Type {
			return fmt.Errorf("checklist repository: create %w", common.ErrAlreadyExists)
		}
	}
	c.ID = uuid.New()
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeChecklists) GetByID(ctx context.Context, id uuid.UUID) (*models.MoveInOutChecklist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, apperror.ErrChecklistNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeChecklists) GetByContractAndType(ctx context.Context, contractID uuid.UUID, checklistType string) (*models.MoveInOutChecklist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.ContractID == contractID && c.Type == checklistType {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.ErrChecklistNotFound
}

func (f *fakeChecklists) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.MoveInOutChecklist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MoveInOutChecklist
	for _, c := range f.byID {
		if c.ContractID == contractID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (f *fakeChecklists) UpdateContent(ctx context.Context, c *models.MoveInOutChecklist) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[c.ID]
	if !ok || stored.Status == models.ChecklistStatusApproved {
		return false, nil
	}
	stored.Rooms, stored.Amenities, stored.Media, stored.Notes = c.Rooms, c.Amenities, c.Media, c.Notes
	stored.TenantApproved, stored.TenantApprovedAt = false, nil
	stored.LandlordApproved, stored.LandlordApprovedAt = false, nil
	stored.Status = models.ChecklistStatusDraft
	return true, nil
}

func (f *fakeChecklists) Approve(ctx context.Context, id uuid.UUID, party models.Party, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status == models.ChecklistStatusApproved {
		return false, nil
	}
	var other bool
	switch party {
	case models.PartyTenant:
		if c.TenantApproved {
			return false, nil
		}
		c.TenantApproved, c.TenantApprovedAt = true, &at
		other = c.LandlordApproved
	case models.PartyLandlord:
		if c.LandlordApproved {
			return false, nil
		}
		c.LandlordApproved, c.LandlordApprovedAt = true, &at
		other = c.TenantApproved
	}
	c.Status = models.ChecklistStatusPendingApproval
	if other {
		c.Status = models.ChecklistStatusApproved
	}
	return true, nil
}

func (f *fakeChecklists) AdminOverride(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status == models.ChecklistStatusApproved {
		return false, nil
	}
	c.AdminOverride = true
	c.Status = models.ChecklistStatusApproved
	return true, nil
}

func (f *fakeChecklists) SaveDamageAssessment(ctx context.Context, id uuid.UUID, assessment *models.DamageAssessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return apperror.ErrChecklistNotFound
	}
	c.DamageAssessment = assessment
	return nil
}

// recordingOutbox запоминает поставленные в очередь события.
type recordingOutbox struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Topic   string
	Payload json.RawMessage
}

func (o *recordingOutbox) Enqueue(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, recordedEvent{Topic: topic, Payload: raw})
	return nil
}

func (o *recordingOutbox) notifications() []NotificationMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []NotificationMessage
	for _, ev := range o.events {
		if ev.Topic != TopicNotification {
			continue
		}
		var msg NotificationMessage
		if err := json.Unmarshal(ev.Payload, &msg); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

func (o *recordingOutbox) countTopic(topic string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, ev := range o.events {
		if ev.Topic == topic {
			n++
		}
	}
	return n
}

func (o *recordingOutbox) eventsFor(event string) []NotificationMessage {
	var out []NotificationMessage
	for _, msg := range o.notifications() {
		if msg.Event == event {
			out = append(out, msg)
		}
	}
	return out
}

func (o *recordingOutbox) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

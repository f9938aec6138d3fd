package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/rental-backend/internal/config"
	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/logger"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// ContractStore - хранилище договоров.
type ContractStore interface {
	ContractReader
	Create(ctx context.Context, c *models.Contract) error
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Contract, error)
	ListByParty(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Contract, error)
	RecordSignature(ctx context.Context, id uuid.UUID, party models.Party, sig models.Signature, digest string) (bool, error)
	Activate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, change repository.StatusChange) (bool, error)
}

// BookingStore - зеркало бронирований.
type BookingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateRentalStatus(ctx context.Context, id uuid.UUID, rentalStatus string, cancelIfAccepted bool) error
}

// UserStore - участники сделок и их счётчики.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AdjustActiveContracts(ctx context.Context, tenantID, landlordID uuid.UUID, delta int) error
}

// ListingReader - чтение объекта недвижимости.
type ListingReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// WalletGenerator создаёт график платежей при активации договора.
type WalletGenerator interface {
	Generate(ctx context.Context, c *models.Contract) (*models.Wallet, bool, error)
}

const (
	codeAttempts      = 5
	expiredBatchLimit = 500
)

// ContractService - конечный автомат договора аренды.
type ContractService struct {
	contracts ContractStore
	bookings  BookingStore
	users     UserStore
	listings  ListingReader
	locks     *LockService
	wallets   WalletGenerator
	effects   effects
	policy    config.Policy
	now       func() time.Time
}

func NewContractService(
	contracts ContractStore,
	bookings BookingStore,
	users UserStore,
	listings ListingReader,
	locks *LockService,
	wallets WalletGenerator,
	outbox OutboxWriter,
	policy config.Policy,
) *ContractService {
	return &ContractService{
		contracts: contracts,
		bookings:  bookings,
		users:     users,
		listings:  listings,
		locks:     locks,
		wallets:   wallets,
		effects:   effects{outbox: outbox},
		policy:    policy,
		now:       time.Now,
	}
}

// CreateContractInput - условия, которые арендатор предлагает по принятой брони.
type CreateContractInput struct {
	BookingID          uuid.UUID
	RentLockPlan       string
	LockDuration       int
	LockedRentAmount   float64
	StartDate          time.Time
	EndDate            *time.Time
	DueDate            int
	SecurityDeposit    float64
	MaintenanceCharges float64
	LateFeePercentage  float64
}

func (in CreateContractInput) validate() error {
	switch {
	case in.BookingID == uuid.Nil:
		return apperror.Validation("не указана бронь")
	case strings.TrimSpace(in.RentLockPlan) == "":
		return apperror.Validation("не указан план фиксации ставки")
	case in.LockDuration < 1:
		return apperror.Validation("срок фиксации должен быть не меньше месяца")
	case in.LockDuration > valueobject.MaxLeaseMonths:
		return apperror.Validation("срок фиксации слишком большой").With("max_lock_duration", valueobject.MaxLeaseMonths)
	case in.LockedRentAmount <= 0:
		return apperror.Validation("ставка аренды должна быть положительной")
	case in.StartDate.IsZero():
		return apperror.Validation("не указана дата начала аренды")
	case in.DueDate < 1 || in.DueDate > 31:
		return apperror.Validation("день оплаты должен быть от 1 до 31")
	case in.SecurityDeposit < 0 || in.MaintenanceCharges < 0:
		return apperror.Validation("депозит и коммунальные платежи не могут быть отрицательными")
	case in.LateFeePercentage < 0 || in.LateFeePercentage > 100:
		return apperror.Validation("пеня должна быть от 0 до 100 процентов")
	}
	return nil
}

// Create оформляет договор по принятой брони. Инициатор - покупатель брони,
// договор на бронь может быть только один. Объект закрепляется за договором.
func (s *ContractService) Create(ctx context.Context, actor Actor, in CreateContractInput) (*models.Contract, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.BuyerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}
	if booking.Status != models.BookingStatusAccepted {
		return nil, apperror.InvalidTransition("договор можно оформить только по принятой брони", booking.Status)
	}

	existing, err := s.contracts.GetByBookingID(ctx, booking.ID)
	if err == nil {
		return nil, contractExists(existing)
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	listing, err := s.listings.GetByID(ctx, booking.ListingID)
	if err != nil {
		return nil, err
	}
	bookingID := booking.ID
	if !listing.AvailabilityStatus.IsBookable() && !listing.OwnedBy(models.LockOwner{BookingID: &bookingID}) {
		return nil, apperror.Conflict("объект занят другой сделкой", string(listing.AvailabilityStatus))
	}

	endDate := valueobject.AddMonths(in.StartDate, in.LockDuration)
	if in.EndDate != nil {
		endDate = *in.EndDate
	}
	if !endDate.After(in.StartDate) {
		return nil, apperror.Validation("дата окончания должна быть позже даты начала")
	}
	if endDate.After(valueobject.AddMonths(in.StartDate, valueobject.MaxLeaseMonths)) {
		return nil, apperror.Validation("срок аренды слишком большой").With("max_lock_duration", valueobject.MaxLeaseMonths)
	}

	c := &models.Contract{
		BookingID:          booking.ID,
		ListingID:          booking.ListingID,
		TenantID:           booking.BuyerID,
		LandlordID:         booking.SellerID,
		RentLockPlan:       in.RentLockPlan,
		LockDuration:       in.LockDuration,
		LockedRentAmount:   in.LockedRentAmount,
		StartDate:          in.StartDate,
		EndDate:            endDate,
		PaymentFrequency:   models.PaymentFrequencyMonthly,
		DueDate:            in.DueDate,
		SecurityDeposit:    in.SecurityDeposit,
		MaintenanceCharges: in.MaintenanceCharges,
		LateFeePercentage:  in.LateFeePercentage,
		Status:             valueobject.ContractStatusPendingSignature,
	}
	c.TermsDigest = TermsDigest(c)

	if err := s.insertWithCode(ctx, c); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			if existing, getErr := s.contracts.GetByBookingID(ctx, booking.ID); getErr == nil {
				return nil, contractExists(existing)
			}
		}
		return nil, err
	}

	if err := s.locks.Lock(ctx, c.ListingID, models.ContractOwner(c), valueobject.AvailabilityUnderContract, models.LockReasonContractPending); err != nil {
		s.effects.scheduleLockSync(ctx, c.ID, err)
	}
	s.syncBooking(ctx, c, models.RentalStatusContractPending, false)
	s.effects.notify(ctx, contractMessage("contract.created",
		fmt.Sprintf("Договор %s создан и ожидает подписей", c.Code),
		c.ID, c.ListingID, &actor.UserID, c.TenantID, c.LandlordID)...)

	return c, nil
}

// insertWithCode подбирает свободный код договора.
func (s *ContractService) insertWithCode(ctx context.Context, c *models.Contract) error {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newContractCode(s.policy.ContractCodePrefix, s.now())
		if err != nil {
			return err
		}
		c.Code = code

		err = s.contracts.Create(ctx, c)
		if errors.Is(err, repository.ErrDuplicateContractCode) {
			continue
		}
		return err
	}
	return fmt.Errorf("contract service: не удалось подобрать свободный код договора")
}

func contractExists(c *models.Contract) error {
	return apperror.Conflict("договор по этой брони уже существует", string(c.Status)).
		With("contract_id", c.ID.String()).
		With("code", c.Code)
}

// Resolve ищет договор по коду, а затем по внутреннему идентификатору.
func (s *ContractService) Resolve(ctx context.Context, ref string) (*models.Contract, error) {
	return resolveContract(ctx, s.contracts, ref)
}

// Get возвращает договор стороне сделки или администратору.
func (s *ContractService) Get(ctx context.Context, actor Actor, ref string) (*models.Contract, error) {
	c, _, err := contractForActor(ctx, s.contracts, actor, ref)
	return c, err
}

// List возвращает договоры, в которых пользователь участвует.
func (s *ContractService) List(ctx context.Context, actor Actor, limit, offset int) ([]models.Contract, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.contracts.ListByParty(ctx, actor.UserID, limit, offset)
}

// SignInput - реквизиты подписи.
type SignInput struct {
	IPAddress string
	UserAgent string
}

// Sign ставит подпись стороны. Когда подписи собраны, договор активируется;
// активацию выполняет ровно один из параллельных подписантов.
func (s *ContractService) Sign(ctx context.Context, actor Actor, ref string, in SignInput) (*models.Contract, error) {
	c, caps, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}
	party, ok := caps.Party()
	if !ok {
		return nil, apperror.ErrForbidden
	}
	if c.SignedBy(party) {
		// обе подписи есть, но активация не прошла - повторная подпись её завершает
		if c.Status == valueobject.ContractStatusPendingSignature && c.BothSigned() {
			return s.activateSigned(ctx, c)
		}
		return nil, apperror.Conflict("договор уже подписан этой стороной", string(c.Status))
	}
	if c.Status != valueobject.ContractStatusPendingSignature {
		return nil, apperror.InvalidTransition("подписать можно только договор, ожидающий подписей", string(c.Status))
	}

	signed, err := s.contracts.RecordSignature(ctx, c.ID, party, models.Signature{
		SignedAt:  s.now(),
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	}, TermsDigest(c))
	if err != nil {
		return nil, err
	}

	c, err = s.contracts.GetByID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !signed {
		if c.SignedBy(party) {
			return nil, apperror.Conflict("договор уже подписан этой стороной", string(c.Status))
		}
		return nil, apperror.InvalidTransition("подписать можно только договор, ожидающий подписей", string(c.Status))
	}

	s.effects.notify(ctx, contractMessage("contract.signed",
		fmt.Sprintf("Другая сторона подписала договор %s", c.Code),
		c.ID, c.ListingID, &actor.UserID, c.TenantID, c.LandlordID)...)

	if !c.BothSigned() {
		return c, nil
	}
	return s.activateSigned(ctx, c)
}

// activateSigned переводит полностью подписанный договор в active.
// Победитель условного UPDATE выполняет побочные эффекты активации.
func (s *ContractService) activateSigned(ctx context.Context, c *models.Contract) (*models.Contract, error) {
	activated, err := s.contracts.Activate(ctx, c.ID, s.now())
	if err != nil {
		return nil, err
	}
	if activated {
		c, err = s.contracts.GetByID(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		s.enterActive(ctx, c)
		s.effects.notify(ctx, contractMessage("contract.activated",
			fmt.Sprintf("Договор %s вступил в силу", c.Code),
			c.ID, c.ListingID, nil, c.TenantID, c.LandlordID)...)
	}
	return s.contracts.GetByID(ctx, c.ID)
}

// enterActive - побочные эффекты перехода в active. Ошибки не откатывают переход.
func (s *ContractService) enterActive(ctx context.Context, c *models.Contract) {
	if _, _, err := s.wallets.Generate(ctx, c); err != nil {
		s.effects.scheduleWallet(ctx, c.ID, err)
	}
	if err := s.locks.Lock(ctx, c.ListingID, models.ContractOwner(c), valueobject.AvailabilityRented, models.LockReasonContractActive); err != nil {
		s.effects.scheduleLockSync(ctx, c.ID, err)
	}
	logSideEffect("increment counters", logrus.Fields{"contract_id": c.ID},
		s.users.AdjustActiveContracts(ctx, c.TenantID, c.LandlordID, 1))
	s.syncBooking(ctx, c, models.RentalStatusContractSigned, false)
}

// StatusInput - административная смена статуса.
type StatusInput struct {
	Status string
	Reason string
}

// Статусы, которые может выставить администратор.
var adminStatuses = map[valueobject.ContractStatus]struct{}{
	valueobject.ContractStatusPendingSignature: {},
	valueobject.ContractStatusActive:           {},
	valueobject.ContractStatusExpired:          {},
	valueobject.ContractStatusTerminated:       {},
	valueobject.ContractStatusRejected:         {},
}

// SetStatus - административное изменение статуса в обход штатного графа переходов.
func (s *ContractService) SetStatus(ctx context.Context, actor Actor, ref string, in StatusInput) (*models.Contract, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	status, err := valueobject.NewContractStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if _, ok := adminStatuses[status]; !ok {
		return nil, apperror.InvalidTransition("этот статус нельзя выставить вручную", in.Status)
	}

	c, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if c.Status == status {
		return nil, apperror.InvalidTransition("договор уже в этом статусе", string(c.Status))
	}
	if status == valueobject.ContractStatusActive && !c.BothSigned() {
		return nil, apperror.InvalidTransition("активировать можно только подписанный обеими сторонами договор", string(c.Status))
	}

	var reason *string
	if r := strings.TrimSpace(in.Reason); r != "" {
		reason = &r
	}
	return s.transition(ctx, c, status, &actor.UserID, reason)
}

// transition меняет статус и выполняет каскад: блокировка объекта, зеркало брони, счётчики.
func (s *ContractService) transition(ctx context.Context, c *models.Contract, to valueobject.ContractStatus, actorID *uuid.UUID, reason *string) (*models.Contract, error) {
	from := c.Status
	ok, err := s.contracts.Transition(ctx, c.ID, repository.StatusChange{
		From:            from,
		To:              to,
		Actor:           actorID,
		Reason:          reason,
		At:              s.now(),
		ResetSignatures: to == valueobject.ContractStatusPendingSignature,
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.contracts.GetByID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.InvalidTransition("статус договора уже изменился", string(updated.Status))
	}

	if from == valueobject.ContractStatusActive && to != valueobject.ContractStatusActive {
		logSideEffect("decrement counters", logrus.Fields{"contract_id": c.ID},
			s.users.AdjustActiveContracts(ctx, updated.TenantID, updated.LandlordID, -1))
	}

	owner := models.ContractOwner(updated)
	switch to {
	case valueobject.ContractStatusActive:
		s.enterActive(ctx, updated)
	case valueobject.ContractStatusPendingSignature:
		if err := s.locks.Lock(ctx, updated.ListingID, owner, valueobject.AvailabilityUnderContract, models.LockReasonContractPending); err != nil {
			s.effects.scheduleLockSync(ctx, updated.ID, err)
		}
		s.syncBooking(ctx, updated, models.RentalStatusContractPending, false)
	case valueobject.ContractStatusTerminated, valueobject.ContractStatusRejected, valueobject.ContractStatusExpired:
		if err := s.locks.Release(ctx, updated.ListingID, owner, releaseReason(to), true); err != nil {
			s.effects.scheduleLockSync(ctx, updated.ID, err)
		}
		s.syncBooking(ctx, updated, models.RentalStatusTerminated, to == valueobject.ContractStatusTerminated)
	}

	s.effects.notify(ctx, contractMessage("contract.status_changed",
		fmt.Sprintf("Статус договора %s изменён: %s", updated.Code, updated.Status),
		updated.ID, updated.ListingID, actorID, updated.TenantID, updated.LandlordID)...)
	return updated, nil
}

func releaseReason(status valueobject.ContractStatus) string {
	switch status {
	case valueobject.ContractStatusRejected:
		return models.ReleaseReasonRejected
	case valueobject.ContractStatusExpired:
		return models.ReleaseReasonExpired
	}
	return models.ReleaseReasonTerminated
}

// syncBooking обновляет зеркальный статус брони.
func (s *ContractService) syncBooking(ctx context.Context, c *models.Contract, rentalStatus string, cancelIfAccepted bool) {
	logSideEffect("sync booking", logrus.Fields{"contract_id": c.ID, "booking_id": c.BookingID},
		s.bookings.UpdateRentalStatus(ctx, c.BookingID, rentalStatus, cancelIfAccepted))
}

// CascadeResult - итог каскада по отклонённой брони.
type CascadeResult struct {
	Contract *models.Contract `json:"contract,omitempty"`
	NoOp     bool             `json:"no_op"`
}

// OnBookingRejected переводит договор отклонённой или отменённой брони в rejected
// и освобождает объект. Договор в конечном статусе не трогается - это no-op, а не ошибка.
func (s *ContractService) OnBookingRejected(ctx context.Context, bookingID uuid.UUID) (*CascadeResult, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusRejected && booking.Status != models.BookingStatusCancelled {
		return nil, apperror.InvalidTransition("бронь не отклонена и не отменена", booking.Status)
	}

	c, err := s.contracts.GetByBookingID(ctx, bookingID)
	if apperror.IsNotFound(err) {
		return &CascadeResult{NoOp: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Status.IsTerminal() {
		return &CascadeResult{Contract: c, NoOp: true}, nil
	}

	reason := "бронь отклонена или отменена"
	updated, err := s.transition(ctx, c, valueobject.ContractStatusRejected, nil, &reason)
	if err != nil {
		return nil, err
	}
	return &CascadeResult{Contract: updated}, nil
}

// ExpireDue завершает действующие договоры с истёкшим сроком.
func (s *ContractService) ExpireDue(ctx context.Context, concurrency int) (SweepReport, error) {
	report := SweepReport{Name: "expiry"}
	contracts, err := s.contracts.ListExpired(ctx, s.now(), expiredBatchLimit)
	if err != nil {
		return report, err
	}
	report.Scanned = len(contracts)

	var processed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepLimit(concurrency))
	reason := "срок договора истёк"
	for i := range contracts {
		c := &contracts[i]
		g.Go(func() error {
			if _, err := s.transition(gctx, c, valueobject.ContractStatusExpired, nil, &reason); err != nil {
				failed.Add(1)
				logger.WithFields(logrus.Fields{"contract_id": c.ID, "error": err}).Error("договор не переведён в expired")
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Processed = int(processed.Load())
	report.Failed = int(failed.Load())
	return report, ctx.Err()
}

// ContractBundle - данные для внешнего генератора документа договора.
type ContractBundle struct {
	Contract *models.Contract `json:"contract"`
	Tenant   *models.User     `json:"tenant"`
	Landlord *models.User     `json:"landlord"`
	Listing  *models.Listing  `json:"listing"`
}

// DocumentBundle собирает договор, стороны и объект для рендера документа.
func (s *ContractService) DocumentBundle(ctx context.Context, actor Actor, ref string) (*ContractBundle, error) {
	c, _, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}

	tenant, err := s.users.GetByID(ctx, c.TenantID)
	if err != nil {
		return nil, err
	}
	landlord, err := s.users.GetByID(ctx, c.LandlordID)
	if err != nil {
		return nil, err
	}
	listing, err := s.listings.GetByID(ctx, c.ListingID)
	if err != nil {
		return nil, err
	}
	return &ContractBundle{Contract: c, Tenant: tenant, Landlord: landlord, Listing: listing}, nil
}

// ReconcileListingLock приводит блокировку объекта в соответствие статусу договора.
// Вызывается диспетчером очереди после неудачной синхронизации.
func (s *ContractService) ReconcileListingLock(ctx context.Context, contractID uuid.UUID) error {
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return err
	}

	owner := models.ContractOwner(c)
	switch c.Status {
	case valueobject.ContractStatusPendingSignature:
		return s.locks.Lock(ctx, c.ListingID, owner, valueobject.AvailabilityUnderContract, models.LockReasonContractPending)
	case valueobject.ContractStatusActive:
		return s.locks.Lock(ctx, c.ListingID, owner, valueobject.AvailabilityRented, models.LockReasonContractActive)
	case valueobject.ContractStatusTerminated, valueobject.ContractStatusRejected, valueobject.ContractStatusExpired:
		// объект мог уже перейти к другой сделке - снимаем только свою блокировку
		err := s.locks.Release(ctx, c.ListingID, owner, releaseReason(c.Status), false)
		if errors.Is(err, ErrLockNotOwned) {
			return nil
		}
		return err
	}
	return nil
}

// EnsureWallet создаёт график платежей действующего договора, если его ещё нет.
func (s *ContractService) EnsureWallet(ctx context.Context, contractID uuid.UUID) error {
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return err
	}
	if c.Status != valueobject.ContractStatusActive {
		return nil
	}
	_, _, err = s.wallets.Generate(ctx, c)
	return err
}

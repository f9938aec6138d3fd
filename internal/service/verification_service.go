package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/rental-backend/internal/config"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// VerificationStore - хранилище проверок объектов.
type VerificationStore interface {
	Create(ctx context.Context, v *models.PropertyVerification) error
	Reopen(ctx context.Context, id, requestedBy uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.PropertyVerification, error)
	GetByListingID(ctx context.Context, listingID uuid.UUID) (*models.PropertyVerification, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, kind string, document *string, verified bool) (bool, error)
	UpdateInspection(ctx context.Context, id uuid.UUID, completed, passed bool, notes *string) (bool, error)
	Approve(ctx context.Context, id, actor uuid.UUID, at, badgeExpiresAt time.Time) (bool, error)
	Reject(ctx context.Context, id, actor uuid.UUID, reason string, at time.Time) (bool, error)
}

// BadgeWriter пишет бейдж проверки в объект.
type BadgeWriter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	SetBadge(ctx context.Context, id uuid.UUID, verified bool, expiresAt *time.Time) error
	ClearExpiredBadges(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// VerificationService ведёт проверку объекта: документы, осмотр и бейдж.
type VerificationService struct {
	verifications VerificationStore
	listings      BadgeWriter
	effects       effects
	policy        config.Policy
	now           func() time.Time
}

func NewVerificationService(verifications VerificationStore, listings BadgeWriter, outbox OutboxWriter, policy config.Policy) *VerificationService {
	return &VerificationService{
		verifications: verifications,
		listings:      listings,
		effects:       effects{outbox: outbox},
		policy:        policy,
		now:           time.Now,
	}
}

// Request заводит проверку объекта. Повторная подача возможна только после отказа.
func (s *VerificationService) Request(ctx context.Context, actor Actor, listingID uuid.UUID) (*models.PropertyVerification, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	existing, err := s.verifications.GetByListingID(ctx, listingID)
	switch {
	case err == nil:
		return s.reopen(ctx, actor, existing)
	case !apperror.IsNotFound(err):
		return nil, err
	}

	v := &models.PropertyVerification{
		ListingID:   listingID,
		RequestedBy: actor.UserID,
		Status:      models.VerificationStatusPending,
	}
	if err := s.verifications.Create(ctx, v); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			if existing, getErr := s.verifications.GetByListingID(ctx, listingID); getErr == nil {
				return nil, verificationExists(existing)
			}
		}
		return nil, err
	}
	return v, nil
}

func (s *VerificationService) reopen(ctx context.Context, actor Actor, v *models.PropertyVerification) (*models.PropertyVerification, error) {
	if v.Status != models.VerificationStatusRejected {
		return nil, verificationExists(v)
	}
	ok, err := s.verifications.Reopen(ctx, v.ID, actor.UserID)
	if err != nil {
		return nil, err
	}
	updated, err := s.verifications.GetByID(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, verificationExists(updated)
	}
	return updated, nil
}

func verificationExists(v *models.PropertyVerification) error {
	return apperror.Conflict("по объекту уже есть проверка", v.Status).
		With("verification_id", v.ID.String())
}

// Get возвращает проверку владельцу объекта или администратору.
func (s *VerificationService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.PropertyVerification, error) {
	v, err := s.verifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return v, nil
	}
	listing, err := s.listings.GetByID(ctx, v.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != actor.UserID {
		return nil, apperror.ErrForbidden
	}
	return v, nil
}

// DocumentInput - результат проверки одного документа.
type DocumentInput struct {
	Kind     string
	Document *string
	Verified bool
}

// UpdateDocument отмечает документ проверенным или нет.
func (s *VerificationService) UpdateDocument(ctx context.Context, actor Actor, id uuid.UUID, in DocumentInput) (*models.PropertyVerification, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	switch in.Kind {
	case models.VerificationDocOwnership, models.VerificationDocIdentity, models.VerificationDocAddress:
	default:
		return nil, apperror.Validation("неизвестный вид документа").With("kind", in.Kind)
	}

	ok, err := s.verifications.UpdateDocument(ctx, id, in.Kind, in.Document, in.Verified)
	if err != nil {
		return nil, err
	}
	return s.afterUpdate(ctx, id, ok)
}

// InspectionInput - результат осмотра объекта.
type InspectionInput struct {
	Completed bool
	Passed    bool
	Notes     *string
}

// UpdateInspection записывает результат осмотра.
func (s *VerificationService) UpdateInspection(ctx context.Context, actor Actor, id uuid.UUID, in InspectionInput) (*models.PropertyVerification, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if in.Passed && !in.Completed {
		return nil, apperror.Validation("нельзя пройти осмотр, который не проведён")
	}

	ok, err := s.verifications.UpdateInspection(ctx, id, in.Completed, in.Passed, in.Notes)
	if err != nil {
		return nil, err
	}
	return s.afterUpdate(ctx, id, ok)
}

func (s *VerificationService) afterUpdate(ctx context.Context, id uuid.UUID, ok bool) (*models.PropertyVerification, error) {
	v, err := s.verifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.InvalidTransition("проверка уже завершена", v.Status)
	}
	return v, nil
}

// Approve одобряет проверку и выдаёт бейдж. Одобрить можно только при пройденных
// проверках всех документов и осмотра.
func (s *VerificationService) Approve(ctx context.Context, actor Actor, id uuid.UUID) (*models.PropertyVerification, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	v, err := s.verifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.IsFinal() {
		return nil, apperror.InvalidTransition("проверка уже завершена", v.Status)
	}
	if !v.AllChecksPassed() {
		return nil, apperror.Validation("не все проверки пройдены").With("current_status", v.Status)
	}

	now := s.now()
	expiresAt := now.Add(s.policy.BadgeValidity())
	ok, err := s.verifications.Approve(ctx, id, actor.UserID, now, expiresAt)
	if err != nil {
		return nil, err
	}
	updated, err := s.afterUpdate(ctx, id, ok)
	if err != nil {
		return nil, err
	}

	if err := s.listings.SetBadge(ctx, v.ListingID, true, &expiresAt); err != nil {
		logSideEffect("set badge", logrus.Fields{"verification_id": id, "listing_id": v.ListingID}, err)
	}
	s.notifyOwner(ctx, v.ListingID, "verification.approved", "Объект прошёл проверку, бейдж выдан")
	return updated, nil
}

// Reject отклоняет проверку и снимает бейдж.
func (s *VerificationService) Reject(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*models.PropertyVerification, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("укажите причину отказа")
	}

	ok, err := s.verifications.Reject(ctx, id, actor.UserID, reason, s.now())
	if err != nil {
		return nil, err
	}
	updated, err := s.afterUpdate(ctx, id, ok)
	if err != nil {
		return nil, err
	}

	if err := s.listings.SetBadge(ctx, updated.ListingID, false, nil); err != nil {
		logSideEffect("clear badge", logrus.Fields{"verification_id": id, "listing_id": updated.ListingID}, err)
	}
	s.notifyOwner(ctx, updated.ListingID, "verification.rejected", "Проверка объекта отклонена: "+reason)
	return updated, nil
}

// ExpireBadges снимает бейджи, срок действия которых истёк.
func (s *VerificationService) ExpireBadges(ctx context.Context) (SweepReport, error) {
	report := SweepReport{Name: "badges"}
	ids, err := s.listings.ClearExpiredBadges(ctx, s.now())
	if err != nil {
		return report, err
	}
	report.Scanned = len(ids)
	report.Processed = len(ids)
	for _, id := range ids {
		s.notifyOwner(ctx, id, "verification.badge_expired", "Срок действия бейджа проверки истёк")
	}
	return report, nil
}

func (s *VerificationService) notifyOwner(ctx context.Context, listingID uuid.UUID, event, text string) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		logSideEffect("notify listing owner", logrus.Fields{"listing_id": listingID, "event": event}, err)
		return
	}
	id := listingID
	s.effects.notify(ctx, NotificationMessage{
		UserID:    listing.OwnerID,
		Event:     event,
		ListingID: &id,
		Message:   text,
		ActionURL: "/listings/" + listingID.String() + "/verification",
	})
}

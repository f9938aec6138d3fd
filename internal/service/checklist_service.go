package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/rental-backend/internal/domain/valueobject"
	"github.com/ignatzorin/rental-backend/internal/models"
	"github.com/ignatzorin/rental-backend/internal/pkg/apperror"
	"github.com/ignatzorin/rental-backend/internal/repository/common"
)

// ChecklistStore - хранилище актов осмотра.
type ChecklistStore interface {
	Create(ctx context.Context, c *models.MoveInOutChecklist) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MoveInOutChecklist, error)
	GetByContractAndType(ctx context.Context, contractID uuid.UUID, checklistType string) (*models.MoveInOutChecklist, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.MoveInOutChecklist, error)
	UpdateContent(ctx context.Context, c *models.MoveInOutChecklist) (bool, error)
	Approve(ctx context.Context, id uuid.UUID, party models.Party, at time.Time) (bool, error)
	AdminOverride(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	SaveDamageAssessment(ctx context.Context, id uuid.UUID, assessment *models.DamageAssessment) error
}

// ChecklistService - акты осмотра при въезде и выезде и оценка ущерба.
type ChecklistService struct {
	checklists ChecklistStore
	contracts  ContractReader
	effects    effects
	now        func() time.Time
}

func NewChecklistService(checklists ChecklistStore, contracts ContractReader, outbox OutboxWriter) *ChecklistService {
	return &ChecklistService{
		checklists: checklists,
		contracts:  contracts,
		effects:    effects{outbox: outbox},
		now:        time.Now,
	}
}

// ChecklistInput - содержимое акта осмотра.
type ChecklistInput struct {
	Type      string
	Rooms     models.RoomConditions
	Amenities models.AmenityConditions
	Media     []string
	Notes     *string
}

func (in ChecklistInput) validate() error {
	for _, room := range in.Rooms {
		if room.Name == "" {
			return apperror.Validation("у комнаты должно быть название")
		}
		if room.DamageCost < 0 {
			return apperror.Validation("стоимость ущерба не может быть отрицательной").With("room", room.Name)
		}
	}
	return nil
}

// Create заводит акт. По договору допускается один акт каждого вида.
func (s *ChecklistService) Create(ctx context.Context, actor Actor, ref string, in ChecklistInput) (*models.MoveInOutChecklist, error) {
	c, caps, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}
	if _, ok := caps.Party(); !ok && !caps.Admin {
		return nil, apperror.ErrForbidden
	}
	if _, ok := models.ValidChecklistTypes[in.Type]; !ok {
		return nil, apperror.Validation("некорректный вид чек-листа").With("type", in.Type)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := s.checklists.GetByContractAndType(ctx, c.ID, in.Type)
	if err == nil {
		return nil, checklistExists(existing)
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	checklist := &models.MoveInOutChecklist{
		ContractID: c.ID,
		Type:       in.Type,
		CreatedBy:  actor.UserID,
		Rooms:      in.Rooms,
		Amenities:  in.Amenities,
		Media:      append(pq.StringArray{}, in.Media...),
		Notes:      in.Notes,
		Status:     models.ChecklistStatusDraft,
	}
	if err := s.checklists.Create(ctx, checklist); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			if existing, getErr := s.checklists.GetByContractAndType(ctx, c.ID, in.Type); getErr == nil {
				return nil, checklistExists(existing)
			}
		}
		return nil, err
	}

	s.effects.notify(ctx, contractMessage("checklist.created",
		fmt.Sprintf("Составлен акт осмотра (%s), нужно ваше подтверждение", in.Type),
		c.ID, c.ListingID, &actor.UserID, c.TenantID, c.LandlordID)...)
	return checklist, nil
}

func checklistExists(c *models.MoveInOutChecklist) error {
	return apperror.Conflict("акт этого вида по договору уже есть", c.Status).
		With("checklist_id", c.ID.String())
}

// load возвращает акт, договор и права пользователя.
func (s *ChecklistService) load(ctx context.Context, actor Actor, id uuid.UUID) (*models.MoveInOutChecklist, *models.Contract, Capabilities, error) {
	checklist, err := s.checklists.GetByID(ctx, id)
	if err != nil {
		return nil, nil, Capabilities{}, err
	}
	c, err := s.contracts.GetByID(ctx, checklist.ContractID)
	if err != nil {
		return nil, nil, Capabilities{}, err
	}
	caps := ContractCapabilities(actor, c)
	if !caps.CanView() {
		return nil, nil, caps, apperror.ErrForbidden
	}
	return checklist, c, caps, nil
}

// Get возвращает акт осмотра.
func (s *ChecklistService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.MoveInOutChecklist, error) {
	checklist, _, _, err := s.load(ctx, actor, id)
	return checklist, err
}

// ListByContract возвращает акты по договору.
func (s *ChecklistService) ListByContract(ctx context.Context, actor Actor, ref string) ([]models.MoveInOutChecklist, error) {
	c, _, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}
	return s.checklists.ListByContract(ctx, c.ID)
}

// Update переписывает неутверждённый акт. Согласования сторон сбрасываются.
func (s *ChecklistService) Update(ctx context.Context, actor Actor, id uuid.UUID, in ChecklistInput) (*models.MoveInOutChecklist, error) {
	checklist, _, caps, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if _, ok := caps.Party(); !ok && !caps.Admin {
		return nil, apperror.ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if checklist.Status == models.ChecklistStatusApproved {
		return nil, apperror.InvalidTransition("утверждённый акт не редактируется", checklist.Status)
	}

	checklist.Rooms = in.Rooms
	checklist.Amenities = in.Amenities
	checklist.Media = append(pq.StringArray{}, in.Media...)
	checklist.Notes = in.Notes
	ok, err := s.checklists.UpdateContent(ctx, checklist)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.InvalidTransition("утверждённый акт не редактируется", models.ChecklistStatusApproved)
	}
	return s.checklists.GetByID(ctx, id)
}

// Approve - согласование стороны. Администратор утверждает акт сразу за обе стороны.
func (s *ChecklistService) Approve(ctx context.Context, actor Actor, id uuid.UUID) (*models.MoveInOutChecklist, error) {
	checklist, c, caps, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if checklist.Status == models.ChecklistStatusApproved {
		return nil, apperror.InvalidTransition("акт уже утверждён", checklist.Status)
	}

	var ok bool
	party, isParty := caps.Party()
	switch {
	case isParty:
		ok, err = s.checklists.Approve(ctx, checklist.ID, party, s.now())
	case caps.Admin:
		ok, err = s.checklists.AdminOverride(ctx, checklist.ID, s.now())
	default:
		return nil, apperror.ErrForbidden
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.checklists.GetByID(ctx, checklist.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if updated.Status == models.ChecklistStatusApproved {
			return nil, apperror.InvalidTransition("акт уже утверждён", updated.Status)
		}
		return nil, apperror.Conflict("вы уже подтвердили этот акт", updated.Status)
	}

	if updated.Status == models.ChecklistStatusApproved {
		s.effects.notify(ctx, contractMessage("checklist.approved", "Акт осмотра утверждён",
			c.ID, c.ListingID, nil, c.TenantID, c.LandlordID)...)
	}
	return updated, nil
}

// AssessDamage сравнивает акты въезда и выезда: суммирует ущерб по комнатам
// из акта выезда и удерживает его из депозита, но не больше суммы депозита.
func (s *ChecklistService) AssessDamage(ctx context.Context, actor Actor, ref string) (*models.DamageAssessment, error) {
	c, caps, err := contractForActor(ctx, s.contracts, actor, ref)
	if err != nil {
		return nil, err
	}
	if !caps.Landlord && !caps.Admin {
		return nil, apperror.ErrForbidden
	}

	if _, err := s.checklists.GetByContractAndType(ctx, c.ID, models.ChecklistTypeMoveIn); err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.Validation("для оценки ущерба нужны акты въезда и выезда")
		}
		return nil, err
	}
	moveOut, err := s.checklists.GetByContractAndType(ctx, c.ID, models.ChecklistTypeMoveOut)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.Validation("для оценки ущерба нужны акты въезда и выезда")
		}
		return nil, err
	}

	assessment := AssessDamage(moveOut.Rooms, c.SecurityDeposit)
	assessment.AssessedBy = actor.UserID
	assessment.AssessedAt = s.now()
	if err := s.checklists.SaveDamageAssessment(ctx, moveOut.ID, assessment); err != nil {
		return nil, err
	}

	s.effects.notify(ctx, contractMessage("checklist.damage_assessed",
		fmt.Sprintf("Оценка ущерба: удержание %.2f, к возврату %.2f", assessment.DepositDeduction, assessment.RefundableAmount),
		c.ID, c.ListingID, &actor.UserID, c.TenantID, c.LandlordID)...)
	return assessment, nil
}

// AssessDamage - расчёт удержания из депозита по комнатам акта выезда.
func AssessDamage(rooms models.RoomConditions, deposit float64) *models.DamageAssessment {
	items := make([]models.DamageItem, 0, len(rooms))
	costs := make([]float64, 0, len(rooms))
	for _, room := range rooms {
		if room.DamageCost <= 0 {
			continue
		}
		items = append(items, models.DamageItem{Room: room.Name, Description: room.DamageDescription, Cost: room.DamageCost})
		costs = append(costs, room.DamageCost)
	}

	total := valueobject.Sum(costs...)
	deduction := total
	if deduction > deposit {
		deduction = deposit
	}
	return &models.DamageAssessment{
		Items:            items,
		TotalDamage:      total,
		SecurityDeposit:  deposit,
		DepositDeduction: deduction,
		RefundableAmount: valueobject.Sum(deposit, -deduction),
	}
}

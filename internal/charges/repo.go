package charges

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
)

var captureDueStatuses = []enums.ChargeStatus{
	enums.ChargeStatusCaptureApproved,
	enums.ChargeStatusCaptureApprovedRetry,
}

// Repository manages persistence for charges and their event log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, charge *models.Charge) error
	FindByExternalID(ctx context.Context, externalID string) (*models.Charge, error)
	FindAccountByExternalID(ctx context.Context, externalID string) (*models.GatewayAccount, error)
	UpdateWhereVersion(ctx context.Context, chargeID uuid.UUID, version int64, updates map[string]any) (int64, error)
	Update(ctx context.Context, chargeID uuid.UUID, updates map[string]any) error
	AppendEvent(ctx context.Context, event *models.ChargeEvent) error
	ListEvents(ctx context.Context, chargeID uuid.UUID) ([]models.ChargeEvent, error)
	CountEventsWithStatus(ctx context.Context, chargeID uuid.UUID, status enums.ChargeStatus) (int, error)
	FindChargesForCapture(ctx context.Context, cutoff time.Time, limit int) ([]models.Charge, error)
	FindChargeToExpunge(ctx context.Context, createdBefore, parityCheckedBefore time.Time) (*models.Charge, error)
	DeleteChargeWithEvents(ctx context.Context, chargeID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a charge repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, charge *models.Charge) error {
	return r.db.WithContext(ctx).Create(charge).Error
}

func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*models.Charge, error) {
	var charge models.Charge
	if err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&charge).Error; err != nil {
		return nil, err
	}
	return &charge, nil
}

func (r *repository) FindAccountByExternalID(ctx context.Context, externalID string) (*models.GatewayAccount, error) {
	var account models.GatewayAccount
	if err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateWhereVersion applies updates only when the stored version still
// matches. Returns the number of rows touched; zero means a concurrent writer
// got there first.
func (r *repository) UpdateWhereVersion(ctx context.Context, chargeID uuid.UUID, version int64, updates map[string]any) (int64, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["version"] = version + 1
	result := r.db.WithContext(ctx).
		Model(&models.Charge{}).
		Where("id = ? AND version = ?", chargeID, version).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) Update(ctx context.Context, chargeID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Charge{}).
		Where("id = ?", chargeID).
		Updates(updates).Error
}

func (r *repository) AppendEvent(ctx context.Context, event *models.ChargeEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, chargeID uuid.UUID) ([]models.ChargeEvent, error) {
	var events []models.ChargeEvent
	if err := r.db.WithContext(ctx).
		Where("charge_id = ?", chargeID).
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) CountEventsWithStatus(ctx context.Context, chargeID uuid.UUID, status enums.ChargeStatus) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ChargeEvent{}).
		Where("charge_id = ? AND status = ?", chargeID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// lastEventAt is the timestamp of the charge's most recent event. Rows
// without events fall back to updated_date.
const lastEventAt = "COALESCE((SELECT MAX(ce.created_at) FROM charge_events ce WHERE ce.charge_id = charges.id), charges.updated_date)"

// FindChargesForCapture returns capture-due charges whose latest event
// predates cutoff, oldest first, bounded by limit so a sweep cannot
// monopolize the pool. The window is measured off the event log; unrelated
// row writes such as a parity check do not reset it.
func (r *repository) FindChargesForCapture(ctx context.Context, cutoff time.Time, limit int) ([]models.Charge, error) {
	var rows []models.Charge
	if err := r.db.WithContext(ctx).
		Where("status IN ?", captureDueStatuses).
		Where(lastEventAt+" < ?", cutoff).
		Order(lastEventAt + " ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindChargeToExpunge returns the oldest charge missing from the downstream
// ledger, skipping anything parity-checked inside the grace window. At most
// one candidate per call; batch callers loop.
func (r *repository) FindChargeToExpunge(ctx context.Context, createdBefore, parityCheckedBefore time.Time) (*models.Charge, error) {
	var charge models.Charge
	err := r.db.WithContext(ctx).
		Where("created_date < ?", createdBefore).
		Where("parity_check_status = ?", enums.ParityCheckStatusMissingInLedger).
		Where("parity_check_date IS NULL OR parity_check_date < ?", parityCheckedBefore).
		Order("created_date ASC").
		First(&charge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func (r *repository) DeleteChargeWithEvents(ctx context.Context, chargeID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("charge_id = ?", chargeID).
		Delete(&models.ChargeEvent{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", chargeID).
		Delete(&models.Charge{}).Error
}

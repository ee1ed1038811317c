package idempotency

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calderapay/connector/pkg/db/models"
)

// Repository persists idempotency records. Insert must surface the underlying
// unique-violation error untranslated; the guard inspects it.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, record *models.IdempotencyRecord) error
	FindByAccountAndKey(ctx context.Context, accountID uuid.UUID, key string) (*models.IdempotencyRecord, error)
	Delete(ctx context.Context, accountID uuid.UUID, key string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an idempotency repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, record *models.IdempotencyRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByAccountAndKey(ctx context.Context, accountID uuid.UUID, key string) (*models.IdempotencyRecord, error) {
	var record models.IdempotencyRecord
	if err := r.db.WithContext(ctx).
		Where("gateway_account_id = ? AND key = ?", accountID, key).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) Delete(ctx context.Context, accountID uuid.UUID, key string) error {
	return r.db.WithContext(ctx).
		Where("gateway_account_id = ? AND key = ?", accountID, key).
		Delete(&models.IdempotencyRecord{}).Error
}

package credentials

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
)

// Repository manages persistence for gateway account credentials.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, credential *models.GatewayAccountCredential) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.GatewayAccountCredential, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.GatewayAccountCredential, error)
	FindByAccountAndProvider(ctx context.Context, accountID uuid.UUID, provider enums.PaymentProvider) ([]models.GatewayAccountCredential, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.GatewayAccountCredential, error)
	UpdateState(ctx context.Context, credentialID uuid.UUID, state enums.CredentialState, updates map[string]any) error
	FindAccountByExternalID(ctx context.Context, externalID string) (*models.GatewayAccount, error)
	UpsertWorldpay3DSFlex(ctx context.Context, credential *models.Worldpay3DSFlexCredential) error
	FindWorldpay3DSFlex(ctx context.Context, accountID uuid.UUID) (*models.Worldpay3DSFlexCredential, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credential repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, credential *models.GatewayAccountCredential) error {
	return r.db.WithContext(ctx).Create(credential).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GatewayAccountCredential, error) {
	var credential models.GatewayAccountCredential
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&credential).Error; err != nil {
		return nil, err
	}
	return &credential, nil
}

func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*models.GatewayAccountCredential, error) {
	var credential models.GatewayAccountCredential
	if err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&credential).Error; err != nil {
		return nil, err
	}
	return &credential, nil
}

func (r *repository) FindByAccountAndProvider(ctx context.Context, accountID uuid.UUID, provider enums.PaymentProvider) ([]models.GatewayAccountCredential, error) {
	var rows []models.GatewayAccountCredential
	if err := r.db.WithContext(ctx).
		Where("gateway_account_id = ? AND payment_provider = ?", accountID, provider).
		Order("created_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByAccount returns the full credential history in store order.
func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.GatewayAccountCredential, error) {
	var rows []models.GatewayAccountCredential
	if err := r.db.WithContext(ctx).
		Where("gateway_account_id = ?", accountID).
		Order("created_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateState(ctx context.Context, credentialID uuid.UUID, state enums.CredentialState, updates map[string]any) error {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["state"] = state
	return r.db.WithContext(ctx).
		Model(&models.GatewayAccountCredential{}).
		Where("id = ?", credentialID).
		Updates(updates).Error
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

func (r *repository) UpsertWorldpay3DSFlex(ctx context.Context, credential *models.Worldpay3DSFlexCredential) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "gateway_account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"issuer", "organisational_unit_id", "jwt_mac_key", "updated_at",
			}),
		}).
		Create(credential).Error
}

func (r *repository) FindWorldpay3DSFlex(ctx context.Context, accountID uuid.UUID) (*models.Worldpay3DSFlexCredential, error) {
	var credential models.Worldpay3DSFlexCredential
	if err := r.db.WithContext(ctx).
		Where("gateway_account_id = ?", accountID).
		First(&credential).Error; err != nil {
		return nil, err
	}
	return &credential, nil
}

// retireActive flips the currently active row (if any) to retired and stamps
// its active_end_date. Used inside the activation transaction.
func retireActive(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, now time.Time) error {
	return tx.WithContext(ctx).
		Model(&models.GatewayAccountCredential{}).
		Where("gateway_account_id = ? AND state = ?", accountID, enums.CredentialStateActive).
		Updates(map[string]any{
			"state":           enums.CredentialStateRetired,
			"active_end_date": now,
		}).Error
}

package charges

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	credentialsvc "github.com/calderapay/connector/internal/credentials"
	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

// A charge keeps the credential it was created with for its whole life, even
// when the account rotates to a new provider mid-flight.
func TestChargeKeepsCredentialAcrossRotation(t *testing.T) {
	db := setupChargesTestDB(t)
	ctx := context.Background()

	account := &models.GatewayAccount{
		ID:          uuid.New(),
		ExternalID:  "acct-rotate",
		ServiceName: "Rotation Service",
	}
	require.NoError(t, db.Create(account).Error)

	credentialService, err := credentialsvc.NewService(credentialsvc.ServiceParams{
		Repo:   credentialsvc.NewRepository(db),
		DB:     gormTxRunner{db: db},
		Logger: testLogger(),
	})
	require.NoError(t, err)

	chargeRepo := NewRepository(db)
	chargeService, err := NewService(ServiceParams{
		Repo:        chargeRepo,
		DB:          gormTxRunner{db: db},
		Credentials: credentialService,
		Guard:       &stubGuard{},
		Logger:      testLogger(),
	})
	require.NoError(t, err)

	worldpay, err := credentialService.CreateCredential(ctx, account, credentialsvc.CreateCredentialParams{
		Provider: enums.PaymentProviderWorldpay,
		Credentials: map[string]string{
			"merchant_id": "m1",
			"username":    "u1",
			"password":    "p1",
		},
	})
	require.NoError(t, err)
	_, err = credentialService.ActivateCredential(ctx, worldpay.ExternalID, "user-1")
	require.NoError(t, err)

	resolved, err := credentialService.ResolveCurrent(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentProviderWorldpay, resolved.PaymentProvider)

	charge, duplicate, err := chargeService.Create(ctx, account, CreateParams{
		AmountPence: 2500,
		Reference:   "ref-rotate",
		Description: "rotation payment",
	})
	require.NoError(t, err)
	require.False(t, duplicate)
	require.NotNil(t, charge.CredentialID)
	assert.Equal(t, resolved.ID, *charge.CredentialID)

	// Rotate: bring a stripe credential live, which retires the worldpay one
	// in the same transaction.
	stripe, err := credentialService.CreateCredential(ctx, account, credentialsvc.CreateCredentialParams{
		Provider:    enums.PaymentProviderStripe,
		Credentials: map[string]string{"stripe_account_id": "acct_123"},
	})
	require.NoError(t, err)
	_, err = credentialService.ActivateCredential(ctx, stripe.ExternalID, "user-1")
	require.NoError(t, err)

	rotated, err := credentialService.ResolveCurrent(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentProviderStripe, rotated.PaymentProvider)
	assert.NotEqual(t, resolved.ID, rotated.ID)

	reloaded, err := chargeRepo.FindByExternalID(ctx, charge.ExternalID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.CredentialID)
	assert.Equal(t, resolved.ID, *reloaded.CredentialID)

	rows, err := credentialService.List(ctx, account)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		if row.ID == resolved.ID {
			assert.Equal(t, enums.CredentialStateRetired, row.State)
			assert.NotNil(t, row.ActiveEndDate)
		}
	}
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/calderapay/connector/pkg/enums"
)

// GatewayAccountCredential is one (provider, generation) credential set for an
// account. At most one row per account holds state active at any instant;
// ActiveEndDate is stamped exactly when a row leaves active.
type GatewayAccountCredential struct {
	ID               uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalID       string                `gorm:"column:external_id;not null;unique"`
	GatewayAccountID uuid.UUID             `gorm:"column:gateway_account_id;type:uuid;not null;index"`
	PaymentProvider  enums.PaymentProvider `gorm:"column:payment_provider;not null"`
	Credentials      json.RawMessage       `gorm:"column:credentials;type:jsonb;not null;default:'{}'"`
	State            enums.CredentialState `gorm:"column:state;not null;default:'created'"`
	Role             enums.CredentialRole  `gorm:"column:role;not null;default:'primary'"`

	ActiveStartDate *time.Time `gorm:"column:active_start_date"`
	ActiveEndDate   *time.Time `gorm:"column:active_end_date"`

	LastUpdatedByUserExternalID *string `gorm:"column:last_updated_by_user_external_id"`

	CreatedDate time.Time `gorm:"column:created_date;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CredentialFields decodes the opaque credentials blob.
func (c GatewayAccountCredential) CredentialFields() (map[string]string, error) {
	fields := map[string]string{}
	if len(c.Credentials) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(c.Credentials, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// GooglePayMerchantID returns the configured Google Pay merchant id, if any.
func (c GatewayAccountCredential) GooglePayMerchantID() string {
	fields, err := c.CredentialFields()
	if err != nil {
		return ""
	}
	return fields["gateway_merchant_id"]
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/calderapay/connector/pkg/enums"
)

// GatewayAccount is the merchant-facing account a charge is raised against.
// Type is immutable after provisioning; accounts are never hard-deleted.
type GatewayAccount struct {
	ID          uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalID  string                   `gorm:"column:external_id;not null;unique"`
	Type        enums.GatewayAccountType `gorm:"column:type;not null;default:'test'"`
	ServiceName string                   `gorm:"column:service_name;not null"`
	AnalyticsID *string                  `gorm:"column:analytics_id"`

	CorporateCreditCardSurchargePct decimal.Decimal `gorm:"column:corporate_credit_card_surcharge_pct;type:numeric(5,2);not null;default:0"`
	CorporateDebitCardSurchargePct  decimal.Decimal `gorm:"column:corporate_debit_card_surcharge_pct;type:numeric(5,2);not null;default:0"`

	AllowMoto        bool `gorm:"column:allow_moto;not null;default:false"`
	Requires3DS      bool `gorm:"column:requires_3ds;not null;default:false"`
	RecurringEnabled bool `gorm:"column:recurring_enabled;not null;default:false"`
	AllowGooglePay   bool `gorm:"column:allow_google_pay;not null;default:false"`

	Disabled       bool    `gorm:"column:disabled;not null;default:false"`
	DisabledReason *string `gorm:"column:disabled_reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Worldpay3DSFlexCredential holds the zero-or-one 3DS Flex configuration
// attached to a Worldpay gateway account.
type Worldpay3DSFlexCredential struct {
	ID                   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	GatewayAccountID     uuid.UUID `gorm:"column:gateway_account_id;type:uuid;not null;unique"`
	Issuer               string    `gorm:"column:issuer;not null"`
	OrganisationalUnitID string    `gorm:"column:organisational_unit_id;not null"`
	JWTMACKey            string    `gorm:"column:jwt_mac_key;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

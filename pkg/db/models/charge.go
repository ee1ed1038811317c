package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/calderapay/connector/pkg/enums"
)

// Charge is a single payment moving through the lifecycle graph. It references
// its account and credential set by id only; the credential reference is
// frozen once authorisation has been attempted, even if the account later
// rotates to a new provider.
type Charge struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalID       string     `gorm:"column:external_id;not null;unique"`
	GatewayAccountID uuid.UUID  `gorm:"column:gateway_account_id;type:uuid;not null;index"`
	CredentialID     *uuid.UUID `gorm:"column:gateway_account_credential_id;type:uuid"`

	Status      enums.ChargeStatus `gorm:"column:status;not null;default:'created';index"`
	AmountPence int64              `gorm:"column:amount_pence;not null"`
	Reference   string             `gorm:"column:reference;not null"`
	Description string             `gorm:"column:description;not null"`
	Email       *string            `gorm:"column:email"`

	CardBrand          *string `gorm:"column:card_brand"`
	CardLastDigits     *string `gorm:"column:card_last_digits"`
	CardFirstDigits    *string `gorm:"column:card_first_digits"`
	CardholderName     *string `gorm:"column:cardholder_name"`
	BillingAddressLine *string `gorm:"column:billing_address_line"`
	BillingPostcode    *string `gorm:"column:billing_postcode"`
	BillingCountry     *string `gorm:"column:billing_country"`

	PaRequest      *string `gorm:"column:pa_request"`
	IssuerURL      *string `gorm:"column:issuer_url"`
	HTMLOut        *string `gorm:"column:html_out"`
	WorldpayMD     *string `gorm:"column:worldpay_md"`
	ThreeDSVersion *string `gorm:"column:three_ds_version"`

	GatewayTransactionID *string                 `gorm:"column:gateway_transaction_id"`
	AuthorisationMode    enums.AuthorisationMode `gorm:"column:authorisation_mode;not null;default:'web'"`
	CanRetry             bool                    `gorm:"column:can_retry;not null;default:true"`

	ParityCheckStatus *enums.ParityCheckStatus `gorm:"column:parity_check_status"`
	ParityCheckDate   *time.Time               `gorm:"column:parity_check_date"`

	// Version serialises concurrent transitions; a stale writer loses.
	Version int64 `gorm:"column:version;not null;default:0"`

	CreatedDate time.Time `gorm:"column:created_date;autoCreateTime;index"`
	UpdatedDate time.Time `gorm:"column:updated_date;autoUpdateTime"`
}

// ChargeEvent is one row of the append-only status history. Each carries the
// gateway transaction id in effect at the moment of the transition so gateway
// calls can be matched to events across retries.
type ChargeEvent struct {
	ID                   uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ChargeID             uuid.UUID          `gorm:"column:charge_id;type:uuid;not null;index"`
	Status               enums.ChargeStatus `gorm:"column:status;not null"`
	GatewayTransactionID *string            `gorm:"column:gateway_transaction_id"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
}

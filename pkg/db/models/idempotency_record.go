package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecordConstraint names the unique index the guard relies on.
const IdempotencyRecordConstraint = "idx_idempotency_account_key"

// IdempotencyRecord pins a client-supplied key to the resource it produced.
// Rows are immutable; a second insert with the same (account, key) pair must
// fail on the unique index rather than silently succeed.
type IdempotencyRecord struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	GatewayAccountID   uuid.UUID       `gorm:"column:gateway_account_id;type:uuid;not null;uniqueIndex:idx_idempotency_account_key"`
	Key                string          `gorm:"column:key;not null;uniqueIndex:idx_idempotency_account_key"`
	ResourceExternalID string          `gorm:"column:resource_external_id;not null"`
	RequestBody        json.RawMessage `gorm:"column:request_body;type:jsonb;not null"`
	CreatedDate        time.Time       `gorm:"column:created_date;autoCreateTime"`
}

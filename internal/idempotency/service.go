package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/calderapay/connector/pkg/db"
	"github.com/calderapay/connector/pkg/db/models"
)

// Status classifies the result of a reservation attempt.
type Status int

const (
	// StatusFresh means the key was unseen and is now reserved.
	StatusFresh Status = iota
	// StatusDuplicate means the key was already reserved with the same
	// request body; the caller should return the original resource.
	StatusDuplicate
)

// Reservation is the outcome of Reserve. On StatusDuplicate the resource
// external id is the one produced by the original request.
type Reservation struct {
	Status             Status
	ResourceExternalID string
}

// ConflictError means the key was reused with a materially different request
// body. The guard only reports the discrepancy; rejecting it is the caller's
// call.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("idempotency key %q reused with a different request body", e.Key)
}

// Guard enforces at-most-one resource creation per (account, key) pair via a
// single atomic insert on the unique index. There is no check-then-insert
// window and no expiry here.
type Guard struct {
	repo Repository
}

// NewGuard builds an idempotency guard.
func NewGuard(repo Repository) (*Guard, error) {
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Guard{repo: repo}, nil
}

// Reserve attempts to claim the key for resourceExternalID. A unique-index
// violation is translated into StatusDuplicate or ConflictError, never a
// generic persistence error.
func (g *Guard) Reserve(ctx context.Context, accountID uuid.UUID, key, resourceExternalID string, requestBody json.RawMessage) (Reservation, error) {
	record := &models.IdempotencyRecord{
		GatewayAccountID:   accountID,
		Key:                key,
		ResourceExternalID: resourceExternalID,
		RequestBody:        requestBody,
	}

	err := g.repo.Insert(ctx, record)
	if err == nil {
		return Reservation{Status: StatusFresh, ResourceExternalID: resourceExternalID}, nil
	}
	if !db.IsUniqueViolation(err, models.IdempotencyRecordConstraint) {
		return Reservation{}, fmt.Errorf("insert idempotency record: %w", err)
	}

	existing, findErr := g.repo.FindByAccountAndKey(ctx, accountID, key)
	if findErr != nil {
		return Reservation{}, fmt.Errorf("load existing idempotency record: %w", findErr)
	}
	if bodyDigest(existing.RequestBody) != bodyDigest(requestBody) {
		return Reservation{}, &ConflictError{Key: key}
	}
	return Reservation{
		Status:             StatusDuplicate,
		ResourceExternalID: existing.ResourceExternalID,
	}, nil
}

// Release drops a reservation whose resource creation failed afterwards, so a
// client retry is not locked out by a record pointing at nothing.
func (g *Guard) Release(ctx context.Context, accountID uuid.UUID, key string) error {
	return g.repo.Delete(ctx, accountID, key)
}

func bodyDigest(body json.RawMessage) [sha256.Size]byte {
	return sha256.Sum256(body)
}

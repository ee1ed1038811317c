package idempotency

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calderapay/connector/pkg/db/models"
)

// fakeUniqueViolation mimics the driver error surfaced on a duplicate insert.
type fakeUniqueViolation struct{}

func (fakeUniqueViolation) Error() string {
	return `duplicate key value violates unique constraint "idx_idempotency_account_key"`
}

type memoryRepo struct {
	records map[string]*models.IdempotencyRecord
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: map[string]*models.IdempotencyRecord{}}
}

func recordKey(accountID uuid.UUID, key string) string {
	return accountID.String() + "|" + key
}

func (m *memoryRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memoryRepo) Insert(ctx context.Context, record *models.IdempotencyRecord) error {
	k := recordKey(record.GatewayAccountID, record.Key)
	if _, exists := m.records[k]; exists {
		return fakeUniqueViolation{}
	}
	stored := *record
	m.records[k] = &stored
	return nil
}

func (m *memoryRepo) FindByAccountAndKey(ctx context.Context, accountID uuid.UUID, key string) (*models.IdempotencyRecord, error) {
	if record, ok := m.records[recordKey(accountID, key)]; ok {
		return record, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepo) Delete(ctx context.Context, accountID uuid.UUID, key string) error {
	delete(m.records, recordKey(accountID, key))
	return nil
}

func TestReserveFreshKey(t *testing.T) {
	guard, _ := NewGuard(newMemoryRepo())
	accountID := uuid.New()

	reservation, err := guard.Reserve(context.Background(), accountID, "k1", "charge-1", []byte(`{"amount":100}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reservation.Status != StatusFresh {
		t.Fatalf("expected StatusFresh, got %v", reservation.Status)
	}
	if reservation.ResourceExternalID != "charge-1" {
		t.Fatalf("expected charge-1, got %s", reservation.ResourceExternalID)
	}
}

func TestReserveSameKeySameBodyIsDuplicate(t *testing.T) {
	guard, _ := NewGuard(newMemoryRepo())
	accountID := uuid.New()
	body := []byte(`{"amount":100,"reference":"r1"}`)

	first, err := guard.Reserve(context.Background(), accountID, "k1", "charge-1", body)
	if err != nil {
		t.Fatalf("unexpected error on first reserve: %v", err)
	}

	second, err := guard.Reserve(context.Background(), accountID, "k1", "charge-2", body)
	if err != nil {
		t.Fatalf("unexpected error on second reserve: %v", err)
	}
	if second.Status != StatusDuplicate {
		t.Fatalf("expected StatusDuplicate, got %v", second.Status)
	}
	if second.ResourceExternalID != first.ResourceExternalID {
		t.Fatalf("duplicate must return the original resource id, got %s", second.ResourceExternalID)
	}
}

func TestReserveSameKeyDifferentBodyIsConflict(t *testing.T) {
	guard, _ := NewGuard(newMemoryRepo())
	accountID := uuid.New()

	if _, err := guard.Reserve(context.Background(), accountID, "k1", "charge-1", []byte(`{"amount":100}`)); err != nil {
		t.Fatalf("unexpected error on first reserve: %v", err)
	}

	_, err := guard.Reserve(context.Background(), accountID, "k1", "charge-2", []byte(`{"amount":999}`))
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Key != "k1" {
		t.Fatalf("conflict must name the key, got %q", conflict.Key)
	}
}

func TestReserveScopedPerAccount(t *testing.T) {
	guard, _ := NewGuard(newMemoryRepo())
	body := []byte(`{"amount":100}`)

	first, err := guard.Reserve(context.Background(), uuid.New(), "k1", "charge-1", body)
	if err != nil || first.Status != StatusFresh {
		t.Fatalf("expected fresh reservation, got %v %v", first.Status, err)
	}

	second, err := guard.Reserve(context.Background(), uuid.New(), "k1", "charge-2", body)
	if err != nil || second.Status != StatusFresh {
		t.Fatalf("the same key under another account must be fresh, got %v %v", second.Status, err)
	}
}

func TestReleaseFreesTheKey(t *testing.T) {
	guard, _ := NewGuard(newMemoryRepo())
	accountID := uuid.New()
	body := []byte(`{"amount":100}`)

	if _, err := guard.Reserve(context.Background(), accountID, "k1", "charge-1", body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := guard.Release(context.Background(), accountID, "k1"); err != nil {
		t.Fatalf("unexpected error releasing: %v", err)
	}

	reservation, err := guard.Reserve(context.Background(), accountID, "k1", "charge-3", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reservation.Status != StatusFresh {
		t.Fatal("expected the key to be reusable after release")
	}
}

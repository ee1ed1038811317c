package credentials

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
	pkgerrors "github.com/calderapay/connector/pkg/errors"
	"github.com/calderapay/connector/pkg/logger"
)

type stubRepo struct {
	rows        []models.GatewayAccountCredential
	listErr     error
	created     []*models.GatewayAccountCredential
	stateByID   map[uuid.UUID]enums.CredentialState
	updatesByID map[uuid.UUID]map[string]any
}

func newStubRepo(rows ...models.GatewayAccountCredential) *stubRepo {
	return &stubRepo{
		rows:        rows,
		stateByID:   map[uuid.UUID]enums.CredentialState{},
		updatesByID: map[uuid.UUID]map[string]any{},
	}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, credential *models.GatewayAccountCredential) error {
	s.created = append(s.created, credential)
	return nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.GatewayAccountCredential, error) {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return &s.rows[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindByExternalID(ctx context.Context, externalID string) (*models.GatewayAccountCredential, error) {
	for i := range s.rows {
		if s.rows[i].ExternalID == externalID {
			return &s.rows[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindByAccountAndProvider(ctx context.Context, accountID uuid.UUID, provider enums.PaymentProvider) ([]models.GatewayAccountCredential, error) {
	var matched []models.GatewayAccountCredential
	for _, row := range s.rows {
		if row.PaymentProvider == provider {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

func (s *stubRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.GatewayAccountCredential, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.rows, nil
}

func (s *stubRepo) UpdateState(ctx context.Context, credentialID uuid.UUID, state enums.CredentialState, updates map[string]any) error {
	s.stateByID[credentialID] = state
	s.updatesByID[credentialID] = updates
	return nil
}

func (s *stubRepo) FindAccountByExternalID(ctx context.Context, externalID string) (*models.GatewayAccount, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) UpsertWorldpay3DSFlex(ctx context.Context, credential *models.Worldpay3DSFlexCredential) error {
	return nil
}

func (s *stubRepo) FindWorldpay3DSFlex(ctx context.Context, accountID uuid.UUID) (*models.Worldpay3DSFlexCredential, error) {
	return nil, gorm.ErrRecordNotFound
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		DB:     stubTxRunner{},
		Logger: testLogger(),
		Now:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected error building service: %v", err)
	}
	return svc
}

func TestResolveCurrentNoRowsIsHardError(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	account := &models.GatewayAccount{ID: uuid.New(), ExternalID: "acct-1"}

	_, err := svc.ResolveCurrent(context.Background(), account)
	var noCred *NoActiveCredentialError
	if !errors.As(err, &noCred) {
		t.Fatalf("expected NoActiveCredentialError, got %v", err)
	}
	if noCred.AccountExternalID != "acct-1" {
		t.Fatalf("error must name the account, got %q", noCred.AccountExternalID)
	}
}

func TestResolveCurrentPrefersActiveRow(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	stripeRow := credentialRow(enums.CredentialStateCreated, start.Add(-time.Hour), nil)
	stripeRow.PaymentProvider = enums.PaymentProviderStripe
	worldpayRow := credentialRow(enums.CredentialStateActive, start, &start)
	worldpayRow.PaymentProvider = enums.PaymentProviderWorldpay

	svc := newTestService(t, newStubRepo(stripeRow, worldpayRow))
	account := &models.GatewayAccount{ID: uuid.New(), ExternalID: "acct-2"}

	resolved, err := svc.ResolveCurrent(context.Background(), account)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.PaymentProvider != enums.PaymentProviderWorldpay {
		t.Fatalf("expected worldpay credential, got %s", resolved.PaymentProvider)
	}
}

func TestCreateCredentialValidatesProviderFields(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	account := &models.GatewayAccount{ID: uuid.New(), ExternalID: "acct-3"}

	_, err := svc.CreateCredential(context.Background(), account, CreateCredentialParams{
		Provider:    enums.PaymentProviderWorldpay,
		Credentials: map[string]string{"merchant_id": "m1"},
	})
	if err == nil {
		t.Fatal("expected validation error for incomplete worldpay credentials")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateCredentialStartsInCreatedState(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)
	account := &models.GatewayAccount{ID: uuid.New(), ExternalID: "acct-4"}

	credential, err := svc.CreateCredential(context.Background(), account, CreateCredentialParams{
		Provider: enums.PaymentProviderWorldpay,
		Credentials: map[string]string{
			"merchant_id": "m1",
			"username":    "u1",
			"password":    "p1",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credential.State != enums.CredentialStateCreated {
		t.Fatalf("expected created state, got %s", credential.State)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one persisted credential, got %d", len(repo.created))
	}
	if credential.ExternalID == "" {
		t.Fatal("expected an external id to be assigned")
	}
}

func TestActivateCredentialRejectsRetiredRow(t *testing.T) {
	row := credentialRow(enums.CredentialStateRetired, time.Now(), nil)
	svc := newTestService(t, newStubRepo(row))

	_, err := svc.ActivateCredential(context.Background(), row.ExternalID, "user-1")
	var illegal *IllegalStateTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalStateTransitionError, got %v", err)
	}
}

func TestActivateCredentialStampsStartDate(t *testing.T) {
	row := credentialRow(enums.CredentialStateCreated, time.Now(), nil)
	repo := newStubRepo(row)
	svc := newTestService(t, repo)

	activated, err := svc.ActivateCredential(context.Background(), row.ExternalID, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if activated.State != enums.CredentialStateActive {
		t.Fatalf("expected active state, got %s", activated.State)
	}
	if activated.ActiveStartDate == nil {
		t.Fatal("expected active start date to be stamped")
	}
	if repo.stateByID[row.ID] != enums.CredentialStateActive {
		t.Fatal("expected the row state to be persisted as active")
	}
}

func TestRetireActiveCredentialStampsEndDate(t *testing.T) {
	start := time.Now().UTC()
	row := credentialRow(enums.CredentialStateActive, start, &start)
	repo := newStubRepo(row)
	svc := newTestService(t, repo)

	if err := svc.RetireCredential(context.Background(), row.ExternalID, "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.stateByID[row.ID] != enums.CredentialStateRetired {
		t.Fatal("expected the row to be retired")
	}
	if _, ok := repo.updatesByID[row.ID]["active_end_date"]; !ok {
		t.Fatal("expected active_end_date to be stamped on retirement")
	}
}

func TestGooglePayEligibilityUsesResolvedCredential(t *testing.T) {
	start := time.Now().UTC()
	row := credentialRow(enums.CredentialStateActive, start, &start)
	row.PaymentProvider = enums.PaymentProviderWorldpay
	row.Credentials = []byte(`{"merchant_id":"m1","gateway_merchant_id":"gp-1"}`)

	svc := newTestService(t, newStubRepo(row))
	account := &models.GatewayAccount{ID: uuid.New(), ExternalID: "acct-5", AllowGooglePay: true}

	eligible, err := svc.GooglePayEligible(context.Background(), account)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eligible {
		t.Fatal("expected account to be google pay eligible")
	}

	account.AllowGooglePay = false
	eligible, err = svc.GooglePayEligible(context.Background(), account)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eligible {
		t.Fatal("flag disabled accounts must not be eligible")
	}
}

func TestUpsertWorldpay3DSFlexRequiresWorldpayCredential(t *testing.T) {
	start := time.Now().UTC()
	row := credentialRow(enums.CredentialStateActive, start, &start)
	row.PaymentProvider = enums.PaymentProviderStripe

	svc := newTestService(t, newStubRepo(row))
	account := &models.GatewayAccount{ID: uuid.New(), ExternalID: "acct-6"}

	err := svc.UpsertWorldpay3DSFlex(context.Background(), account, "issuer", "org-unit", "mac-key")
	if err == nil {
		t.Fatal("expected rejection for an account without worldpay credentials")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpsertWorldpay3DSFlexAcceptsWorldpayAccount(t *testing.T) {
	start := time.Now().UTC()
	row := credentialRow(enums.CredentialStateActive, start, &start)
	row.PaymentProvider = enums.PaymentProviderWorldpay

	svc := newTestService(t, newStubRepo(row))
	account := &models.GatewayAccount{ID: uuid.New(), ExternalID: "acct-7"}

	if err := svc.UpsertWorldpay3DSFlex(context.Background(), account, "issuer", "org-unit", "mac-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

package capture

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/calderapay/connector/internal/charges"
	"github.com/calderapay/connector/internal/gateway"
	"github.com/calderapay/connector/pkg/config"
	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
	"github.com/calderapay/connector/pkg/logger"
)

type fakeChargeService struct {
	retries     map[string]int
	transitions map[string][]enums.ChargeStatus
}

func newFakeChargeService() *fakeChargeService {
	return &fakeChargeService{
		retries:     map[string]int{},
		transitions: map[string][]enums.ChargeStatus{},
	}
}

func (f *fakeChargeService) Transition(ctx context.Context, chargeExternalID string, newStatus enums.ChargeStatus, opts charges.TransitionOptions) (*models.Charge, error) {
	f.transitions[chargeExternalID] = append(f.transitions[chargeExternalID], newStatus)
	return &models.Charge{ExternalID: chargeExternalID, Status: newStatus}, nil
}

func (f *fakeChargeService) CountCaptureRetries(ctx context.Context, chargeExternalID string) (int, error) {
	return f.retries[chargeExternalID], nil
}

type fakeFinder struct {
	rows   []models.Charge
	cutoff time.Time
	limit  int
}

func (f *fakeFinder) FindChargesForCapture(ctx context.Context, cutoff time.Time, limit int) ([]models.Charge, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.rows, nil
}

type fakeCredentialLoader struct {
	credential *models.GatewayAccountCredential
}

func (f *fakeCredentialLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.GatewayAccountCredential, error) {
	if f.credential == nil {
		return nil, errors.New("not found")
	}
	return f.credential, nil
}

type fakeSubmitter struct {
	result   gateway.CaptureResult
	err      error
	requests []gateway.CaptureRequest
}

func (f *fakeSubmitter) Provider() enums.PaymentProvider { return enums.PaymentProviderSandbox }

func (f *fakeSubmitter) SubmitCapture(ctx context.Context, req gateway.CaptureRequest) (gateway.CaptureResult, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

type fakeRegistry struct {
	submitter gateway.Submitter
}

func (f *fakeRegistry) Get(provider enums.PaymentProvider) (gateway.Submitter, error) {
	if f.submitter == nil {
		return nil, errors.New("no submitter")
	}
	return f.submitter, nil
}

func captureTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "capture-test", Output: io.Discard})
}

func captureConfig() config.CaptureConfig {
	return config.CaptureConfig{
		Window:        time.Minute,
		RetryCeiling:  3,
		BatchSize:     10,
		SubmitTimeout: time.Second,
	}
}

func dueCharge() models.Charge {
	credentialID := uuid.New()
	transactionID := "gw-1"
	return models.Charge{
		ID:                   uuid.New(),
		ExternalID:           "ch-1",
		CredentialID:         &credentialID,
		Status:               enums.ChargeStatusCaptureApproved,
		AmountPence:          750,
		GatewayTransactionID: &transactionID,
	}
}

func newCoordinator(t *testing.T, service *fakeChargeService, finder *fakeFinder, submitter *fakeSubmitter) *Coordinator {
	t.Helper()
	coordinator, err := NewCoordinator(CoordinatorParams{
		Charges: service,
		Finder:  finder,
		Credentials: &fakeCredentialLoader{credential: &models.GatewayAccountCredential{
			ID:              uuid.New(),
			PaymentProvider: enums.PaymentProviderSandbox,
			Credentials:     []byte(`{}`),
		}},
		Registry: &fakeRegistry{submitter: submitter},
		Logger:   captureTestLogger(),
		Config:   captureConfig(),
	})
	if err != nil {
		t.Fatalf("construct coordinator: %v", err)
	}
	return coordinator
}

func TestProcessChargeSuccessWalksFullPath(t *testing.T) {
	service := newFakeChargeService()
	submitter := &fakeSubmitter{result: gateway.CaptureResult{
		Outcome:               gateway.CaptureOutcomeSuccess,
		ProviderTransactionID: "gw-1",
	}}
	coordinator := newCoordinator(t, service, &fakeFinder{}, submitter)

	charge := dueCharge()
	outcome, err := coordinator.ProcessCharge(context.Background(), &charge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != gateway.CaptureOutcomeSuccess {
		t.Fatalf("expected success, got %s", outcome)
	}

	want := []enums.ChargeStatus{
		enums.ChargeStatusCaptureReady,
		enums.ChargeStatusCaptureSubmitted,
		enums.ChargeStatusCaptured,
	}
	got := service.transitions[charge.ExternalID]
	if len(got) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transition %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if len(submitter.requests) != 1 || submitter.requests[0].AmountPence != 750 {
		t.Fatalf("unexpected submit requests: %+v", submitter.requests)
	}
}

func TestProcessChargeFailureReturnsToRetry(t *testing.T) {
	service := newFakeChargeService()
	submitter := &fakeSubmitter{result: gateway.CaptureResult{Outcome: gateway.CaptureOutcomeFailure}}
	coordinator := newCoordinator(t, service, &fakeFinder{}, submitter)

	charge := dueCharge()
	outcome, err := coordinator.ProcessCharge(context.Background(), &charge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != gateway.CaptureOutcomeFailure {
		t.Fatalf("expected failure, got %s", outcome)
	}
	got := service.transitions[charge.ExternalID]
	if got[len(got)-1] != enums.ChargeStatusCaptureApprovedRetry {
		t.Fatalf("a failed submission must end in capture_approved_retry, got %v", got)
	}
}

func TestProcessChargeTimeoutIsRetriedNotFailed(t *testing.T) {
	service := newFakeChargeService()
	submitter := &fakeSubmitter{result: gateway.CaptureResult{Outcome: gateway.CaptureOutcomeTimeout}}
	coordinator := newCoordinator(t, service, &fakeFinder{}, submitter)

	charge := dueCharge()
	outcome, err := coordinator.ProcessCharge(context.Background(), &charge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != gateway.CaptureOutcomeTimeout {
		t.Fatalf("expected timeout, got %s", outcome)
	}
	got := service.transitions[charge.ExternalID]
	if got[len(got)-1] != enums.ChargeStatusCaptureApprovedRetry {
		t.Fatalf("a timed-out submission must stay retryable, got %v", got)
	}
}

func TestProcessChargeEscalatesAtRetryCeiling(t *testing.T) {
	service := newFakeChargeService()
	submitter := &fakeSubmitter{result: gateway.CaptureResult{Outcome: gateway.CaptureOutcomeSuccess}}
	coordinator := newCoordinator(t, service, &fakeFinder{}, submitter)

	charge := dueCharge()
	charge.Status = enums.ChargeStatusCaptureApprovedRetry
	service.retries[charge.ExternalID] = 3

	outcome, err := coordinator.ProcessCharge(context.Background(), &charge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != captureOutcomeEscalated {
		t.Fatalf("expected escalation, got %s", outcome)
	}
	got := service.transitions[charge.ExternalID]
	if len(got) != 1 || got[0] != enums.ChargeStatusCaptureError {
		t.Fatalf("the ceiling breach must park the charge in capture_error, got %v", got)
	}
	if len(submitter.requests) != 0 {
		t.Fatal("no provider call may happen once the ceiling is breached")
	}
}

func TestProcessChargeBelowCeilingStillSubmits(t *testing.T) {
	service := newFakeChargeService()
	submitter := &fakeSubmitter{result: gateway.CaptureResult{Outcome: gateway.CaptureOutcomeSuccess}}
	coordinator := newCoordinator(t, service, &fakeFinder{}, submitter)

	charge := dueCharge()
	charge.Status = enums.ChargeStatusCaptureApprovedRetry
	service.retries[charge.ExternalID] = 2

	outcome, err := coordinator.ProcessCharge(context.Background(), &charge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != gateway.CaptureOutcomeSuccess {
		t.Fatalf("two retries with a ceiling of three must still submit, got %s", outcome)
	}
}

func TestSweepUsesWindowAndBatchSize(t *testing.T) {
	service := newFakeChargeService()
	finder := &fakeFinder{rows: []models.Charge{dueCharge()}}
	submitter := &fakeSubmitter{result: gateway.CaptureResult{Outcome: gateway.CaptureOutcomeSuccess}}
	coordinator := newCoordinator(t, service, finder, submitter)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	coordinator.now = func() time.Time { return now }

	result, err := coordinator.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Considered != 1 || result.Captured != 1 {
		t.Fatalf("unexpected sweep result: %+v", result)
	}
	if !finder.cutoff.Equal(now.Add(-time.Minute)) {
		t.Fatalf("the cutoff must honour the capture window, got %v", finder.cutoff)
	}
	if finder.limit != 10 {
		t.Fatalf("the batch size must bound the query, got %d", finder.limit)
	}
}

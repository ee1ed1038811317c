package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	credentialsvc "github.com/calderapay/connector/internal/credentials"
	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
)

type testCredentialService struct {
	getAccountFn func(ctx context.Context, accountExternalID string) (*models.GatewayAccount, error)
	listFn       func(ctx context.Context, account *models.GatewayAccount) ([]models.GatewayAccountCredential, error)
	resolveFn    func(ctx context.Context, account *models.GatewayAccount) (*models.GatewayAccountCredential, error)
	createFn     func(ctx context.Context, account *models.GatewayAccount, params credentialsvc.CreateCredentialParams) (*models.GatewayAccountCredential, error)
	activateFn   func(ctx context.Context, credentialExternalID, userExternalID string) (*models.GatewayAccountCredential, error)
	retireFn     func(ctx context.Context, credentialExternalID, userExternalID string) error
	googlePayFn  func(ctx context.Context, account *models.GatewayAccount) (bool, error)
	flexFn       func(ctx context.Context, account *models.GatewayAccount, issuer, organisationalUnitID, jwtMACKey string) error
	flexGetFn    func(ctx context.Context, account *models.GatewayAccount) (*models.Worldpay3DSFlexCredential, error)
}

func (s *testCredentialService) GetAccount(ctx context.Context, accountExternalID string) (*models.GatewayAccount, error) {
	if s.getAccountFn != nil {
		return s.getAccountFn(ctx, accountExternalID)
	}
	return &models.GatewayAccount{ID: uuid.New(), ExternalID: accountExternalID}, nil
}

func (s *testCredentialService) List(ctx context.Context, account *models.GatewayAccount) ([]models.GatewayAccountCredential, error) {
	if s.listFn != nil {
		return s.listFn(ctx, account)
	}
	return nil, nil
}

func (s *testCredentialService) ResolveCurrent(ctx context.Context, account *models.GatewayAccount) (*models.GatewayAccountCredential, error) {
	if s.resolveFn != nil {
		return s.resolveFn(ctx, account)
	}
	return nil, &credentialsvc.NoActiveCredentialError{AccountExternalID: account.ExternalID}
}

func (s *testCredentialService) CreateCredential(ctx context.Context, account *models.GatewayAccount, params credentialsvc.CreateCredentialParams) (*models.GatewayAccountCredential, error) {
	if s.createFn != nil {
		return s.createFn(ctx, account, params)
	}
	return nil, nil
}

func (s *testCredentialService) ActivateCredential(ctx context.Context, credentialExternalID, userExternalID string) (*models.GatewayAccountCredential, error) {
	if s.activateFn != nil {
		return s.activateFn(ctx, credentialExternalID, userExternalID)
	}
	return nil, nil
}

func (s *testCredentialService) RetireCredential(ctx context.Context, credentialExternalID, userExternalID string) error {
	if s.retireFn != nil {
		return s.retireFn(ctx, credentialExternalID, userExternalID)
	}
	return nil
}

func (s *testCredentialService) GooglePayEligible(ctx context.Context, account *models.GatewayAccount) (bool, error) {
	if s.googlePayFn != nil {
		return s.googlePayFn(ctx, account)
	}
	return false, nil
}

func (s *testCredentialService) UpsertWorldpay3DSFlex(ctx context.Context, account *models.GatewayAccount, issuer, organisationalUnitID, jwtMACKey string) error {
	if s.flexFn != nil {
		return s.flexFn(ctx, account, issuer, organisationalUnitID, jwtMACKey)
	}
	return nil
}

func (s *testCredentialService) GetWorldpay3DSFlex(ctx context.Context, account *models.GatewayAccount) (*models.Worldpay3DSFlexCredential, error) {
	if s.flexGetFn != nil {
		return s.flexGetFn(ctx, account)
	}
	return nil, gorm.ErrRecordNotFound
}

func testCredential(state enums.CredentialState) *models.GatewayAccountCredential {
	return &models.GatewayAccountCredential{
		ID:              uuid.New(),
		ExternalID:      "cred1",
		PaymentProvider: enums.PaymentProviderStripe,
		Credentials:     json.RawMessage(`{"stripe_account_id":"acct_secret"}`),
		State:           state,
		Role:            enums.CredentialRolePrimary,
		CreatedDate:     time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestCredentialsListNeverEchoesSecrets(t *testing.T) {
	svc := &testCredentialService{
		listFn: func(ctx context.Context, account *models.GatewayAccount) ([]models.GatewayAccountCredential, error) {
			return []models.GatewayAccountCredential{*testCredential(enums.CredentialStateActive)}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/acc1/credentials", nil)
	req = addRouteParam(req, "accountId", "acc1")

	resp := httptest.NewRecorder()
	CredentialsList(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "acct_secret") {
		t.Fatal("credential secret leaked into response")
	}
	var envelope struct {
		Data credentialListResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Credentials) != 1 {
		t.Fatalf("expected 1 credential got %d", len(envelope.Data.Credentials))
	}
	if envelope.Data.Credentials[0].PaymentProvider != "stripe" {
		t.Fatalf("unexpected provider %q", envelope.Data.Credentials[0].PaymentProvider)
	}
}

func TestCredentialCurrentNoUsableCredential(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/acc1/credentials/current", nil)
	req = addRouteParam(req, "accountId", "acc1")

	resp := httptest.NewRecorder()
	CredentialCurrent(&testCredentialService{}, testControllerLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCredentialCreateReturns201(t *testing.T) {
	var gotParams credentialsvc.CreateCredentialParams
	svc := &testCredentialService{
		createFn: func(ctx context.Context, account *models.GatewayAccount, params credentialsvc.CreateCredentialParams) (*models.GatewayAccountCredential, error) {
			gotParams = params
			return testCredential(enums.CredentialStateCreated), nil
		},
	}

	body := `{"payment_provider":"worldpay","credentials":{"merchant_id":"m","username":"u","password":"p"},"role":"secondary"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/acc1/credentials", strings.NewReader(body))
	req = addRouteParam(req, "accountId", "acc1")

	resp := httptest.NewRecorder()
	CredentialCreate(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if gotParams.Provider != enums.PaymentProviderWorldpay {
		t.Fatalf("unexpected provider %q", gotParams.Provider)
	}
	if gotParams.Role != enums.CredentialRoleSecondary {
		t.Fatalf("unexpected role %q", gotParams.Role)
	}
	if gotParams.Credentials["merchant_id"] != "m" {
		t.Fatal("credential fields not threaded through")
	}
}

func TestCredentialCreateUnknownProvider(t *testing.T) {
	body := `{"payment_provider":"barclaycard","credentials":{"k":"v"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/acc1/credentials", strings.NewReader(body))
	req = addRouteParam(req, "accountId", "acc1")

	resp := httptest.NewRecorder()
	CredentialCreate(&testCredentialService{}, testControllerLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCredentialActivateIllegalState(t *testing.T) {
	svc := &testCredentialService{
		activateFn: func(ctx context.Context, credentialExternalID, userExternalID string) (*models.GatewayAccountCredential, error) {
			return nil, &credentialsvc.IllegalStateTransitionError{From: "retired", To: "active"}
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/credentials/cred1/activate", strings.NewReader(`{}`))
	req = addRouteParam(req, "credentialId", "cred1")

	resp := httptest.NewRecorder()
	CredentialActivate(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestCredentialRetireRecordsUser(t *testing.T) {
	var gotUser string
	svc := &testCredentialService{
		retireFn: func(ctx context.Context, credentialExternalID, userExternalID string) error {
			gotUser = userExternalID
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/credentials/cred1/retire", strings.NewReader(`{"user_external_id":"user-7"}`))
	req = addRouteParam(req, "credentialId", "cred1")

	resp := httptest.NewRecorder()
	CredentialRetire(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotUser != "user-7" {
		t.Fatalf("expected user threaded through, got %q", gotUser)
	}
}

func TestGooglePayEligibility(t *testing.T) {
	svc := &testCredentialService{
		googlePayFn: func(ctx context.Context, account *models.GatewayAccount) (bool, error) {
			return true, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/acc1/google-pay-eligibility", nil)
	req = addRouteParam(req, "accountId", "acc1")

	resp := httptest.NewRecorder()
	GooglePayEligibility(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data["google_pay_eligible"] {
		t.Fatal("expected eligible flag set")
	}
}

func TestWorldpay3DSFlexGetOmitsMACKey(t *testing.T) {
	svc := &testCredentialService{
		flexGetFn: func(ctx context.Context, account *models.GatewayAccount) (*models.Worldpay3DSFlexCredential, error) {
			return &models.Worldpay3DSFlexCredential{
				Issuer:               "iss",
				OrganisationalUnitID: "org",
				JWTMACKey:            "super-secret-mac",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/acc1/3ds-flex-credentials", nil)
	req = addRouteParam(req, "accountId", "acc1")

	resp := httptest.NewRecorder()
	Worldpay3DSFlexGet(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "super-secret-mac") {
		t.Fatal("mac key leaked into response")
	}
}

func TestWorldpay3DSFlexUpsertValidatesBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/v1/accounts/acc1/3ds-flex-credentials", strings.NewReader(`{"issuer":"i"}`))
	req = addRouteParam(req, "accountId", "acc1")

	resp := httptest.NewRecorder()
	Worldpay3DSFlexUpsert(&testCredentialService{}, testControllerLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

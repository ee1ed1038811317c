package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/calderapay/connector/api/responses"
	"github.com/calderapay/connector/api/validators"
	credentialsvc "github.com/calderapay/connector/internal/credentials"
	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
	pkgerrors "github.com/calderapay/connector/pkg/errors"
	"github.com/calderapay/connector/pkg/logger"
)

// CredentialService describes the credential operations used by the HTTP
// controllers.
type CredentialService interface {
	GetAccount(ctx context.Context, accountExternalID string) (*models.GatewayAccount, error)
	List(ctx context.Context, account *models.GatewayAccount) ([]models.GatewayAccountCredential, error)
	ResolveCurrent(ctx context.Context, account *models.GatewayAccount) (*models.GatewayAccountCredential, error)
	CreateCredential(ctx context.Context, account *models.GatewayAccount, params credentialsvc.CreateCredentialParams) (*models.GatewayAccountCredential, error)
	ActivateCredential(ctx context.Context, credentialExternalID, userExternalID string) (*models.GatewayAccountCredential, error)
	RetireCredential(ctx context.Context, credentialExternalID, userExternalID string) error
	GooglePayEligible(ctx context.Context, account *models.GatewayAccount) (bool, error)
	UpsertWorldpay3DSFlex(ctx context.Context, account *models.GatewayAccount, issuer, organisationalUnitID, jwtMACKey string) error
	GetWorldpay3DSFlex(ctx context.Context, account *models.GatewayAccount) (*models.Worldpay3DSFlexCredential, error)
}

// credentialResponse never echoes the credential blob; secrets go in, they do
// not come back out.
type credentialResponse struct {
	ExternalID      string  `json:"external_id"`
	PaymentProvider string  `json:"payment_provider"`
	State           string  `json:"state"`
	Role            string  `json:"role"`
	ActiveStartDate *string `json:"active_start_date,omitempty"`
	ActiveEndDate   *string `json:"active_end_date,omitempty"`
	CreatedDate     string  `json:"created_date"`
}

type credentialListResponse struct {
	Credentials []credentialResponse `json:"credentials"`
}

type createCredentialRequest struct {
	PaymentProvider string            `json:"payment_provider" validate:"required"`
	Credentials     map[string]string `json:"credentials" validate:"required"`
	Role            string            `json:"role,omitempty" validate:"omitempty,oneof=primary secondary"`
	UserExternalID  string            `json:"user_external_id,omitempty"`
}

type credentialUserRequest struct {
	UserExternalID string `json:"user_external_id,omitempty"`
}

type worldpay3DSFlexRequest struct {
	Issuer               string `json:"issuer" validate:"required"`
	OrganisationalUnitID string `json:"organisational_unit_id" validate:"required"`
	JWTMACKey            string `json:"jwt_mac_key" validate:"required"`
}

func resolveAccount(r *http.Request, svc CredentialService) (*models.GatewayAccount, error) {
	accountID := strings.TrimSpace(chi.URLParam(r, "accountId"))
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	return svc.GetAccount(r.Context(), accountID)
}

func CredentialsList(svc CredentialService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		account, err := resolveAccount(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, err := svc.List(ctx, account)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, credentialListResponse{Credentials: credentialsToResponse(rows)})
	}
}

func CredentialCurrent(svc CredentialService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		account, err := resolveAccount(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		credential, err := svc.ResolveCurrent(ctx, account)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, credentialToResponse(credential))
	}
}

func CredentialCreate(svc CredentialService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		account, err := resolveAccount(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload createCredentialRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		provider, err := enums.ParsePaymentProvider(strings.TrimSpace(payload.PaymentProvider))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment provider"))
			return
		}

		credential, err := svc.CreateCredential(ctx, account, credentialsvc.CreateCredentialParams{
			Provider:       provider,
			Credentials:    payload.Credentials,
			Role:           enums.CredentialRole(payload.Role),
			UserExternalID: strings.TrimSpace(payload.UserExternalID),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, credentialToResponse(credential))
	}
}

func CredentialActivate(svc CredentialService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		credentialID := strings.TrimSpace(chi.URLParam(r, "credentialId"))
		if credentialID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "credential id is required"))
			return
		}

		var payload credentialUserRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		credential, err := svc.ActivateCredential(ctx, credentialID, strings.TrimSpace(payload.UserExternalID))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, credentialToResponse(credential))
	}
}

func CredentialRetire(svc CredentialService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		credentialID := strings.TrimSpace(chi.URLParam(r, "credentialId"))
		if credentialID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "credential id is required"))
			return
		}

		var payload credentialUserRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.RetireCredential(ctx, credentialID, strings.TrimSpace(payload.UserExternalID)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"state": enums.CredentialStateRetired.String()})
	}
}

func GooglePayEligibility(svc CredentialService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		account, err := resolveAccount(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eligible, err := svc.GooglePayEligible(ctx, account)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"google_pay_eligible": eligible})
	}
}

func Worldpay3DSFlexUpsert(svc CredentialService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		account, err := resolveAccount(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload worldpay3DSFlexRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		err = svc.UpsertWorldpay3DSFlex(ctx, account,
			strings.TrimSpace(payload.Issuer),
			strings.TrimSpace(payload.OrganisationalUnitID),
			strings.TrimSpace(payload.JWTMACKey),
		)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "configured"})
	}
}

// Worldpay3DSFlexGet returns the stored 3DS Flex configuration without the
// MAC key.
func Worldpay3DSFlexGet(svc CredentialService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		account, err := resolveAccount(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		flex, err := svc.GetWorldpay3DSFlex(ctx, account)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"issuer":                 flex.Issuer,
			"organisational_unit_id": flex.OrganisationalUnitID,
		})
	}
}

func credentialsToResponse(rows []models.GatewayAccountCredential) []credentialResponse {
	result := make([]credentialResponse, 0, len(rows))
	for i := range rows {
		result = append(result, credentialToResponse(&rows[i]))
	}
	return result
}

func credentialToResponse(credential *models.GatewayAccountCredential) credentialResponse {
	return credentialResponse{
		ExternalID:      credential.ExternalID,
		PaymentProvider: credential.PaymentProvider.String(),
		State:           credential.State.String(),
		Role:            credential.Role.String(),
		ActiveStartDate: formatTimePtr(credential.ActiveStartDate),
		ActiveEndDate:   formatTimePtr(credential.ActiveEndDate),
		CreatedDate:     credential.CreatedDate.UTC().Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

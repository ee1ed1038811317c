package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/calderapay/connector/api/responses"
	"github.com/calderapay/connector/api/validators"
	chargesvc "github.com/calderapay/connector/internal/charges"
	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
	pkgerrors "github.com/calderapay/connector/pkg/errors"
	"github.com/calderapay/connector/pkg/logger"
)

const idempotencyKeyHeader = "Idempotency-Key"

// ChargeService describes the charge operations used by the HTTP controllers.
type ChargeService interface {
	GetAccount(ctx context.Context, accountExternalID string) (*models.GatewayAccount, error)
	Create(ctx context.Context, account *models.GatewayAccount, params chargesvc.CreateParams) (*models.Charge, bool, error)
	Get(ctx context.Context, chargeExternalID string) (*models.Charge, error)
	Events(ctx context.Context, chargeExternalID string) ([]models.ChargeEvent, error)
	Cancel(ctx context.Context, chargeExternalID string) (*models.Charge, error)
	Transition(ctx context.Context, chargeExternalID string, newStatus enums.ChargeStatus, opts chargesvc.TransitionOptions) (*models.Charge, error)
	Count3DSRequiredEvents(ctx context.Context, chargeExternalID string) (int, error)
	RecordCardDetails(ctx context.Context, chargeExternalID string, details chargesvc.CardDetails) error
	RecordParityCheck(ctx context.Context, chargeExternalID string, status enums.ParityCheckStatus) error
}

type createChargeRequest struct {
	AmountPence       int64  `json:"amount" validate:"required,gt=0"`
	Reference         string `json:"reference" validate:"required,max=255"`
	Description       string `json:"description" validate:"required,max=255"`
	Email             string `json:"email,omitempty" validate:"omitempty,email"`
	AuthorisationMode string `json:"authorisation_mode,omitempty" validate:"omitempty,oneof=web moto_api external"`
}

type transitionChargeRequest struct {
	NewStatus            string  `json:"new_status" validate:"required"`
	GatewayTransactionID *string `json:"gateway_transaction_id,omitempty"`
	Refresh              bool    `json:"refresh,omitempty"`
}

type chargeResponse struct {
	ChargeID             string  `json:"charge_id"`
	Status               string  `json:"status"`
	AmountPence          int64   `json:"amount"`
	Reference            string  `json:"reference"`
	Description          string  `json:"description"`
	Email                *string `json:"email,omitempty"`
	AuthorisationMode    string  `json:"authorisation_mode"`
	GatewayTransactionID *string `json:"gateway_transaction_id,omitempty"`
	CardBrand            *string `json:"card_brand,omitempty"`
	CardLastDigits       *string `json:"card_last_digits,omitempty"`
	CreatedDate          string  `json:"created_date"`
}

type chargeEventResponse struct {
	Status               string  `json:"status"`
	GatewayTransactionID *string `json:"gateway_transaction_id,omitempty"`
	Timestamp            string  `json:"timestamp"`
}

type chargeEventsResponse struct {
	ChargeID             string                `json:"charge_id"`
	Events               []chargeEventResponse `json:"events"`
	ThreeDSRequiredCount int                   `json:"three_ds_required_count"`
}

type cardDetailsRequest struct {
	Brand          string `json:"card_brand" validate:"required"`
	LastDigits     string `json:"last_digits_card_number" validate:"required,len=4,numeric"`
	FirstDigits    string `json:"first_digits_card_number" validate:"required,len=6,numeric"`
	CardholderName string `json:"cardholder_name" validate:"required"`
	AddressLine    string `json:"address_line,omitempty"`
	Postcode       string `json:"address_postcode,omitempty"`
	Country        string `json:"address_country,omitempty"`
}

type parityCheckRequest struct {
	Status string `json:"parity_check_status" validate:"required"`
}

func ChargeCreate(svc ChargeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		accountID := strings.TrimSpace(chi.URLParam(r, "accountId"))
		if accountID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "account id is required"))
			return
		}
		account, err := svc.GetAccount(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if account.Disabled {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "gateway account is disabled"))
			return
		}

		// The raw body feeds the idempotency digest, so it has to be read
		// before decoding.
		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
			return
		}

		var payload createChargeRequest
		if err := validators.DecodeJSONBytes(body, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		mode := enums.AuthorisationModeWeb
		if payload.AuthorisationMode != "" {
			mode, err = enums.ParseAuthorisationMode(payload.AuthorisationMode)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid authorisation mode"))
				return
			}
		}

		charge, duplicate, err := svc.Create(ctx, account, chargesvc.CreateParams{
			AmountPence:       payload.AmountPence,
			Reference:         strings.TrimSpace(payload.Reference),
			Description:       strings.TrimSpace(payload.Description),
			Email:             strings.TrimSpace(payload.Email),
			AuthorisationMode: mode,
			IdempotencyKey:    strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
			RequestBody:       json.RawMessage(body),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusCreated
		if duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, chargeToResponse(charge))
	}
}

func ChargeGet(svc ChargeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chargeID := strings.TrimSpace(chi.URLParam(r, "chargeId"))
		if chargeID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "charge id is required"))
			return
		}

		charge, err := svc.Get(ctx, chargeID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, chargeToResponse(charge))
	}
}

func ChargeEvents(svc ChargeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chargeID := strings.TrimSpace(chi.URLParam(r, "chargeId"))
		if chargeID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "charge id is required"))
			return
		}

		events, err := svc.Events(ctx, chargeID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		threeDSCount, err := svc.Count3DSRequiredEvents(ctx, chargeID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]chargeEventResponse, 0, len(events))
		for _, event := range events {
			out = append(out, chargeEventResponse{
				Status:               event.Status.String(),
				GatewayTransactionID: event.GatewayTransactionID,
				Timestamp:            event.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		responses.WriteSuccess(w, chargeEventsResponse{
			ChargeID:             chargeID,
			Events:               out,
			ThreeDSRequiredCount: threeDSCount,
		})
	}
}

func ChargeCardDetails(svc ChargeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chargeID := strings.TrimSpace(chi.URLParam(r, "chargeId"))
		if chargeID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "charge id is required"))
			return
		}

		var payload cardDetailsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		err := svc.RecordCardDetails(ctx, chargeID, chargesvc.CardDetails{
			Brand:          payload.Brand,
			LastDigits:     payload.LastDigits,
			FirstDigits:    payload.FirstDigits,
			CardholderName: payload.CardholderName,
			AddressLine:    payload.AddressLine,
			Postcode:       payload.Postcode,
			Country:        payload.Country,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "recorded"})
	}
}

func ChargeParityCheck(svc ChargeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chargeID := strings.TrimSpace(chi.URLParam(r, "chargeId"))
		if chargeID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "charge id is required"))
			return
		}

		var payload parityCheckRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status, err := enums.ParseParityCheckStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid parity check status"))
			return
		}

		if err := svc.RecordParityCheck(ctx, chargeID, status); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"parity_check_status": status.String()})
	}
}

func ChargeCancel(svc ChargeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chargeID := strings.TrimSpace(chi.URLParam(r, "chargeId"))
		if chargeID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "charge id is required"))
			return
		}

		charge, err := svc.Cancel(ctx, chargeID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, chargeToResponse(charge))
	}
}

func ChargeTransition(svc ChargeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		chargeID := strings.TrimSpace(chi.URLParam(r, "chargeId"))
		if chargeID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "charge id is required"))
			return
		}

		var payload transitionChargeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		newStatus, err := enums.ParseChargeStatus(strings.TrimSpace(payload.NewStatus))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid charge status"))
			return
		}

		charge, err := svc.Transition(ctx, chargeID, newStatus, chargesvc.TransitionOptions{
			GatewayTransactionID: payload.GatewayTransactionID,
			Refresh:              payload.Refresh,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, chargeToResponse(charge))
	}
}

func chargeToResponse(charge *models.Charge) chargeResponse {
	return chargeResponse{
		ChargeID:             charge.ExternalID,
		Status:               charge.Status.String(),
		AmountPence:          charge.AmountPence,
		Reference:            charge.Reference,
		Description:          charge.Description,
		Email:                charge.Email,
		AuthorisationMode:    charge.AuthorisationMode.String(),
		GatewayTransactionID: charge.GatewayTransactionID,
		CardBrand:            charge.CardBrand,
		CardLastDigits:       charge.CardLastDigits,
		CreatedDate:          charge.CreatedDate.UTC().Format(time.RFC3339),
	}
}

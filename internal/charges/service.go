package charges

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calderapay/connector/internal/idempotency"
	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
	pkgerrors "github.com/calderapay/connector/pkg/errors"
	"github.com/calderapay/connector/pkg/ids"
	"github.com/calderapay/connector/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type credentialResolver interface {
	ResolveCurrent(ctx context.Context, account *models.GatewayAccount) (*models.GatewayAccountCredential, error)
}

type idempotencyGuard interface {
	Reserve(ctx context.Context, accountID uuid.UUID, key, resourceExternalID string, requestBody json.RawMessage) (idempotency.Reservation, error)
	Release(ctx context.Context, accountID uuid.UUID, key string) error
}

// ServiceParams groups dependencies for the charge service.
type ServiceParams struct {
	Repo        Repository
	DB          txRunner
	Credentials credentialResolver
	Guard       idempotencyGuard
	Logger      *logger.Logger
	Now         func() time.Time
}

// Service drives charges through the lifecycle graph.
type Service struct {
	repo        Repository
	db          txRunner
	credentials credentialResolver
	guard       idempotencyGuard
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds a charge service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner is required")
	}
	if params.Credentials == nil {
		return nil, errors.New("credential resolver is required")
	}
	if params.Guard == nil {
		return nil, errors.New("idempotency guard is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:        params.Repo,
		db:          params.DB,
		credentials: params.Credentials,
		guard:       params.Guard,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// CreateParams describes an inbound create-charge request.
type CreateParams struct {
	AmountPence       int64
	Reference         string
	Description       string
	Email             string
	AuthorisationMode enums.AuthorisationMode
	IdempotencyKey    string
	RequestBody       json.RawMessage
}

// Create consults the idempotency guard before anything else, so a replay of
// a known key returns the original charge even if the account's credentials
// or settings have changed since the first attempt. Only a fresh reservation
// goes on to resolve the account's current credential and persist the charge
// in status created together with its first event. The credential reference
// recorded here is final: in-flight payments finish on the provider they
// started with even if the account rotates later.
//
// The returned bool is true when the request replayed a known key and the
// original charge is being returned instead of a new one.
func (s *Service) Create(ctx context.Context, account *models.GatewayAccount, params CreateParams) (*models.Charge, bool, error) {
	externalID := ids.NewExternalID()

	reserved := false
	if params.IdempotencyKey != "" {
		reservation, err := s.guard.Reserve(ctx, account.ID, params.IdempotencyKey, externalID, params.RequestBody)
		if err != nil {
			return nil, false, err
		}
		if reservation.Status == idempotency.StatusDuplicate {
			existing, findErr := s.repo.FindByExternalID(ctx, reservation.ResourceExternalID)
			if findErr != nil {
				return nil, false, fmt.Errorf("load original charge for idempotent replay: %w", findErr)
			}
			return existing, true, nil
		}
		reserved = true
	}
	// A reservation that produced no charge is released so a corrected retry
	// can reserve the key again.
	releaseReservation := func() {
		if !reserved {
			return
		}
		if relErr := s.guard.Release(ctx, account.ID, params.IdempotencyKey); relErr != nil {
			s.logg.Error(ctx, "failed to release idempotency key after create failure", relErr)
		}
	}

	credential, err := s.credentials.ResolveCurrent(ctx, account)
	if err != nil {
		releaseReservation()
		return nil, false, err
	}

	mode := params.AuthorisationMode
	if mode == "" {
		mode = enums.AuthorisationModeWeb
	}
	if mode == enums.AuthorisationModeMotoAPI && !account.AllowMoto {
		releaseReservation()
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "gateway account does not allow MOTO payments")
	}

	charge := &models.Charge{
		ExternalID:        externalID,
		GatewayAccountID:  account.ID,
		CredentialID:      &credential.ID,
		Status:            enums.ChargeStatusCreated,
		AmountPence:       params.AmountPence,
		Reference:         params.Reference,
		Description:       params.Description,
		AuthorisationMode: mode,
	}
	if params.Email != "" {
		charge.Email = &params.Email
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, charge); err != nil {
			return fmt.Errorf("create charge: %w", err)
		}
		return repo.AppendEvent(ctx, &models.ChargeEvent{
			ChargeID: charge.ID,
			Status:   enums.ChargeStatusCreated,
		})
	})
	if err != nil {
		releaseReservation()
		return nil, false, err
	}
	return charge, false, nil
}

// TransitionOptions tune a single status transition.
type TransitionOptions struct {
	// GatewayTransactionID, when set, is recorded on the charge before the
	// event is stamped.
	GatewayTransactionID *string
	// Refresh permits a same-status replay (webhook redelivery) as a no-op.
	Refresh bool
}

// Transition moves the charge along one edge of the graph and appends exactly
// one event. A concurrent transition surfaces as OptimisticLockError; the
// caller re-reads and retries rather than overwriting.
func (s *Service) Transition(ctx context.Context, chargeExternalID string, newStatus enums.ChargeStatus, opts TransitionOptions) (*models.Charge, error) {
	if !newStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown charge status %q", newStatus))
	}

	charge, err := s.repo.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return nil, fmt.Errorf("find charge: %w", err)
	}

	if charge.Status == newStatus && opts.Refresh {
		return charge, nil
	}
	if !charge.Status.CanTransitionTo(newStatus) {
		return nil, &IllegalTransitionError{From: charge.Status, To: newStatus}
	}

	updates := map[string]any{"status": newStatus}
	transactionID := charge.GatewayTransactionID
	if opts.GatewayTransactionID != nil {
		transactionID = opts.GatewayTransactionID
		updates["gateway_transaction_id"] = *opts.GatewayTransactionID
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.UpdateWhereVersion(ctx, charge.ID, charge.Version, updates)
		if err != nil {
			return fmt.Errorf("update charge status: %w", err)
		}
		if affected == 0 {
			return &OptimisticLockError{ChargeExternalID: chargeExternalID}
		}
		return repo.AppendEvent(ctx, &models.ChargeEvent{
			ChargeID:             charge.ID,
			Status:               newStatus,
			GatewayTransactionID: transactionID,
		})
	})
	if err != nil {
		return nil, err
	}

	charge.Status = newStatus
	charge.GatewayTransactionID = transactionID
	charge.Version++
	return charge, nil
}

// Cancel honours an external cancel request only while the charge is in a
// pre-capture state. Once capture has been submitted the request is rejected
// with a conflict, never silently accepted.
func (s *Service) Cancel(ctx context.Context, chargeExternalID string) (*models.Charge, error) {
	charge, err := s.repo.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return nil, fmt.Errorf("find charge: %w", err)
	}
	if !charge.Status.Cancellable() {
		return nil, pkgerrors.New(
			pkgerrors.CodeStateConflict,
			fmt.Sprintf("charge in status %s can no longer be cancelled", charge.Status),
		)
	}
	return s.Transition(ctx, chargeExternalID, enums.ChargeStatusSystemCancelled, TransitionOptions{})
}

// Get loads a charge by its external id.
func (s *Service) Get(ctx context.Context, chargeExternalID string) (*models.Charge, error) {
	return s.repo.FindByExternalID(ctx, chargeExternalID)
}

// GetAccount loads a gateway account by its external id.
func (s *Service) GetAccount(ctx context.Context, accountExternalID string) (*models.GatewayAccount, error) {
	return s.repo.FindAccountByExternalID(ctx, accountExternalID)
}

// Events returns the charge's append-only status history, oldest first.
func (s *Service) Events(ctx context.Context, chargeExternalID string) ([]models.ChargeEvent, error) {
	charge, err := s.repo.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return nil, fmt.Errorf("find charge: %w", err)
	}
	return s.repo.ListEvents(ctx, charge.ID)
}

// Count3DSRequiredEvents reports how many times the charge entered the 3DS
// required state, derived from the event log.
func (s *Service) Count3DSRequiredEvents(ctx context.Context, chargeExternalID string) (int, error) {
	return s.countEvents(ctx, chargeExternalID, enums.ChargeStatusAuthorisation3DSRequired)
}

// CountCaptureRetries reports how many capture attempts have failed so far,
// derived from the event log.
func (s *Service) CountCaptureRetries(ctx context.Context, chargeExternalID string) (int, error) {
	return s.countEvents(ctx, chargeExternalID, enums.ChargeStatusCaptureApprovedRetry)
}

func (s *Service) countEvents(ctx context.Context, chargeExternalID string, status enums.ChargeStatus) (int, error) {
	charge, err := s.repo.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return 0, fmt.Errorf("find charge: %w", err)
	}
	return s.repo.CountEventsWithStatus(ctx, charge.ID, status)
}

// CardDetails is the card snapshot captured at authorisation time.
type CardDetails struct {
	Brand          string
	LastDigits     string
	FirstDigits    string
	CardholderName string
	AddressLine    string
	Postcode       string
	Country        string
}

// RecordCardDetails stores the card snapshot on the charge. Card fields are
// only ever populated once card capture has happened.
func (s *Service) RecordCardDetails(ctx context.Context, chargeExternalID string, details CardDetails) error {
	charge, err := s.repo.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return fmt.Errorf("find charge: %w", err)
	}
	updates := map[string]any{
		"card_brand":           details.Brand,
		"card_last_digits":     details.LastDigits,
		"card_first_digits":    details.FirstDigits,
		"cardholder_name":      details.CardholderName,
		"billing_address_line": details.AddressLine,
		"billing_postcode":     details.Postcode,
		"billing_country":      details.Country,
	}
	return s.repo.Update(ctx, charge.ID, updates)
}

// RecordParityCheck stamps the result of a ledger reconciliation pass.
func (s *Service) RecordParityCheck(ctx context.Context, chargeExternalID string, status enums.ParityCheckStatus) error {
	charge, err := s.repo.FindByExternalID(ctx, chargeExternalID)
	if err != nil {
		return fmt.Errorf("find charge: %w", err)
	}
	return s.repo.Update(ctx, charge.ID, map[string]any{
		"parity_check_status": status,
		"parity_check_date":   s.now().UTC(),
	})
}

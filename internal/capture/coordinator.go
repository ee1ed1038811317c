package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calderapay/connector/internal/charges"
	"github.com/calderapay/connector/internal/gateway"
	"github.com/calderapay/connector/pkg/config"
	"github.com/calderapay/connector/pkg/db/models"
	"github.com/calderapay/connector/pkg/enums"
	"github.com/calderapay/connector/pkg/logger"
	"github.com/calderapay/connector/pkg/metrics"
)

type chargeService interface {
	Transition(ctx context.Context, chargeExternalID string, newStatus enums.ChargeStatus, opts charges.TransitionOptions) (*models.Charge, error)
	CountCaptureRetries(ctx context.Context, chargeExternalID string) (int, error)
}

type chargeFinder interface {
	FindChargesForCapture(ctx context.Context, cutoff time.Time, limit int) ([]models.Charge, error)
}

type credentialLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.GatewayAccountCredential, error)
}

type submitterRegistry interface {
	Get(provider enums.PaymentProvider) (gateway.Submitter, error)
}

// CoordinatorParams groups dependencies for the capture coordinator.
type CoordinatorParams struct {
	Charges     chargeService
	Finder      chargeFinder
	Credentials credentialLoader
	Registry    submitterRegistry
	Metrics     *metrics.CaptureMetrics
	Logger      *logger.Logger
	Config      config.CaptureConfig
	Now         func() time.Time
}

// Coordinator walks capture-due charges through submission. Each charge is
// processed independently so one poisoned charge cannot stall the sweep.
type Coordinator struct {
	charges     chargeService
	finder      chargeFinder
	credentials credentialLoader
	registry    submitterRegistry
	metrics     *metrics.CaptureMetrics
	logg        *logger.Logger
	cfg         config.CaptureConfig
	now         func() time.Time
}

// NewCoordinator builds a capture coordinator.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Charges == nil {
		return nil, errors.New("charge service is required")
	}
	if params.Finder == nil {
		return nil, errors.New("charge finder is required")
	}
	if params.Credentials == nil {
		return nil, errors.New("credential loader is required")
	}
	if params.Registry == nil {
		return nil, errors.New("submitter registry is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		charges:     params.Charges,
		finder:      params.Finder,
		credentials: params.Credentials,
		registry:    params.Registry,
		metrics:     params.Metrics,
		logg:        params.Logger,
		cfg:         params.Config,
		now:         now,
	}, nil
}

// SweepResult summarizes one capture sweep.
type SweepResult struct {
	Considered int
	Captured   int
	Retried    int
	Escalated  int
}

// Sweep finds charges that have sat capture-due for longer than the
// configured window and processes each one. Per-charge failures are logged
// and counted, never propagated; the sweep itself only fails when the
// candidate query does.
func (c *Coordinator) Sweep(ctx context.Context) (SweepResult, error) {
	cutoff := c.now().Add(-c.cfg.Window)
	candidates, err := c.finder.FindChargesForCapture(ctx, cutoff, c.cfg.BatchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("find capture-due charges: %w", err)
	}

	result := SweepResult{Considered: len(candidates)}
	for i := range candidates {
		charge := &candidates[i]
		chargeCtx := c.logg.WithChargeID(ctx, charge.ExternalID)
		outcome, err := c.ProcessCharge(chargeCtx, charge)
		if err != nil {
			c.logg.Error(chargeCtx, "capture processing failed", err)
			continue
		}
		switch outcome {
		case gateway.CaptureOutcomeSuccess:
			result.Captured++
		case captureOutcomeEscalated:
			result.Escalated++
		default:
			result.Retried++
		}
	}
	return result, nil
}

// captureOutcomeEscalated is internal to the coordinator: the charge breached
// the retry ceiling and was parked in capture_error.
const captureOutcomeEscalated gateway.CaptureOutcome = "escalated"

// ProcessCharge runs one capture attempt end to end. The retry ceiling is
// checked first: a charge that has already burned its attempts is moved to
// capture_error without another provider call.
func (c *Coordinator) ProcessCharge(ctx context.Context, charge *models.Charge) (gateway.CaptureOutcome, error) {
	retries, err := c.charges.CountCaptureRetries(ctx, charge.ExternalID)
	if err != nil {
		return "", fmt.Errorf("count capture retries: %w", err)
	}
	if retries >= c.cfg.RetryCeiling {
		if _, err := c.charges.Transition(ctx, charge.ExternalID, enums.ChargeStatusCaptureError, charges.TransitionOptions{}); err != nil {
			return "", fmt.Errorf("escalate to capture_error: %w", err)
		}
		c.metrics.IncRetryExceeded()
		c.logg.Error(ctx, fmt.Sprintf("charge exceeded capture retry ceiling after %d attempts", retries), nil)
		return captureOutcomeEscalated, nil
	}

	if charge.CredentialID == nil {
		return "", fmt.Errorf("charge %s has no credential reference", charge.ExternalID)
	}
	credential, err := c.credentials.FindByID(ctx, *charge.CredentialID)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	submitter, err := c.registry.Get(credential.PaymentProvider)
	if err != nil {
		return "", err
	}
	fields, err := credential.CredentialFields()
	if err != nil {
		return "", fmt.Errorf("decode credential fields: %w", err)
	}

	if _, err := c.charges.Transition(ctx, charge.ExternalID, enums.ChargeStatusCaptureReady, charges.TransitionOptions{}); err != nil {
		return "", fmt.Errorf("mark capture_ready: %w", err)
	}
	if _, err := c.charges.Transition(ctx, charge.ExternalID, enums.ChargeStatusCaptureSubmitted, charges.TransitionOptions{}); err != nil {
		return "", fmt.Errorf("mark capture_submitted: %w", err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	defer cancel()

	transactionID := ""
	if charge.GatewayTransactionID != nil {
		transactionID = *charge.GatewayTransactionID
	}
	result, err := submitter.SubmitCapture(submitCtx, gateway.CaptureRequest{
		ChargeExternalID:     charge.ExternalID,
		GatewayTransactionID: transactionID,
		AmountPence:          charge.AmountPence,
		CredentialFields:     fields,
	})
	if err != nil {
		// The request never reached the provider; treat it like a failed
		// attempt so the charge stays retryable.
		result = gateway.CaptureResult{Outcome: gateway.CaptureOutcomeFailure, Message: err.Error()}
	}
	c.metrics.IncSubmission(credential.PaymentProvider.String(), string(result.Outcome))

	opts := charges.TransitionOptions{}
	if result.ProviderTransactionID != "" {
		opts.GatewayTransactionID = &result.ProviderTransactionID
	}

	switch result.Outcome {
	case gateway.CaptureOutcomeSuccess:
		if _, err := c.charges.Transition(ctx, charge.ExternalID, enums.ChargeStatusCaptured, opts); err != nil {
			return "", fmt.Errorf("mark captured: %w", err)
		}
		return gateway.CaptureOutcomeSuccess, nil
	case gateway.CaptureOutcomeTimeout:
		c.logg.Warn(ctx, "capture submission timed out, outcome unknown, will retry")
		fallthrough
	default:
		if result.Outcome == gateway.CaptureOutcomeFailure && result.Message != "" {
			c.logg.Warn(ctx, fmt.Sprintf("capture submission failed: %s", result.Message))
		}
		if _, err := c.charges.Transition(ctx, charge.ExternalID, enums.ChargeStatusCaptureApprovedRetry, opts); err != nil {
			return "", fmt.Errorf("mark capture_approved_retry: %w", err)
		}
		return result.Outcome, nil
	}
}

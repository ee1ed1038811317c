package gateway

import (
	"context"
	"errors"
	"net"

	"github.com/calderapay/connector/pkg/enums"
)

// CaptureOutcome classifies a capture submission. Timeout is its own outcome
// because the money may or may not have moved; callers must treat it as
// unknown and retry, never as a definitive failure.
type CaptureOutcome string

const (
	CaptureOutcomeSuccess CaptureOutcome = "success"
	CaptureOutcomeFailure CaptureOutcome = "failure"
	CaptureOutcomeTimeout CaptureOutcome = "timeout"
)

// CaptureRequest carries everything a provider needs to capture an authorised
// payment. CredentialFields is the decoded credential blob frozen onto the
// charge at creation.
type CaptureRequest struct {
	ChargeExternalID     string
	GatewayTransactionID string
	AmountPence          int64
	CredentialFields     map[string]string
}

// CaptureResult is the provider's answer. ProviderTransactionID is set when
// the provider minted or confirmed a transaction reference during the call.
type CaptureResult struct {
	Outcome               CaptureOutcome
	ProviderTransactionID string
	Message               string
}

// Submitter submits capture requests to one payment provider. Implementations
// fold transport timeouts into CaptureOutcomeTimeout; a returned error means
// the request could not even be attempted.
type Submitter interface {
	Provider() enums.PaymentProvider
	SubmitCapture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
}

// timedOut reports whether err is a deadline or transport timeout rather than
// a definitive rejection.
func timedOut(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

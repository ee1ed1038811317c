package gateway

import (
	"context"
	"errors"

	stripesdk "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/calderapay/connector/pkg/enums"
	pkgstripe "github.com/calderapay/connector/pkg/stripe"
)

// stripeCaptureAPI exposes the subset of Stripe operations the submitter
// needs, so tests can swap the real API out.
type stripeCaptureAPI interface {
	Capture(ctx context.Context, id string, params *stripesdk.PaymentIntentCaptureParams) (*stripesdk.PaymentIntent, error)
}

type stripeAPIWrapper struct{}

func (stripeAPIWrapper) Capture(ctx context.Context, id string, params *stripesdk.PaymentIntentCaptureParams) (*stripesdk.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.Capture(id, params)
}

// StripeSubmitter captures payment intents on connected Stripe accounts.
type StripeSubmitter struct {
	api stripeCaptureAPI
}

// NewStripeSubmitter wraps the initialized Stripe client.
func NewStripeSubmitter(client *pkgstripe.Client) *StripeSubmitter {
	if client == nil {
		return nil
	}
	return &StripeSubmitter{api: stripeAPIWrapper{}}
}

func (s *StripeSubmitter) Provider() enums.PaymentProvider {
	return enums.PaymentProviderStripe
}

func (s *StripeSubmitter) SubmitCapture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	if req.GatewayTransactionID == "" {
		return CaptureResult{}, errors.New("stripe capture requires a payment intent id")
	}

	params := &stripesdk.PaymentIntentCaptureParams{
		AmountToCapture: stripesdk.Int64(req.AmountPence),
	}
	if accountID := req.CredentialFields["stripe_account_id"]; accountID != "" {
		params.SetStripeAccount(accountID)
	}

	intent, err := s.api.Capture(ctx, req.GatewayTransactionID, params)
	if err != nil {
		if timedOut(err) {
			return CaptureResult{Outcome: CaptureOutcomeTimeout, Message: err.Error()}, nil
		}
		var stripeErr *stripesdk.Error
		if errors.As(err, &stripeErr) {
			return CaptureResult{Outcome: CaptureOutcomeFailure, Message: stripeErr.Msg}, nil
		}
		return CaptureResult{Outcome: CaptureOutcomeFailure, Message: err.Error()}, nil
	}

	if intent.Status != stripesdk.PaymentIntentStatusSucceeded {
		return CaptureResult{
			Outcome:               CaptureOutcomeFailure,
			ProviderTransactionID: intent.ID,
			Message:               string(intent.Status),
		}, nil
	}
	return CaptureResult{
		Outcome:               CaptureOutcomeSuccess,
		ProviderTransactionID: intent.ID,
	}, nil
}

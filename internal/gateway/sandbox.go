package gateway

import (
	"context"

	"github.com/calderapay/connector/pkg/enums"
	"github.com/calderapay/connector/pkg/ids"
)

// SandboxSubmitter acknowledges every capture without calling anything. Test
// accounts run their full lifecycle against it.
type SandboxSubmitter struct{}

// NewSandboxSubmitter builds the sandbox provider.
func NewSandboxSubmitter() *SandboxSubmitter {
	return &SandboxSubmitter{}
}

func (s *SandboxSubmitter) Provider() enums.PaymentProvider {
	return enums.PaymentProviderSandbox
}

func (s *SandboxSubmitter) SubmitCapture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return CaptureResult{Outcome: CaptureOutcomeTimeout, Message: err.Error()}, nil
	}
	transactionID := req.GatewayTransactionID
	if transactionID == "" {
		transactionID = "sandbox-" + ids.NewExternalID()
	}
	return CaptureResult{
		Outcome:               CaptureOutcomeSuccess,
		ProviderTransactionID: transactionID,
	}, nil
}

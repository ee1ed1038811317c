package enums

import "fmt"

// ChargeStatus models the charge lifecycle. The legal edges live in
// chargeStatusTransitions so the whole graph is auditable as data.
type ChargeStatus string

const (
	ChargeStatusCreated                  ChargeStatus = "created"
	ChargeStatusEnteringCardDetails      ChargeStatus = "entering_card_details"
	ChargeStatusAuthorisationReady       ChargeStatus = "authorisation_ready"
	ChargeStatusAuthorisation3DSRequired ChargeStatus = "authorisation_3ds_required"
	ChargeStatusAuthorisation3DSReady    ChargeStatus = "authorisation_3ds_ready"
	ChargeStatusAuthorisationSuccess     ChargeStatus = "authorisation_success"
	ChargeStatusAuthorisationRejected    ChargeStatus = "authorisation_rejected"
	ChargeStatusAuthorisationTimeout     ChargeStatus = "authorisation_timeout"
	ChargeStatusCaptureApproved          ChargeStatus = "capture_approved"
	ChargeStatusCaptureApprovedRetry     ChargeStatus = "capture_approved_retry"
	ChargeStatusCaptureReady             ChargeStatus = "capture_ready"
	ChargeStatusCaptureSubmitted         ChargeStatus = "capture_submitted"
	ChargeStatusCaptured                 ChargeStatus = "captured"
	ChargeStatusCaptureError             ChargeStatus = "capture_error"
	ChargeStatusExpired                  ChargeStatus = "expired"
	ChargeStatusSystemCancelled          ChargeStatus = "system_cancelled"
)

var validChargeStatuses = []ChargeStatus{
	ChargeStatusCreated,
	ChargeStatusEnteringCardDetails,
	ChargeStatusAuthorisationReady,
	ChargeStatusAuthorisation3DSRequired,
	ChargeStatusAuthorisation3DSReady,
	ChargeStatusAuthorisationSuccess,
	ChargeStatusAuthorisationRejected,
	ChargeStatusAuthorisationTimeout,
	ChargeStatusCaptureApproved,
	ChargeStatusCaptureApprovedRetry,
	ChargeStatusCaptureReady,
	ChargeStatusCaptureSubmitted,
	ChargeStatusCaptured,
	ChargeStatusCaptureError,
	ChargeStatusExpired,
	ChargeStatusSystemCancelled,
}

// chargeStatusTransitions is the full allowed edge set. Terminal states have
// no outgoing edges. A created charge may jump straight to authorisation_ready
// for MOTO/API payments that never render a card-details page. The retry state
// carries a self edge: each failed capture submission re-enters it.
var chargeStatusTransitions = map[ChargeStatus][]ChargeStatus{
	ChargeStatusCreated: {
		ChargeStatusEnteringCardDetails,
		ChargeStatusAuthorisationReady,
		ChargeStatusExpired,
		ChargeStatusSystemCancelled,
	},
	ChargeStatusEnteringCardDetails: {
		ChargeStatusAuthorisationReady,
		ChargeStatusExpired,
		ChargeStatusSystemCancelled,
	},
	ChargeStatusAuthorisationReady: {
		ChargeStatusAuthorisationSuccess,
		ChargeStatusAuthorisation3DSRequired,
		ChargeStatusAuthorisationRejected,
		ChargeStatusAuthorisationTimeout,
	},
	ChargeStatusAuthorisation3DSRequired: {
		ChargeStatusAuthorisation3DSReady,
		ChargeStatusExpired,
		ChargeStatusSystemCancelled,
	},
	ChargeStatusAuthorisation3DSReady: {
		ChargeStatusAuthorisationSuccess,
		ChargeStatusAuthorisationRejected,
		ChargeStatusAuthorisationTimeout,
	},
	ChargeStatusAuthorisationSuccess: {
		ChargeStatusCaptureApproved,
		ChargeStatusExpired,
		ChargeStatusSystemCancelled,
	},
	ChargeStatusCaptureApproved: {
		ChargeStatusCaptureReady,
		ChargeStatusCaptureApprovedRetry,
		ChargeStatusCaptureError,
		ChargeStatusSystemCancelled,
	},
	ChargeStatusCaptureApprovedRetry: {
		ChargeStatusCaptureReady,
		ChargeStatusCaptureApprovedRetry,
		ChargeStatusCaptureError,
		ChargeStatusSystemCancelled,
	},
	ChargeStatusCaptureReady: {
		ChargeStatusCaptureSubmitted,
		ChargeStatusCaptureError,
	},
	ChargeStatusCaptureSubmitted: {
		ChargeStatusCaptured,
		ChargeStatusCaptureApprovedRetry,
		ChargeStatusCaptureError,
	},
	ChargeStatusCaptured:              {},
	ChargeStatusCaptureError:          {},
	ChargeStatusAuthorisationRejected: {},
	ChargeStatusAuthorisationTimeout:  {},
	ChargeStatusExpired:               {},
	ChargeStatusSystemCancelled:       {},
}

// String implements fmt.Stringer.
func (c ChargeStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c ChargeStatus) IsValid() bool {
	for _, candidate := range validChargeStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing edges.
func (c ChargeStatus) IsTerminal() bool {
	next, ok := chargeStatusTransitions[c]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the edge c -> next is in the graph.
func (c ChargeStatus) CanTransitionTo(next ChargeStatus) bool {
	for _, candidate := range chargeStatusTransitions[c] {
		if candidate == next {
			return true
		}
	}
	return false
}

// NextStatuses returns a copy of the outgoing edges for the status.
func (c ChargeStatus) NextStatuses() []ChargeStatus {
	edges := chargeStatusTransitions[c]
	out := make([]ChargeStatus, len(edges))
	copy(out, edges)
	return out
}

// Cancellable reports whether an external cancel request may still be
// honoured. Once capture has been submitted the answer is no.
func (c ChargeStatus) Cancellable() bool {
	return c.CanTransitionTo(ChargeStatusSystemCancelled)
}

// ChargeStatuses returns every known status, in canonical order.
func ChargeStatuses() []ChargeStatus {
	out := make([]ChargeStatus, len(validChargeStatuses))
	copy(out, validChargeStatuses)
	return out
}

// ParseChargeStatus converts raw input into a ChargeStatus.
func ParseChargeStatus(value string) (ChargeStatus, error) {
	for _, candidate := range validChargeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid charge status %q", value)
}

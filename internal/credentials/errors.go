package credentials

import "fmt"

// NoActiveCredentialError means an account has no credential rows at all.
// Payments cannot proceed without a provider, so this is fatal to the
// requested operation and always propagates.
type NoActiveCredentialError struct {
	AccountExternalID string
}

func (e *NoActiveCredentialError) Error() string {
	return fmt.Sprintf("gateway account %s has no credentials configured", e.AccountExternalID)
}

// IllegalStateTransitionError reports a credential state change outside the
// created -> active -> retired path.
type IllegalStateTransitionError struct {
	From string
	To   string
}

func (e *IllegalStateTransitionError) Error() string {
	return fmt.Sprintf("credential state cannot move from %s to %s", e.From, e.To)
}

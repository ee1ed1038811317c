package enums

import "fmt"

// CredentialState tracks a credential set through its rotation lifecycle.
// The path is linear: once retired a credential never becomes active again.
type CredentialState string

const (
	CredentialStateCreated CredentialState = "created"
	CredentialStateActive  CredentialState = "active"
	CredentialStateRetired CredentialState = "retired"
)

var validCredentialStates = []CredentialState{
	CredentialStateCreated,
	CredentialStateActive,
	CredentialStateRetired,
}

// credentialStateTransitions is the allowed edge set. A created credential may
// be retired directly when abandoned before ever going live.
var credentialStateTransitions = map[CredentialState][]CredentialState{
	CredentialStateCreated: {CredentialStateActive, CredentialStateRetired},
	CredentialStateActive:  {CredentialStateRetired},
	CredentialStateRetired: {},
}

// String implements fmt.Stringer.
func (c CredentialState) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CredentialState) IsValid() bool {
	for _, candidate := range validCredentialStates {
		if candidate == c {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the requested state change is legal.
func (c CredentialState) CanTransitionTo(next CredentialState) bool {
	for _, candidate := range credentialStateTransitions[c] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseCredentialState converts raw input into a CredentialState.
func ParseCredentialState(value string) (CredentialState, error) {
	for _, candidate := range validCredentialStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credential state %q", value)
}

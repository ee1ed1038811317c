package enums

import "fmt"

// AuthorisationMode describes how card details reach the connector.
type AuthorisationMode string

const (
	AuthorisationModeWeb      AuthorisationMode = "web"
	AuthorisationModeMotoAPI  AuthorisationMode = "moto_api"
	AuthorisationModeExternal AuthorisationMode = "external"
)

var validAuthorisationModes = []AuthorisationMode{
	AuthorisationModeWeb,
	AuthorisationModeMotoAPI,
	AuthorisationModeExternal,
}

// String implements fmt.Stringer.
func (a AuthorisationMode) String() string {
	return string(a)
}

// IsValid reports whether the value is known.
func (a AuthorisationMode) IsValid() bool {
	for _, candidate := range validAuthorisationModes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuthorisationMode converts raw input into an AuthorisationMode.
func ParseAuthorisationMode(value string) (AuthorisationMode, error) {
	for _, candidate := range validAuthorisationModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid authorisation mode %q", value)
}

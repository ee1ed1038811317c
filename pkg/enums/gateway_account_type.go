package enums

import "fmt"

// GatewayAccountType is fixed at provisioning time and never changes.
type GatewayAccountType string

const (
	GatewayAccountTypeTest GatewayAccountType = "test"
	GatewayAccountTypeLive GatewayAccountType = "live"
)

var validGatewayAccountTypes = []GatewayAccountType{
	GatewayAccountTypeTest,
	GatewayAccountTypeLive,
}

// String implements fmt.Stringer.
func (g GatewayAccountType) String() string {
	return string(g)
}

// IsValid reports whether the value is known.
func (g GatewayAccountType) IsValid() bool {
	for _, candidate := range validGatewayAccountTypes {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGatewayAccountType converts raw input into a GatewayAccountType.
func ParseGatewayAccountType(value string) (GatewayAccountType, error) {
	for _, candidate := range validGatewayAccountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway account type %q", value)
}

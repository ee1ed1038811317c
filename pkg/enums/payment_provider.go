package enums

import "fmt"

// PaymentProvider identifies the acquirer a credential set addresses.
type PaymentProvider string

const (
	PaymentProviderSandbox  PaymentProvider = "sandbox"
	PaymentProviderStripe   PaymentProvider = "stripe"
	PaymentProviderWorldpay PaymentProvider = "worldpay"
	PaymentProviderEpdq     PaymentProvider = "epdq"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderSandbox,
	PaymentProviderStripe,
	PaymentProviderWorldpay,
	PaymentProviderEpdq,
}

// String implements fmt.Stringer.
func (p PaymentProvider) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProvider converts raw input into a PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	for _, candidate := range validPaymentProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}

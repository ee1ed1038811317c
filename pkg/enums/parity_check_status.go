package enums

import "fmt"

// ParityCheckStatus records how a charge compared against the downstream
// ledger during the last reconciliation pass.
type ParityCheckStatus string

const (
	ParityCheckStatusExistsInLedger  ParityCheckStatus = "exists_in_ledger"
	ParityCheckStatusMissingInLedger ParityCheckStatus = "missing_in_ledger"
	ParityCheckStatusDataMismatch    ParityCheckStatus = "data_mismatch"
	ParityCheckStatusSkipped         ParityCheckStatus = "skipped"
)

var validParityCheckStatuses = []ParityCheckStatus{
	ParityCheckStatusExistsInLedger,
	ParityCheckStatusMissingInLedger,
	ParityCheckStatusDataMismatch,
	ParityCheckStatusSkipped,
}

// String implements fmt.Stringer.
func (p ParityCheckStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p ParityCheckStatus) IsValid() bool {
	for _, candidate := range validParityCheckStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseParityCheckStatus converts raw input into a ParityCheckStatus.
func ParseParityCheckStatus(value string) (ParityCheckStatus, error) {
	for _, candidate := range validParityCheckStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid parity check status %q", value)
}

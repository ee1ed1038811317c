package charges

import (
	"fmt"

	"github.com/calderapay/connector/pkg/enums"
)

// IllegalTransitionError reports an edge outside the status graph. It names
// both states so a replayed or out-of-order webhook can be diagnosed from the
// log line alone.
type IllegalTransitionError struct {
	From enums.ChargeStatus
	To   enums.ChargeStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("charge cannot move from %s to %s", e.From, e.To)
}

// OptimisticLockError means a concurrent transition won the race. The caller
// must re-read the charge and retry; overwriting blindly is never correct.
type OptimisticLockError struct {
	ChargeExternalID string
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("charge %s was modified concurrently", e.ChargeExternalID)
}

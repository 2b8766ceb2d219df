package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration indicates missing or contradictory thresholds.
	ErrInvalidConfiguration = errors.New("invalid engine configuration")

	// ErrUnknownRep indicates a ledger mutation targeting a rep that was
	// never registered. Programmer error: the ledger and the rep pool
	// have diverged.
	ErrUnknownRep = errors.New("unknown rep")

	// ErrAccountNotInWorkload indicates a removal of an account that is
	// not present in the rep's workload.
	ErrAccountNotInWorkload = errors.New("account not in workload")
)

// NoEligibleRepsError aborts a run: zero active reps remained after the
// mandatory filters for the named account. This is a configuration
// problem, not a per-account condition.
type NoEligibleRepsError struct {
	AccountID string
	Pass      string
}

func (e *NoEligibleRepsError) Error() string {
	return fmt.Sprintf("no eligible reps for account %s in pass %s", e.AccountID, e.Pass)
}

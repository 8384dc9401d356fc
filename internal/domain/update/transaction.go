package update

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is a step of an update transaction.
type State string

// Transaction states.
const (
	StateChecking    State = "CHECKING"
	StateDownloading State = "DOWNLOADING"
	StateSwapping    State = "SWAPPING"
	StateRelaunching State = "RELAUNCHING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
	// StateRolledBack is the FAILED sub-state after a successful rollback.
	StateRolledBack State = "ROLLED_BACK"
)

var transitions = map[State][]State{
	StateChecking:    {StateDownloading, StateDone},
	StateDownloading: {StateSwapping, StateFailed},
	StateSwapping:    {StateRelaunching, StateFailed, StateRolledBack},
	StateRelaunching: {StateDone},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Transaction tracks a single update attempt. It lives only in memory; after a
// restart the filesystem (target, staging and backup paths) is the only record.
type Transaction struct {
	// ID correlates every log line of the attempt.
	ID string
	// App is the application identifier.
	App string
	// From is the version before the attempt.
	From string
	// To is the candidate version once known.
	To string
	// State is the current step.
	State State
	// Err is the failure reason once the transaction failed.
	Err error
	// StartedAt is when the attempt began.
	StartedAt time.Time
}

// NewTransaction starts a transaction in StateChecking.
func NewTransaction(app, from string) *Transaction {
	return &Transaction{
		ID:        uuid.NewString(),
		App:       app,
		From:      from,
		State:     StateChecking,
		StartedAt: time.Now(),
	}
}

// Transition moves the transaction to next.
func (t *Transaction) Transition(next State) error {
	for _, allowed := range transitions[t.State] {
		if allowed == next {
			t.State = next

			return nil
		}
	}

	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.State, next)
}

// Fail records err and moves to StateRolledBack when err reports a successful
// rollback during a swap, or to StateFailed otherwise.
func (t *Transaction) Fail(err error) error {
	next := StateFailed
	if t.State == StateSwapping && errors.Is(err, ErrRolledBack) {
		next = StateRolledBack
	}

	if transitionErr := t.Transition(next); transitionErr != nil {
		return transitionErr
	}

	t.Err = err

	return nil
}

// Result summarizes the transaction for callers.
func (t *Transaction) Result() Result {
	result := Result{
		App:           t.App,
		From:          t.From,
		To:            t.To,
		TransactionID: t.ID,
		Err:           t.Err,
	}

	switch t.State {
	case StateDone:
		if t.To != "" {
			result.Status = StatusUpdated
		}
	case StateFailed, StateRolledBack:
		result.Status = StatusFailed
	case StateChecking, StateDownloading, StateSwapping, StateRelaunching:
		result.Status = StatusFailed
		if result.Err == nil {
			result.Err = fmt.Errorf("%w: transaction stopped in %s", ErrIllegalTransition, t.State)
		}
	}

	return result
}

package timer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// current state, e.g. Stop while idle
	ErrInvalidState = errors.New("timer: invalid state")

	// ErrConsistencyAnomaly is returned when the snapshot refers to a record
	// that is missing from the store or already closed. The machine has
	// already settled in Idle when this is returned.
	ErrConsistencyAnomaly = errors.New("timer: consistency anomaly")

	// ErrPersistence matches any *PersistenceError
	ErrPersistence = errors.New("timer: persistence failure")

	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("timer: closed")
)

// PersistenceError reports a failed read or write against the record or
// snapshot store
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("timer: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func invalidState(op string, state State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, op, state.Name())
}

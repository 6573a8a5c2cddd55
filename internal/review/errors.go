package review

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches any *TimeoutError via errors.Is.
var ErrTimeout = errors.New("review timed out")

// TimeoutError reports that the agents did not all answer within the budget.
// Partial agent state is discarded.
type TimeoutError struct {
	RequestID string
	Timeout   time.Duration
	Completed int
	Total     int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("review %s timed out after %s (%d/%d agents completed)", e.RequestID, e.Timeout, e.Completed, e.Total)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// SessionError reports a gateway failure while opening, sending or receiving.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

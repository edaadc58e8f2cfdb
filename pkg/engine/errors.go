package engine

import (
	"errors"
	"fmt"
)

// ErrCircuitBreakerTripped marks a run halted by the step-count safety
// limit. It is run-terminal but not a defect.
var ErrCircuitBreakerTripped = errors.New("circuit breaker tripped: step limit exceeded")

// ErrRunTimeout marks a run halted by the wall-clock deadline.
var ErrRunTimeout = errors.New("run timeout exceeded")

// HandlerError wraps an infrastructure failure raised by a node handler.
// It is fatal to the run; tool-call business errors never take this path.
type HandlerError struct {
	NodeID string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for node %s failed: %v", e.NodeID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// RoutingFailure wraps a routing resolution error with run context.
type RoutingFailure struct {
	RunID  string
	NodeID string
	Err    error
}

func (e *RoutingFailure) Error() string {
	return fmt.Sprintf("run %s: routing failed after node %s: %v", e.RunID, e.NodeID, e.Err)
}

func (e *RoutingFailure) Unwrap() error {
	return e.Err
}

// IsCircuitBreaker checks if an error indicates the step limit was hit.
func IsCircuitBreaker(err error) bool {
	return errors.Is(err, ErrCircuitBreakerTripped)
}

// IsTimeout checks if an error indicates the run deadline was exceeded.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrRunTimeout)
}

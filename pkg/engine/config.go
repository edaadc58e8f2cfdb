// Package engine drives single-run execution of compiled workflow graphs:
// a sequential state machine with circuit-breaker and wall-clock guarantees
// around non-deterministic agent and tool calls.
package engine

import "time"

const (
	// DefaultStepLimit is the circuit-breaker step budget per run.
	DefaultStepLimit = 15

	// DefaultRunTimeout is the wall-clock budget per run.
	DefaultRunTimeout = 90 * time.Second
)

// Config carries the externally supplied execution limits. The zero value
// uses the defaults.
type Config struct {
	// StepLimit is the maximum number of node executions before the run
	// is interrupted. The trip is a deliberate safety stop, not an error
	// to retry.
	StepLimit int

	// RunTimeout bounds the whole run; exceeding it cancels any in-flight
	// handler call.
	RunTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.StepLimit <= 0 {
		c.StepLimit = DefaultStepLimit
	}

	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultRunTimeout
	}

	return c
}

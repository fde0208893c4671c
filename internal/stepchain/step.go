// Package stepchain runs an ordered list of provisioning steps, each of which
// starts a remote long-running operation. A step starts only after the
// previous step's operation reports completion through its callback, so at
// most one operation is ever in flight.
//
// The chain holds no goroutines of its own. It is advanced from Start and from
// the completion callbacks that the operation handles invoke.
package stepchain

import (
	"fmt"
	"time"
)

// Params is the parameter bag handed verbatim to a step's capability.
type Params map[string]any

// Handle is a started long-running operation.
type Handle interface {
	// OnComplete registers the completion callback. It runs once, when the
	// operation succeeds. Handles that are already complete run it right
	// away. Whatever the callback returns is handed back to whoever invoked it.
	OnComplete(fn func() error)

	// Wait blocks until the operation completes or timeout elapses. It returns
	// the operation's error, or the handle's own timeout error.
	Wait(timeout time.Duration) error
}

// Capability starts a remote operation from a parameter bag.
type Capability func(params Params) (Handle, error)

// Step is one provisioning action. Steps are consumed exactly once.
type Step struct {
	Name   string
	Start  Capability
	Params Params
}

// StepError reports a capability that failed when it was invoked.
type StepError struct {
	Step  string
	Index int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed to start: %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepReport records when a step was started and when its operation completed.
type StepReport struct {
	Name        string
	Index       int
	StartedAt   time.Time
	CompletedAt time.Time
}

// Completed reports whether the step's completion callback fired.
func (r StepReport) Completed() bool {
	return !r.CompletedAt.IsZero()
}

// Duration is zero until the step completes.
func (r StepReport) Duration() time.Duration {
	if !r.Completed() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

package stepchain

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"
)

// Error codes for chain misuse.
const (
	ErrCodeEmptyChain     = "AZCHAIN_EMPTY_CHAIN"
	ErrCodeInvalidStep    = "AZCHAIN_INVALID_STEP"
	ErrCodeAlreadyStarted = "AZCHAIN_ALREADY_STARTED"
	ErrCodeNoStepInFlight = "AZCHAIN_NO_STEP_IN_FLIGHT"
	ErrCodeStalled        = "AZCHAIN_STALLED"
)

// startMessage is queued by Start; completion callbacks queue the index of
// the step that completed.
const startMessage = -1

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the logger for chain progress. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRunID overrides the generated run id attached to log records.
func WithRunID(id string) Option {
	return func(c *Chain) {
		if id != "" {
			c.runID = id
		}
	}
}

// Chain executes its steps strictly one after another.
//
// Transitions are messages: Start and every completion callback enqueue one,
// and whichever caller finds the queue idle drains it. Capabilities are never
// invoked with the lock held, so a handle that completes inside OnComplete
// just enqueues another message.
type Chain struct {
	steps  []Step
	logger *slog.Logger
	runID  string

	mu       sync.Mutex
	machine  *statekit.Interpreter[machineContext]
	started  bool
	index    int
	current  Handle
	err      error
	reports  []StepReport
	changed  chan struct{}
	pending  []int
	draining bool
}

// New validates the steps and returns a chain that has not been started.
func New(steps []Step, opts ...Option) (*Chain, error) {
	if len(steps) == 0 {
		return nil, errors.New(ErrCodeEmptyChain, "a step chain needs at least one step")
	}

	reports := make([]StepReport, len(steps))
	for i, s := range steps {
		if s.Start == nil {
			return nil, errors.New(ErrCodeInvalidStep, fmt.Sprintf("step %d (%s) has no capability", i, s.Name)).
				WithContext("step", s.Name).
				WithContext("index", i)
		}
		reports[i] = StepReport{Name: s.Name, Index: i}
	}

	machine, err := buildPhaseMachine()
	if err != nil {
		return nil, fmt.Errorf("building chain state machine: %w", err)
	}

	c := &Chain{
		steps:   append([]Step(nil), steps...),
		logger:  slog.New(slog.DiscardHandler),
		runID:   uuid.NewString(),
		machine: machine,
		index:   -1,
		reports: reports,
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("run_id", c.runID)
	return c, nil
}

// Start launches the first step and returns without waiting for it. A chain
// can only be started once.
//
// If the first capability fails, Start returns a *StepError and the chain is
// left in PhaseFailed.
func (c *Chain) Start() (*Chain, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return c, errors.New(ErrCodeAlreadyStarted, "step chain was already started").
			WithContext("run_id", c.runID)
	}
	c.started = true
	c.mu.Unlock()

	c.logger.Info("Starting step chain", "steps", len(c.steps))
	return c, c.post(startMessage)
}

// Wait blocks on the operation of the step currently in flight. It does not
// wait for the rest of the chain; see WaitAll.
//
// A completed chain returns nil immediately and a failed chain returns its
// *StepError. Calling Wait before Start is an error. Otherwise the handle's
// result, including its timeout error, is returned unchanged.
func (c *Chain) Wait(timeout time.Duration) error {
	var deadline time.Time
	var expired <-chan time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		c.mu.Lock()
		phase, h, changed, err := c.phaseLocked(), c.current, c.changed, c.err
		c.mu.Unlock()

		switch phase {
		case PhaseCompleted:
			return nil
		case PhaseFailed:
			return err
		case PhaseNotStarted:
			return errors.New(ErrCodeNoStepInFlight, "step chain has not been started").
				WithContext("run_id", c.runID)
		}

		if h != nil {
			if timeout <= 0 {
				return h.Wait(timeout)
			}
			// Time spent waiting for the handle to appear counts against timeout.
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return c.noOperationError(timeout)
			}
			return h.Wait(remaining)
		}

		// The capability for the next step is still being invoked.
		select {
		case <-changed:
		case <-expired:
			return c.noOperationError(timeout)
		}
	}
}

func (c *Chain) noOperationError(timeout time.Duration) error {
	return errors.New(ErrCodeNoStepInFlight, "no step operation became available before the timeout").
		WithContext("run_id", c.runID).
		WithContext("timeout", timeout.String())
}

// WaitAll waits on each step in turn until the chain completes or fails.
// timeout applies to each step separately.
func (c *Chain) WaitAll(timeout time.Duration) error {
	for {
		c.mu.Lock()
		phase, changed, index := c.phaseLocked(), c.changed, c.index
		c.mu.Unlock()

		if phase != PhaseInFlight {
			return c.Wait(timeout)
		}
		if err := c.Wait(timeout); err != nil {
			return err
		}

		// The handle reported completion; its callback moves the chain along.
		if !waitChanged(changed, timeout) {
			return errors.New(ErrCodeStalled,
				fmt.Sprintf("step %d (%s) completed but the chain did not advance", index, c.steps[index].Name)).
				WithContext("run_id", c.runID)
		}
	}
}

func waitChanged(changed <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		<-changed
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-changed:
		return true
	case <-timer.C:
		return false
	}
}

// IsDone reports whether the last step's operation has completed.
func (c *Chain) IsDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseLocked() == PhaseCompleted
}

// Phase returns the chain's lifecycle phase.
func (c *Chain) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseLocked()
}

// Index returns the index of the most recently started step, or -1.
func (c *Chain) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Current returns the name of the step in flight.
func (c *Chain) Current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phaseLocked() != PhaseInFlight {
		return "", false
	}
	return c.steps[c.index].Name, true
}

func (c *Chain) RunID() string {
	return c.runID
}

// Err returns the step failure that stopped the chain, if any.
func (c *Chain) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Reports returns a report for every step that has been started.
func (c *Chain) Reports() []StepReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []StepReport
	for _, r := range c.reports {
		if !r.StartedAt.IsZero() {
			out = append(out, r)
		}
	}
	return out
}

// post enqueues a transition and drains the queue unless another caller is
// already doing so.
func (c *Chain) post(msg int) error {
	c.mu.Lock()
	c.pending = append(c.pending, msg)
	if c.draining {
		c.mu.Unlock()
		return nil
	}
	c.draining = true
	c.mu.Unlock()

	return c.drain()
}

func (c *Chain) drain() error {
	var firstErr error
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.draining = false
			c.mu.Unlock()
			return firstErr
		}
		msg := c.pending[0]
		c.pending = c.pending[1:]
		next, ok := c.transitionLocked(msg)
		c.mu.Unlock()

		if !ok {
			continue
		}
		if err := c.launch(next); err != nil && firstErr == nil {
			firstErr = err
		}
	}
}

// transitionLocked applies one message and reports which step, if any, must
// be launched next.
func (c *Chain) transitionLocked(msg int) (int, bool) {
	phase := c.phaseLocked()

	if msg == startMessage {
		if phase != PhaseNotStarted {
			return 0, false
		}
		c.machine.Send(statekit.Event{Type: EventStart})
		c.beginLocked(0)
		return 0, true
	}

	if phase != PhaseInFlight {
		if phase == PhaseCompleted || phase == PhaseFailed {
			c.machine.Send(statekit.Event{Type: EventAdvance})
		}
		c.logger.Debug("Ignoring completion callback", "index", msg, "phase", phase)
		return 0, false
	}
	if msg != c.index {
		c.logger.Debug("Ignoring stale completion callback", "index", msg, "current", c.index)
		return 0, false
	}

	c.reports[msg].CompletedAt = time.Now()
	c.current = nil
	c.logger.Info("Step completed", "step", c.steps[msg].Name, "index", msg,
		"duration", c.reports[msg].Duration())

	if msg+1 == len(c.steps) {
		c.machine.Send(statekit.Event{Type: EventFinish})
		c.notifyLocked()
		c.logger.Info("Step chain completed")
		return 0, false
	}

	c.beginLocked(msg + 1)
	return msg + 1, true
}

func (c *Chain) beginLocked(i int) {
	c.index = i
	c.current = nil
	c.reports[i].StartedAt = time.Now()
	c.notifyLocked()
}

// launch invokes step i's capability and hooks the chain onto its handle.
func (c *Chain) launch(i int) error {
	step := c.steps[i]
	c.logger.Info("Starting step", "step", step.Name, "index", i)

	h, err := step.Start(step.Params)
	if err == nil && h == nil {
		err = fmt.Errorf("capability returned no operation handle")
	}

	c.mu.Lock()
	if err != nil {
		stepErr := &StepError{Step: step.Name, Index: i, Err: err}
		c.err = stepErr
		c.machine.Send(statekit.Event{Type: EventFail})
		c.notifyLocked()
		c.mu.Unlock()

		c.logger.Error("Step failed to start", "step", step.Name, "index", i, "error", err)
		return stepErr
	}
	c.current = h
	c.notifyLocked()
	c.mu.Unlock()

	h.OnComplete(func() error {
		return c.post(i)
	})
	return nil
}

func (c *Chain) phaseLocked() Phase {
	return Phase(c.machine.State().Value)
}

func (c *Chain) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

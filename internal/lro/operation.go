// Package lro provides stepchain handles for long-running operations. Each
// operation owns the goroutine that drives it; the step chain only sees
// completion callbacks.
package lro

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/microsoft/azchain/internal/stepchain"
)

// ErrCodeOperationTimeout is carried by the error Wait returns when its
// timeout elapses first.
const ErrCodeOperationTimeout = "AZCHAIN_OPERATION_TIMEOUT"

// Option configures an Operation.
type Option func(*Operation)

func WithLogger(logger *slog.Logger) Option {
	return func(op *Operation) {
		if logger != nil {
			op.logger = logger
		}
	}
}

// Operation is a stepchain.Handle.
//
// On success the completion callback runs before Wait is released, so a
// waiter never observes a finished operation whose chain has not advanced.
type Operation struct {
	name   string
	logger *slog.Logger
	done   chan struct{}

	mu       sync.Mutex
	callback func() error
	fired    bool
	finished bool
	err      error
	cbErr    error
}

var _ stepchain.Handle = (*Operation)(nil)

func newOperation(name string, opts []Option) *Operation {
	op := &Operation{
		name:   name,
		logger: slog.New(slog.DiscardHandler),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(op)
	}
	op.logger = op.logger.With("operation", name)
	return op
}

// Go runs fn on its own goroutine and completes when fn returns.
func Go(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...Option) *Operation {
	op := newOperation(name, opts)
	go func() {
		op.finish(fn(ctx))
	}()
	return op
}

// Completed returns an operation that has already succeeded.
func Completed(name string, opts ...Option) *Operation {
	op := newOperation(name, opts)
	op.finish(nil)
	return op
}

// Failed returns an operation that has already failed with err.
func Failed(name string, err error, opts ...Option) *Operation {
	op := newOperation(name, opts)
	op.finish(err)
	return op
}

// OnComplete registers the completion callback. Only one callback is kept;
// registering again before completion replaces it. Callbacks registered
// after a successful completion run immediately on the caller's goroutine.
// Failed operations never run their callback.
func (op *Operation) OnComplete(fn func() error) {
	op.mu.Lock()
	if !op.finished {
		op.callback = fn
		op.mu.Unlock()
		return
	}
	if op.err != nil || op.fired {
		op.mu.Unlock()
		return
	}
	op.fired = true
	op.mu.Unlock()

	op.runCallback(fn)
}

// Wait blocks until the operation finishes. A non-positive timeout waits
// forever.
func (op *Operation) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-op.done
		return op.Err()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-op.done:
		return op.Err()
	case <-timer.C:
		return errors.New(ErrCodeOperationTimeout,
			fmt.Sprintf("operation %s did not complete within %s", op.name, timeout)).
			WithContext("operation", op.name).
			WithContext("timeout", timeout.String())
	}
}

// Done reports whether the operation finished, successfully or not.
func (op *Operation) Done() bool {
	select {
	case <-op.done:
		return true
	default:
		return false
	}
}

// Err returns the operation's error once it has finished.
func (op *Operation) Err() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.err
}

// CallbackErr returns what the completion callback returned.
func (op *Operation) CallbackErr() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.cbErr
}

func (op *Operation) Name() string {
	return op.name
}

func (op *Operation) finish(err error) {
	op.mu.Lock()
	op.finished = true
	op.err = err
	cb := op.callback
	fire := err == nil && cb != nil && !op.fired
	if fire {
		op.fired = true
	}
	op.mu.Unlock()

	if err != nil {
		op.logger.Debug("Operation failed", "error", err)
	} else {
		op.logger.Debug("Operation completed")
	}

	if fire {
		op.runCallback(cb)
	}
	close(op.done)
}

func (op *Operation) runCallback(fn func() error) {
	if err := fn(); err != nil {
		op.mu.Lock()
		op.cbErr = err
		op.mu.Unlock()
		op.logger.Warn("Completion callback failed", "error", err)
	}
}

// IsTimeout reports whether err is a Wait timeout.
func IsTimeout(err error) bool {
	var coder errors.ErrorCoder
	if !stderrors.As(err, &coder) {
		return false
	}
	return string(coder.ErrorCode()) == ErrCodeOperationTimeout
}

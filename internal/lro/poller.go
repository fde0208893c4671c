package lro

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

// Poller is the part of *runtime.Poller[T] that the adapter drives.
type Poller[T any] interface {
	PollUntilDone(ctx context.Context, options *runtime.PollUntilDoneOptions) (T, error)
}

// PollerOperation is an Operation backed by an Azure SDK poller.
type PollerOperation[T any] struct {
	*Operation
	result T
}

// FromPoller polls p on its own goroutine until it reaches a terminal state.
// A zero frequency uses the SDK default.
func FromPoller[T any](ctx context.Context, name string, p Poller[T], frequency time.Duration, opts ...Option) *PollerOperation[T] {
	po := &PollerOperation[T]{Operation: newOperation(name, opts)}

	go func() {
		res, err := p.PollUntilDone(ctx, &runtime.PollUntilDoneOptions{Frequency: frequency})
		if err == nil {
			po.result = res
		}
		po.finish(err)
	}()
	return po
}

// Result returns the poller's final value. It fails while the operation is
// still running.
func (po *PollerOperation[T]) Result() (T, error) {
	var zero T
	if !po.Done() {
		return zero, fmt.Errorf("operation %s is still running", po.name)
	}
	if err := po.Err(); err != nil {
		return zero, err
	}
	return po.result, nil
}

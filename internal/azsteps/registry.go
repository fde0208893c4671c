// Package azsteps provides step capabilities backed by Azure Storage
// operations, keyed by the kind names used in chain plan files.
package azsteps

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/agilira/go-errors"
	"github.com/microsoft/azchain/internal/lro"
	"github.com/microsoft/azchain/internal/stepchain"
)

// Error codes for step parameters and copy failures.
const (
	ErrCodeInvalidParams = "AZCHAIN_INVALID_PARAMS"
	ErrCodeCopyFailed    = "AZCHAIN_COPY_FAILED"
)

// Built-in step kinds.
const (
	KindContainerCreate = "storage.container.create"
	KindBlobCopy        = "storage.blob.copy"
	KindDelay           = "delay"
)

// DefaultPollFrequency is used for copy polling when neither the step nor
// the registry sets one.
const DefaultPollFrequency = 5 * time.Second

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPollFrequency sets the copy polling interval for steps that do not
// specify poll_frequency.
func WithPollFrequency(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.pollFrequency = d
		}
	}
}

// Registry maps step kinds to capabilities. Operations started by its
// capabilities run under the registry's context.
type Registry struct {
	ctx           context.Context
	factory       ClientFactory
	logger        *slog.Logger
	pollFrequency time.Duration

	mu     sync.RWMutex
	kinds  map[string]stepchain.Capability
	checks map[string]func(stepchain.Params) error
}

// NewRegistry returns a registry with the built-in kinds registered.
func NewRegistry(ctx context.Context, factory ClientFactory, opts ...Option) *Registry {
	r := &Registry{
		ctx:           ctx,
		factory:       factory,
		logger:        slog.New(slog.DiscardHandler),
		pollFrequency: DefaultPollFrequency,
		kinds:         map[string]stepchain.Capability{},
		checks:        map[string]func(stepchain.Params) error{},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.kinds[KindContainerCreate] = r.createContainer
	r.kinds[KindBlobCopy] = r.copyBlob
	r.kinds[KindDelay] = r.delay

	r.checks[KindContainerCreate] = func(p stepchain.Params) error { return decodeAndValidate(p, &containerParams{}) }
	r.checks[KindBlobCopy] = func(p stepchain.Params) error { return decodeAndValidate(p, &copyParams{}) }
	r.checks[KindDelay] = func(p stepchain.Params) error { return decodeAndValidate(p, &delayParams{}) }
	return r
}

// Register adds or replaces a kind. Registered kinds have no parameter
// check.
func (r *Registry) Register(kind string, c stepchain.Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = c
	delete(r.checks, kind)
}

// CheckParams validates params for kind without starting anything. Kinds
// without a check accept any params.
func (r *Registry) CheckParams(kind string, params stepchain.Params) error {
	r.mu.RLock()
	check, ok := r.checks[kind]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return check(params)
}

// Capability looks up a kind.
func (r *Registry) Capability(kind string) (stepchain.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.kinds[kind]
	return c, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.kinds))
}

func (r *Registry) opOptions() []lro.Option {
	return []lro.Option{lro.WithLogger(r.logger)}
}

func (r *Registry) createContainer(params stepchain.Params) (stepchain.Handle, error) {
	var p containerParams
	if err := decodeAndValidate(params, &p); err != nil {
		return nil, err
	}

	client, err := r.factory.ContainerCreator(p.AccountURL)
	if err != nil {
		return nil, err
	}

	// Creating a container is a single request; the handle is already done
	// when the capability returns.
	name := fmt.Sprintf("create container %s", p.Container)
	_, err = client.CreateContainer(r.ctx, p.Container, &azblob.CreateContainerOptions{
		Metadata: metadataFrom(p.Tags),
	})
	if err != nil && p.IgnoreExisting && bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		r.logger.Info("Container already exists", "container", p.Container)
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating container %s: %w", p.Container, err)
	}
	return lro.Completed(name, r.opOptions()...), nil
}

// copyBlob issues the copy request synchronously, so a rejected request
// fails the step immediately, then polls the destination until the copy
// leaves the pending state.
func (r *Registry) copyBlob(params stepchain.Params) (stepchain.Handle, error) {
	var p copyParams
	if err := decodeAndValidate(params, &p); err != nil {
		return nil, err
	}
	if p.PollFrequency == 0 {
		p.PollFrequency = r.pollFrequency
	}

	client, err := r.factory.BlobCopier(p.AccountURL, p.Container, p.Blob)
	if err != nil {
		return nil, err
	}

	resp, err := client.StartCopyFromURL(r.ctx, p.SourceURL, &blob.StartCopyFromURLOptions{
		Metadata: metadataFrom(p.Tags),
	})
	if err != nil {
		return nil, fmt.Errorf("starting copy from %s: %w", p.SourceURL, err)
	}

	r.logger.Debug("Copy started", "blob", p.Blob, "copy_id", deref(resp.CopyID))

	name := fmt.Sprintf("copy %s/%s", p.Container, p.Blob)
	poller := &copyPoller{client: client, status: deref(resp.CopyStatus)}
	return lro.FromPoller(r.ctx, name, poller, p.PollFrequency, r.opOptions()...), nil
}

// copyPoller follows a server-side copy through the destination blob's
// properties until it leaves the pending state.
type copyPoller struct {
	client      BlobCopier
	status      blob.CopyStatusType
	description string
}

var _ lro.Poller[blob.CopyStatusType] = (*copyPoller)(nil)

func (cp *copyPoller) PollUntilDone(ctx context.Context, options *runtime.PollUntilDoneOptions) (blob.CopyStatusType, error) {
	frequency := DefaultPollFrequency
	if options != nil && options.Frequency > 0 {
		frequency = options.Frequency
	}

	for {
		switch cp.status {
		case blob.CopyStatusTypeSuccess:
			return cp.status, nil
		case blob.CopyStatusTypeFailed, blob.CopyStatusTypeAborted:
			return cp.status, errors.New(ErrCodeCopyFailed, fmt.Sprintf("copy %s: %s", cp.status, cp.description)).
				WithContext("status", string(cp.status)).
				WithContext("description", cp.description)
		}

		select {
		case <-ctx.Done():
			return cp.status, ctx.Err()
		case <-time.After(frequency):
		}

		props, err := cp.client.GetProperties(ctx, nil)
		if err != nil {
			return cp.status, fmt.Errorf("polling copy status: %w", err)
		}
		cp.status = deref(props.CopyStatus)
		cp.description = deref(props.CopyStatusDescription)
	}
}

func (r *Registry) delay(params stepchain.Params) (stepchain.Handle, error) {
	var p delayParams
	if err := decodeAndValidate(params, &p); err != nil {
		return nil, err
	}

	return lro.Go(r.ctx, "delay "+p.Duration.String(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Duration):
			return nil
		}
	}, r.opOptions()...), nil
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

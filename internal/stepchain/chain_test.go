package stepchain

import (
	"bytes"
	stderrors "errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/agilira/go-errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var errFakeTimeout = stderrors.New("fake handle timed out")

// fakeHandle completes only when the test calls Fire.
type fakeHandle struct {
	mu        sync.Mutex
	callback  func() error
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{done: make(chan struct{})}
}

func (h *fakeHandle) OnComplete(fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callback = fn
}

func (h *fakeHandle) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-h.done
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return errFakeTimeout
	}
}

// Fire marks the operation complete and invokes the registered callback,
// returning whatever it returns.
func (h *fakeHandle) Fire() error {
	h.mu.Lock()
	cb := h.callback
	h.mu.Unlock()

	h.closeOnce.Do(func() { close(h.done) })
	if cb == nil {
		return nil
	}
	return cb()
}

// inlineHandle is already complete and runs its callback during OnComplete.
type inlineHandle struct{}

func (inlineHandle) OnComplete(fn func() error) { _ = fn() }

func (inlineHandle) Wait(time.Duration) error { return nil }

// recorder hands out steps that log their invocation order.
type recorder struct {
	mu      sync.Mutex
	log     []string
	params  map[string]Params
	handles map[string]*fakeHandle
}

func newRecorder() *recorder {
	return &recorder{
		params:  map[string]Params{},
		handles: map[string]*fakeHandle{},
	}
}

func (r *recorder) step(name string) Step {
	return Step{
		Name:   name,
		Params: Params{"name": name},
		Start: func(p Params) (Handle, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			h := newFakeHandle()
			r.log = append(r.log, name)
			r.params[name] = p
			r.handles[name] = h
			return h, nil
		},
	}
}

func (r *recorder) failing(name string, err error) Step {
	return Step{
		Name: name,
		Start: func(Params) (Handle, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.log = append(r.log, name)
			return nil, err
		},
	}
}

func (r *recorder) Log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func (r *recorder) Handle(name string) *fakeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[name]
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	coder, ok := err.(errors.ErrorCoder)
	require.True(t, ok, "expected a coded error, got %T: %v", err, err)
	require.Equal(t, code, string(coder.ErrorCode()))
}

func TestChain_RunsStepsInOrder(t *testing.T) {
	rec := newRecorder()
	chain, err := New([]Step{rec.step("A"), rec.step("B"), rec.step("C")})
	require.NoError(t, err)
	require.Equal(t, PhaseNotStarted, chain.Phase())
	require.False(t, chain.IsDone())
	require.Equal(t, -1, chain.Index())

	same, err := chain.Start()
	require.NoError(t, err)
	require.Same(t, chain, same)
	require.Equal(t, []string{"A"}, rec.Log())
	require.False(t, chain.IsDone())

	name, ok := chain.Current()
	require.True(t, ok)
	require.Equal(t, "A", name)

	require.NoError(t, rec.Handle("A").Fire())
	require.Equal(t, []string{"A", "B"}, rec.Log())
	require.False(t, chain.IsDone())
	require.Equal(t, 1, chain.Index())

	require.NoError(t, rec.Handle("B").Fire())
	require.Equal(t, []string{"A", "B", "C"}, rec.Log())
	require.False(t, chain.IsDone())

	require.NoError(t, rec.Handle("C").Fire())
	require.True(t, chain.IsDone())
	require.Equal(t, PhaseCompleted, chain.Phase())

	_, ok = chain.Current()
	require.False(t, ok)

	// late callbacks are no-ops
	require.NoError(t, rec.Handle("A").Fire())
	require.NoError(t, rec.Handle("C").Fire())
	require.Equal(t, []string{"A", "B", "C"}, rec.Log())
	require.True(t, chain.IsDone())
}

func TestChain_PassesParamsVerbatim(t *testing.T) {
	rec := newRecorder()
	chain, err := New([]Step{rec.step("A")})
	require.NoError(t, err)

	_, err = chain.Start()
	require.NoError(t, err)
	require.Equal(t, Params{"name": "A"}, rec.params["A"])
}

func TestNew_RejectsInvalidChains(t *testing.T) {
	t.Run("no steps", func(t *testing.T) {
		chain, err := New(nil)
		require.Nil(t, chain)
		requireCode(t, err, ErrCodeEmptyChain)

		chain, err = New([]Step{})
		require.Nil(t, chain)
		requireCode(t, err, ErrCodeEmptyChain)
	})

	t.Run("missing capability", func(t *testing.T) {
		rec := newRecorder()
		chain, err := New([]Step{rec.step("A"), {Name: "B"}})
		require.Nil(t, chain)
		requireCode(t, err, ErrCodeInvalidStep)
		require.Contains(t, err.Error(), "B")
	})
}

func TestChain_SyncFailurePropagatesFromCallback(t *testing.T) {
	boom := stderrors.New("quota exceeded")

	rec := newRecorder()
	chain, err := New([]Step{rec.step("A"), rec.failing("B", boom), rec.step("C")})
	require.NoError(t, err)

	_, err = chain.Start()
	require.NoError(t, err)

	err = rec.Handle("A").Fire()
	require.ErrorIs(t, err, boom)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "B", stepErr.Step)
	require.Equal(t, 1, stepErr.Index)

	require.Equal(t, []string{"A", "B"}, rec.Log())
	require.Equal(t, PhaseFailed, chain.Phase())
	require.False(t, chain.IsDone())
	require.ErrorIs(t, chain.Err(), boom)
	require.ErrorIs(t, chain.Wait(time.Second), boom)

	// nothing restarts a failed chain
	require.NoError(t, rec.Handle("A").Fire())
	require.Equal(t, []string{"A", "B"}, rec.Log())
}

func TestChain_FirstStepFailureReturnedFromStart(t *testing.T) {
	boom := stderrors.New("invalid sku")

	rec := newRecorder()
	chain, err := New([]Step{rec.failing("A", boom), rec.step("B")})
	require.NoError(t, err)

	_, err = chain.Start()
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"A"}, rec.Log())
	require.Equal(t, PhaseFailed, chain.Phase())
}

func TestChain_NilHandleIsAStepFailure(t *testing.T) {
	chain, err := New([]Step{{
		Name:  "A",
		Start: func(Params) (Handle, error) { return nil, nil },
	}})
	require.NoError(t, err)

	_, err = chain.Start()
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "A", stepErr.Step)
}

func TestChain_StartTwice(t *testing.T) {
	rec := newRecorder()
	chain, err := New([]Step{rec.step("A"), rec.step("B")})
	require.NoError(t, err)

	_, err = chain.Start()
	require.NoError(t, err)

	_, err = chain.Start()
	requireCode(t, err, ErrCodeAlreadyStarted)
	require.Equal(t, []string{"A"}, rec.Log())
}

func TestChain_ConcurrentStartRunsOnce(t *testing.T) {
	rec := newRecorder()
	chain, err := New([]Step{rec.step("A"), rec.step("B")})
	require.NoError(t, err)

	var (
		g         errgroup.Group
		mu        sync.Mutex
		successes int
	)
	for range 8 {
		g.Go(func() error {
			if _, err := chain.Start(); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 1, successes)
	require.Equal(t, []string{"A"}, rec.Log())
}

func TestChain_WaitBlocksOnInFlightStep(t *testing.T) {
	rec := newRecorder()
	chain, err := New([]Step{rec.step("A"), rec.step("B")})
	require.NoError(t, err)

	_, err = chain.Start()
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		result <- chain.Wait(5 * time.Second)
	}()

	select {
	case err := <-result:
		t.Fatalf("Wait returned before the step completed: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, rec.Handle("A").Fire())

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after the step completed")
	}

	require.NoError(t, rec.Handle("B").Fire())
	require.True(t, chain.IsDone())

	start := time.Now()
	require.NoError(t, chain.Wait(time.Hour))
	require.Less(t, time.Since(start), time.Second)
}

func TestChain_WaitPropagatesHandleTimeout(t *testing.T) {
	rec := newRecorder()
	chain, err := New([]Step{rec.step("A")})
	require.NoError(t, err)

	_, err = chain.Start()
	require.NoError(t, err)

	err = chain.Wait(10 * time.Millisecond)
	require.Same(t, errFakeTimeout, err)
	require.False(t, chain.IsDone())
}

func TestChain_WaitTimeoutCoversSlowCapability(t *testing.T) {
	gate := make(chan struct{})
	h := newFakeHandle()
	chain, err := New([]Step{{
		Name: "slow",
		Start: func(Params) (Handle, error) {
			<-gate
			return h, nil
		},
	}})
	require.NoError(t, err)

	started := make(chan error, 1)
	go func() {
		_, err := chain.Start()
		started <- err
	}()
	require.Eventually(t, func() bool { return chain.Phase() == PhaseInFlight }, time.Second, time.Millisecond)

	time.AfterFunc(60*time.Millisecond, func() { close(gate) })

	// the handle appears after 60ms and only gets what is left of the 150ms
	begin := time.Now()
	err = chain.Wait(150 * time.Millisecond)
	elapsed := time.Since(begin)

	require.Same(t, errFakeTimeout, err)
	require.Less(t, elapsed, 200*time.Millisecond)
	require.NoError(t, <-started)
}

func TestChain_WaitBeforeStart(t *testing.T) {
	rec := newRecorder()
	chain, err := New([]Step{rec.step("A")})
	require.NoError(t, err)

	requireCode(t, chain.Wait(time.Second), ErrCodeNoStepInFlight)
	require.Empty(t, rec.Log())
}

func TestChain_InlineCompletionDoesNotRecurse(t *testing.T) {
	const n = 500

	var order []int
	steps := make([]Step, n)
	for i := range steps {
		steps[i] = Step{
			Name: "inline",
			Start: func(Params) (Handle, error) {
				order = append(order, i)
				return inlineHandle{}, nil
			},
		}
	}

	chain, err := New(steps)
	require.NoError(t, err)

	_, err = chain.Start()
	require.NoError(t, err)
	require.True(t, chain.IsDone())
	require.Len(t, order, n)
	for i, got := range order {
		require.Equal(t, i, got)
	}
}

func TestChain_DuplicateCallbacksAdvanceOnce(t *testing.T) {
	rec := newRecorder()
	chain, err := New([]Step{rec.step("A"), rec.step("B"), rec.step("C")})
	require.NoError(t, err)

	_, err = chain.Start()
	require.NoError(t, err)

	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			return rec.Handle("A").Fire()
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, []string{"A", "B"}, rec.Log())
	require.Equal(t, 1, chain.Index())

	// a stale callback while B is in flight changes nothing
	require.NoError(t, rec.Handle("A").Fire())
	require.Equal(t, []string{"A", "B"}, rec.Log())
}

func TestChain_Reports(t *testing.T) {
	rec := newRecorder()
	chain, err := New([]Step{rec.step("A"), rec.step("B")})
	require.NoError(t, err)
	require.Empty(t, chain.Reports())

	_, err = chain.Start()
	require.NoError(t, err)

	reports := chain.Reports()
	require.Len(t, reports, 1)
	require.Equal(t, "A", reports[0].Name)
	require.False(t, reports[0].Completed())
	require.Zero(t, reports[0].Duration())

	require.NoError(t, rec.Handle("A").Fire())
	require.NoError(t, rec.Handle("B").Fire())

	reports = chain.Reports()
	require.Len(t, reports, 2)
	for i, r := range reports {
		require.Equal(t, i, r.Index)
		require.True(t, r.Completed())
		require.False(t, r.CompletedAt.Before(r.StartedAt))
	}
}

func TestChain_LogsWithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rec := newRecorder()
	chain, err := New([]Step{rec.step("create-account")}, WithLogger(logger), WithRunID("run-42"))
	require.NoError(t, err)
	require.Equal(t, "run-42", chain.RunID())

	_, err = chain.Start()
	require.NoError(t, err)
	require.NoError(t, rec.Handle("create-account").Fire())

	out := buf.String()
	require.Contains(t, out, "run_id=run-42")
	require.Contains(t, out, "step=create-account")
	require.Contains(t, out, "Step chain completed")
}

func TestChain_GeneratesRunID(t *testing.T) {
	rec := newRecorder()
	a, err := New([]Step{rec.step("A")})
	require.NoError(t, err)
	b, err := New([]Step{rec.step("A")})
	require.NoError(t, err)

	require.NotEmpty(t, a.RunID())
	require.NotEqual(t, a.RunID(), b.RunID())
}

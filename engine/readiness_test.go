package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"webshrink/failures"
)

type countingLoader struct {
	calls   atomic.Int32
	release chan struct{} // nil: return immediately
	mu      sync.Mutex
	err     error
}

func (l *countingLoader) Load(ctx context.Context) error {
	l.calls.Add(1)
	if l.release != nil {
		<-l.release
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *countingLoader) setErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func waitForEngineState(t *testing.T, r *Readiness, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for r.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Readiness stuck in %s, want %s", r.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestReadinessSingleFlight(t *testing.T) {
	loader := &countingLoader{release: make(chan struct{})}
	r := NewReadiness(loader, 0)
	if r.State() != StateUninitialized || r.IsReady() {
		t.Fatalf("Expected uninitialized, got %s", r.State())
	}

	const callers = 10
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() { errs <- r.EnsureReady(context.Background()) }()
	}
	waitForEngineState(t, r, StateInitializing)
	close(loader.release)

	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Caller %d got error: %v", i, err)
		}
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("Expected exactly one load, got %d", n)
	}
	if !r.IsReady() {
		t.Errorf("Expected ready, got %s", r.State())
	}
	if err := r.EnsureReady(context.Background()); err != nil {
		t.Errorf("EnsureReady on a ready engine failed: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Error("A ready engine must not load again")
	}
}

func TestReadinessFailureIsSticky(t *testing.T) {
	loader := &countingLoader{err: errors.New("ffmpeg not found")}
	r := NewReadiness(loader, 0)

	err := r.EnsureReady(context.Background())
	if !errors.Is(err, failures.ErrEngineLoadFailed) {
		t.Fatalf("Expected engine_load_failed, got %v", err)
	}
	if r.State() != StateFailed || r.Err() == nil {
		t.Fatalf("Expected failed state with error, got %s / %v", r.State(), r.Err())
	}

	if err := r.EnsureReady(context.Background()); !errors.Is(err, failures.ErrEngineLoadFailed) {
		t.Errorf("Expected the same failure again, got %v", err)
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("A failed load must not be retried automatically, got %d loads", n)
	}

	if !r.Reset() {
		t.Fatal("Reset from failed should report a change")
	}
	if r.State() != StateUninitialized || r.Err() != nil {
		t.Errorf("Reset should clear state and error, got %s / %v", r.State(), r.Err())
	}
	if r.Reset() {
		t.Error("Reset outside failed should be a no-op")
	}

	loader.setErr(nil)
	if err := r.EnsureReady(context.Background()); err != nil {
		t.Fatalf("Retry after reset failed: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Errorf("Expected a second load after reset, got %d", loader.calls.Load())
	}
	if r.Reset() {
		t.Error("Reset on a ready engine should be a no-op")
	}
}

func TestReadinessWaitIsCancellable(t *testing.T) {
	loader := &countingLoader{release: make(chan struct{})}
	r := NewReadiness(loader, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.EnsureReady(ctx)
	if !errors.Is(err, failures.ErrEngineNotReady) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected a cancelled wait, got %v", err)
	}
	if r.State() != StateInitializing {
		t.Fatalf("Load should keep running after the caller gives up, got %s", r.State())
	}

	close(loader.release)
	if err := r.EnsureReady(context.Background()); err != nil {
		t.Fatalf("Load should complete for later callers: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Errorf("Expected one load, got %d", loader.calls.Load())
	}
}

func TestReadinessTimeout(t *testing.T) {
	r := NewReadiness(loaderFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), 20*time.Millisecond)

	err := r.EnsureReady(context.Background())
	if !errors.Is(err, failures.ErrEngineLoadFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected a load timeout, got %v", err)
	}
}

type loaderFunc func(ctx context.Context) error

func (f loaderFunc) Load(ctx context.Context) error { return f(ctx) }

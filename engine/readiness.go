package engine

import (
	"context"
	"sync"
	"time"

	"webshrink/failures"
	"webshrink/logger"
)

// State is the lifecycle of the codec backend.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// Loader performs the one expensive load of a backend. encoder.Backend satisfies it.
type Loader interface {
	Load(ctx context.Context) error
}

// attempt is one in-flight load. done is closed once err is final.
type attempt struct {
	done chan struct{}
	err  error
}

// Readiness runs the backend load at most once at a time and shares its
// outcome with every caller waiting on it. A failed load stays failed until Reset.
type Readiness struct {
	mu      sync.Mutex
	loader  Loader
	timeout time.Duration

	state   State
	err     error
	current *attempt
}

// NewReadiness wraps loader. timeout bounds each load; 0 means no limit.
func NewReadiness(loader Loader, timeout time.Duration) *Readiness {
	return &Readiness{loader: loader, timeout: timeout, state: StateUninitialized}
}

// EnsureReady starts the load if nobody has yet and waits for it. Cancelling
// ctx abandons the wait only; the load keeps going for the other callers.
func (r *Readiness) EnsureReady(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case StateReady:
		r.mu.Unlock()
		return nil
	case StateFailed:
		err := r.err
		r.mu.Unlock()
		return err
	case StateUninitialized:
		r.current = &attempt{done: make(chan struct{})}
		r.state = StateInitializing
		logger.Info("Loading codec backend")
		go r.load(r.current)
	}
	a := r.current
	r.mu.Unlock()

	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return failures.Wrap(failures.KindEngineNotReady, ctx.Err())
	}
}

func (r *Readiness) load(a *attempt) {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	err := r.loader.Load(ctx)

	r.mu.Lock()
	if err != nil {
		r.state = StateFailed
		r.err = failures.Wrap(failures.KindEngineLoadFailed, err)
		logger.Errorf("Codec backend failed to load: %v", err)
	} else {
		r.state = StateReady
		logger.Infof("Codec backend ready after %s", time.Since(start).Round(time.Millisecond))
	}
	a.err = r.err
	r.current = nil
	r.mu.Unlock()
	close(a.done)
}

// Reset returns a failed backend to Uninitialized so the next EnsureReady
// retries. It reports whether anything changed.
func (r *Readiness) Reset() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateFailed {
		return false
	}
	r.state = StateUninitialized
	r.err = nil
	logger.Info("Codec backend reset after failed load")
	return true
}

func (r *Readiness) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err is the load error while Failed, nil otherwise.
func (r *Readiness) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// IsReady lets the job registry gate submissions.
func (r *Readiness) IsReady() bool {
	return r.State() == StateReady
}

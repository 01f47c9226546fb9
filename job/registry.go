package job

import (
	"context"
	"sync"
	"time"

	"webshrink/artifacts"
	"webshrink/config"
	"webshrink/encoder"
	"webshrink/failures"
	"webshrink/logger"
	"webshrink/models"
	"webshrink/progress"

	"github.com/google/uuid"
)

// Gate reports whether the codec backend finished loading.
type Gate interface {
	IsReady() bool
}

// Recorder is told about every job that reaches a terminal state. It is
// called from its own goroutine, never under the registry lock.
type Recorder interface {
	JobFinished(snap models.Snapshot)
}

// Limits bounds what the registry accepts and how long jobs may run.
type Limits struct {
	MaxConcurrent     int
	MaxInputSizeVideo int64
	MaxInputSizeImage int64
	MaxJobDuration    time.Duration // 0 disables the timeout
}

func LimitsFromConfig(cfg config.EngineConfig) Limits {
	return Limits{
		MaxConcurrent:     cfg.MaxConcurrentJobs,
		MaxInputSizeVideo: cfg.MaxInputSizeVideo,
		MaxInputSizeImage: cfg.MaxInputSizeImage,
		MaxJobDuration:    cfg.MaxJobDuration(),
	}
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return LimitsFromConfig(config.Default().Engine)
}

// record is the live job. Only the registry touches it, always under mu.
type record struct {
	id     string
	input  models.Input
	format models.Format
	opts   models.Options

	state    models.State
	progress int
	output   *models.Output
	err      *models.JobError

	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time

	cancel context.CancelFunc
	timer  *time.Timer
}

func (rec *record) snapshot() models.Snapshot {
	snap := models.Snapshot{
		ID:        rec.id,
		Kind:      rec.input.Kind,
		Format:    rec.format,
		Options:   rec.opts,
		Filename:  rec.input.Filename,
		InputSize: rec.input.Size(),
		State:     rec.state,
		Progress:  rec.progress,
		Phase:     models.PhaseFor(rec.progress),
		CreatedAt: rec.createdAt,
	}
	if rec.output != nil {
		out := *rec.output
		snap.Output = &out
	}
	if rec.err != nil {
		e := *rec.err
		snap.Error = &e
	}
	if !rec.startedAt.IsZero() {
		t := rec.startedAt
		snap.StartedAt = &t
	}
	if !rec.finishedAt.IsZero() {
		t := rec.finishedAt
		snap.FinishedAt = &t
	}
	return snap
}

// Registry owns every job record. Admission, scheduling and terminal
// commits all happen under one mutex, so ids are unique, at most
// MaxConcurrent jobs run, and the first terminal transition wins.
type Registry struct {
	mu       sync.Mutex
	limits   Limits
	backend  encoder.Backend
	store    artifacts.Store
	hub      *progress.Hub
	gate     Gate
	recorder Recorder

	newID func() string
	now   func() time.Time

	jobs    map[string]*record
	order   []string // submission order
	queue   []string // queued ids, FIFO
	running int
	closed  bool

	wg sync.WaitGroup
}

// NewRegistry wires a registry. gate may be nil, in which case the backend is treated as ready.
func NewRegistry(backend encoder.Backend, store artifacts.Store, hub *progress.Hub, gate Gate, limits Limits) *Registry {
	if limits.MaxConcurrent < 1 {
		limits.MaxConcurrent = 1
	}
	return &Registry{
		limits:  limits,
		backend: backend,
		store:   store,
		hub:     hub,
		gate:    gate,
		newID:   uuid.NewString,
		now:     time.Now,
		jobs:    make(map[string]*record),
	}
}

// SetRecorder must be called before the first Submit.
func (r *Registry) SetRecorder(rec Recorder) {
	r.mu.Lock()
	r.recorder = rec
	r.mu.Unlock()
}

func (r *Registry) Limits() Limits { return r.limits }

// Submit validates the request and enqueues a job. It returns as soon as
// the job is Queued. Input.Data is retained, not copied, and must not be
// modified afterwards.
func (r *Registry) Submit(in models.Input, format models.Format, opts models.Options) (string, error) {
	if r.gate != nil && !r.gate.IsReady() {
		return "", failures.New(failures.KindEngineNotReady, "the codec backend has not finished loading")
	}
	if err := r.validate(in, format, opts); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", failures.New(failures.KindEngineNotReady, "the engine is shutting down")
	}

	id := r.newID()
	for r.jobs[id] != nil {
		id = r.newID()
	}
	rec := &record{
		id:        id,
		input:     in,
		format:    format,
		opts:      opts,
		state:     models.StateQueued,
		createdAt: r.now(),
	}
	r.jobs[id] = rec
	r.order = append(r.order, id)
	r.queue = append(r.queue, id)

	r.hub.Open(id)
	r.publishLocked(rec, false)
	logger.Infof("job %s queued: %s %s → %s (%d bytes)", id, in.Kind, in.Filename, format, in.Size())

	r.scheduleLocked()
	return id, nil
}

// Get returns a snapshot of a job.
func (r *Registry) Get(id string) (models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok {
		return models.Snapshot{}, failures.Newf(failures.KindJobNotFound, "job %s", id)
	}
	return rec.snapshot(), nil
}

// List returns snapshots of every known job in submission order.
func (r *Registry) List() []models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Snapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.jobs[id].snapshot())
	}
	return out
}

// Cancel moves a queued or running job to Cancelled. On a terminal job it
// changes nothing and returns the existing snapshot.
func (r *Registry) Cancel(id string) (models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok {
		return models.Snapshot{}, failures.Newf(failures.KindJobNotFound, "job %s", id)
	}
	if r.commitLocked(rec, models.StateCancelled, nil, nil) {
		logger.Infof("job %s cancelled", id)
	}
	return rec.snapshot(), nil
}

// Stats counts jobs per state.
func (r *Registry) Stats() map[models.State]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := make(map[models.State]int, 5)
	for _, rec := range r.jobs {
		stats[rec.state]++
	}
	return stats
}

// Running reports how many jobs currently hold a slot.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Prune forgets terminal jobs that finished before cutoff, drops their
// event streams and releases their artifacts. It returns the pruned ids.
func (r *Registry) Prune(ctx context.Context, cutoff time.Time) []string {
	r.mu.Lock()
	var pruned []string
	kept := r.order[:0]
	for _, id := range r.order {
		rec := r.jobs[id]
		if rec.state.Terminal() && rec.finishedAt.Before(cutoff) {
			pruned = append(pruned, id)
			delete(r.jobs, id)
			r.hub.Drop(id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	r.mu.Unlock()

	for _, id := range pruned {
		if err := r.store.Release(ctx, id); err != nil {
			logger.Warnf("failed to release artifact of pruned job %s: %v", id, err)
		}
	}
	return pruned
}

// Close cancels every live job, stops scheduling and waits for backend
// calls and recorder callbacks to return, or for ctx to end.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for _, id := range r.order {
		r.commitLocked(r.jobs[id], models.StateCancelled, nil, nil)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

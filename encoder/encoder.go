package encoder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"webshrink/logger"
	"webshrink/models"
)

// Request is one transcode call. Input is never modified by a backend.
type Request struct {
	Input    []byte
	Kind     models.MediaKind
	Filename string
	Format   models.Format
	Options  models.Options
}

// ProgressFunc receives a percentage in [0, 100]. Backends may call it zero or more times.
type ProgressFunc func(percent int)

// Backend is a codec capability. Load runs once before any Transcode and may
// be slow. Transcode must return promptly with ctx.Err() once ctx is done.
//
// A job's run slot is freed when the job is cancelled or times out, not when
// Transcode returns. A Transcode that ignores ctx therefore keeps running
// beside the next job, and more than max_concurrent_jobs calls can overlap.
type Backend interface {
	Load(ctx context.Context) error
	Transcode(ctx context.Context, req Request, onProgress ProgressFunc) ([]byte, error)
}

// ErrNoBackend is returned when no backend is registered for a format.
var ErrNoBackend = errors.New("no backend registered for format")

// Mux maps target format → backend.
type Mux struct {
	mu       sync.RWMutex
	backends map[models.Format]Backend
}

func NewMux() *Mux {
	return &Mux{backends: make(map[models.Format]Backend)}
}

// Register adds or replaces the backend for a format.
func (m *Mux) Register(format models.Format, b Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[format] = b
	logger.Debugf("encoder [%s] registered (%T)", format, b)
}

// Lookup backend by format
func (m *Mux) Get(format models.Format) (Backend, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.backends[format]
	return b, ok
}

// Formats returns the registered formats in sorted order.
func (m *Mux) Formats() []models.Format {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Format, 0, len(m.backends))
	for f := range m.backends {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Load loads every distinct registered backend once and joins their errors.
func (m *Mux) Load(ctx context.Context) error {
	formats := m.Formats()
	if len(formats) == 0 {
		return errors.New("no encoders registered")
	}

	loaded := make(map[Backend]bool)
	var errs []error
	for _, f := range formats {
		b, _ := m.Get(f)
		if loaded[b] {
			continue
		}
		loaded[b] = true
		if err := b.Load(ctx); err != nil {
			errs = append(errs, fmt.Errorf("encoder [%s]: %w", f, err))
			continue
		}
		logger.Infof("encoder [%s] ready", f)
	}
	return errors.Join(errs...)
}

// Transcode dispatches to the backend registered for req.Format.
func (m *Mux) Transcode(ctx context.Context, req Request, onProgress ProgressFunc) ([]byte, error) {
	b, ok := m.Get(req.Format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, req.Format)
	}
	return b.Transcode(ctx, req, onProgress)
}

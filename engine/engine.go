// Package engine ties the codec backend, job registry, progress hub and
// artifact store into the conversion engine used by the CLI and HTTP API.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webshrink/artifacts"
	"webshrink/config"
	"webshrink/credentials"
	"webshrink/encoder"
	"webshrink/export"
	"webshrink/failures"
	"webshrink/job"
	"webshrink/logger"
	"webshrink/models"
	"webshrink/progress"
	"webshrink/success"
)

// LoadTimeout bounds a single backend load.
const LoadTimeout = 2 * time.Minute

// LedgerRetention is how long success and failure records are kept.
const LedgerRetention = 30 * 24 * time.Hour

// Deps overrides the parts New would otherwise build from the configuration.
// History, Credentials and Exporter are optional.
type Deps struct {
	Backend     encoder.Backend
	Store       artifacts.Store
	History     *History
	Credentials *credentials.Store
	Exporter    *export.Exporter
}

// Engine is the in-process API of webshrink.
type Engine struct {
	cfg       *config.Config
	readiness *Readiness
	hub       *progress.Hub
	store     artifacts.Store
	jobs      *job.Registry
	history   *History
	creds     *credentials.Store
	exporter  *export.Exporter
	now       func() time.Time
}

// New wires an engine. The backend is not loaded until EnsureReady.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*Engine, error) {
	backend := deps.Backend
	if backend == nil {
		backend = encoder.FromConfig(cfg.Backend)
	}
	store := deps.Store
	if store == nil {
		var err error
		if store, err = artifacts.Open(ctx, cfg); err != nil {
			return nil, fmt.Errorf("open artifact store: %w", err)
		}
		// artifacts left by an earlier process belong to jobs this one never knew
		if cfg.Artifacts.Backend == config.ArtifactsPebble {
			if n, err := store.Sweep(ctx, time.Now()); err != nil {
				logger.Warnf("Failed to clear stale artifacts: %v", err)
			} else if n > 0 {
				logger.Infof("Cleared %d stale artifacts from a previous run", n)
			}
		}
	}

	readiness := NewReadiness(backend, LoadTimeout)
	hub := progress.NewHub()
	jobs := job.NewRegistry(backend, store, hub, readiness, job.LimitsFromConfig(cfg.Engine))
	if deps.History != nil {
		jobs.SetRecorder(deps.History)
	}

	exporter := deps.Exporter
	if exporter == nil && deps.Credentials != nil {
		exporter = export.New(deps.Credentials, cfg.ExportBaseDir())
	}

	return &Engine{
		cfg:       cfg,
		readiness: readiness,
		hub:       hub,
		store:     store,
		jobs:      jobs,
		history:   deps.History,
		creds:     deps.Credentials,
		exporter:  exporter,
		now:       time.Now,
	}, nil
}

// Open builds a fully persistent engine: ledgers and export destinations
// live under cfg.DataDir alongside whatever artifact store is configured.
func Open(ctx context.Context, cfg *config.Config) (*Engine, error) {
	history, err := OpenHistory(cfg.SuccessDBPath(), cfg.FailuresDBPath())
	if err != nil {
		return nil, err
	}
	creds, err := credentials.OpenDB(cfg.CredentialsDBPath())
	if err != nil {
		history.Close()
		return nil, err
	}
	eng, err := New(ctx, cfg, Deps{History: history, Credentials: creds})
	if err != nil {
		history.Close()
		creds.Close()
		return nil, err
	}
	return eng, nil
}

func (e *Engine) Config() *config.Config { return e.cfg }

// EnsureReady loads the codec backend, or waits for the load in progress.
func (e *Engine) EnsureReady(ctx context.Context) error { return e.readiness.EnsureReady(ctx) }

// ResetEngine clears a failed load so EnsureReady can retry it.
func (e *Engine) ResetEngine() bool { return e.readiness.Reset() }

func (e *Engine) State() State { return e.readiness.State() }

// LoadError is the backend load error while the engine is Failed.
func (e *Engine) LoadError() error { return e.readiness.Err() }

// Submit validates and enqueues a conversion job and returns its id.
func (e *Engine) Submit(in models.Input, format models.Format, opts models.Options) (string, error) {
	return e.jobs.Submit(in, format, opts)
}

// Subscribe returns the job's event stream from its first event.
func (e *Engine) Subscribe(id string) (*progress.Subscription, error) {
	if _, err := e.jobs.Get(id); err != nil {
		return nil, err
	}
	sub, err := e.hub.Subscribe(id)
	if errors.Is(err, progress.ErrUnknownTopic) {
		return nil, failures.Newf(failures.KindJobNotFound, "job %s", id)
	}
	return sub, err
}

func (e *Engine) Cancel(id string) (models.Snapshot, error) { return e.jobs.Cancel(id) }

func (e *Engine) GetJob(id string) (models.Snapshot, error) { return e.jobs.Get(id) }

func (e *Engine) ListJobs() []models.Snapshot { return e.jobs.List() }

// JobStats counts jobs per state.
func (e *Engine) JobStats() map[models.State]int { return e.jobs.Stats() }

func (e *Engine) Limits() job.Limits { return e.jobs.Limits() }

// RetrieveArtifact returns the output of a succeeded job that has not been
// released or swept.
func (e *Engine) RetrieveArtifact(ctx context.Context, id string) (artifacts.Artifact, error) {
	snap, err := e.jobs.Get(id)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	if snap.State != models.StateSucceeded {
		return artifacts.Artifact{}, failures.Newf(failures.KindNotReady, "job %s is %s", id, snap.State)
	}
	art, err := e.store.Get(ctx, id)
	if errors.Is(err, artifacts.ErrNotFound) {
		return artifacts.Artifact{}, failures.Newf(failures.KindNotReady, "output of job %s was released", id)
	}
	if err != nil {
		return artifacts.Artifact{}, fmt.Errorf("load artifact of job %s: %w", id, err)
	}
	return art, nil
}

// Release drops the job's artifact. Releasing twice is not an error.
func (e *Engine) Release(ctx context.Context, id string) error {
	if _, err := e.jobs.Get(id); err != nil {
		return err
	}
	if err := e.store.Release(ctx, id); err != nil {
		return fmt.Errorf("release artifact of job %s: %w", id, err)
	}
	logger.Debugf("Released artifact of job %s", id)
	return nil
}

// RegisterDestination stores an export destination and returns its key.
func (e *Engine) RegisterDestination(dest models.Destination) (string, error) {
	if e.creds == nil {
		return "", ErrExportDisabled
	}
	return e.creds.Register(dest)
}

// ErrExportDisabled is returned when the engine was built without a credentials store.
var ErrExportDisabled = errors.New("export destinations are not configured")

// ExportArtifact copies the job's artifact to every destination key.
func (e *Engine) ExportArtifact(ctx context.Context, id string, destinations ...string) ([]export.Result, error) {
	if e.exporter == nil {
		return nil, ErrExportDisabled
	}
	art, err := e.RetrieveArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.exporter.Export(ctx, art, destinations...)
}

// SuccessHistory lists the success ledger, oldest first.
func (e *Engine) SuccessHistory() ([]success.SuccessRecord, error) {
	if e.history == nil {
		return nil, nil
	}
	return e.history.Success.ListSuccessRecords()
}

// FailureHistory lists the failure ledger, oldest first.
func (e *Engine) FailureHistory() ([]failures.FailureRecord, error) {
	if e.history == nil {
		return nil, nil
	}
	return e.history.Failures.ListFailures()
}

// CheckHealth reports problems with the persistent stores.
func (e *Engine) CheckHealth() error {
	if e.history == nil {
		return nil
	}
	return errors.Join(e.history.Success.CheckHealth(), e.history.Failures.CheckHealth())
}

// Close cancels live jobs, waits for them within ctx and closes every store.
func (e *Engine) Close(ctx context.Context) error {
	errs := []error{e.jobs.Close(ctx), e.store.Close()}
	if e.history != nil {
		errs = append(errs, e.history.Close())
	}
	if e.creds != nil {
		errs = append(errs, e.creds.Close())
	}
	return errors.Join(errs...)
}

// FailureRecord looks up one failure ledger entry; nil when there is none.
func (e *Engine) FailureRecord(id string) (*failures.FailureRecord, error) {
	if e.history == nil {
		return nil, nil
	}
	return e.history.Failures.GetFailure(id)
}

// SuccessRecord looks up one success ledger entry; nil when there is none.
func (e *Engine) SuccessRecord(id string) (*success.SuccessRecord, error) {
	if e.history == nil {
		return nil, nil
	}
	return e.history.Success.GetSuccess(id)
}

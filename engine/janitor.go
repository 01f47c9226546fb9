package engine

import (
	"context"
	"time"

	"webshrink/logger"
)

// JanitorReport counts what one janitor pass removed.
type JanitorReport struct {
	Artifacts      int
	Jobs           int
	SuccessRecords int
	FailureRecords int
}

// StartJanitor runs Janitor every engine.janitor_interval until ctx ends.
func (e *Engine) StartJanitor(ctx context.Context) {
	interval := e.cfg.Engine.JanitorInterval()
	logger.Infof("Janitor started - will run every %s", interval)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info("Janitor stopped due to context cancellation")
				return
			case <-ticker.C:
				e.Janitor(ctx, e.now())
			}
		}
	}()
}

// Janitor applies the retention policies as of now: artifacts older than
// engine.artifact_retention, terminal jobs older than engine.job_retention
// and ledger records older than LedgerRetention. A zero retention keeps everything.
func (e *Engine) Janitor(ctx context.Context, now time.Time) JanitorReport {
	var report JanitorReport

	if retention := e.cfg.Engine.ArtifactRetention(); retention > 0 {
		n, err := e.store.Sweep(ctx, now.Add(-retention))
		if err != nil {
			logger.Errorf("Failed to sweep artifacts: %v", err)
		}
		report.Artifacts = n
	}

	if retention := e.cfg.Engine.JobRetention(); retention > 0 {
		report.Jobs = len(e.jobs.Prune(ctx, now.Add(-retention)))
	}

	if e.history != nil {
		var err error
		if report.SuccessRecords, err = e.history.Success.CleanupOldRecords(LedgerRetention); err != nil {
			logger.Errorf("Failed to cleanup old success records: %v", err)
		}
		if report.FailureRecords, err = e.history.Failures.CleanupOldRecords(LedgerRetention); err != nil {
			logger.Errorf("Failed to cleanup old failure records: %v", err)
		}
	}

	if report != (JanitorReport{}) {
		logger.Infof("Janitor removed %d artifacts, %d jobs, %d success and %d failure records",
			report.Artifacts, report.Jobs, report.SuccessRecords, report.FailureRecords)
	}
	return report
}

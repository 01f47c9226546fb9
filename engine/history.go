package engine

import (
	"errors"
	"time"

	"webshrink/failures"
	"webshrink/logger"
	"webshrink/models"
	"webshrink/success"
)

// History writes every finished job to the success or failure ledger.
type History struct {
	Success  *success.Store
	Failures *failures.Store
}

// OpenHistory opens both ledgers.
func OpenHistory(successPath, failuresPath string) (*History, error) {
	s, err := success.Open(successPath)
	if err != nil {
		return nil, err
	}
	f, err := failures.Open(failuresPath)
	if err != nil {
		s.Close()
		return nil, err
	}
	return &History{Success: s, Failures: f}, nil
}

// JobFinished records snap. Ledger errors are logged, never returned: the
// job outcome itself is already committed.
func (h *History) JobFinished(snap models.Snapshot) {
	var err error
	switch snap.State {
	case models.StateSucceeded:
		if snap.Output == nil {
			return
		}
		err = h.Success.StoreSuccess(success.SuccessRecord{
			JobID:            snap.ID,
			Timestamp:        finishedAt(snap),
			Filename:         snap.Output.Filename,
			Format:           string(snap.Format),
			InputSize:        snap.InputSize,
			OutputSize:       snap.Output.Size,
			ReductionPercent: snap.Output.ReductionPercent,
			Duration:         snap.Duration(),
		})
	case models.StateFailed, models.StateCancelled:
		rec := failures.FailureRecord{
			JobID:     snap.ID,
			Timestamp: finishedAt(snap),
			Kind:      failures.KindCancelled,
			Filename:  snap.Filename,
			Format:    string(snap.Format),
			InputSize: snap.InputSize,
		}
		if snap.Error != nil {
			rec.Kind = snap.Error.Kind
			rec.Detail = snap.Error.Detail
		}
		err = h.Failures.StoreFailure(rec)
	default:
		return
	}
	if err != nil {
		logger.Errorf("Failed to record outcome of job %s: %v", snap.ID, err)
	}
}

// Close closes both ledgers.
func (h *History) Close() error {
	return errors.Join(h.Success.Close(), h.Failures.Close())
}

func finishedAt(snap models.Snapshot) time.Time {
	if snap.FinishedAt != nil {
		return *snap.FinishedAt
	}
	return snap.CreatedAt
}

package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webshrink/artifacts"
	"webshrink/encoder"
	"webshrink/failures"
	"webshrink/logger"
	"webshrink/models"
	"webshrink/progress"
)

// scheduleLocked starts queued jobs in FIFO order while slots are free.
func (r *Registry) scheduleLocked() {
	for !r.closed && r.running < r.limits.MaxConcurrent && len(r.queue) > 0 {
		id := r.queue[0]
		r.queue = r.queue[1:]
		rec, ok := r.jobs[id]
		if !ok || rec.state != models.StateQueued {
			continue
		}
		r.startLocked(rec)
	}
}

func (r *Registry) startLocked(rec *record) {
	ctx, cancel := context.WithCancel(context.Background())
	rec.cancel = cancel
	rec.state = models.StateRunning
	rec.startedAt = r.now()
	r.running++

	if d := r.limits.MaxJobDuration; d > 0 {
		id := rec.id
		rec.timer = time.AfterFunc(d, func() { r.timeout(id) })
	}

	r.publishLocked(rec, false)
	logger.Infof("job %s running (%d/%d slots)", rec.id, r.running, r.limits.MaxConcurrent)

	r.wg.Add(1)
	go r.run(ctx, rec.id, encoder.Request{
		Input:    rec.input.Data,
		Kind:     rec.input.Kind,
		Filename: rec.input.Filename,
		Format:   rec.format,
		Options:  rec.opts,
	})
}

// run drives one backend call. It never writes state directly; every
// outcome goes through commitLocked, which ignores jobs already terminal.
func (r *Registry) run(ctx context.Context, id string, req encoder.Request) {
	defer r.wg.Done()

	data, err := r.backend.Transcode(ctx, req, func(percent int) {
		r.reportProgress(id, percent)
	})
	if err == nil && len(data) == 0 {
		err = errors.New("backend returned no data")
	}
	if err != nil {
		if ctx.Err() != nil {
			logger.Debugf("job %s backend stopped after cancellation: %v", id, err)
			return
		}
		logger.Warnf("job %s failed: %v", id, err)
		r.fail(id, failures.KindBackendError, err.Error())
		return
	}

	r.mu.Lock()
	rec, ok := r.jobs[id]
	live := ok && rec.state == models.StateRunning
	r.mu.Unlock()
	if !live {
		logger.Debugf("job %s discarding result that arrived after its terminal state", id)
		return
	}

	filename := models.OutputName(req.Filename, req.Format)
	art := artifacts.Artifact{
		JobID:    id,
		Data:     data,
		MIME:     req.Format.MIME(),
		Filename: filename,
	}
	// the job's ctx may be cancelled concurrently; the store write must not depend on it
	if err := r.store.Put(context.Background(), art); err != nil {
		logger.Errorf("job %s could not store artifact: %v", id, err)
		r.fail(id, failures.KindBackendError, fmt.Sprintf("failed to store artifact: %v", err))
		return
	}

	out := &models.Output{
		Size:             int64(len(data)),
		MIME:             art.MIME,
		Filename:         filename,
		ReductionPercent: models.ReductionPercent(int64(len(req.Input)), int64(len(data))),
	}

	r.mu.Lock()
	committed := r.commitLocked(rec, models.StateSucceeded, out, nil)
	r.mu.Unlock()

	if !committed {
		logger.Debugf("job %s lost the race to a terminal state, releasing artifact", id)
		if err := r.store.Release(context.Background(), id); err != nil {
			logger.Warnf("failed to release discarded artifact of job %s: %v", id, err)
		}
		return
	}
	logger.Infof("job %s succeeded: %s, %d → %d bytes (%.1f%% smaller)", id, filename, len(req.Input), len(data), out.ReductionPercent)
}

// reportProgress records an increase. Values are capped at 99 so 100 only
// ever accompanies success.
func (r *Registry) reportProgress(id string, percent int) {
	if percent > 99 {
		percent = 99
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok || rec.state != models.StateRunning || percent <= rec.progress {
		return
	}
	rec.progress = percent
	r.publishLocked(rec, false)
}

func (r *Registry) fail(id string, kind failures.Kind, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.jobs[id]; ok {
		r.commitLocked(rec, models.StateFailed, nil, &models.JobError{Kind: kind, Detail: detail})
	}
}

func (r *Registry) timeout(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok || rec.state != models.StateRunning {
		return
	}
	detail := fmt.Sprintf("exceeded maximum duration of %s", r.limits.MaxJobDuration)
	if r.commitLocked(rec, models.StateFailed, nil, &models.JobError{Kind: failures.KindTimeout, Detail: detail}) {
		logger.Warnf("job %s timed out after %s", id, r.limits.MaxJobDuration)
	}
}

// commitLocked is the only place a job reaches a terminal state. It returns
// false, changing nothing, when the job is already terminal.
func (r *Registry) commitLocked(rec *record, state models.State, out *models.Output, jobErr *models.JobError) bool {
	if rec.state.Terminal() {
		return false
	}
	prev := rec.state

	rec.state = state
	rec.finishedAt = r.now()
	switch state {
	case models.StateSucceeded:
		rec.progress = 100
		rec.output = out
	case models.StateFailed:
		rec.err = jobErr
	}

	if rec.timer != nil {
		rec.timer.Stop()
		rec.timer = nil
	}
	if rec.cancel != nil {
		rec.cancel()
		rec.cancel = nil
	}

	switch prev {
	case models.StateRunning:
		r.running--
	case models.StateQueued:
		r.removeFromQueueLocked(rec.id)
	}

	r.publishLocked(rec, true)

	if r.recorder != nil {
		snap := rec.snapshot()
		recorder := r.recorder
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			recorder.JobFinished(snap)
		}()
	}

	r.scheduleLocked()
	return true
}

func (r *Registry) removeFromQueueLocked(id string) {
	for i, q := range r.queue {
		if q == id {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

func (r *Registry) publishLocked(rec *record, terminal bool) {
	ev := progress.Event{
		JobID:    rec.id,
		Percent:  rec.progress,
		State:    rec.state,
		Terminal: terminal,
	}
	if rec.err != nil {
		ev.Kind = rec.err.Kind
		ev.Detail = rec.err.Detail
	}
	if err := r.hub.Publish(ev); err != nil {
		logger.Errorf("job %s progress event dropped: %v", rec.id, err)
	}
}

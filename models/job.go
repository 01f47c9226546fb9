package models

import (
	"time"

	"webshrink/failures"
)

// State is the lifecycle position of a conversion job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Phase is a coarse label derived from a progress percentage.
type Phase string

const (
	PhaseAnalyzing   Phase = "analyzing"
	PhaseTranscoding Phase = "transcoding"
	PhaseFinalizing  Phase = "finalizing"
	PhaseDone        Phase = "done"
)

// PhaseFor maps a percentage to its phase. Since percent never decreases
// for a job, neither does the phase.
func PhaseFor(percent int) Phase {
	switch {
	case percent >= 100:
		return PhaseDone
	case percent >= 95:
		return PhaseFinalizing
	case percent >= 30:
		return PhaseTranscoding
	default:
		return PhaseAnalyzing
	}
}

// Output describes the artifact of a succeeded job. The bytes live in the artifact store.
type Output struct {
	Size             int64   `json:"size"`
	MIME             string  `json:"mime"`
	Filename         string  `json:"filename"`
	ReductionPercent float64 `json:"reduction_percent"`
}

// JobError is set on failed jobs only.
type JobError struct {
	Kind   failures.Kind `json:"kind"`
	Detail string        `json:"detail"`
}

// Snapshot is a read-only copy of a job record. Callers never see the live record.
type Snapshot struct {
	ID         string     `json:"id"`
	Kind       MediaKind  `json:"kind"`
	Format     Format     `json:"format"`
	Options    Options    `json:"options"`
	Filename   string     `json:"filename,omitempty"`
	InputSize  int64      `json:"input_size"`
	State      State      `json:"state"`
	Progress   int        `json:"progress"`
	Phase      Phase      `json:"phase"`
	Output     *Output    `json:"output,omitempty"`
	Error      *JobError  `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration is the time spent running, or zero if the job never started or has not finished.
func (s Snapshot) Duration() time.Duration {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}

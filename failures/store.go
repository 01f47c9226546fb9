package failures

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"webshrink/storage"
)

// FailureRecord is the ledger entry for a job that ended Failed or Cancelled.
type FailureRecord struct {
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Detail    string    `json:"detail"`
	Filename  string    `json:"filename,omitempty"`
	Format    string    `json:"format"`
	InputSize int64     `json:"input_size"`
}

const keyPrefix = "failure/"

// Store persists failure records in a pebble database.
type Store struct {
	db *storage.DB
}

// Open opens the failure store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open failure store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the failure store
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreFailure records a failed or cancelled job. A missing timestamp is set to now.
func (s *Store) StoreFailure(rec FailureRecord) error {
	if rec.JobID == "" {
		return fmt.Errorf("failure record without job id")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	return s.db.SetJSON(keyPrefix+rec.JobID, rec)
}

// GetFailure retrieves a failure record by job id. It returns nil, nil when none exists.
func (s *Store) GetFailure(jobID string) (*FailureRecord, error) {
	var rec FailureRecord
	if err := s.db.GetJSON(keyPrefix+jobID, &rec); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	return &rec, nil
}

// DeleteFailure removes a failure record
func (s *Store) DeleteFailure(jobID string) error {
	return s.db.Delete(keyPrefix + jobID)
}

// ListFailures returns all failure records, oldest first.
func (s *Store) ListFailures() ([]FailureRecord, error) {
	var records []FailureRecord
	err := s.db.Iterate(keyPrefix, func(_ string, value []byte) error {
		var rec FailureRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // skip invalid records
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// CleanupOldRecords removes failure records older than maxAge.
func (s *Store) CleanupOldRecords(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	n, err := s.db.DeleteMatching(keyPrefix, func(_ string, value []byte) bool {
		var rec FailureRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return false
		}
		return rec.Timestamp.Before(cutoff)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old failure records: %w", err)
	}
	return n, nil
}

// CheckHealth performs a basic health check on the failure database
func (s *Store) CheckHealth() error {
	return s.db.CheckHealth()
}

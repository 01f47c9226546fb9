package success

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"webshrink/storage"
)

// SuccessRecord represents a successful job completion
type SuccessRecord struct {
	JobID            string        `json:"job_id"`
	Timestamp        time.Time     `json:"timestamp"`
	Filename         string        `json:"filename"` // download name of the artifact
	Format           string        `json:"format"`
	InputSize        int64         `json:"input_size"`
	OutputSize       int64         `json:"output_size"`
	ReductionPercent float64       `json:"reduction_percent"`
	Duration         time.Duration `json:"duration"`
}

const keyPrefix = "success/"

// Store persists success records in a pebble database.
type Store struct {
	db *storage.DB
}

// Open opens the success store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open success store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the success store
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreSuccess stores a successful job completion
func (s *Store) StoreSuccess(rec SuccessRecord) error {
	if rec.JobID == "" {
		return fmt.Errorf("success record without job id")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	return s.db.SetJSON(keyPrefix+rec.JobID, rec)
}

// GetSuccess retrieves a success record by job id. Not found is not an error.
func (s *Store) GetSuccess(jobID string) (*SuccessRecord, error) {
	var rec SuccessRecord
	if err := s.db.GetJSON(keyPrefix+jobID, &rec); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// DeleteSuccess removes a success record
func (s *Store) DeleteSuccess(jobID string) error {
	return s.db.Delete(keyPrefix + jobID)
}

// ListSuccessRecords returns all success records, oldest first.
func (s *Store) ListSuccessRecords() ([]SuccessRecord, error) {
	var records []SuccessRecord
	err := s.db.Iterate(keyPrefix, func(_ string, value []byte) error {
		var rec SuccessRecord
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

// CleanupOldRecords removes success records older than the specified duration
func (s *Store) CleanupOldRecords(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	n, err := s.db.DeleteMatching(keyPrefix, func(_ string, value []byte) bool {
		var rec SuccessRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return false
		}
		return rec.Timestamp.Before(cutoff)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old success records: %w", err)
	}
	return n, nil
}

// CheckHealth performs a basic health check on the success database
func (s *Store) CheckHealth() error {
	return s.db.CheckHealth()
}

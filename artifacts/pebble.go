package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"webshrink/storage"
)

const (
	metaPrefix = "artifact/meta/"
	dataPrefix = "artifact/data/"
)

type artifactMeta struct {
	MIME     string    `json:"mime"`
	Filename string    `json:"filename"`
	StoredAt time.Time `json:"stored_at"`
	Size     int64     `json:"size"`
}

// Pebble keeps artifacts on disk, one metadata key and one data key per job.
type Pebble struct {
	db  *storage.DB
	now func() time.Time
}

func NewPebble(db *storage.DB) *Pebble {
	return &Pebble{db: db, now: time.Now}
}

func (p *Pebble) Put(_ context.Context, a Artifact) error {
	if a.StoredAt.IsZero() {
		a.StoredAt = p.now()
	}
	// data first so a visible meta key always has its bytes
	if err := p.db.Set(dataPrefix+a.JobID, a.Data); err != nil {
		return fmt.Errorf("failed to store artifact data: %w", err)
	}
	meta := artifactMeta{MIME: a.MIME, Filename: a.Filename, StoredAt: a.StoredAt, Size: a.Size()}
	if err := p.db.SetJSON(metaPrefix+a.JobID, meta); err != nil {
		_ = p.db.Delete(dataPrefix + a.JobID)
		return fmt.Errorf("failed to store artifact metadata: %w", err)
	}
	return nil
}

func (p *Pebble) Get(_ context.Context, jobID string) (Artifact, error) {
	var meta artifactMeta
	if err := p.db.GetJSON(metaPrefix+jobID, &meta); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, err
	}
	data, err := p.db.Get(dataPrefix + jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, err
	}
	return Artifact{
		JobID:    jobID,
		Data:     data,
		MIME:     meta.MIME,
		Filename: meta.Filename,
		StoredAt: meta.StoredAt,
	}, nil
}

func (p *Pebble) Release(_ context.Context, jobID string) error {
	if err := p.db.Delete(metaPrefix + jobID); err != nil {
		return err
	}
	return p.db.Delete(dataPrefix + jobID)
}

func (p *Pebble) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	var expired []string
	err := p.db.Iterate(metaPrefix, func(key string, value []byte) error {
		var meta artifactMeta
		if err := json.Unmarshal(value, &meta); err != nil || meta.StoredAt.Before(cutoff) {
			expired = append(expired, strings.TrimPrefix(key, metaPrefix))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, id := range expired {
		if err := p.Release(ctx, id); err != nil {
			return 0, fmt.Errorf("failed to sweep artifact %s: %w", id, err)
		}
	}
	return len(expired), nil
}

func (p *Pebble) Close() error {
	return p.db.Close()
}

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webshrink/config"
	"webshrink/storage"

	redis "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for artifacts that were never stored or were released.
var ErrNotFound = errors.New("artifact not found")

// Artifact is the converted output of a succeeded job.
type Artifact struct {
	JobID    string
	Data     []byte
	MIME     string
	Filename string
	StoredAt time.Time
}

func (a Artifact) Size() int64 { return int64(len(a.Data)) }

// Store holds artifacts until they are released or swept.
//
// Release is idempotent. Sweep removes every artifact stored before cutoff
// and reports how many were removed.
type Store interface {
	Put(ctx context.Context, a Artifact) error
	Get(ctx context.Context, jobID string) (Artifact, error)
	Release(ctx context.Context, jobID string) error
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// Open builds the store selected by cfg.Artifacts.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Artifacts.Backend {
	case config.ArtifactsMemory, "":
		return NewMemory(), nil
	case config.ArtifactsPebble:
		db, err := storage.Open(cfg.ArtifactsDBPath())
		if err != nil {
			return nil, err
		}
		return NewPebble(db), nil
	case config.ArtifactsRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis not available at %s: %w", cfg.Redis.Addr, err)
		}
		return NewRedis(client, cfg.Engine.ArtifactRetention()), nil
	}
	return nil, fmt.Errorf("unknown artifact store %q", cfg.Artifacts.Backend)
}

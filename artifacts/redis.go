package artifacts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "webshrink:artifact:"

// Redis keeps each artifact in a hash. With a positive retention the key
// expires on its own; Sweep still removes anything older than the cutoff.
type Redis struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

func NewRedis(client *redis.Client, retention time.Duration) *Redis {
	return &Redis{client: client, retention: retention, now: time.Now}
}

func redisKey(jobID string) string {
	return redisKeyPrefix + jobID
}

func (r *Redis) Put(ctx context.Context, a Artifact) error {
	if a.StoredAt.IsZero() {
		a.StoredAt = r.now()
	}
	key := redisKey(a.JobID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"data", a.Data,
			"mime", a.MIME,
			"filename", a.Filename,
			"stored_at", a.StoredAt.UnixNano(),
		)
		if r.retention > 0 {
			pipe.Expire(ctx, key, r.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store artifact in redis: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, jobID string) (Artifact, error) {
	fields, err := r.client.HGetAll(ctx, redisKey(jobID)).Result()
	if err != nil {
		return Artifact{}, err
	}
	data, ok := fields["data"]
	if !ok {
		return Artifact{}, ErrNotFound
	}
	a := Artifact{
		JobID:    jobID,
		Data:     []byte(data),
		MIME:     fields["mime"],
		Filename: fields["filename"],
	}
	if ns, err := parseInt64(fields["stored_at"]); err == nil {
		a.StoredAt = time.Unix(0, ns)
	}
	return a, nil
}

func (r *Redis) Release(ctx context.Context, jobID string) error {
	return r.client.Del(ctx, redisKey(jobID)).Err()
}

func (r *Redis) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := r.client.HGet(ctx, key, "stored_at").Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, err
		}
		ns, err := parseInt64(raw)
		if err != nil || time.Unix(0, ns).Before(cutoff) {
			if err := r.client.Del(ctx, key).Err(); err != nil {
				return removed, err
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan failed: %w", err)
	}
	return removed, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

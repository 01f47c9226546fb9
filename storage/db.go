package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// DB is a small wrapper around a Pebble instance shared by the ledgers, the
// destination store and the on-disk artifact store.
type DB struct {
	db   *pebble.DB
	path string
}

// Open opens (or creates) a pebble DB at path.
func Open(path string) (*DB, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db %s: %w", path, err)
	}
	return &DB{db: db, path: path}, nil
}

func (d *DB) Path() string { return d.path }

// Set stores value under key.
func (d *DB) Set(key string, value []byte) error {
	return d.db.Set([]byte(key), value, pebble.Sync)
}

// Get returns a copy of the value for key, or ErrNotFound.
func (d *DB) Get(key string) ([]byte, error) {
	value, closer, err := d.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (d *DB) Delete(key string) error {
	return d.db.Delete([]byte(key), pebble.Sync)
}

// SetJSON marshals v and stores it under key.
func (d *DB) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return d.Set(key, data)
}

// GetJSON loads key into v.
func (d *DB) GetJSON(key string, v any) error {
	data, err := d.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// Iterate calls fn for every key starting with prefix, in key order. The
// value slice is only valid during the call. Returning an error stops the walk.
func (d *DB) Iterate(prefix string, fn func(key string, value []byte) error) error {
	opts := &pebble.IterOptions{}
	if prefix != "" {
		opts.LowerBound = []byte(prefix)
		opts.UpperBound = upperBound([]byte(prefix))
	}
	iter, err := d.db.NewIter(opts)
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(string(iter.Key()), iter.Value()); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iteration error: %w", err)
	}
	return nil
}

// DeleteMatching removes every key under prefix for which match returns true
// and reports how many were removed. Deletes are committed in one batch.
func (d *DB) DeleteMatching(prefix string, match func(key string, value []byte) bool) (int, error) {
	var keys []string
	err := d.Iterate(prefix, func(key string, value []byte) error {
		if match(key, value) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	batch := d.db.NewBatch()
	defer batch.Close()
	for _, key := range keys {
		if err := batch.Delete([]byte(key), nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to commit deletes: %w", err)
	}
	return len(keys), nil
}

// CheckHealth performs a read to verify the database is accessible.
func (d *DB) CheckHealth() error {
	_, closer, err := d.db.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}

// Close closes the underlying DB.
func (d *DB) Close() error {
	return d.db.Close()
}

// upperBound returns the smallest key greater than every key with the given prefix.
func upperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

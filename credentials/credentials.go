package credentials

import (
	"errors"
	"fmt"

	"webshrink/logger"
	"webshrink/models"
	"webshrink/storage"

	"github.com/google/uuid"
)

// ErrUnknownDestination is returned when no destination is stored under a key.
var ErrUnknownDestination = errors.New("unknown export destination")

const keyPrefix = "dest/"

var validTypes = map[string]bool{"local": true, "s3": true, "gcs": true, "sftp": true}

// Store keeps export destinations, keyed by an opaque random key handed to API clients.
type Store struct {
	db *storage.DB
}

// OpenDB opens the Pebble DB for credentials at the specified path
func OpenDB(dbPath string) (*Store, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		logger.Errorf("Failed to open credentials DB: %v", err)
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the DB
func (s *Store) Close() error {
	return s.db.Close()
}

// Register stores dest under a fresh key and returns the key.
func (s *Store) Register(dest models.Destination) (string, error) {
	if !validTypes[dest.Type] {
		return "", fmt.Errorf("unsupported destination type %q", dest.Type)
	}
	key := uuid.NewString()
	if err := s.StoreCredentials(key, dest); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) GetCredentials(key string) (models.Destination, error) {
	var dest models.Destination
	if err := s.db.GetJSON(keyPrefix+key, &dest); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return dest, fmt.Errorf("%w: %s", ErrUnknownDestination, key)
		}
		return dest, err
	}
	return dest, nil
}

// StoreCredentials stores the destination under the given key
func (s *Store) StoreCredentials(key string, dest models.Destination) error {
	return s.db.SetJSON(keyPrefix+key, dest)
}

// DeleteCredentials deletes the destination for the given key
func (s *Store) DeleteCredentials(key string) error {
	return s.db.Delete(keyPrefix + key)
}

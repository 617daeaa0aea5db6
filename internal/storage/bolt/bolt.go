package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goodtune/screentimer/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	bucketDailyUsage = "usage_daily"
	bucketMarkers    = "markers"

	lockTimeout = 2 * time.Second
)

// ErrReadOnly is returned by writes on a store opened with OpenReadOnly.
var ErrReadOnly = errors.New("bolt store is read-only")

// Store implements the storage.Store interface using bbolt. The database
// file is opened for each transaction and closed again, so the enforcer and
// the CLI can share it: bolt holds its file lock for as long as a handle is
// open.
type Store struct {
	path     string
	readOnly bool
}

// Open opens a BoltDB-backed store, creating the file and buckets if needed.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	store := &Store{path: path}
	if err := store.ensureBuckets(); err != nil {
		return nil, err
	}

	return store, nil
}

// OpenReadOnly opens the store for reading under a shared lock. A missing
// file is created first so reports on a fresh install see an empty store.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if _, err := Open(path); err != nil {
			return nil, err
		}
	}
	return &Store{path: path, readOnly: true}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

func (s *Store) ensureBuckets() error {
	return s.update(context.Background(), func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketDailyUsage, bucketMarkers} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// withDB opens the database for the duration of fn.
func (s *Store) withDB(fn func(db *bbolt.DB) error) error {
	db, err := bbolt.Open(s.path, 0600, &bbolt.Options{Timeout: lockTimeout, ReadOnly: s.readOnly})
	if err != nil {
		return fmt.Errorf("open bolt db: %w", err)
	}
	defer db.Close()

	return fn(db)
}

func (s *Store) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.withDB(func(db *bbolt.DB) error {
		return db.View(fn)
	})
}

func (s *Store) update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.withDB(func(db *bbolt.DB) error {
		return db.Update(fn)
	})
}

// Close releases the store. No handle is held between transactions.
func (s *Store) Close() error {
	return nil
}

// Usage returns the usage store.
func (s *Store) Usage() storage.UsageStore { return &usageStore{store: s} }

// Markers returns the marker store.
func (s *Store) Markers() storage.MarkerStore { return &markerStore{store: s} }

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrCorruptRow, err)
	}
	return nil
}

func getBucketValue[T any](ctx context.Context, s *Store, bucket string, key string) (*T, error) {
	var item *T
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get([]byte(key))
		if value == nil {
			return storage.ErrNotFound
		}
		var result T
		if err := unmarshal(value, &result); err != nil {
			return err
		}
		item = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func putBucketValue(ctx context.Context, s *Store, bucket string, key string, value any) error {
	data, err := marshal(value)
	if err != nil {
		return err
	}
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucket)
		}
		return b.Put([]byte(key), data)
	})
}

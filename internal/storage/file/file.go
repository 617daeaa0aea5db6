// Package file stores usage in plain date-keyed text tables, one line per
// day, in the layout "YYYY-MM-DD,minutes".
package file

import (
	"fmt"
	"path/filepath"

	"github.com/goodtune/screentimer/internal/storage"
)

const (
	usageFile   = "usage.txt"
	markersFile = "markers.txt"
)

// Store implements the storage.Store interface on text files in a directory.
type Store struct {
	dir     string
	usage   *usageStore
	markers *markerStore
}

// Open opens a file-backed store rooted at dir, creating dir if needed.
func Open(dir string) (*Store, error) {
	if err := storage.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &Store{
		dir:     dir,
		usage:   &usageStore{path: filepath.Join(dir, usageFile)},
		markers: &markerStore{path: filepath.Join(dir, markersFile)},
	}, nil
}

// Close implements storage.Store. Files are not held open between calls.
func (s *Store) Close() error {
	return nil
}

// Usage returns the usage store.
func (s *Store) Usage() storage.UsageStore { return s.usage }

// Markers returns the marker store.
func (s *Store) Markers() storage.MarkerStore { return s.markers }

// UsagePath returns the path of the usage table.
func (s *Store) UsagePath() string { return s.usage.path }

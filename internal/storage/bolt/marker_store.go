package bolt

import (
	"context"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/storage"
)

type markerStore struct {
	store *Store
}

func (s *markerStore) GetMarkers(ctx context.Context, date day.Date) (*storage.Markers, error) {
	return getBucketValue[storage.Markers](ctx, s.store, bucketMarkers, date.String())
}

func (s *markerStore) SaveMarkers(ctx context.Context, date day.Date, markers storage.Markers) error {
	return putBucketValue(ctx, s.store, bucketMarkers, date.String(), markers.Normalized())
}

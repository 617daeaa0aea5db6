package redis

import (
	"context"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/storage"
	"github.com/redis/go-redis/v9"
)

type markerStore struct {
	client *redis.Client
}

// GetMarkers retrieves the markers recorded for a day
func (s *markerStore) GetMarkers(ctx context.Context, date day.Date) (*storage.Markers, error) {
	data, err := s.client.HGetAll(ctx, keyMarkerPrefix+date.String()).Result()
	if err != nil {
		return nil, err
	}

	return parseMarkers(data)
}

// SaveMarkers replaces the markers for a day and refreshes their TTL
func (s *markerStore) SaveMarkers(ctx context.Context, date day.Date, markers storage.Markers) error {
	key := keyMarkerPrefix + date.String()
	markers = markers.Normalized()

	locked := "0"
	if markers.Locked {
		locked = "1"
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"thresholds", formatThresholds(markers.Thresholds),
			"locked", locked,
		)
		pipe.Expire(ctx, key, markerTTL)
		return nil
	})
	return err
}

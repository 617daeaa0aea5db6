package redis

import (
	"context"
	"errors"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/storage"
	"github.com/redis/go-redis/v9"
)

var (
	incrementUsage = redis.NewScript(incrementUsageScript)
	mergeUsage     = redis.NewScript(mergeUsageScript)
)

type usageStore struct {
	client *redis.Client
}

// Increment atomically adds one minute to the day's total
func (s *usageStore) Increment(ctx context.Context, date day.Date) error {
	keys := []string{keyUsage, keyUsageOrder}
	return incrementUsage.Run(ctx, s.client, keys, date.String(), 1).Err()
}

// MinutesUsed returns the day's total, or 0 if the day was never recorded
func (s *usageStore) MinutesUsed(ctx context.Context, date day.Date) (int, error) {
	value, err := s.client.HGet(ctx, keyUsage, date.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseMinutes(value)
}

// List returns all recorded days in insertion order
func (s *usageStore) List(ctx context.Context) ([]storage.UsageRecord, error) {
	dates, err := s.client.LRange(ctx, keyUsageOrder, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	if len(dates) == 0 {
		return []storage.UsageRecord{}, nil
	}

	values, err := s.client.HMGet(ctx, keyUsage, dates...).Result()
	if err != nil {
		return nil, err
	}

	records := make([]storage.UsageRecord, 0, len(dates))
	for i, raw := range values {
		value, ok := raw.(string)
		if !ok {
			continue
		}

		date, err := day.Parse(dates[i])
		if err != nil {
			continue
		}

		minutes, err := parseMinutes(value)
		if err != nil {
			continue
		}

		records = append(records, storage.UsageRecord{Date: date, Minutes: minutes})
	}

	return records, nil
}

// Merge raises the day's total to rec.Minutes if that is higher
func (s *usageStore) Merge(ctx context.Context, rec storage.UsageRecord) error {
	keys := []string{keyUsage, keyUsageOrder}
	return mergeUsage.Run(ctx, s.client, keys, rec.Date.String(), rec.Minutes).Err()
}

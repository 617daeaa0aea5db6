package bolt

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/storage"
	"go.etcd.io/bbolt"
)

// dailyUsage is the value stored per date. Seq preserves insertion order,
// since bolt iterates keys in byte order.
type dailyUsage struct {
	Seq     uint64 `json:"seq"`
	Minutes int    `json:"minutes"`
}

type usageStore struct {
	store *Store
}

func (s *usageStore) Increment(ctx context.Context, date day.Date) error {
	return s.apply(ctx, date, func(current int) int { return current + 1 })
}

func (s *usageStore) MinutesUsed(ctx context.Context, date day.Date) (int, error) {
	usage, err := getBucketValue[dailyUsage](ctx, s.store, bucketDailyUsage, date.String())
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return usage.Minutes, nil
}

func (s *usageStore) List(ctx context.Context) ([]storage.UsageRecord, error) {
	type entry struct {
		seq    uint64
		record storage.UsageRecord
	}
	entries := make([]entry, 0)

	err := s.store.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDailyUsage))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			date, err := day.Parse(string(k))
			if err != nil {
				return nil
			}
			var usage dailyUsage
			if err := unmarshal(v, &usage); err != nil {
				return nil
			}
			entries = append(entries, entry{
				seq:    usage.Seq,
				record: storage.UsageRecord{Date: date, Minutes: usage.Minutes},
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	records := make([]storage.UsageRecord, len(entries))
	for i, e := range entries {
		records[i] = e.record
	}
	return records, nil
}

func (s *usageStore) Merge(ctx context.Context, rec storage.UsageRecord) error {
	return s.apply(ctx, rec.Date, func(current int) int {
		if rec.Minutes > current {
			return rec.Minutes
		}
		return current
	})
}

// apply runs fn on the stored minutes for date inside one transaction.
// A corrupt value is treated as zero.
func (s *usageStore) apply(ctx context.Context, date day.Date, fn func(int) int) error {
	key := []byte(date.String())
	return s.store.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDailyUsage))
		if b == nil {
			return fmt.Errorf("daily usage bucket missing")
		}

		var usage dailyUsage
		existing := b.Get(key)
		if existing == nil || unmarshal(existing, &usage) != nil {
			usage.Minutes = 0
			if usage.Seq == 0 {
				seq, err := b.NextSequence()
				if err != nil {
					return err
				}
				usage.Seq = seq
			}
		}

		usage.Minutes = fn(usage.Minutes)
		data, err := marshal(usage)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

package clock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSchedulerInvokesTickWithClockTime(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	clk := NewTestClock(start)
	ticks := make(chan time.Time)

	var (
		mu   sync.Mutex
		seen []time.Time
	)
	tick := func(ctx context.Context, now time.Time) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, now)
		return nil
	}

	afterTick := make(chan struct{}, 3)
	s := NewScheduler(time.Minute, clk, tick, zerolog.Nop())
	s.Ticks = ticks
	s.AfterTick = func() { afterTick <- struct{}{} }
	s.Start(context.Background())

	for i := 0; i < 3; i++ {
		ticks <- time.Time{}
		<-afterTick
		clk.Advance(time.Minute)
	}
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(seen))
	}
	for i, now := range seen {
		want := start.Add(time.Duration(i) * time.Minute)
		if !now.Equal(want) {
			t.Errorf("tick %d: expected %v, got %v", i, want, now)
		}
	}
}

func TestSchedulerKeepsTickingAfterError(t *testing.T) {
	ticks := make(chan time.Time)
	calls := 0
	tick := func(ctx context.Context, now time.Time) error {
		calls++
		return errors.New("disk full")
	}

	afterTick := make(chan struct{}, 2)
	s := NewScheduler(time.Minute, NewTestClock(time.Now()), tick, zerolog.Nop())
	s.Ticks = ticks
	s.AfterTick = func() { afterTick <- struct{}{} }
	s.Start(context.Background())

	ticks <- time.Time{}
	<-afterTick
	ticks <- time.Time{}
	<-afterTick
	s.Stop()

	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(time.Hour, nil, func(context.Context, time.Time) error { return nil }, zerolog.Nop())
	s.Start(ctx)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler(time.Hour, nil, func(context.Context, time.Time) error { return nil }, zerolog.Nop())
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

func TestTestClockAdvance(t *testing.T) {
	start := time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC)
	clk := NewTestClock(start)

	if got := clk.Advance(time.Minute); got.Day() != 16 {
		t.Errorf("expected rollover to the 16th, got %v", got)
	}
}

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fatih/color"

	"github.com/goodtune/screentimer/internal/config"
	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/instance"
	"github.com/goodtune/screentimer/internal/quota"
	"github.com/goodtune/screentimer/internal/storage"
	"github.com/goodtune/screentimer/internal/storage/file"
)

func init() {
	color.NoColor = true
}

func TestResolveCheckDate(t *testing.T) {
	// 2024-01-17 is a Wednesday.
	now := time.Date(2024, 1, 17, 15, 30, 0, 0, time.Local)

	tests := []struct {
		name    string
		day     string
		date    string
		want    string
		wantErr bool
	}{
		{name: "default today", want: "2024-01-17"},
		{name: "same weekday", day: "wednesday", want: "2024-01-17"},
		{name: "later this week", day: "sat", want: "2024-01-20"},
		{name: "wraps to next week", day: "Monday", want: "2024-01-22"},
		{name: "explicit date", date: "2025-12-25", want: "2025-12-25"},
		{name: "bad weekday", day: "someday", wantErr: true},
		{name: "bad date", date: "25/12/2025", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveCheckDate(tt.day, tt.date, now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRecentRecords(t *testing.T) {
	today := day.MustParse("2024-01-20")
	records := []storage.UsageRecord{
		{Date: day.MustParse("2024-01-19"), Minutes: 30},
		{Date: day.MustParse("2024-01-01"), Minutes: 90},
		{Date: day.MustParse("2024-01-20"), Minutes: 5},
		{Date: day.MustParse("2024-01-14"), Minutes: 60},
	}

	got := recentRecords(records, today, 7)
	var dates []string
	for _, rec := range got {
		dates = append(dates, rec.Date.String())
	}
	want := []string{"2024-01-14", "2024-01-19", "2024-01-20"}
	if !reflect.DeepEqual(dates, want) {
		t.Errorf("expected %v, got %v", want, dates)
	}

	if all := recentRecords(records, today, 0); len(all) != 4 || all[0].Date.String() != "2024-01-01" {
		t.Errorf("expected all records oldest first, got %+v", all)
	}
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, []storage.UsageRecord{
		{Date: day.MustParse("2024-01-13"), Minutes: 45},
		{Date: day.MustParse("2024-01-14"), Minutes: 130},
	})

	out := buf.String()
	for _, want := range []string{"2024-01-13", "saturday", "45m", "2h 10m", "2h 55m", "2 days"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printHistory(&buf, nil)
	if !strings.Contains(buf.String(), "No usage recorded") {
		t.Errorf("expected empty message, got %q", buf.String())
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, quota.Status{
		Date:       day.MustParse("2024-01-15"),
		Used:       95,
		Limit:      120,
		Remaining:  25,
		LimitKnown: true,
	})
	out := buf.String()
	for _, want := range []string{"2024-01-15 (Monday)", "1h 35m", "2h 00m", "25m left"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printStatus(&buf, quota.Status{Date: day.MustParse("2024-01-15"), Used: 10})
	if !strings.Contains(buf.String(), "limit unavailable") {
		t.Errorf("expected unavailable limit, got:\n%s", buf.String())
	}
}

func TestOpenStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("parse miniredis port: %v", err)
	}

	for _, typ := range []string{"file", "bolt", "sqlite", "redis"} {
		t.Run(typ, func(t *testing.T) {
			cfg := config.StorageConfig{
				Type: typ,
				Path: filepath.Join(t.TempDir(), "data"),
				Redis: config.RedisConfig{
					Host:         mr.Host(),
					Port:         port,
					PoolSize:     2,
					DialTimeout:  "1s",
					ReadTimeout:  "1s",
					WriteTimeout: "1s",
				},
			}

			store, err := openStorage(cfg)
			if err != nil {
				t.Fatalf("open %s storage: %v", typ, err)
			}
			defer store.Close()

			ctx := context.Background()
			date := day.MustParse("2024-01-15")
			if err := store.Usage().Increment(ctx, date); err != nil {
				t.Fatalf("increment: %v", err)
			}
			if used, err := store.Usage().MinutesUsed(ctx, date); err != nil || used != 1 {
				t.Errorf("expected 1 minute, got %d (%v)", used, err)
			}
		})
	}

	if _, err := openStorage(config.StorageConfig{Type: "tape"}); err == nil {
		t.Error("expected error for unsupported storage type")
	}
}

func TestImportRecords(t *testing.T) {
	legacy := filepath.Join(t.TempDir(), "usage.txt")
	if err := os.WriteFile(legacy, []byte("2024-01-14,35\r\n2024-01-15,7\r\n"), 0644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}
	records, err := file.ReadUsageFile(legacy)
	if err != nil {
		t.Fatalf("read legacy file: %v", err)
	}

	store, err := file.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		if err := store.Usage().Increment(ctx, day.MustParse("2024-01-15")); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	merged, err := importRecords(ctx, store.Usage(), records)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if merged != 2 {
		t.Errorf("expected 2 merged records, got %d", merged)
	}

	if used, _ := store.Usage().MinutesUsed(ctx, day.MustParse("2024-01-14")); used != 35 {
		t.Errorf("expected imported 35 minutes, got %d", used)
	}
	if used, _ := store.Usage().MinutesUsed(ctx, day.MustParse("2024-01-15")); used != 50 {
		t.Errorf("import must not lower a count, got %d", used)
	}
}

func TestImportUsageRefusesWhileEnforcerRuns(t *testing.T) {
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	dir := t.TempDir()
	cfg.Storage.Type = "bolt"
	cfg.Storage.Path = filepath.Join(dir, "data")
	cfg.Instance.LockFile = filepath.Join(dir, "screentimer.lock")

	records := []storage.UsageRecord{{Date: day.MustParse("2024-01-14"), Minutes: 35}}
	ctx := context.Background()

	running, err := instance.Acquire(cfg.Instance.LockFile)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := importUsage(ctx, cfg, records); !errors.Is(err, instance.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := running.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	merged, err := importUsage(ctx, cfg, records)
	if err != nil {
		t.Fatalf("import after enforcer stopped: %v", err)
	}
	if merged != 1 {
		t.Errorf("expected 1 merged record, got %d", merged)
	}

	// The lock is released once the import is done.
	lock, err := instance.Acquire(cfg.Instance.LockFile)
	if err != nil {
		t.Fatalf("lock still held after import: %v", err)
	}
	_ = lock.Release()
}

func TestOpenStorageReadOnlyAlongsideWriter(t *testing.T) {
	cfg := config.StorageConfig{Type: "bolt", Path: filepath.Join(t.TempDir(), "data")}

	writer, err := openStorage(cfg)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer writer.Close()

	ctx := context.Background()
	date := day.MustParse("2024-01-15")
	if err := writer.Usage().Increment(ctx, date); err != nil {
		t.Fatalf("increment: %v", err)
	}

	reader, err := openStorageReadOnly(cfg)
	if err != nil {
		t.Fatalf("open reader while writer is open: %v", err)
	}
	defer reader.Close()

	if used, err := reader.Usage().MinutesUsed(ctx, date); err != nil || used != 1 {
		t.Errorf("expected 1 minute, got %d (%v)", used, err)
	}

	// The writer keeps working while the reader is open.
	if err := writer.Usage().Increment(ctx, date); err != nil {
		t.Fatalf("increment after reader opened: %v", err)
	}
	if used, _ := reader.Usage().MinutesUsed(ctx, date); used != 2 {
		t.Errorf("expected reader to see 2 minutes, got %d", used)
	}
}

func TestFindUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `quota:
  notify_mode: staircase
  bogus: 1
  daily_limits:
    sat: 30
storag:
  type: file
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	defaults, err := config.Defaults()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}

	unknown, err := findUnknownKeys(path, defaults)
	if err != nil {
		t.Fatalf("find unknown keys: %v", err)
	}
	want := []string{"quota.bogus", "storag.type"}
	if !reflect.DeepEqual(unknown, want) {
		t.Errorf("expected %v, got %v", want, unknown)
	}
}

func TestDumpConfig(t *testing.T) {
	defaults, err := config.Defaults()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}

	cfg := *defaults
	cfg.Quota.NotifyMode = "staircase"
	cfg.Storage.Redis.Password = "hunter2"
	cfg.Lock.Command = []string{"xdg-screensaver", "lock"}

	var buf bytes.Buffer
	if err := dumpConfig(&buf, &cfg, defaults); err != nil {
		t.Fatalf("dump: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "notify_mode: staircase  # default: exact") {
		t.Errorf("modified value not annotated:\n%s", out)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("password leaked into dump")
	}
	if !strings.Contains(out, "- xdg-screensaver") {
		t.Errorf("lock command missing:\n%s", out)
	}
	if strings.Contains(out, "tick_interval: 1m  #") {
		t.Errorf("default value annotated as modified:\n%s", out)
	}
}

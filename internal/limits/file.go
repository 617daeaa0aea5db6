package limits

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/metrics"
)

const reloadDebounce = 250 * time.Millisecond

// File serves limits from a seven-line file, Sunday first, one decimal
// minute count per line.
type File struct {
	path   string
	logger zerolog.Logger

	mu    sync.RWMutex
	table Table

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// OnReload runs after every reload triggered by the watcher.
	OnReload func(error)
}

// NewFile loads the limits file at path, creating it with DefaultTable when
// it does not exist.
func NewFile(path string, logger zerolog.Logger) (*File, error) {
	f := &File{
		path:   path,
		logger: logger.With().Str("component", "limits").Str("source", "file").Logger(),
		table:  DefaultTable,
		stopCh: make(chan struct{}),
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteTable(path, DefaultTable); err != nil {
			return nil, fmt.Errorf("create limits file: %w", err)
		}
		f.logger.Info().Str("path", path).Msg("Created limits file with defaults")
	}

	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) LimitFor(ctx context.Context, date day.Date) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.table.For(date), nil
}

// Table returns the current table.
func (f *File) Table() Table {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.table
}

// Reload re-reads the file. On failure the previous table stays in effect.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		metrics.LimitSourceErrors.WithLabelValues("file").Inc()
		return fmt.Errorf("read limits file: %w", err)
	}

	table, invalid := ParseTable(data)
	for _, line := range invalid {
		f.logger.Warn().
			Int("line", line+1).
			Str("weekday", day.WeekdayNames[line]).
			Int("default", DefaultTable[line]).
			Msg("Missing or unparseable limit, using default")
	}

	f.mu.Lock()
	f.table = table
	f.mu.Unlock()

	f.logger.Info().Interface("limits", table.Map()).Msg("Limits loaded")
	return nil
}

// Watch reloads the table whenever the file is written or replaced.
func (f *File) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory so atomic replacements are seen.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", f.path, err)
	}
	f.watcher = watcher

	f.wg.Add(1)
	go f.watchLoop()
	return nil
}

func (f *File) watchLoop() {
	defer f.wg.Done()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			f.logger.Debug().Str("op", event.Op.String()).Msg("Limits file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				err := f.Reload()
				if err != nil {
					f.logger.Error().Err(err).Msg("Failed to reload limits file")
				}
				if f.OnReload != nil {
					f.OnReload(err)
				}
			})

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Error().Err(err).Msg("File watcher error")

		case <-f.stopCh:
			return
		}
	}
}

// Close stops the watcher.
func (f *File) Close() error {
	if f.watcher == nil {
		return nil
	}
	close(f.stopCh)
	f.wg.Wait()
	err := f.watcher.Close()
	f.watcher = nil
	return err
}

// ParseTable reads up to seven lines. Weekdays whose line is missing,
// negative or not a decimal integer keep the DefaultTable value; their
// indexes are returned in invalid.
func ParseTable(data []byte) (table Table, invalid []int) {
	table = DefaultTable

	scanner := bufio.NewScanner(bytes.NewReader(data))
	wd := 0
	for ; wd < len(table) && scanner.Scan(); wd++ {
		minutes, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil || minutes < 0 {
			invalid = append(invalid, wd)
			continue
		}
		table[wd] = minutes
	}
	for ; wd < len(table); wd++ {
		invalid = append(invalid, wd)
	}
	return table, invalid
}

// WriteTable atomically writes table to path in the seven-line layout.
func WriteTable(path string, table Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, minutes := range table {
		fmt.Fprintf(&buf, "%d\n", minutes)
	}
	return renameio.WriteFile(path, buf.Bytes(), 0644)
}

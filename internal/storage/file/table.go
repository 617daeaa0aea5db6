package file

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/google/renameio/v2"
)

// row is one line of a date-keyed table. Lines whose date cannot be
// parsed are kept verbatim in raw and written back unchanged.
type row struct {
	date  day.Date
	value string
	raw   string
}

func (r row) valid() bool {
	return !r.date.IsZero()
}

// table is an ordered, date-keyed text table of "YYYY-MM-DD,value" lines.
type table struct {
	rows []row
}

// readTable loads the table at path. A missing file is an empty table.
func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &table{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parseTable(f)
}

func parseTable(r io.Reader) (*table, error) {
	t := &table{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		dateText, value, ok := strings.Cut(line, ",")
		if !ok {
			t.rows = append(t.rows, row{raw: line})
			continue
		}
		date, err := day.Parse(strings.TrimSpace(dateText))
		if err != nil {
			t.rows = append(t.rows, row{raw: line})
			continue
		}
		t.rows = append(t.rows, row{date: date, value: strings.TrimSpace(value)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return t, nil
}

// get returns the value of the first row for date.
func (t *table) get(date day.Date) (string, bool) {
	for _, r := range t.rows {
		if r.date == date {
			return r.value, true
		}
	}
	return "", false
}

// set updates the first row for date in place, or appends one.
func (t *table) set(date day.Date, value string) {
	for i := range t.rows {
		if t.rows[i].date == date {
			t.rows[i].value = value
			return
		}
	}
	t.rows = append(t.rows, row{date: date, value: value})
}

func (t *table) bytes() []byte {
	var buf bytes.Buffer
	for _, r := range t.rows {
		if !r.valid() {
			buf.WriteString(r.raw)
		} else {
			buf.WriteString(r.date.String())
			buf.WriteByte(',')
			buf.WriteString(r.value)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// writeTable replaces the file at path with t in a single rename.
func writeTable(path string, t *table) error {
	if err := renameio.WriteFile(path, t.bytes(), 0644); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

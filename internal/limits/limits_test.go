package limits

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/screentimer/internal/day"
)

// 2024-01-14 is a Sunday.
var week = []day.Date{
	day.MustParse("2024-01-14"),
	day.MustParse("2024-01-15"),
	day.MustParse("2024-01-16"),
	day.MustParse("2024-01-17"),
	day.MustParse("2024-01-18"),
	day.MustParse("2024-01-19"),
	day.MustParse("2024-01-20"),
}

func TestDefaultTable(t *testing.T) {
	want := []int{240, 120, 120, 120, 120, 180, 240}
	for i, date := range week {
		if got := DefaultTable.For(date); got != want[i] {
			t.Errorf("%s: expected %d, got %d", date, want[i], got)
		}
	}
}

func TestTableFromMap(t *testing.T) {
	table, err := TableFromMap(map[string]int{"monday": 60, "Sat": 0})
	if err != nil {
		t.Fatalf("table from map: %v", err)
	}
	if table[time.Monday] != 60 || table[time.Saturday] != 0 {
		t.Errorf("configured weekdays not applied: %v", table)
	}
	if table[time.Friday] != 180 {
		t.Errorf("expected default for friday, got %d", table[time.Friday])
	}

	if _, err := TableFromMap(map[string]int{"someday": 1}); err == nil {
		t.Error("expected error for unknown weekday")
	}
	if _, err := TableFromMap(map[string]int{"monday": -1}); err == nil {
		t.Error("expected error for negative limit")
	}
}

func TestTableFromMapShortNameWins(t *testing.T) {
	for i := 0; i < 20; i++ {
		table, err := TableFromMap(map[string]int{"saturday": 240, "sat": 30})
		if err != nil {
			t.Fatalf("table from map: %v", err)
		}
		if table[time.Saturday] != 30 {
			t.Fatalf("expected sat to override saturday, got %d", table[time.Saturday])
		}
	}
}

func TestTableMapRoundTrip(t *testing.T) {
	table, err := TableFromMap(DefaultTable.Map())
	if err != nil {
		t.Fatalf("table from map: %v", err)
	}
	if table != DefaultTable {
		t.Errorf("expected %v, got %v", DefaultTable, table)
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic(DefaultTable)
	ctx := context.Background()

	limit, err := s.LimitFor(ctx, week[1])
	if err != nil || limit != 120 {
		t.Fatalf("expected 120, got %d (%v)", limit, err)
	}

	table := DefaultTable
	table[time.Monday] = 45
	s.Set(table)

	if limit, _ := s.LimitFor(ctx, week[1]); limit != 45 {
		t.Errorf("expected 45 after Set, got %d", limit)
	}
}

func TestParseTable(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Table
		invalid []int
	}{
		{
			name: "complete",
			data: "10\n20\n30\n40\n50\n60\n70\n",
			want: Table{10, 20, 30, 40, 50, 60, 70},
		},
		{
			name:    "bad lines keep defaults",
			data:    "10\nlots\n30\n-4\n50\n60\n70\n",
			want:    Table{10, 120, 30, 120, 50, 60, 70},
			invalid: []int{1, 3},
		},
		{
			name:    "short file",
			data:    "15\n15\n",
			want:    Table{15, 15, 120, 120, 120, 180, 240},
			invalid: []int{2, 3, 4, 5, 6},
		},
		{
			name:    "empty file",
			data:    "",
			want:    DefaultTable,
			invalid: []int{0, 1, 2, 3, 4, 5, 6},
		},
		{
			name: "whitespace and CRLF",
			data: " 10 \r\n20\r\n30\r\n40\r\n50\r\n60\r\n70\r\n",
			want: Table{10, 20, 30, 40, 50, 60, 70},
		},
		{
			name: "extra lines ignored",
			data: "1\n2\n3\n4\n5\n6\n7\n8\n9\n",
			want: Table{1, 2, 3, 4, 5, 6, 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, invalid := ParseTable([]byte(tt.data))
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if len(invalid) != len(tt.invalid) {
				t.Fatalf("expected invalid %v, got %v", tt.invalid, invalid)
			}
			for i := range invalid {
				if invalid[i] != tt.invalid[i] {
					t.Errorf("expected invalid %v, got %v", tt.invalid, invalid)
				}
			}
		})
	}
}

func TestFileCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "limits.txt")

	f, err := NewFile(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("new file source: %v", err)
	}
	defer f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read created file: %v", err)
	}
	if got := string(data); got != "240\n120\n120\n120\n120\n180\n240\n" {
		t.Errorf("unexpected default file %q", got)
	}
	if f.Table() != DefaultTable {
		t.Errorf("expected default table, got %v", f.Table())
	}
}

func TestFileReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.txt")
	if err := os.WriteFile(path, []byte("10\n20\n30\n40\n50\n60\n70\n"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := NewFile(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("new file source: %v", err)
	}
	defer f.Close()

	if limit, _ := f.LimitFor(context.Background(), week[1]); limit != 20 {
		t.Fatalf("expected monday 20, got %d", limit)
	}

	if err := WriteTable(path, Table{1, 2, 3, 4, 5, 6, 7}); err != nil {
		t.Fatal(err)
	}
	if err := f.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if limit, _ := f.LimitFor(context.Background(), week[1]); limit != 2 {
		t.Errorf("expected monday 2 after reload, got %d", limit)
	}

	// A vanished file keeps the previous table
	_ = os.Remove(path)
	if err := f.Reload(); err == nil {
		t.Error("expected reload error for missing file")
	}
	if limit, _ := f.LimitFor(context.Background(), week[1]); limit != 2 {
		t.Errorf("expected previous table kept, got %d", limit)
	}
}

func TestFileWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.txt")

	f, err := NewFile(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("new file source: %v", err)
	}
	defer f.Close()

	reloaded := make(chan error, 4)
	f.OnReload = func(err error) { reloaded <- err }
	if err := f.Watch(); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := WriteTable(path, Table{5, 5, 5, 5, 5, 5, 5}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-reloaded:
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("limits file change was not picked up")
	}

	if limit, _ := f.LimitFor(context.Background(), week[0]); limit != 5 {
		t.Errorf("expected 5 after watched change, got %d", limit)
	}
}

const weekendPolicy = `package screentimer.limits

import rego.v1

default daily_minutes := 90

daily_minutes := 300 if input.weekday_name in {"saturday", "sunday"}
`

const holidayPolicy = `package screentimer.limits

import rego.v1

default daily_minutes := 90

daily_minutes := 0 if input.date == "2024-01-16"
`

func writePolicy(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRegoLimits(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "limits.rego", weekendPolicy)

	r, err := NewRego(dir, time.Minute, zerolog.Nop())
	if err != nil {
		t.Fatalf("new rego source: %v", err)
	}
	defer r.Close()

	tests := []struct {
		date day.Date
		want int
	}{
		{week[0], 300},
		{week[1], 90},
		{week[5], 90},
		{week[6], 300},
	}
	for _, tt := range tests {
		t.Run(tt.date.String(), func(t *testing.T) {
			limit, err := r.LimitFor(context.Background(), tt.date)
			if err != nil {
				t.Fatalf("limit for: %v", err)
			}
			if limit != tt.want {
				t.Errorf("expected %d, got %d", tt.want, limit)
			}
		})
	}
}

func TestRegoReloadPurgesCache(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "limits.rego", weekendPolicy)

	r, err := NewRego(dir, time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("new rego source: %v", err)
	}
	ctx := context.Background()

	if limit, _ := r.LimitFor(ctx, week[2]); limit != 90 {
		t.Fatalf("expected 90, got %d", limit)
	}

	writePolicy(t, dir, "limits.rego", holidayPolicy)
	if limit, _ := r.LimitFor(ctx, week[2]); limit != 90 {
		t.Fatalf("expected cached 90 before reload, got %d", limit)
	}

	if err := r.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if limit, _ := r.LimitFor(ctx, week[2]); limit != 0 {
		t.Errorf("expected 0 after reload, got %d", limit)
	}
}

func TestRegoErrors(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		if _, err := NewRego(t.TempDir(), time.Minute, zerolog.Nop()); err == nil {
			t.Fatal("expected error without policies")
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		dir := t.TempDir()
		writePolicy(t, dir, "bad.rego", "package screentimer.limits\n\ndaily_minutes := \n")
		if _, err := NewRego(dir, time.Minute, zerolog.Nop()); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("undefined limit", func(t *testing.T) {
		dir := t.TempDir()
		writePolicy(t, dir, "limits.rego", "package screentimer.limits\n\nimport rego.v1\n\ndaily_minutes := 60 if input.weekday == 1\n")
		r, err := NewRego(dir, time.Minute, zerolog.Nop())
		if err != nil {
			t.Fatalf("new rego source: %v", err)
		}
		_, err = r.LimitFor(context.Background(), week[2])
		if err == nil || !strings.Contains(err.Error(), "no limit defined") {
			t.Errorf("expected undefined limit error, got %v", err)
		}
	})

	t.Run("non-numeric limit", func(t *testing.T) {
		dir := t.TempDir()
		writePolicy(t, dir, "limits.rego", "package screentimer.limits\n\nimport rego.v1\n\ndaily_minutes := \"lots\"\n")
		r, err := NewRego(dir, time.Minute, zerolog.Nop())
		if err != nil {
			t.Fatalf("new rego source: %v", err)
		}
		if _, err := r.LimitFor(context.Background(), week[2]); err == nil {
			t.Error("expected error for string limit")
		}
	})

	t.Run("reload failure keeps policies", func(t *testing.T) {
		dir := t.TempDir()
		writePolicy(t, dir, "limits.rego", weekendPolicy)
		r, err := NewRego(dir, time.Minute, zerolog.Nop())
		if err != nil {
			t.Fatalf("new rego source: %v", err)
		}
		writePolicy(t, dir, "limits.rego", "package screentimer.limits\n\ndaily_minutes := \n")
		if err := r.Reload(); err == nil {
			t.Fatal("expected reload error")
		}
		if limit, err := r.LimitFor(context.Background(), week[0]); err != nil || limit != 300 {
			t.Errorf("expected previous policy, got %d (%v)", limit, err)
		}
	})
}

func TestToMinutes(t *testing.T) {
	tests := []struct {
		in      interface{}
		want    int
		wantErr bool
	}{
		{json.Number("120"), 120, false},
		{float64(45), 45, false},
		{json.Number("1.5"), 0, true},
		{json.Number("-3"), 0, true},
		{"120", 0, true},
	}

	for _, tt := range tests {
		got, err := toMinutes(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("toMinutes(%v): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("toMinutes(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

package display

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/metrics"
	"github.com/goodtune/screentimer/internal/quota"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		remaining int
		want      string
	}{
		{-5, "TIME'S UP!"},
		{0, "TIME'S UP!"},
		{1, "1m left"},
		{59, "59m left"},
		{60, "1h 0m left"},
		{61, "1h 1m left"},
		{135, "2h 15m left"},
	}

	for _, tt := range tests {
		if got := Format(tt.remaining); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.remaining, got, tt.want)
		}
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		remaining int
		want      Band
	}{
		{0, BandExpired},
		{1, BandCritical},
		{10, BandCritical},
		{11, BandWarning},
		{30, BandWarning},
		{31, BandOK},
	}

	for _, tt := range tests {
		if got := BandFor(tt.remaining); got != tt.want {
			t.Errorf("BandFor(%d) = %q, want %q", tt.remaining, got, tt.want)
		}
	}
}

func status(remaining int) quota.Status {
	return quota.Status{
		Date:       day.MustParse("2024-01-15"),
		Used:       120 - remaining,
		Limit:      120,
		Remaining:  remaining,
		LimitKnown: true,
	}
}

func TestBoardLastValueWins(t *testing.T) {
	b := NewBoard()

	// Show must not block with no reader
	for r := 30; r > 25; r-- {
		b.Show(status(r))
	}

	select {
	case s := <-b.Updates():
		if s.Remaining != 26 {
			t.Errorf("expected latest status, got remaining %d", s.Remaining)
		}
	default:
		t.Fatal("expected a pending status")
	}

	select {
	case s := <-b.Updates():
		t.Errorf("expected no further status, got %+v", s)
	default:
	}
}

func TestBoardRender(t *testing.T) {
	color.NoColor = true
	b := NewBoard()
	var buf syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Render(ctx, &buf)
		close(done)
	}()

	b.Show(status(90))
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(buf.String(), "1h 30m left") {
		if time.Now().After(deadline) {
			t.Fatalf("render output missing, got %q", buf.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
	if !strings.HasPrefix(buf.String(), "2024-01-15") {
		t.Errorf("expected line to start with the date, got %q", buf.String())
	}
}

func TestLatestHandler(t *testing.T) {
	var latest Latest
	h := latest.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before first status, got %d", rec.Code)
	}

	latest.Show(status(8))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var doc StatusDocument
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Date != "2024-01-15" || doc.Used != 112 || *doc.Limit != 120 || *doc.Remaining != 8 {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.Display != "8m left" || doc.Band != BandCritical {
		t.Errorf("unexpected display fields: %+v", doc)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST, got %d", rec.Code)
	}
}

func TestLatestHandlerUnknownLimit(t *testing.T) {
	var latest Latest
	latest.Show(quota.Status{Date: day.MustParse("2024-01-15"), Used: 3})

	rec := httptest.NewRecorder()
	latest.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var doc StatusDocument
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Limit != nil || doc.Remaining != nil || doc.Display != "limit unavailable" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestFanoutAndGauge(t *testing.T) {
	var latest Latest
	f := Fanout{&latest, Gauge{}}
	f.Show(status(45))

	if s, ok := latest.Get(); !ok || s.Remaining != 45 {
		t.Errorf("latest not updated: %+v", s)
	}
	if got := testutil.ToFloat64(metrics.MinutesRemaining); got != 45 {
		t.Errorf("expected remaining gauge 45, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.MinutesUsed); got != 75 {
		t.Errorf("expected used gauge 75, got %v", got)
	}
}

// syncBuffer guards a bytes.Buffer shared with the render goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

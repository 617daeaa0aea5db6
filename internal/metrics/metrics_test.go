package metrics

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestServerRoutes(t *testing.T) {
	status := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"remaining":42}`))
	})
	srv := NewServer("127.0.0.1:0", status, zerolog.Nop())

	TicksTotal.Inc()

	tests := []struct {
		path string
		want string
	}{
		{"/health", "OK"},
		{"/status", `"remaining":42`},
		{"/metrics", "screentimer_ticks_total"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			body, _ := io.ReadAll(rec.Body)
			if !strings.Contains(string(body), tt.want) {
				t.Errorf("expected body to contain %q", tt.want)
			}
		})
	}
}

func TestServerWithoutStatus(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without status handler, got %d", rec.Code)
	}
}

func TestServerStartReportsBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	srv := NewServer(taken.Addr().String(), nil, zerolog.Nop())
	if err := srv.Start(); err == nil {
		_ = srv.Stop()
		t.Fatal("expected Start to fail on an address already in use")
	}
}

func TestServerStartServes(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil, zerolog.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("get /health: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("expected 200 OK, got %d %q", resp.StatusCode, body)
	}
}

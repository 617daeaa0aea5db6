package display

import (
	"encoding/json"
	"net/http"
)

// StatusDocument is the JSON body served at /status.
type StatusDocument struct {
	Date      string `json:"date"`
	Used      int    `json:"used"`
	Limit     *int   `json:"limit"`
	Remaining *int   `json:"remaining"`
	Display   string `json:"display"`
	Band      Band   `json:"band,omitempty"`
	Locked    bool   `json:"locked"`
}

// Handler serves the latest status as JSON; 503 until the first tick.
func (l *Latest) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		s, ok := l.Get()
		if !ok {
			http.Error(w, "no status yet", http.StatusServiceUnavailable)
			return
		}

		doc := StatusDocument{
			Date:    s.Date.String(),
			Used:    s.Used,
			Display: Text(s),
			Locked:  s.Locked,
		}
		if s.LimitKnown {
			limit, remaining := s.Limit, s.Remaining
			doc.Limit = &limit
			doc.Remaining = &remaining
			doc.Band = BandFor(s.Remaining)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	})
}

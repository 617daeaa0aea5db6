// Package display renders quota status for people: console text, an HTTP
// status document and Prometheus gauges.
package display

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/goodtune/screentimer/internal/quota"
)

// Band classifies remaining time for colouring.
type Band string

const (
	BandOK       Band = "ok"
	BandWarning  Band = "warning"
	BandCritical Band = "critical"
	BandExpired  Band = "expired"
)

// Format renders remaining minutes as shown to the user.
func Format(remaining int) string {
	switch {
	case remaining <= 0:
		return "TIME'S UP!"
	case remaining < 60:
		return fmt.Sprintf("%dm left", remaining)
	default:
		return fmt.Sprintf("%dh %dm left", remaining/60, remaining%60)
	}
}

// BandFor returns the band for remaining minutes.
func BandFor(remaining int) Band {
	switch {
	case remaining <= 0:
		return BandExpired
	case remaining <= 10:
		return BandCritical
	case remaining <= 30:
		return BandWarning
	default:
		return BandOK
	}
}

// Text renders a status line, or a placeholder when the limit is unknown.
func Text(s quota.Status) string {
	if !s.LimitKnown {
		return "limit unavailable"
	}
	return Format(s.Remaining)
}

// Colorize applies the band's terminal colour to text.
func Colorize(band Band, text string) string {
	switch band {
	case BandExpired:
		return color.New(color.FgRed, color.Bold).Sprint(text)
	case BandCritical:
		return color.RedString(text)
	case BandWarning:
		return color.YellowString(text)
	default:
		return color.GreenString(text)
	}
}

package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goodtune/screentimer/internal/storage"
)

// parseMinutes converts a stored hash value to minutes
func parseMinutes(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: minutes %q", storage.ErrCorruptRow, value)
	}
	return n, nil
}

// parseMarkers converts a Redis hash to Markers
func parseMarkers(data map[string]string) (*storage.Markers, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	markers := &storage.Markers{}

	if raw := data["thresholds"]; raw != "" {
		for _, part := range strings.Split(raw, ",") {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("failed to parse thresholds: %w", err)
			}
			markers.Thresholds = append(markers.Thresholds, n)
		}
	}

	if raw, ok := data["locked"]; ok {
		locked, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse locked: %w", err)
		}
		markers.Locked = locked
	}

	return markers, nil
}

// formatThresholds renders thresholds as a comma separated list
func formatThresholds(thresholds []int) string {
	parts := make([]string, len(thresholds))
	for i, t := range thresholds {
		parts[i] = strconv.Itoa(t)
	}
	return strings.Join(parts, ",")
}

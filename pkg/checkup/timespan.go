// Package checkup summarizes which nodes are still contributing data.
package checkup

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimespan converts a lookback like "2w", "3d", "12h", "30m" or a
// plain number of seconds into a duration.
func ParseTimespan(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("timespan is empty")
	}

	unit := time.Second
	num := s
	switch {
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
		num = strings.TrimSuffix(s, "w")
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
		num = strings.TrimSuffix(s, "d")
	case strings.HasSuffix(s, "h"):
		unit = time.Hour
		num = strings.TrimSuffix(s, "h")
	case strings.HasSuffix(s, "m"):
		unit = time.Minute
		num = strings.TrimSuffix(s, "m")
	}

	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("invalid timespan %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("timespan %q is negative", s)
	}
	return time.Duration(n) * unit, nil
}

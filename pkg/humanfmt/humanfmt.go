// Package humanfmt renders counts, sizes, durations, and rates for human eyes.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1 << 10
	MiB = 1 << 20
	GiB = 1 << 30
)

// Count formats a count with K/M/B suffixes.
// Examples: "873", "12.4K", "3.10M".
func Count(n int64) string {
	if n < 0 {
		return strconv.FormatInt(n, 10)
	}

	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1e6)
	case n >= 10_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	case n >= 1_000:
		return fmt.Sprintf("%.2fK", float64(n)/1e3)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// Bytes formats a byte count using IEC binary units.
// Examples: "512 B", "4.00 KiB", "1.50 GiB".
func Bytes(n int64) string {
	if n < 0 {
		return fmt.Sprintf("%d B", n)
	}

	switch {
	case n >= GiB:
		return fmt.Sprintf("%.2f GiB", float64(n)/GiB)
	case n >= MiB:
		return fmt.Sprintf("%.2f MiB", float64(n)/MiB)
	case n >= KiB:
		return fmt.Sprintf("%.2f KiB", float64(n)/KiB)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// Duration formats a duration at a precision matching its magnitude.
// Examples: "412ms", "3.21s", "2m05s", "1h12m".
func Duration(d time.Duration) string {
	if d < 0 {
		return d.String()
	}

	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.String()
	}
}

// Rate formats an event rate over the elapsed time.
// Examples: "87 rec/s", "12.3K rec/s".
func Rate(n int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "n/a"
	}

	perSec := float64(n) / elapsed.Seconds()
	switch {
	case perSec >= 1e6:
		return fmt.Sprintf("%.2fM rec/s", perSec/1e6)
	case perSec >= 1e3:
		return fmt.Sprintf("%.1fK rec/s", perSec/1e3)
	default:
		return fmt.Sprintf("%.0f rec/s", perSec)
	}
}

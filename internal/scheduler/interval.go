package scheduler

import (
	"strconv"
	"strings"
	"time"
)

const month = 30 * 24 * time.Hour

// ParseIntervalDuration parses exchange timeframe codes such as "10s", "15m",
// "1h", "1D", "7d", "1w" and "1M" (month). Returns (0, false) on invalid input.
func ParseIntervalDuration(interval string) (time.Duration, bool) {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		return 0, false
	}
	unit := interval[len(interval)-1]
	numStr := strings.TrimSpace(interval[:len(interval)-1])
	if numStr == "" {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	if unit == 'M' {
		return time.Duration(n) * month, true
	}
	switch unit | 0x20 {
	case 's':
		return time.Duration(n) * time.Second, true
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// PickInterval returns the first supported timeframe at least as long as
// want, or the longest one when none is. supported must be ascending.
func PickInterval(want time.Duration, supported []string) string {
	var longest string
	for _, code := range supported {
		dur, ok := ParseIntervalDuration(code)
		if !ok {
			continue
		}
		longest = code
		if dur >= want {
			return code
		}
	}
	return longest
}

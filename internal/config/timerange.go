package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var timeRangePattern = regexp.MustCompile(`^(\d+)(s|m|h|d)$`)

// ParseTimeRange parses lookback windows like "15m", "1h" or "7d".
// Other Go duration strings such as "1h30m" are accepted as well.
func ParseTimeRange(s string) (time.Duration, error) {
	matches := timeRangePattern.FindStringSubmatch(s)
	if matches == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid time range: %q", s)
		}
		return d, nil
	}

	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time range value: %q", s)
	}

	switch matches[2] {
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	default:
		return time.Duration(value) * 24 * time.Hour, nil
	}
}

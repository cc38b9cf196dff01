package isotime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a parsed provider timestamp. HasOffset is false when the
// provider sent airport-local wall time without a UTC offset, in which case
// Time carries that wall time in UTC and is only comparable with other
// timestamps taken at the same airport.
type Timestamp struct {
	Time      time.Time
	HasOffset bool
}

var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04-07:00",
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, HasOffset: true}, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}

	return Timestamp{}, &time.ParseError{
		Value:   s,
		Message: ": unable to parse timestamp",
	}
}

var durationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseDuration reads the ISO-8601 duration subset providers emit:
// days, hours, minutes and seconds.
func ParseDuration(s string) (time.Duration, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	m := durationPattern.FindStringSubmatch(normalized)
	if m == nil || normalized == "P" || strings.HasSuffix(normalized, "T") {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
	}

	var total time.Duration
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute}
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		total += time.Duration(n) * unit
	}
	if m[4] != "" {
		secs, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		total += time.Duration(secs * float64(time.Second))
	}

	return total, nil
}

// FormatDuration renders a non-negative d as PT{h}H{m}M, truncating seconds.
func FormatDuration(d time.Duration) string {
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("PT%dH%dM", hours, minutes)
}

func Minutes(d time.Duration) int {
	return int(d / time.Minute)
}

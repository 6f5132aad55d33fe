package timeutil

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned when a timestamp is not ISO-8601 with an explicit offset.
var ErrInvalidTimestamp = errors.New("timeutil: invalid timestamp")

const (
	// DateLayout is the calendar date format used for daily files and keys.
	DateLayout = "2006-01-02"
	// ClockLayout renders a time block bound.
	ClockLayout = "15:04"
	// CaptureLayout renders first/last capture times.
	CaptureLayout = "15:04:05"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

// ParseTimestamp parses an ISO-8601 timestamp that carries either a numeric
// offset ("+09:00") or the literal UTC designator ("Z").
func ParseTimestamp(s string) (time.Time, error) {
	value := strings.TrimSpace(s)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidTimestamp)
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// Block returns the HH:MM bounds of the fixed-width block containing ts.
//
// The minute-of-hour is floored to a multiple of blockMinutes and the end is
// simply start+blockMinutes, so a block starting at 23:30 ends at "00:00"
// without any date qualification.
func Block(ts time.Time, blockMinutes int) (start, end string) {
	if blockMinutes <= 0 {
		blockMinutes = 1
	}
	startMinute := (ts.Minute() / blockMinutes) * blockMinutes
	blockStart := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), startMinute, 0, 0, ts.Location())
	blockEnd := blockStart.Add(time.Duration(blockMinutes) * time.Minute)
	return blockStart.Format(ClockLayout), blockEnd.Format(ClockLayout)
}

// EstimatedDuration estimates elapsed minutes between the first and last
// sample. The span is padded by one sampling interval because the dwell time
// of the last sample is never observed. The result is rounded up, minimum 1.
func EstimatedDuration(first, last time.Time, interval time.Duration) int {
	total := last.Sub(first) + interval
	minutes := int(math.Ceil(total.Seconds() / 60))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// EstimatedDurationMinutes is EstimatedDuration over raw timestamp strings.
// Parse failures yield 1 rather than an error.
func EstimatedDurationMinutes(first, last string, interval time.Duration) int {
	start, err := ParseTimestamp(first)
	if err != nil {
		return 1
	}
	end, err := ParseTimestamp(last)
	if err != nil {
		return 1
	}
	return EstimatedDuration(start, end, interval)
}

// Timestamped is implemented by anything carrying a capture time.
// A zero time means the timestamp is missing.
type Timestamped interface {
	Timestamp() time.Time
}

// FilterByAge keeps records whose timestamp is at or before now-threshold.
// Records without a timestamp are dropped.
func FilterByAge[T Timestamped](records []T, threshold time.Duration, now time.Time) []T {
	if len(records) == 0 {
		return []T{}
	}
	cutoff := now.Add(-threshold)
	filtered := make([]T, 0, len(records))
	for _, record := range records {
		ts := record.Timestamp()
		if ts.IsZero() {
			continue
		}
		if !ts.After(cutoff) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// RoundTenth rounds v to one decimal place.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

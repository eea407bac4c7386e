package model

import (
	"fmt"
	"time"
)

// Timestamp layouts shared by every stage. Both are local IST wall-clock
// strings, so lexical order equals chronological order.
const (
	TickLayout   = "2006-01-02 15:04:05"
	MinuteLayout = "2006-01-02 15:04:00"
)

// MinuteOf truncates a tick timestamp to its minute bucket key.
func MinuteOf(ts string) (string, error) {
	t, err := time.Parse(TickLayout, ts)
	if err != nil {
		return "", fmt.Errorf("parse tick time %q: %w", ts, err)
	}
	return t.Format(MinuteLayout), nil
}

// ParseMinute parses a minute bucket key. The returned time carries no zone
// information beyond the wall clock; only differences between keys are
// meaningful.
func ParseMinute(minute string) (time.Time, error) {
	t, err := time.Parse(MinuteLayout, minute)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse minute %q: %w", minute, err)
	}
	return t, nil
}

// FormatMinute renders t (converted to loc) as a minute bucket key.
func FormatMinute(t time.Time, loc *time.Location) string {
	return t.In(loc).Truncate(time.Minute).Format(MinuteLayout)
}

// NextMinute returns the key one minute after minute.
func NextMinute(minute string) (string, error) {
	t, err := ParseMinute(minute)
	if err != nil {
		return "", err
	}
	return t.Add(time.Minute).Format(MinuteLayout), nil
}

// MinutesBetween returns to - from in whole minutes.
func MinutesBetween(from, to string) (int, error) {
	a, err := ParseMinute(from)
	if err != nil {
		return 0, err
	}
	b, err := ParseMinute(to)
	if err != nil {
		return 0, err
	}
	return int(b.Sub(a) / time.Minute), nil
}

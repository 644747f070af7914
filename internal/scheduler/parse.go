package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MinDurationHours is the shortest accepted booking or event length.
	MinDurationHours = 1
	// MaxDurationHours is the longest accepted booking or event length.
	MaxDurationHours = 24

	// DateKeyLayout is the canonical calendar date representation.
	DateKeyLayout = "2006-01-02"
)

var (
	// ErrInvalidDate indicates a date string that matches no accepted layout.
	ErrInvalidDate = errors.New("scheduler: invalid date")
	// ErrInvalidTime indicates a time-of-day string that matches no accepted layout.
	ErrInvalidTime = errors.New("scheduler: invalid time of day")
	// ErrInvalidDuration indicates a duration outside MinDurationHours..MaxDurationHours.
	ErrInvalidDuration = errors.New("scheduler: duration out of range")
)

var dateLayouts = []string{
	DateKeyLayout,
	"02/01/2006",
	"2/1/2006",
}

var timeOfDayLayouts = []string{
	"3 PM",
	"3PM",
	"3:04 PM",
	"3:04PM",
	"15:04",
	"15:04:05",
}

// ParseDate accepts yyyy-MM-dd or dd/MM/yyyy and returns midnight of that day in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, trimmed)
}

// ParseTimeOfDay accepts clock strings such as "9 AM", "9:30 pm" or "14:00" and
// returns the offset from midnight.
func ParseTimeOfDay(value string) (time.Duration, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(value), " "))
	if normalized == "" {
		return 0, ErrInvalidTime
	}
	for _, layout := range timeOfDayLayouts {
		parsed, err := time.Parse(layout, normalized)
		if err != nil {
			continue
		}
		return time.Duration(parsed.Hour())*time.Hour +
			time.Duration(parsed.Minute())*time.Minute +
			time.Duration(parsed.Second())*time.Second, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTime, strings.TrimSpace(value))
}

// NewInterval builds [date+offset, date+offset+hours). The start is the wall-clock
// time offset after midnight in date's location; the length is absolute hours.
func NewInterval(date time.Time, offset time.Duration, hours int) (Interval, error) {
	if hours < MinDurationHours || hours > MaxDurationHours {
		return Interval{}, fmt.Errorf("%w: %d", ErrInvalidDuration, hours)
	}
	if offset < 0 || offset >= 24*time.Hour {
		return Interval{}, ErrInvalidTime
	}
	y, m, d := date.Date()
	h, rest := offset/time.Hour, offset%time.Hour
	start := time.Date(y, m, d, int(h), int(rest/time.Minute), int(rest%time.Minute/time.Second), 0, date.Location())
	interval := Interval{Start: start, End: start.Add(time.Duration(hours) * time.Hour)}
	if !interval.Valid() {
		return Interval{}, ErrInvalidInterval
	}
	return interval, nil
}

// ParseInterval combines ParseDate, ParseTimeOfDay and NewInterval.
func ParseInterval(date, startTime string, hours int, loc *time.Location) (Interval, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return Interval{}, err
	}
	offset, err := ParseTimeOfDay(startTime)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(day, offset, hours)
}

// DateKey formats t as a calendar date in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

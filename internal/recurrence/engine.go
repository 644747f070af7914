package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxOccurrences caps how many instances a single rule may expand to.
const MaxOccurrences = 52

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily repeats every day.
	FrequencyDaily
	// FrequencyWeekly repeats every week, optionally on selected weekdays.
	FrequencyWeekly
)

// String returns the lower case name used by clients.
func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "daily"
	case FrequencyWeekly:
		return "weekly"
	}
	return "unspecified"
}

// ParseFrequency converts "daily" or "weekly" into a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	}
	return FrequencyUnspecified, fmt.Errorf("%w: %q", ErrInvalidFrequency, value)
}

// Rule describes how a booking repeats.
type Rule struct {
	Frequency Frequency
	// Count is the total number of occurrences including the first.
	Count    int
	Weekdays []time.Weekday
	Until    *time.Time
}

// Occurrence represents a generated instance of a recurrence rule.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Engine expands recurrence rules into occurrences.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that normalizes results to the provided location.
// If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

var (
	// ErrInvalidFrequency indicates the recurrence frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidCount indicates a count outside 1..MaxOccurrences.
	ErrInvalidCount = errors.New("recurrence: occurrence count out of range")
	// ErrInvalidDuration indicates the base interval duration is invalid.
	ErrInvalidDuration = errors.New("recurrence: duration must be positive")
)

// Expand produces the occurrences of rule starting at baseStart, each lasting
// baseEnd-baseStart. The first occurrence is baseStart itself unless weekday
// filters exclude it. Wall-clock time is preserved across DST changes.
func (e *Engine) Expand(rule Rule, baseStart, baseEnd time.Time) ([]Occurrence, error) {
	loc := e.location
	if loc == nil {
		loc = time.UTC
	}

	baseStart = baseStart.In(loc)
	baseEnd = baseEnd.In(loc)
	if !baseEnd.After(baseStart) {
		return nil, ErrInvalidDuration
	}
	duration := baseEnd.Sub(baseStart)

	if rule.Count < 1 || rule.Count > MaxOccurrences {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, rule.Count)
	}

	opt := rrule.ROption{
		Dtstart: baseStart,
		Count:   rule.Count,
	}
	switch rule.Frequency {
	case FrequencyDaily:
		opt.Freq = rrule.DAILY
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	default:
		return nil, ErrInvalidFrequency
	}
	for _, day := range rule.Weekdays {
		opt.Byweekday = append(opt.Byweekday, toRRuleWeekday(day))
	}
	if rule.Until != nil {
		opt.Until = rule.Until.In(loc)
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rule: %w", err)
	}

	starts := r.All()
	occurrences := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		start = start.In(loc)
		occurrences = append(occurrences, Occurrence{Start: start, End: start.Add(duration)})
	}
	return occurrences, nil
}

func toRRuleWeekday(day time.Weekday) rrule.Weekday {
	switch day {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

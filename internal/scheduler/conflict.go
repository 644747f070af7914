package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidInterval indicates an interval whose start is not before its end.
var ErrInvalidInterval = errors.New("scheduler: interval start must be before end")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval satisfies Start < End.
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// ScopeKind distinguishes the two conflict scopes.
type ScopeKind string

const (
	// ScopeRoom covers all bookings of one room on one calendar date.
	ScopeRoom ScopeKind = "room"
	// ScopeUser covers every event a user is going to.
	ScopeUser ScopeKind = "user"
)

// Commitment is an existing interval inside a scope.
type Commitment struct {
	ID       int64
	Label    string
	Interval Interval
}

// Source yields the comparison set for a scope.
type Source func(ctx context.Context) ([]Commitment, error)

// HasConflict returns the first commitment overlapping proposed.
func HasConflict(existing []Commitment, proposed Interval) (Commitment, bool) {
	for _, c := range existing {
		if Overlaps(c.Interval, proposed) {
			return c, true
		}
	}
	return Commitment{}, false
}

// DetectConflicts returns every commitment overlapping proposed, in input order.
func DetectConflicts(existing []Commitment, proposed Interval) []Commitment {
	var conflicts []Commitment
	for _, c := range existing {
		if Overlaps(c.Interval, proposed) {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// Check loads the scope from source and returns all commitments overlapping proposed.
func Check(ctx context.Context, source Source, proposed Interval) ([]Commitment, error) {
	if !proposed.Valid() {
		return nil, ErrInvalidInterval
	}
	if source == nil {
		return nil, nil
	}
	existing, err := source(ctx)
	if err != nil {
		return nil, err
	}
	return DetectConflicts(existing, proposed), nil
}

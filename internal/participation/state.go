// Package participation models the relationship between a user and an event.
package participation

import (
	"errors"
	"fmt"
)

// Status is the state of one (event, user) pair. The zero value means no record.
type Status string

const (
	StatusNone     Status = ""
	StatusHost     Status = "Host"
	StatusInvited  Status = "Invited"
	StatusGoing    Status = "Going"
	StatusDeclined Status = "Declined"
)

// ParseStatus converts a client supplied status, ignoring case.
func ParseStatus(value string) (Status, error) {
	switch normalizeStatus(value) {
	case "host":
		return StatusHost, nil
	case "invited":
		return StatusInvited, nil
	case "going":
		return StatusGoing, nil
	case "declined":
		return StatusDeclined, nil
	}
	return StatusNone, fmt.Errorf("participation: unknown status %q", value)
}

// Valid reports whether s is one of the persisted states.
func (s Status) Valid() bool {
	switch s {
	case StatusHost, StatusInvited, StatusGoing, StatusDeclined:
		return true
	}
	return false
}

// Action is a request to change a participation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionInvite  Action = "invite"
	ActionAccept  Action = "accept"
	ActionAttend  Action = "attend"
	ActionDecline Action = "decline"
	ActionRemove  Action = "remove"
)

var (
	// ErrNoParticipation is returned when an action needs an existing record and none exists.
	ErrNoParticipation = errors.New("participation: user is not part of this event")
	// ErrHostImmutable is returned when the host tries to leave or be removed from their event.
	ErrHostImmutable = errors.New("participation: the host cannot leave or be removed")
	// ErrInvalidTransition is returned for actions that make no sense from the current state.
	ErrInvalidTransition = errors.New("participation: invalid transition")
)

// Transition describes the outcome of applying an Action.
type Transition struct {
	From   Status
	To     Status
	Remove bool
	// Noop is set when the action matches the current state. Reason explains it to the caller.
	Noop   bool
	Reason string
}

// Changed reports whether the transition must be persisted.
func (t Transition) Changed() bool {
	return !t.Noop
}

// RequiresConflictCheck reports whether the user's commitments must be checked first.
func (t Transition) RequiresConflictCheck() bool {
	return !t.Noop && !t.Remove && t.To == StatusGoing
}

// Policy holds the knobs of the state machine.
type Policy struct {
	// AllowDirectJoin lets a user with no record go straight to Going.
	AllowDirectJoin bool
}

// Apply computes the transition for action given the current status.
// Leaving an event is a decline: the record stays with status Declined.
func (p Policy) Apply(current Status, action Action) (Transition, error) {
	t := Transition{From: current}

	switch action {
	case ActionCreate:
		if current != StatusNone {
			return t, ErrInvalidTransition
		}
		return moveTo(t, StatusHost), nil

	case ActionInvite:
		switch current {
		case StatusNone, StatusDeclined:
			return moveTo(t, StatusInvited), nil
		default:
			return noop(t), nil
		}

	case ActionAccept, ActionAttend:
		switch current {
		case StatusInvited, StatusDeclined:
			return moveTo(t, StatusGoing), nil
		case StatusGoing, StatusHost:
			return noop(t), nil
		case StatusNone:
			if action == ActionAttend && p.AllowDirectJoin {
				return moveTo(t, StatusGoing), nil
			}
			return t, ErrNoParticipation
		}

	case ActionDecline:
		switch current {
		case StatusInvited, StatusGoing:
			return moveTo(t, StatusDeclined), nil
		case StatusDeclined:
			return noop(t), nil
		case StatusHost:
			return t, ErrHostImmutable
		case StatusNone:
			return t, ErrNoParticipation
		}

	case ActionRemove:
		switch current {
		case StatusInvited, StatusGoing, StatusDeclined:
			t.Remove = true
			return t, nil
		case StatusHost:
			return t, ErrHostImmutable
		case StatusNone:
			return t, ErrNoParticipation
		}
	}

	return t, fmt.Errorf("%w: %s from %q", ErrInvalidTransition, action, current)
}

func moveTo(t Transition, to Status) Transition {
	t.To = to
	return t
}

func noop(t Transition) Transition {
	t.To = t.From
	t.Noop = true
	switch t.From {
	case StatusHost:
		t.Reason = "already hosting this event"
	case StatusInvited:
		t.Reason = "already invited"
	case StatusGoing:
		t.Reason = "already going"
	case StatusDeclined:
		t.Reason = "already declined"
	}
	return t
}

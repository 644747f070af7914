package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique field is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when login details do not match an account.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned for sessions past their expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned for sessions that were logged out.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrNoInvitation is returned when a participation change targets a user
	// who has no record for the event.
	ErrNoInvitation = errors.New("application: not part of this event")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// Conflict names one existing commitment that overlaps a request.
type Conflict struct {
	Kind  string    `json:"kind"`
	ID    int64     `json:"id"`
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ConflictError reports that a booking or attendance change overlaps existing
// commitments in its scope.
type ConflictError struct {
	Scope     string
	Conflicts []Conflict
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Conflicts) == 0 {
		return fmt.Sprintf("scheduling conflict in %s", e.Scope)
	}
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s from %s to %s",
			c.Label, c.Start.Format("2006-01-02 15:04"), c.End.Format("15:04")))
	}
	return fmt.Sprintf("scheduling conflict in %s: %s", e.Scope, strings.Join(parts, "; "))
}

// StateError reports a request that is well formed but not allowed in the
// current state, such as deleting one's own account.
type StateError struct {
	Reason string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	if e == nil {
		return ""
	}
	return e.Reason
}

func newStateError(format string, args ...any) *StateError {
	return &StateError{Reason: fmt.Sprintf(format, args...)}
}

// mapRepoError translates persistence sentinels shared by every repository.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	}
	return err
}

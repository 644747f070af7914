package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/office-calendar/internal/lockset"
	"github.com/example/office-calendar/internal/participation"
	"github.com/example/office-calendar/internal/scheduler"
)

// Invite adds Invited records for the given users. Users already invited or
// going are left untouched; a user who declined is invited again.
func (s *EventService) Invite(ctx context.Context, params InviteParams) (results []ParticipationResult, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Invite",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to invite users", err)
			return
		}
		logger.InfoContext(ctx, "users invited", "count", len(results))
	}()

	var event Event
	if event, err = s.loadEvent(ctx, params.EventID); err != nil {
		return
	}
	if !canManage(params.Principal, event) {
		err = ErrUnauthorized
		return
	}

	ids := uniqueIDs(params.UserIDs, 0)
	if len(ids) == 0 {
		vErr := &ValidationError{}
		vErr.add("userIds", "userIds must list at least one user")
		err = vErr
		return
	}
	if err = s.ensureUsersExist(ctx, "userIds", ids); err != nil {
		return
	}

	var invited []int64
	for _, id := range ids {
		var result ParticipationResult
		if result, err = s.transition(ctx, event, id, participation.ActionInvite); err != nil {
			return
		}
		if result.Changed {
			invited = append(invited, id)
		}
		results = append(results, result)
	}

	s.notify(ctx, logger, s.notificationsFor(event, invited, NotificationInvited,
		fmt.Sprintf("%s invited you to %q on %s", params.Principal.Username, event.Title, formatWhen(event.Start))))
	return
}

// Accept moves the principal's invitation to Going after checking that none of
// their other Going events overlap.
func (s *EventService) Accept(ctx context.Context, principal Principal, eventID int64) (ParticipationResult, error) {
	return s.respond(ctx, "Accept", principal, eventID, participation.ActionAccept)
}

// Decline records that the principal will not attend. Declining again is a
// no-op and a user with no record gets ErrNoInvitation.
func (s *EventService) Decline(ctx context.Context, principal Principal, eventID int64) (ParticipationResult, error) {
	return s.respond(ctx, "Decline", principal, eventID, participation.ActionDecline)
}

// Leave withdraws the principal from an event. The record is kept as Declined
// so the host can see the answer.
func (s *EventService) Leave(ctx context.Context, principal Principal, eventID int64) (ParticipationResult, error) {
	return s.respond(ctx, "Leave", principal, eventID, participation.ActionDecline)
}

func (s *EventService) respond(ctx context.Context, operation string, principal Principal, eventID int64, action participation.Action) (result ParticipationResult, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", principal.UserID,
		"event_id", eventID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "participation change rejected", err)
			return
		}
		logger.InfoContext(ctx, "participation processed", "status", result.Status, "changed", result.Changed)
	}()

	var event Event
	if event, err = s.loadEvent(ctx, eventID); err != nil {
		return
	}
	if result, err = s.transition(ctx, event, principal.UserID, action); err != nil {
		return
	}
	if result.Changed && principal.UserID != event.CreatorID {
		s.notify(ctx, logger, s.answerNotification(event, principal.Username, result.Status))
	}
	return
}

// SetAttendance sets a user's attendance to Going or Declined. Acting for
// another user requires being the host or an administrator.
func (s *EventService) SetAttendance(ctx context.Context, params AttendanceParams) (event Event, result ParticipationResult, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	target := params.UserID
	if target == 0 {
		target = params.Principal.UserID
	}
	logger := s.loggerWith(ctx, "SetAttendance",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
		"user_id", target,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to set attendance", err)
			return
		}
		logger.InfoContext(ctx, "attendance processed", "status", result.Status, "changed", result.Changed)
	}()

	action := participation.ActionAttend
	if params.Status != "" {
		status, parseErr := participation.ParseStatus(params.Status)
		switch {
		case parseErr == nil && status == participation.StatusGoing:
		case parseErr == nil && status == participation.StatusDeclined:
			action = participation.ActionDecline
		default:
			vErr := &ValidationError{}
			vErr.add("status", "status must be Going or Declined")
			err = vErr
			return
		}
	}

	if event, err = s.loadEvent(ctx, params.EventID); err != nil {
		return
	}
	if target != params.Principal.UserID && !canManage(params.Principal, event) {
		err = ErrUnauthorized
		return
	}
	if target != params.Principal.UserID {
		if err = s.ensureUsersExist(ctx, "userId", []int64{target}); err != nil {
			return
		}
	}

	if result, err = s.transition(ctx, event, target, action); err != nil {
		return
	}
	if !result.Changed {
		return
	}

	if event, err = s.loadEvent(ctx, params.EventID); err != nil {
		return
	}
	switch {
	case target == params.Principal.UserID && target != event.CreatorID:
		s.notify(ctx, logger, s.answerNotification(event, params.Principal.Username, result.Status))
	case target != params.Principal.UserID:
		s.notify(ctx, logger, s.notificationsFor(event, []int64{target}, NotificationEventModified,
			fmt.Sprintf("%s set your attendance for %q to %s", params.Principal.Username, event.Title, result.Status)))
	}
	return
}

// RemoveParticipant deletes a user's participation record. Only the host or
// an administrator may remove someone; the host record cannot be removed.
func (s *EventService) RemoveParticipant(ctx context.Context, principal Principal, eventID, userID int64) (result ParticipationResult, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RemoveParticipant",
		"principal_id", principal.UserID,
		"event_id", eventID,
		"user_id", userID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to remove participant", err)
			return
		}
		logger.InfoContext(ctx, "participant removed")
	}()

	var event Event
	if event, err = s.loadEvent(ctx, eventID); err != nil {
		return
	}
	if !canManage(principal, event) {
		err = ErrUnauthorized
		return
	}
	if result, err = s.transition(ctx, event, userID, participation.ActionRemove); err != nil {
		return
	}
	s.notify(ctx, logger, s.notificationsFor(event, []int64{userID}, NotificationRemoved,
		fmt.Sprintf("%s removed you from %q", principal.Username, event.Title)))
	return
}

// ListParticipants returns every participation record of an event, host first.
func (s *EventService) ListParticipants(ctx context.Context, principal Principal, eventID int64) ([]Participant, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return event.Participants, nil
}

// transition applies action to the (event, user) pair while holding the event
// and user locks, so answers are checked one at a time and against the event's
// current time.
func (s *EventService) transition(ctx context.Context, event Event, userID int64, action participation.Action) (ParticipationResult, error) {
	if s.participations == nil {
		return ParticipationResult{}, fmt.Errorf("participation repository not configured")
	}

	release := s.locks.Acquire(lockset.EventScope(event.ID), lockset.UserScope(userID))
	defer release()

	current, err := s.events.GetEvent(ctx, event.ID)
	if err != nil {
		return ParticipationResult{}, mapEventRepoError(err)
	}
	event.Start, event.End = current.Start, current.End

	status := participation.StatusNone
	record, err := s.participations.GetParticipation(ctx, event.ID, userID)
	switch {
	case err == nil:
		status = record.Status
	case errors.Is(mapRepoError(err), ErrNotFound):
	default:
		return ParticipationResult{}, mapRepoError(err)
	}

	tr, err := s.policy.Apply(status, action)
	if err != nil {
		return ParticipationResult{}, mapTransitionError(err, action)
	}

	result := ParticipationResult{EventID: event.ID, UserID: userID, Status: tr.To, Changed: tr.Changed()}
	if tr.Noop {
		result.Message = tr.Reason
		return result, nil
	}

	if tr.RequiresConflictCheck() {
		interval := scheduler.Interval{Start: event.Start, End: event.End}
		clashes, checkErr := s.userConflicts(ctx, userID, event.ID, interval)
		if checkErr != nil {
			return ParticipationResult{}, checkErr
		}
		if len(clashes) > 0 {
			return ParticipationResult{}, attendanceConflict(clashes)
		}
	}

	if tr.Remove {
		if err = s.participations.DeleteParticipation(ctx, event.ID, userID); err != nil {
			return ParticipationResult{}, mapEventRepoError(err)
		}
		result.Status = participation.StatusNone
		result.Message = "participant removed"
		return result, nil
	}

	now := s.now()
	if err = s.participations.SaveParticipation(ctx, ParticipationRecord{
		EventID:   event.ID,
		UserID:    userID,
		Status:    tr.To,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return ParticipationResult{}, mapEventRepoError(err)
	}
	result.Message = transitionMessage(tr.To)
	return result, nil
}

func (s *EventService) answerNotification(event Event, username string, status participation.Status) []Notification {
	kind, verb := NotificationAccepted, "accepted"
	if status == participation.StatusDeclined {
		kind, verb = NotificationDeclined, "declined"
	}
	return s.notificationsFor(event, []int64{event.CreatorID}, kind,
		fmt.Sprintf("%s %s %q", username, verb, event.Title))
}

func attendanceConflict(clashes []scheduler.Commitment) *ConflictError {
	conflictErr := &ConflictError{Scope: "your schedule"}
	for _, c := range clashes {
		conflictErr.Conflicts = append(conflictErr.Conflicts, Conflict{Kind: "event", ID: c.ID, Label: c.Label, Start: c.Interval.Start, End: c.Interval.End})
	}
	return conflictErr
}

func mapTransitionError(err error, action participation.Action) error {
	switch {
	case errors.Is(err, participation.ErrNoParticipation):
		return ErrNoInvitation
	case errors.Is(err, participation.ErrHostImmutable):
		if action == participation.ActionRemove {
			return newStateError("the host cannot be removed from their event")
		}
		return newStateError("the host cannot decline their own event")
	case errors.Is(err, participation.ErrInvalidTransition):
		return newStateError("cannot %s from the current state", action)
	}
	return err
}

func transitionMessage(status participation.Status) string {
	switch status {
	case participation.StatusGoing:
		return "you are going"
	case participation.StatusDeclined:
		return "declined"
	case participation.StatusInvited:
		return "invited"
	}
	return string(status)
}

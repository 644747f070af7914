package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/calendarfeed"
	"github.com/example/office-calendar/internal/lockset"
	"github.com/example/office-calendar/internal/participation"
	"github.com/example/office-calendar/internal/persistence"
	"github.com/example/office-calendar/internal/scheduler"
)

// EventRepository captures the persistence operations for events. Returned
// events carry no participants; the service attaches them.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event, participants []ParticipationRecord) (Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, id int64) error
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

// ParticipationRepository stores per-user participation records.
type ParticipationRepository interface {
	GetParticipation(ctx context.Context, eventID, userID int64) (ParticipationRecord, error)
	ListParticipations(ctx context.Context, eventIDs ...int64) ([]ParticipationRecord, error)
	SaveParticipation(ctx context.Context, record ParticipationRecord) error
	DeleteParticipation(ctx context.Context, eventID, userID int64) error
}

// UserDirectory resolves user identifiers referenced by events.
type UserDirectory interface {
	MissingUserIDs(ctx context.Context, ids []int64) ([]int64, error)
}

// Notifier delivers notifications produced by event changes.
type Notifier interface {
	Notify(ctx context.Context, notifications []Notification) error
}

// EventService coordinates events, invitations and attendance.
type EventService struct {
	events         EventRepository
	participations ParticipationRepository
	users          UserDirectory
	notifier       Notifier
	locks          *lockset.Registry
	policy         participation.Policy
	feed           *calendarfeed.Encoder
	location       *time.Location
	now            func() time.Time
	logger         *slog.Logger
}

// EventServiceOptions carries the optional collaborators of an EventService.
type EventServiceOptions struct {
	Notifier Notifier
	Locks    *lockset.Registry
	Policy   participation.Policy
	Feed     *calendarfeed.Encoder
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewEventService constructs an event service.
func NewEventService(events EventRepository, participations ParticipationRepository, users UserDirectory, opts EventServiceOptions) *EventService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Locks == nil {
		opts.Locks, _ = lockset.New(lockset.DefaultIdleCapacity)
	}
	if opts.Feed == nil {
		opts.Feed = calendarfeed.NewEncoder("", "Office calendar", opts.Now)
	}
	return &EventService{
		events:         events,
		participations: participations,
		users:          users,
		notifier:       opts.Notifier,
		locks:          opts.Locks,
		policy:         opts.Policy,
		feed:           opts.Feed,
		location:       opts.Location,
		now:            opts.Now,
		logger:         defaultLogger(opts.Logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent stores a new event hosted by the principal and invites the
// requested users.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to create event", err)
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event created")
	}()

	input := normalizeEventInput(params.Input)
	var interval scheduler.Interval
	if interval, err = s.parseEventInput(input); err != nil {
		return
	}

	invitees := uniqueIDs(input.InviteeIDs, params.Principal.UserID)
	if err = s.ensureUsersExist(ctx, "inviteeIds", invitees); err != nil {
		return
	}

	now := s.now()
	hostTransition, applyErr := s.policy.Apply(participation.StatusNone, participation.ActionCreate)
	if applyErr != nil {
		err = applyErr
		return
	}
	records := []ParticipationRecord{{
		UserID:    params.Principal.UserID,
		Status:    hostTransition.To,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	for _, id := range invitees {
		records = append(records, ParticipationRecord{UserID: id, Status: participation.StatusInvited, CreatedAt: now, UpdatedAt: now})
	}

	event, err = s.events.CreateEvent(ctx, Event{
		Title:         input.Title,
		Description:   input.Description,
		Start:         interval.Start,
		End:           interval.End,
		DurationHours: input.DurationHours,
		HostLabel:     hostLabel(input.HostLabel, params.Principal),
		Location:      input.Location,
		CreatorID:     params.Principal.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, records)
	if err != nil {
		err = mapEventRepoError(err)
		return
	}

	if event, err = s.loadEvent(ctx, event.ID); err != nil {
		return
	}
	s.notify(ctx, logger, s.notificationsFor(event, invitees, NotificationInvited,
		fmt.Sprintf("%s invited you to %q on %s", params.Principal.Username, event.Title, formatWhen(event.Start))))
	return
}

// GetEvent returns an event with its participants and derived attendees.
func (s *EventService) GetEvent(ctx context.Context, principal Principal, eventID int64) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	return s.loadEvent(ctx, eventID)
}

// ListEvents returns events overlapping the requested window ordered by start.
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, fmt.Errorf("event repository not configured")
	}
	if params.From != nil && params.To != nil && !params.From.Before(*params.To) {
		vErr := &ValidationError{}
		vErr.add("to", "to must be after from")
		return nil, vErr
	}

	filter := EventFilter{EndsAfter: params.From, StartsBefore: params.To}
	if params.Mine {
		filter.ParticipantID = params.Principal.UserID
		filter.Statuses = []participation.Status{participation.StatusHost, participation.StatusInvited, participation.StatusGoing}
	}

	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, mapEventRepoError(err)
	}
	return s.attachParticipants(ctx, events)
}

// UpdateEvent edits an event for its host or an administrator. Moving the event
// re-checks the commitments of every Going participant. When the input carries
// an attendee list, new users are invited and missing ones are removed.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil || s.participations == nil {
		err = fmt.Errorf("event repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to update event", err)
			return
		}
		logger.InfoContext(ctx, "event updated")
	}()

	// The event lock freezes the participation list; user locks then keep the
	// Going participants from committing elsewhere while the move is checked.
	releaseEvent := s.locks.Acquire(lockset.EventScope(params.EventID))
	defer releaseEvent()

	var existing Event
	if existing, err = s.loadEvent(ctx, params.EventID); err != nil {
		return
	}
	if !canManage(params.Principal, existing) {
		err = ErrUnauthorized
		return
	}

	input := normalizeEventInput(params.Input.EventInput)
	var interval scheduler.Interval
	if interval, err = s.parseEventInput(input); err != nil {
		return
	}

	var invite, remove []int64
	if params.Input.AttendeeIDs != nil {
		invite, remove = diffAttendees(existing, uniqueIDs(*params.Input.AttendeeIDs, existing.CreatorID))
	}
	going := make([]int64, 0, len(existing.Participants))
	for _, p := range existing.Participants {
		if p.Status == participation.StatusGoing && !containsID(remove, p.UserID) {
			going = append(going, p.UserID)
		}
	}
	keys := make([]string, 0, len(going)+len(remove)+len(invite))
	for _, ids := range [][]int64{going, remove, invite} {
		for _, id := range ids {
			keys = append(keys, lockset.UserScope(id))
		}
	}
	releaseUsers := s.locks.Acquire(keys...)
	defer releaseUsers()

	if err = s.ensureUsersExist(ctx, "attendeeIds", invite); err != nil {
		return
	}

	moved := !interval.Start.Equal(existing.Start) || !interval.End.Equal(existing.End)
	if moved {
		if err = s.checkParticipantsFree(ctx, existing, going, interval); err != nil {
			return
		}
	}

	updated := existing
	updated.Title = input.Title
	updated.Description = input.Description
	updated.Start = interval.Start
	updated.End = interval.End
	updated.DurationHours = input.DurationHours
	updated.HostLabel = hostLabel(input.HostLabel, params.Principal)
	updated.Location = input.Location
	updated.UpdatedAt = s.now()

	if _, err = s.events.UpdateEvent(ctx, updated); err != nil {
		err = mapEventRepoError(err)
		return
	}

	now := s.now()
	for _, id := range remove {
		if err = s.participations.DeleteParticipation(ctx, existing.ID, id); err != nil && !errors.Is(mapRepoError(err), ErrNotFound) {
			err = mapEventRepoError(err)
			return
		}
		err = nil
	}
	for _, id := range invite {
		if err = s.participations.SaveParticipation(ctx, ParticipationRecord{
			EventID: existing.ID, UserID: id, Status: participation.StatusInvited, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			err = mapEventRepoError(err)
			return
		}
	}

	if event, err = s.loadEvent(ctx, existing.ID); err != nil {
		return
	}

	var notifications []Notification
	notifications = append(notifications, s.notificationsFor(event, invite, NotificationInvited,
		fmt.Sprintf("%s invited you to %q on %s", params.Principal.Username, event.Title, formatWhen(event.Start)))...)
	notifications = append(notifications, s.notificationsFor(event, remove, NotificationRemoved,
		fmt.Sprintf("You were removed from %q", event.Title))...)
	if moved {
		notifications = append(notifications, s.notificationsFor(event, otherParticipants(event, params.Principal.UserID, invite), NotificationEventModified,
			fmt.Sprintf("%q moved to %s", event.Title, formatWhen(event.Start)))...)
	}
	s.notify(ctx, logger, notifications)
	return
}

// DeleteEvent removes an event for its host or an administrator and notifies
// the remaining participants.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID int64) (err error) {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteEvent",
		"principal_id", principal.UserID,
		"event_id", eventID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to delete event", err)
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	release := s.locks.Acquire(lockset.EventScope(eventID))
	defer release()

	var event Event
	if event, err = s.loadEvent(ctx, eventID); err != nil {
		return
	}
	if !canManage(principal, event) {
		err = ErrUnauthorized
		return
	}

	if err = s.events.DeleteEvent(ctx, eventID); err != nil {
		err = mapEventRepoError(err)
		return
	}

	recipients := otherParticipants(event, principal.UserID, nil)
	notifications := s.notificationsFor(event, recipients, NotificationEventDeleted,
		fmt.Sprintf("%q on %s was cancelled", event.Title, formatWhen(event.Start)))
	for i := range notifications {
		notifications[i].EventID = nil
	}
	s.notify(ctx, logger, notifications)
	return
}

// CalendarFeed renders the events the principal hosts or attends as iCalendar.
func (s *EventService) CalendarFeed(ctx context.Context, principal Principal) (string, error) {
	if s == nil {
		return "", fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return "", fmt.Errorf("event repository not configured")
	}

	events, err := s.events.ListEvents(ctx, EventFilter{
		ParticipantID: principal.UserID,
		Statuses:      []participation.Status{participation.StatusHost, participation.StatusGoing},
	})
	if err != nil {
		return "", mapEventRepoError(err)
	}
	if events, err = s.attachParticipants(ctx, events); err != nil {
		return "", err
	}

	entries := make([]calendarfeed.Entry, 0, len(events))
	for _, event := range events {
		entry := calendarfeed.Entry{
			ID:          event.ID,
			Title:       event.Title,
			Description: event.Description,
			Location:    event.Location,
			Start:       event.Start,
			End:         event.End,
			CreatedAt:   event.CreatedAt,
			UpdatedAt:   event.UpdatedAt,
		}
		for _, p := range event.Participants {
			entry.Attendees = append(entry.Attendees, calendarfeed.Attendee{
				Name:   p.Username,
				Email:  p.Email,
				Status: calendarfeed.AttendeeStatus(p.Status),
			})
		}
		entries = append(entries, entry)
	}
	return s.feed.Encode(entries), nil
}

func (s *EventService) parseEventInput(input EventInput) (scheduler.Interval, error) {
	vErr := validateStruct(input)
	if vErr.HasErrors() {
		return scheduler.Interval{}, vErr
	}
	return parseIntervalFields(input.Date, input.StartTime, input.DurationHours, s.location)
}

func (s *EventService) ensureUsersExist(ctx context.Context, field string, ids []int64) error {
	if len(ids) == 0 || s.users == nil {
		return nil
	}
	missing, err := s.users.MissingUserIDs(ctx, ids)
	if err != nil {
		return mapRepoError(err)
	}
	if len(missing) > 0 {
		parts := make([]string, len(missing))
		for i, id := range missing {
			parts[i] = fmt.Sprint(id)
		}
		vErr := &ValidationError{}
		vErr.add(field, fmt.Sprintf("unknown users: %s", strings.Join(parts, ", ")))
		return vErr
	}
	return nil
}

// checkParticipantsFree verifies that every listed user could still be Going
// to event if it occupied interval.
func (s *EventService) checkParticipantsFree(ctx context.Context, event Event, userIDs []int64, interval scheduler.Interval) error {
	conflictErr := &ConflictError{Scope: "participant commitments"}
	for _, id := range userIDs {
		clashes, err := s.userConflicts(ctx, id, event.ID, interval)
		if err != nil {
			return err
		}
		for _, c := range clashes {
			label := c.Label
			if name := participantName(event, id); name != "" {
				label = fmt.Sprintf("%s (%s)", c.Label, name)
			}
			conflictErr.Conflicts = append(conflictErr.Conflicts, Conflict{Kind: "event", ID: c.ID, Label: label, Start: c.Interval.Start, End: c.Interval.End})
		}
	}
	if len(conflictErr.Conflicts) > 0 {
		return conflictErr
	}
	return nil
}

// userConflicts returns the user's Going events, other than excludeEventID,
// that overlap interval.
func (s *EventService) userConflicts(ctx context.Context, userID, excludeEventID int64, interval scheduler.Interval) ([]scheduler.Commitment, error) {
	source := func(ctx context.Context) ([]scheduler.Commitment, error) {
		events, err := s.events.ListEvents(ctx, EventFilter{
			ParticipantID: userID,
			Statuses:      []participation.Status{participation.StatusGoing},
			EndsAfter:     &interval.Start,
			StartsBefore:  &interval.End,
		})
		if err != nil {
			return nil, mapEventRepoError(err)
		}
		commitments := make([]scheduler.Commitment, 0, len(events))
		for _, e := range events {
			if e.ID == excludeEventID {
				continue
			}
			commitments = append(commitments, scheduler.Commitment{
				ID:       e.ID,
				Label:    fmt.Sprintf("%q", e.Title),
				Interval: scheduler.Interval{Start: e.Start.In(s.location), End: e.End.In(s.location)},
			})
		}
		return commitments, nil
	}
	return scheduler.Check(ctx, source, interval)
}

func (s *EventService) loadEvent(ctx context.Context, eventID int64) (Event, error) {
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}
	events, err := s.attachParticipants(ctx, []Event{event})
	if err != nil {
		return Event{}, err
	}
	return events[0], nil
}

func (s *EventService) attachParticipants(ctx context.Context, events []Event) ([]Event, error) {
	if len(events) == 0 {
		return events, nil
	}
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}

	var records []ParticipationRecord
	if s.participations != nil {
		var err error
		if records, err = s.participations.ListParticipations(ctx, ids...); err != nil {
			return nil, mapEventRepoError(err)
		}
	}
	byEvent := make(map[int64][]ParticipationRecord, len(events))
	for _, r := range records {
		byEvent[r.EventID] = append(byEvent[r.EventID], r)
	}

	out := make([]Event, len(events))
	for i, e := range events {
		e.Start = e.Start.In(s.location)
		e.End = e.End.In(s.location)
		e.Participants = toParticipants(byEvent[e.ID])
		e.Attendees = deriveAttendees(e.Participants)
		out[i] = e
	}
	return out, nil
}

func (s *EventService) notificationsFor(event Event, userIDs []int64, kind, message string) []Notification {
	if len(userIDs) == 0 {
		return nil
	}
	eventID := event.ID
	now := s.now()
	out := make([]Notification, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, Notification{UserID: id, EventID: &eventID, Kind: kind, Message: message, CreatedAt: now})
	}
	return out
}

func (s *EventService) notify(ctx context.Context, logger *slog.Logger, notifications []Notification) {
	if s.notifier == nil || len(notifications) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, notifications); err != nil {
		logger.WarnContext(ctx, "failed to deliver notifications", "error", err, "count", len(notifications))
	}
}

// toParticipants orders records with the host first, then by last change.
func toParticipants(records []ParticipationRecord) []Participant {
	participants := make([]Participant, 0, len(records))
	for _, r := range records {
		participants = append(participants, Participant{
			UserID:    r.UserID,
			Username:  r.Username,
			Email:     r.Email,
			Status:    r.Status,
			UpdatedAt: r.UpdatedAt,
		})
	}
	sort.SliceStable(participants, func(i, j int) bool {
		hi := participants[i].Status == participation.StatusHost
		hj := participants[j].Status == participation.StatusHost
		if hi != hj {
			return hi
		}
		if !participants[i].UpdatedAt.Equal(participants[j].UpdatedAt) {
			return participants[i].UpdatedAt.Before(participants[j].UpdatedAt)
		}
		return participants[i].UserID < participants[j].UserID
	})
	return participants
}

func deriveAttendees(participants []Participant) []string {
	records := make([]participation.Record, 0, len(participants))
	for _, p := range participants {
		records = append(records, participation.Record{UserID: p.UserID, Username: p.Username, Status: p.Status, UpdatedAt: p.UpdatedAt})
	}
	return participation.Attendees(records)
}

// diffAttendees compares the desired non-host participant list with the
// current records.
func diffAttendees(event Event, desired []int64) (invite, remove []int64) {
	current := make(map[int64]participation.Status, len(event.Participants))
	for _, p := range event.Participants {
		current[p.UserID] = p.Status
	}
	wanted := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		wanted[id] = struct{}{}
		if _, ok := current[id]; !ok {
			invite = append(invite, id)
		}
	}
	for _, p := range event.Participants {
		if p.Status == participation.StatusHost {
			continue
		}
		if _, ok := wanted[p.UserID]; !ok {
			remove = append(remove, p.UserID)
		}
	}
	return invite, remove
}

func otherParticipants(event Event, exclude int64, skip []int64) []int64 {
	var ids []int64
	for _, p := range event.Participants {
		if p.UserID == exclude || containsID(skip, p.UserID) {
			continue
		}
		if p.Status == participation.StatusDeclined {
			continue
		}
		ids = append(ids, p.UserID)
	}
	return ids
}

func participantName(event Event, userID int64) string {
	for _, p := range event.Participants {
		if p.UserID == userID {
			return p.Username
		}
	}
	return ""
}

func canManage(principal Principal, event Event) bool {
	return principal.IsAdmin || (principal.UserID != 0 && principal.UserID == event.CreatorID)
}

func hostLabel(label string, principal Principal) string {
	if label != "" {
		return label
	}
	return principal.Username
}

func normalizeEventInput(input EventInput) EventInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.HostLabel = strings.TrimSpace(input.HostLabel)
	input.Location = strings.TrimSpace(input.Location)
	return input
}

// uniqueIDs drops duplicates, non-positive values and exclude, keeping order.
func uniqueIDs(ids []int64, exclude int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || id == exclude {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func formatWhen(t time.Time) string {
	return t.Format("Mon 2 Jan 2006 15:04")
}

func mapEventRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrOverlap) {
		return &ConflictError{Scope: "attendance"}
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("durationHours", "durationHours must be between 1 and 24")
		return vErr
	}
	return mapRepoError(err)
}

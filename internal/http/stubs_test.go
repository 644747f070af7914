package http

import (
	"context"
	"errors"
	"time"

	"github.com/example/office-calendar/internal/application"
	"github.com/example/office-calendar/internal/participation"
)

var testPrincipal = application.Principal{UserID: 1, Username: "alice"}

type sessionStub struct {
	tokens map[string]application.Principal
	err    error
}

func (s *sessionStub) ValidateSession(_ context.Context, token string) (application.Principal, error) {
	if s.err != nil {
		return application.Principal{}, s.err
	}
	p, ok := s.tokens[token]
	if !ok {
		return application.Principal{}, application.ErrUnauthorized
	}
	return p, nil
}

type authServiceStub struct {
	registered application.RegisterParams
	login      application.AuthenticateParams
	result     application.AuthenticateResult
	err        error
	revoked    []string
}

func (s *authServiceStub) Register(_ context.Context, params application.RegisterParams) (application.User, error) {
	s.registered = params
	if s.err != nil {
		return application.User{}, s.err
	}
	return application.User{ID: 1, Username: params.Username, Email: params.Email, IsAdmin: true}, nil
}

func (s *authServiceStub) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	s.login = params
	if s.err != nil {
		return application.AuthenticateResult{}, s.err
	}
	return s.result, nil
}

func (s *authServiceStub) RevokeSession(_ context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return s.err
}

type roomServiceStub struct {
	booked   application.BookRoomParams
	bookings []application.Booking
	listed   application.ListBookingsParams
	err      error
}

func (s *roomServiceStub) CreateRoom(_ context.Context, params application.CreateRoomParams) (application.Room, error) {
	if s.err != nil {
		return application.Room{}, s.err
	}
	return application.Room{ID: 1, Name: params.Input.Name, Capacity: params.Input.Capacity}, nil
}

func (s *roomServiceStub) UpdateRoom(_ context.Context, params application.UpdateRoomParams) (application.Room, error) {
	if s.err != nil {
		return application.Room{}, s.err
	}
	return application.Room{ID: params.RoomID, Name: params.Input.Name}, nil
}

func (s *roomServiceStub) DeleteRoom(context.Context, application.Principal, int64) error {
	return s.err
}

func (s *roomServiceStub) ListRooms(context.Context, application.Principal) ([]application.Room, error) {
	return nil, s.err
}

func (s *roomServiceStub) BookRoom(_ context.Context, params application.BookRoomParams) ([]application.Booking, error) {
	s.booked = params
	if s.err != nil {
		return nil, s.err
	}
	return s.bookings, nil
}

func (s *roomServiceStub) ListBookings(_ context.Context, params application.ListBookingsParams) ([]application.Booking, error) {
	s.listed = params
	return s.bookings, s.err
}

func (s *roomServiceStub) ListMyBookings(context.Context, application.Principal) ([]application.Booking, error) {
	return s.bookings, s.err
}

type eventServiceStub struct {
	event      application.Event
	listParams application.ListEventsParams
	result     application.ParticipationResult
	attendance application.AttendanceParams
	removed    [2]int64
	feed       string
	err        error
}

func (s *eventServiceStub) CreateEvent(_ context.Context, params application.CreateEventParams) (application.Event, error) {
	if s.err != nil {
		return application.Event{}, s.err
	}
	event := s.event
	event.Title = params.Input.Title
	return event, nil
}

func (s *eventServiceStub) GetEvent(context.Context, application.Principal, int64) (application.Event, error) {
	return s.event, s.err
}

func (s *eventServiceStub) ListEvents(_ context.Context, params application.ListEventsParams) ([]application.Event, error) {
	s.listParams = params
	if s.err != nil {
		return nil, s.err
	}
	return []application.Event{s.event}, nil
}

func (s *eventServiceStub) UpdateEvent(context.Context, application.UpdateEventParams) (application.Event, error) {
	return s.event, s.err
}

func (s *eventServiceStub) DeleteEvent(context.Context, application.Principal, int64) error {
	return s.err
}

func (s *eventServiceStub) CalendarFeed(context.Context, application.Principal) (string, error) {
	return s.feed, s.err
}

func (s *eventServiceStub) Invite(_ context.Context, params application.InviteParams) ([]application.ParticipationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]application.ParticipationResult, 0, len(params.UserIDs))
	for _, id := range params.UserIDs {
		out = append(out, application.ParticipationResult{EventID: params.EventID, UserID: id, Status: participation.StatusInvited, Changed: true})
	}
	return out, nil
}

func (s *eventServiceStub) Accept(context.Context, application.Principal, int64) (application.ParticipationResult, error) {
	return s.result, s.err
}

func (s *eventServiceStub) Decline(context.Context, application.Principal, int64) (application.ParticipationResult, error) {
	return s.result, s.err
}

func (s *eventServiceStub) Leave(context.Context, application.Principal, int64) (application.ParticipationResult, error) {
	return s.result, s.err
}

func (s *eventServiceStub) SetAttendance(_ context.Context, params application.AttendanceParams) (application.Event, application.ParticipationResult, error) {
	s.attendance = params
	return s.event, s.result, s.err
}

func (s *eventServiceStub) RemoveParticipant(_ context.Context, _ application.Principal, eventID, userID int64) (application.ParticipationResult, error) {
	s.removed = [2]int64{eventID, userID}
	return application.ParticipationResult{Changed: true}, s.err
}

func (s *eventServiceStub) ListParticipants(context.Context, application.Principal, int64) ([]application.Participant, error) {
	return s.event.Participants, s.err
}

type notificationServiceStub struct {
	unread   bool
	markedID int64
	err      error
}

func (s *notificationServiceStub) List(_ context.Context, _ application.Principal, unreadOnly bool) ([]application.Notification, error) {
	s.unread = unreadOnly
	return nil, s.err
}

func (s *notificationServiceStub) MarkRead(_ context.Context, _ application.Principal, id int64) error {
	s.markedID = id
	return s.err
}

func (s *notificationServiceStub) MarkAllRead(context.Context, application.Principal) (int64, error) {
	return 3, s.err
}

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

var errStoreDown = errors.New("database is locked")

func sampleEvent() application.Event {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return application.Event{
		ID:            7,
		Title:         "Planning",
		Start:         start,
		End:           start.Add(2 * time.Hour),
		DurationHours: 2,
		HostLabel:     "alice",
		CreatorID:     1,
		Attendees:     []string{"alice", "bob"},
		Participants: []application.Participant{
			{UserID: 1, Username: "alice", Status: participation.StatusHost},
			{UserID: 2, Username: "bob", Status: participation.StatusGoing},
		},
	}
}

type userServiceStub struct {
	updated application.UpdateUserParams
	err     error
}

func (s *userServiceStub) GetUser(_ context.Context, _ application.Principal, userID int64) (application.User, error) {
	if s.err != nil {
		return application.User{}, s.err
	}
	return application.User{ID: userID, Username: "alice"}, nil
}

func (s *userServiceStub) UpdateUser(_ context.Context, params application.UpdateUserParams) (application.User, error) {
	s.updated = params
	if s.err != nil {
		return application.User{}, s.err
	}
	user := application.User{ID: params.UserID}
	if params.Input.DisplayName != nil {
		user.DisplayName = *params.Input.DisplayName
	}
	return user, nil
}

func (s *userServiceStub) DeleteUser(context.Context, application.Principal, int64) error {
	return s.err
}

func (s *userServiceStub) ListUsers(context.Context, application.Principal) ([]application.User, error) {
	return []application.User{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}}, s.err
}

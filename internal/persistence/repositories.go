package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByLogin(ctx context.Context, login string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	DeleteUser(ctx context.Context, id int64) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id int64) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id int64) error
}

// BookingFilter narrows booking queries. Zero values are ignored.
type BookingFilter struct {
	RoomID      int64
	UserID      int64
	BookingDate string
}

// BookingRepository stores room bookings.
type BookingRepository interface {
	// CreateBookings inserts all bookings atomically.
	CreateBookings(ctx context.Context, bookings []RoomBooking) ([]RoomBooking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]RoomBooking, error)
}

// EventFilter narrows event queries. Zero values are ignored.
type EventFilter struct {
	StartsBefore  *time.Time
	EndsAfter     *time.Time
	ParticipantID int64
	Statuses      []string
}

// EventRepository stores events together with their participations.
type EventRepository interface {
	// CreateEvent inserts the event and its initial participations atomically.
	CreateEvent(ctx context.Context, event Event, participations []Participation) (Event, error)
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id int64) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, id int64) error
}

// ParticipationRepository stores per-user event participation.
type ParticipationRepository interface {
	GetParticipation(ctx context.Context, eventID, userID int64) (Participation, error)
	ListParticipations(ctx context.Context, eventIDs ...int64) ([]Participation, error)
	UpsertParticipation(ctx context.Context, participation Participation) error
	DeleteParticipation(ctx context.Context, eventID, userID int64) error
}

// NotificationRepository stores per-user notifications.
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, notifications []Notification) error
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id int64, readAt time.Time) error
	MarkAllRead(ctx context.Context, userID int64, readAt time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, reference time.Time) (int64, error)
}

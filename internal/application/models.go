package application

import (
	"time"

	"github.com/example/office-calendar/internal/participation"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

// User is the public view of an account.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	IsAdmin     bool      `json:"isAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserCredentials pairs a user with the stored password hash.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an issued authentication session.
type Session struct {
	ID        string
	UserID    int64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// RegisterParams carries the self-service registration form.
type RegisterParams struct {
	Username    string `json:"username" validate:"required,min=3,max=32,username" field:"username"`
	Email       string `json:"email" validate:"required,email,max=254" field:"email"`
	Password    string `json:"password" validate:"required,min=8,max=128" field:"password"`
	DisplayName string `json:"displayName" validate:"max=100" field:"displayName"`
}

// AuthenticateParams carries login credentials. Login is a username or email.
type AuthenticateParams struct {
	Login    string
	Password string
}

// AuthenticateResult is returned on successful login.
type AuthenticateResult struct {
	User    User
	Session Session
}

// UserUpdateInput lists the mutable user fields. Nil fields are left unchanged.
type UserUpdateInput struct {
	Email       *string `json:"email" validate:"omitnil,required,email,max=254" field:"email"`
	DisplayName *string `json:"displayName" validate:"omitnil,max=100" field:"displayName"`
	IsAdmin     *bool   `json:"isAdmin"`
}

// UpdateUserParams wraps a user update request.
type UpdateUserParams struct {
	Principal Principal
	UserID    int64
	Input     UserUpdateInput
}

// Room is a bookable meeting room.
type Room struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name     string `json:"name" validate:"required,max=100" field:"name"`
	Location string `json:"location" validate:"max=200" field:"location"`
	Capacity int    `json:"capacity" validate:"gt=0,lte=1000" field:"capacity"`
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    int64
	Input     RoomInput
}

// Booking is a persisted room reservation.
type Booking struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"roomId"`
	UserID    int64     `json:"userId"`
	Date      string    `json:"date"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Purpose   *string   `json:"purpose,omitempty"`
	SeriesID  *string   `json:"seriesId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RepeatInput asks for a booking to be repeated.
type RepeatInput struct {
	Frequency string   `json:"frequency" validate:"required,oneof=daily weekly DAILY WEEKLY" field:"repeat.frequency"`
	Count     int      `json:"count" validate:"gte=1,lte=52" field:"repeat.count"`
	Weekdays  []string `json:"weekdays" validate:"dive,oneof=MO TU WE TH FR SA SU mo tu we th fr sa su" field:"repeat.weekdays"`
	// Until, when set, is the last date (inclusive) an occurrence may start on.
	Until string `json:"until,omitempty" field:"repeat.until"`
}

// BookingInput is the room booking request body.
type BookingInput struct {
	RoomID        int64        `json:"roomId" validate:"required,gt=0" field:"roomId"`
	Date          string       `json:"date" validate:"required" field:"date"`
	StartTime     string       `json:"startTime" validate:"required" field:"startTime"`
	DurationHours int          `json:"durationHours" validate:"gte=1,lte=24" field:"durationHours"`
	Purpose       string       `json:"purpose" validate:"max=500" field:"purpose"`
	Repeat        *RepeatInput `json:"repeat" validate:"omitempty" field:"repeat"`
}

// BookRoomParams wraps a booking request.
type BookRoomParams struct {
	Principal Principal
	Input     BookingInput
}

// ListBookingsParams selects the bookings of a room, optionally on one date.
type ListBookingsParams struct {
	Principal Principal
	RoomID    int64
	Date      string
}

// BookingFilter narrows booking repository queries. Zero values are ignored.
type BookingFilter struct {
	RoomID int64
	UserID int64
	Date   string
}

// Participant is one participation record joined with the user's identity.
type Participant struct {
	UserID    int64                `json:"userId"`
	Username  string               `json:"username"`
	Email     string               `json:"email,omitempty"`
	Status    participation.Status `json:"status"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// Event is a calendar entry with its participants. Attendees is derived from
// the participants on every read.
type Event struct {
	ID            int64         `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	DurationHours int           `json:"durationHours"`
	HostLabel     string        `json:"hostLabel"`
	Location      string        `json:"location"`
	CreatorID     int64         `json:"creatorId"`
	Attendees     []string      `json:"attendees"`
	Participants  []Participant `json:"participants"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Title         string  `json:"title" validate:"required,max=200" field:"title"`
	Description   string  `json:"description" validate:"max=2000" field:"description"`
	Date          string  `json:"date" validate:"required" field:"date"`
	StartTime     string  `json:"startTime" validate:"required" field:"startTime"`
	DurationHours int     `json:"durationHours" validate:"gte=1,lte=24" field:"durationHours"`
	HostLabel     string  `json:"hostLabel" validate:"max=100" field:"hostLabel"`
	Location      string  `json:"location" validate:"max=200" field:"location"`
	InviteeIDs    []int64 `json:"inviteeIds" validate:"dive,gt=0" field:"inviteeIds"`
}

// EventUpdateInput captures an event edit. A nil AttendeeIDs leaves the
// participant list untouched; otherwise it is the complete desired list of
// non-host participants.
type EventUpdateInput struct {
	EventInput
	AttendeeIDs *[]int64 `json:"attendeeIds" field:"attendeeIds"`
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an event.
type UpdateEventParams struct {
	Principal Principal
	EventID   int64
	Input     EventUpdateInput
}

// ListEventsParams selects events overlapping an optional window. Mine limits
// the result to events the principal hosts, is invited to or attends.
type ListEventsParams struct {
	Principal Principal
	From      *time.Time
	To        *time.Time
	Mine      bool
}

// EventFilter narrows event repository queries. Zero values are ignored.
type EventFilter struct {
	StartsBefore  *time.Time
	EndsAfter     *time.Time
	ParticipantID int64
	Statuses      []participation.Status
}

// InviteParams invites users to an event.
type InviteParams struct {
	Principal Principal
	EventID   int64
	UserIDs   []int64
}

// AttendanceParams sets a user's attendance. UserID zero means the principal.
// Status defaults to Going.
type AttendanceParams struct {
	Principal Principal
	EventID   int64
	UserID    int64
	Status    string
}

// ParticipationResult reports the outcome of a participation transition. When
// Changed is false the request matched the current state and Message explains.
type ParticipationResult struct {
	EventID int64                `json:"eventId"`
	UserID  int64                `json:"userId"`
	Status  participation.Status `json:"status"`
	Changed bool                 `json:"changed"`
	Message string               `json:"message"`
}

// ParticipationRecord is the stored form of a participation.
type ParticipationRecord struct {
	EventID   int64
	UserID    int64
	Status    participation.Status
	Username  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Notification is a message delivered to a single user.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	EventID   *int64     `json:"eventId,omitempty"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

// Notification kinds.
const (
	NotificationInvited       = "event_invited"
	NotificationAccepted      = "event_accepted"
	NotificationDeclined      = "event_declined"
	NotificationRemoved       = "event_removed"
	NotificationEventDeleted  = "event_deleted"
	NotificationEventModified = "event_updated"
)

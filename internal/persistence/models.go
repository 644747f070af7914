package persistence

import "time"

// User represents an account that can book rooms and attend events.
type User struct {
	ID           int64
	Username     string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    int64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// Room represents a bookable meeting room.
type Room struct {
	ID        int64
	Name      string
	Location  string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomBooking is an immutable reservation of a room for a half-open interval.
type RoomBooking struct {
	ID          int64
	RoomID      int64
	UserID      int64
	BookingDate string
	StartsAt    time.Time
	EndsAt      time.Time
	Purpose     *string
	SeriesID    *string
	CreatedAt   time.Time
}

// Event is a calendar entry that users participate in.
type Event struct {
	ID            int64
	Title         string
	Description   string
	StartsAt      time.Time
	DurationHours int
	HostLabel     string
	Location      string
	CreatorID     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Participation links a user to an event with a status.
// Username and Email are populated on reads only.
type Participation struct {
	EventID   int64
	UserID    int64
	Status    string
	Username  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Notification is a message delivered to a single user.
type Notification struct {
	ID        int64
	UserID    int64
	EventID   *int64
	Kind      string
	Message   string
	CreatedAt time.Time
	ReadAt    *time.Time
}

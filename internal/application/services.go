package application

import (
	"log/slog"
	"time"

	"github.com/example/office-calendar/internal/calendarfeed"
	"github.com/example/office-calendar/internal/lockset"
	"github.com/example/office-calendar/internal/participation"
)

// Repositories bundles the storage ports of every service.
type Repositories struct {
	Credentials    CredentialStore
	Sessions       SessionRepository
	Users          UserRepository
	Directory      UserDirectory
	Rooms          RoomRepository
	Bookings       BookingRepository
	Events         EventRepository
	Participations ParticipationRepository
	Notifications  NotificationRepository
}

// ServiceOptions carries the shared collaborators. Zero values fall back to
// each constructor's defaults.
type ServiceOptions struct {
	Locks          *lockset.Registry
	Policy         participation.Policy
	Feed           *calendarfeed.Encoder
	Location       *time.Location
	SessionTTL     time.Duration
	Now            func() time.Time
	IDGenerator    func() string
	TokenGenerator func() string
	HashPassword   PasswordHasher
	VerifyPassword PasswordVerifier
	Logger         *slog.Logger
}

// Services is the full set of application services.
type Services struct {
	Auth          *AuthService
	Users         *UserService
	Rooms         *RoomService
	Events        *EventService
	Notifications *NotificationService
}

// NewServices builds every service over repos. Rooms and events share one lock
// registry and the notification service receives event notifications.
func NewServices(repos Repositories, opts ServiceOptions) Services {
	if opts.Locks == nil {
		opts.Locks, _ = lockset.New(lockset.DefaultIdleCapacity)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	notifications := NewNotificationServiceWithLogger(repos.Notifications, opts.Now, opts.Logger)

	return Services{
		Auth: NewAuthServiceWithLogger(repos.Credentials, repos.Sessions, opts.HashPassword, opts.VerifyPassword,
			opts.IDGenerator, opts.TokenGenerator, opts.Now, opts.SessionTTL, opts.Logger),
		Users: NewUserServiceWithLogger(repos.Users, opts.Now, opts.Logger),
		Rooms: NewRoomServiceWithLogger(repos.Rooms, repos.Bookings, opts.Locks, opts.Location,
			opts.IDGenerator, opts.Now, opts.Logger),
		Events: NewEventService(repos.Events, repos.Participations, repos.Directory, EventServiceOptions{
			Notifier: notifications,
			Locks:    opts.Locks,
			Policy:   opts.Policy,
			Feed:     opts.Feed,
			Location: opts.Location,
			Now:      opts.Now,
			Logger:   opts.Logger,
		}),
		Notifications: notifications,
	}
}

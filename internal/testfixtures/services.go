package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/office-calendar/internal/application"
	"github.com/example/office-calendar/internal/calendarfeed"
	"github.com/example/office-calendar/internal/lockset"
	"github.com/example/office-calendar/internal/participation"
)

// fastPasswordParams keeps argon2id cheap enough for tests.
var fastPasswordParams = application.PasswordParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// ServiceFactory builds application services with deterministic clocks and
// identifiers.
type ServiceFactory struct {
	Clock    *Clock
	IDs      *IDGenerator
	Tokens   *IDGenerator
	Location *time.Location
	Policy   participation.Policy
	Logger   *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a factory at ReferenceTime in UTC.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:    NewClock(time.Time{}),
		IDs:      NewIDGenerator("id"),
		Tokens:   NewIDGenerator("token"),
		Location: time.UTC,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithPolicy overrides the participation policy.
func WithPolicy(policy participation.Policy) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Policy = policy
	}
}

// Build wires every service over repos.
func (f *ServiceFactory) Build(repos application.Repositories) application.Services {
	locks, _ := lockset.New(64)
	now := f.Clock.NowFunc()
	return application.NewServices(repos, application.ServiceOptions{
		Locks:          locks,
		Policy:         f.Policy,
		Feed:           calendarfeed.NewEncoder("calendar.test", "Test calendar", now),
		Location:       f.Location,
		SessionTTL:     24 * time.Hour,
		Now:            now,
		IDGenerator:    f.IDs.NextFunc(),
		TokenGenerator: f.Tokens.NextFunc(),
		HashPassword:   application.NewPasswordHasher(fastPasswordParams),
		VerifyPassword: application.VerifyPassword,
		Logger:         f.Logger,
	})
}

package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// NotificationRepository stores per-user notifications.
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, notifications []Notification) error
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id int64, readAt time.Time) error
	MarkAllRead(ctx context.Context, userID int64, readAt time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, reference time.Time) (int64, error)
}

// NotificationService delivers and reads in-app notifications.
type NotificationService struct {
	notifications NotificationRepository
	now           func() time.Time
	logger        *slog.Logger
}

// NewNotificationService constructs a notification service.
func NewNotificationService(notifications NotificationRepository, now func() time.Time) *NotificationService {
	return NewNotificationServiceWithLogger(notifications, now, nil)
}

// NewNotificationServiceWithLogger constructs a notification service with a custom logger.
func NewNotificationServiceWithLogger(notifications NotificationRepository, now func() time.Time, logger *slog.Logger) *NotificationService {
	if now == nil {
		now = time.Now
	}
	return &NotificationService{
		notifications: notifications,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

func (s *NotificationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "NotificationService", operation, attrs...)
}

// Notify stores notifications. It satisfies Notifier for EventService.
func (s *NotificationService) Notify(ctx context.Context, notifications []Notification) error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return fmt.Errorf("notification repository not configured")
	}
	if len(notifications) == 0 {
		return nil
	}
	now := s.now()
	for i := range notifications {
		if notifications[i].CreatedAt.IsZero() {
			notifications[i].CreatedAt = now
		}
	}
	if err := s.notifications.CreateNotifications(ctx, notifications); err != nil {
		return mapRepoError(err)
	}
	s.loggerWith(ctx, "Notify").DebugContext(ctx, "notifications stored", "count", len(notifications))
	return nil
}

// List returns the principal's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, principal Principal, unreadOnly bool) ([]Notification, error) {
	if s == nil {
		return nil, fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return nil, fmt.Errorf("notification repository not configured")
	}
	items, err := s.notifications.ListNotifications(ctx, principal.UserID, unreadOnly)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return items, nil
}

// MarkRead marks one of the principal's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, principal Principal, id int64) (err error) {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return fmt.Errorf("notification repository not configured")
	}

	logger := s.loggerWith(ctx, "MarkRead", "principal_id", principal.UserID, "notification_id", id)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to mark notification read", err)
		}
	}()

	if err = s.notifications.MarkRead(ctx, principal.UserID, id, s.now()); err != nil {
		err = mapRepoError(err)
	}
	return
}

// MarkAllRead marks every unread notification of the principal as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, principal Principal) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return 0, fmt.Errorf("notification repository not configured")
	}
	count, err := s.notifications.MarkAllRead(ctx, principal.UserID, s.now())
	if err != nil {
		return 0, mapRepoError(err)
	}
	return count, nil
}

// PruneRead deletes notifications that were read more than retention ago.
func (s *NotificationService) PruneRead(ctx context.Context, retention time.Duration) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return 0, fmt.Errorf("notification repository not configured")
	}
	count, err := s.notifications.DeleteReadBefore(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, mapRepoError(err)
	}
	if count > 0 {
		s.loggerWith(ctx, "PruneRead").InfoContext(ctx, "pruned read notifications", "count", count)
	}
	return count, nil
}

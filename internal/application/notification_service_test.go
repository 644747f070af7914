package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

type notificationRepoStub struct {
	items  []Notification
	nextID int64
	cutoff time.Time
}

func (s *notificationRepoStub) CreateNotifications(ctx context.Context, notifications []Notification) error {
	for _, n := range notifications {
		s.nextID++
		n.ID = s.nextID
		s.items = append(s.items, n)
	}
	return nil
}

func (s *notificationRepoStub) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	var out []Notification
	for i := len(s.items) - 1; i >= 0; i-- {
		n := s.items[i]
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *notificationRepoStub) MarkRead(ctx context.Context, userID, id int64, readAt time.Time) error {
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].UserID == userID {
			if s.items[i].ReadAt == nil {
				s.items[i].ReadAt = &readAt
			}
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (s *notificationRepoStub) MarkAllRead(ctx context.Context, userID int64, readAt time.Time) (int64, error) {
	var count int64
	for i := range s.items {
		if s.items[i].UserID == userID && s.items[i].ReadAt == nil {
			s.items[i].ReadAt = &readAt
			count++
		}
	}
	return count, nil
}

func (s *notificationRepoStub) DeleteReadBefore(ctx context.Context, reference time.Time) (int64, error) {
	s.cutoff = reference
	kept := s.items[:0]
	var removed int64
	for _, n := range s.items {
		if n.ReadAt != nil && n.ReadAt.Before(reference) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	s.items = kept
	return removed, nil
}

func TestNotificationService(t *testing.T) {
	ctx := context.Background()
	repo := &notificationRepoStub{}
	svc := NewNotificationService(repo, fixedNow)

	err := svc.Notify(ctx, []Notification{
		{UserID: bob.UserID, Kind: NotificationInvited, Message: "first"},
		{UserID: bob.UserID, Kind: NotificationInvited, Message: "second"},
		{UserID: carol.UserID, Kind: NotificationInvited, Message: "other"},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !repo.items[0].CreatedAt.Equal(fixedNow()) {
		t.Fatalf("expected CreatedAt to default to now, got %s", repo.items[0].CreatedAt)
	}

	items, err := svc.List(ctx, bob, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Message != "second" {
		t.Fatalf("expected newest first, got %+v", items)
	}

	if err := svc.MarkRead(ctx, bob, items[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, bob, 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound marking another user's notification, got %v", err)
	}

	unread, _ := svc.List(ctx, bob, true)
	if len(unread) != 1 || unread[0].Message != "first" {
		t.Fatalf("expected one unread, got %+v", unread)
	}

	count, err := svc.MarkAllRead(ctx, bob)
	if err != nil || count != 1 {
		t.Fatalf("mark all read: %d %v", count, err)
	}

	removed, err := svc.PruneRead(ctx, -time.Minute)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 || len(repo.items) != 1 {
		t.Fatalf("expected bob's read notifications pruned, removed %d left %d", removed, len(repo.items))
	}
	if !repo.cutoff.Equal(fixedNow().Add(time.Minute)) {
		t.Fatalf("unexpected cutoff %s", repo.cutoff)
	}
}

package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type sessionPrunerStub struct {
	calls atomic.Int32
	err   error
}

func (s *sessionPrunerStub) PruneExpiredSessions(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	return 3, s.err
}

type notificationPrunerStub struct {
	calls     atomic.Int32
	retention time.Duration
}

func (s *notificationPrunerStub) PruneRead(ctx context.Context, retention time.Duration) (int64, error) {
	s.calls.Add(1)
	s.retention = retention
	return 1, nil
}

func TestNewSweeper(t *testing.T) {
	t.Run("rejects invalid schedules", func(t *testing.T) {
		_, err := NewSweeper(Config{SessionSchedule: "sometimes"}, &sessionPrunerStub{}, nil, nil)
		if err == nil {
			t.Fatalf("expected error for an invalid schedule")
		}
	})

	t.Run("skips disabled jobs", func(t *testing.T) {
		s, err := NewSweeper(Config{SessionSchedule: "@every 1h"}, &sessionPrunerStub{}, nil, nil)
		if err != nil {
			t.Fatalf("NewSweeper: %v", err)
		}
		if n := len(s.cron.Entries()); n != 1 {
			t.Fatalf("expected one job, got %d", n)
		}
	})
}

func TestSweeperRunOnce(t *testing.T) {
	sessions := &sessionPrunerStub{}
	notifications := &notificationPrunerStub{}
	s, err := NewSweeper(Config{
		SessionSchedule:       "@every 15m",
		NotificationSchedule:  "@daily",
		NotificationRetention: 48 * time.Hour,
	}, sessions, notifications, nil)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sessions.calls.Load() != 1 || notifications.calls.Load() != 1 {
		t.Fatalf("expected each job once, got %d and %d", sessions.calls.Load(), notifications.calls.Load())
	}
	if notifications.retention != 48*time.Hour {
		t.Fatalf("unexpected retention %s", notifications.retention)
	}

	sessions.err = errors.New("database locked")
	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected the session error to surface")
	}
}

func TestSweeperRunsOnSchedule(t *testing.T) {
	sessions := &sessionPrunerStub{}
	s, err := NewSweeper(Config{SessionSchedule: "@every 1s"}, sessions, nil, nil)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for sessions.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sessions.calls.Load() == 0 {
		t.Fatalf("expected the scheduled job to run")
	}
}

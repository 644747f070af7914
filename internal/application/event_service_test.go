package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/office-calendar/internal/calendarfeed"
	"github.com/example/office-calendar/internal/lockset"
	"github.com/example/office-calendar/internal/participation"
)

var (
	alice = Principal{UserID: 1, Username: "alice"}
	bob   = Principal{UserID: 2, Username: "bob"}
	carol = Principal{UserID: 3, Username: "carol"}
	admin = Principal{UserID: 9, Username: "root", IsAdmin: true}
)

func newEventFixture(t *testing.T) (*EventService, *memStore) {
	t.Helper()
	store := newMemStore(
		User{ID: 1, Username: "alice", Email: "alice@example.com"},
		User{ID: 2, Username: "bob", Email: "bob@example.com"},
		User{ID: 3, Username: "carol", Email: "carol@example.com"},
		User{ID: 9, Username: "root", Email: "root@example.com", IsAdmin: true},
	)
	svc := NewEventService(store, store, store, EventServiceOptions{
		Notifier: store,
		Locks:    newTestLocks(),
		Location: testLocation,
		Now:      fixedNow,
		Feed:     calendarfeed.NewEncoder("calendar.test", "Test", fixedNow),
	})
	return svc, store
}

func mustCreateEvent(t *testing.T, svc *EventService, host Principal, title, date, start string, hours int, invitees ...int64) Event {
	t.Helper()
	event, err := svc.CreateEvent(context.Background(), CreateEventParams{
		Principal: host,
		Input: EventInput{
			Title:         title,
			Date:          date,
			StartTime:     start,
			DurationHours: hours,
			InviteeIDs:    invitees,
		},
	})
	if err != nil {
		t.Fatalf("create event %q: %v", title, err)
	}
	return event
}

func TestEventService_CreateEvent(t *testing.T) {
	t.Run("host record and invitations", func(t *testing.T) {
		svc, store := newEventFixture(t)

		event := mustCreateEvent(t, svc, alice, "Planning", "2026-03-02", "10 AM", 2, 2, 3, 2, 1)

		if got := store.status(event.ID, alice.UserID); got != participation.StatusHost {
			t.Fatalf("expected host status, got %q", got)
		}
		for _, id := range []int64{bob.UserID, carol.UserID} {
			if got := store.status(event.ID, id); got != participation.StatusInvited {
				t.Fatalf("expected user %d invited, got %q", id, got)
			}
		}
		if len(event.Participants) != 3 {
			t.Fatalf("expected 3 participants, got %+v", event.Participants)
		}
		if len(event.Attendees) != 1 || event.Attendees[0] != "alice" {
			t.Fatalf("expected only the host as attendee, got %v", event.Attendees)
		}
		if event.End.Sub(event.Start).Hours() != 2 {
			t.Fatalf("expected a two hour event, got %s to %s", event.Start, event.End)
		}
		if len(store.notificationsFor(bob.UserID, NotificationInvited)) != 1 {
			t.Fatalf("expected bob to be notified once")
		}
		if len(store.notificationsFor(alice.UserID, NotificationInvited)) != 0 {
			t.Fatalf("host must not be notified of their own invitation")
		}
	})

	t.Run("rejects invalid fields", func(t *testing.T) {
		svc, _ := newEventFixture(t)

		_, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: alice,
			Input:     EventInput{Title: "x", Date: "2026-13-40", StartTime: "25 o'clock", DurationHours: 1},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"date", "startTime"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("rejects out of range duration", func(t *testing.T) {
		svc, _ := newEventFixture(t)

		_, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: alice,
			Input:     EventInput{Title: "Long", Date: "2026-03-02", StartTime: "9 AM", DurationHours: 25},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["durationHours"]; !ok {
			t.Fatalf("expected durationHours error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("rejects unknown invitees", func(t *testing.T) {
		svc, _ := newEventFixture(t)

		_, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: alice,
			Input:     EventInput{Title: "Ghosts", Date: "2026-03-02", StartTime: "9 AM", DurationHours: 1, InviteeIDs: []int64{42}},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if !strings.Contains(vErr.FieldErrors["inviteeIds"], "42") {
			t.Fatalf("expected inviteeIds error naming 42, got %v", vErr.FieldErrors)
		}
	})
}

func TestEventService_Accept(t *testing.T) {
	ctx := context.Background()

	t.Run("second accept is a no-op", func(t *testing.T) {
		svc, store := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Review", "2026-03-02", "10 AM", 2, bob.UserID)

		first, err := svc.Accept(ctx, bob, event.ID)
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
		if !first.Changed || first.Status != participation.StatusGoing {
			t.Fatalf("expected change to Going, got %+v", first)
		}

		second, err := svc.Accept(ctx, bob, event.ID)
		if err != nil {
			t.Fatalf("second accept returned error: %v", err)
		}
		if second.Changed || second.Message != "already going" {
			t.Fatalf("expected benign no-op, got %+v", second)
		}
		if got := store.status(event.ID, bob.UserID); got != participation.StatusGoing {
			t.Fatalf("expected Going, got %q", got)
		}

		loaded, err := svc.GetEvent(ctx, bob, event.ID)
		if err != nil {
			t.Fatalf("get event: %v", err)
		}
		if strings.Join(loaded.Attendees, ",") != "alice,bob" {
			t.Fatalf("expected attendees alice,bob got %v", loaded.Attendees)
		}
		if n := len(store.notificationsFor(alice.UserID, NotificationAccepted)); n != 1 {
			t.Fatalf("expected one acceptance notification, got %d", n)
		}
	})

	t.Run("accept decline accept converges", func(t *testing.T) {
		svc, store := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "2 PM", 1, bob.UserID)

		if _, err := svc.Accept(ctx, bob, event.ID); err != nil {
			t.Fatalf("accept: %v", err)
		}
		if _, err := svc.Decline(ctx, bob, event.ID); err != nil {
			t.Fatalf("decline: %v", err)
		}
		if _, err := svc.Accept(ctx, bob, event.ID); err != nil {
			t.Fatalf("re-accept: %v", err)
		}

		if got := store.status(event.ID, bob.UserID); got != participation.StatusGoing {
			t.Fatalf("expected Going, got %q", got)
		}
		loaded, _ := svc.GetEvent(ctx, bob, event.ID)
		count := 0
		for _, name := range loaded.Attendees {
			if name == "bob" {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("expected bob listed once, got %v", loaded.Attendees)
		}
	})

	t.Run("overlapping going event is rejected", func(t *testing.T) {
		svc, store := newEventFixture(t)
		first := mustCreateEvent(t, svc, alice, "E1", "2026-03-02", "10 AM", 2, bob.UserID)
		second := mustCreateEvent(t, svc, carol, "E2", "2026-03-02", "11 AM", 2, bob.UserID)

		if _, err := svc.Accept(ctx, bob, first.ID); err != nil {
			t.Fatalf("accept first: %v", err)
		}

		_, err := svc.Accept(ctx, bob, second.ID)
		var cErr *ConflictError
		if !errors.As(err, &cErr) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if len(cErr.Conflicts) != 1 || cErr.Conflicts[0].ID != first.ID {
			t.Fatalf("expected conflict naming E1, got %+v", cErr.Conflicts)
		}
		if !cErr.Conflicts[0].Start.Equal(first.Start) || !cErr.Conflicts[0].End.Equal(first.End) {
			t.Fatalf("expected conflict to carry E1's times, got %+v", cErr.Conflicts[0])
		}
		if !strings.Contains(cErr.Error(), "E1") {
			t.Fatalf("expected message to name E1, got %q", cErr.Error())
		}
		if got := store.status(first.ID, bob.UserID); got != participation.StatusGoing {
			t.Fatalf("E1 must stay Going, got %q", got)
		}
		if got := store.status(second.ID, bob.UserID); got != participation.StatusInvited {
			t.Fatalf("E2 must stay Invited, got %q", got)
		}
	})

	t.Run("touching intervals do not conflict", func(t *testing.T) {
		svc, _ := newEventFixture(t)
		first := mustCreateEvent(t, svc, alice, "Morning", "2026-03-02", "10 AM", 2, bob.UserID)
		second := mustCreateEvent(t, svc, carol, "Noon", "2026-03-02", "12 PM", 1, bob.UserID)

		if _, err := svc.Accept(ctx, bob, first.ID); err != nil {
			t.Fatalf("accept first: %v", err)
		}
		if _, err := svc.Accept(ctx, bob, second.ID); err != nil {
			t.Fatalf("expected adjacent event to be accepted, got %v", err)
		}
	})

	t.Run("declined and invited events do not block", func(t *testing.T) {
		svc, _ := newEventFixture(t)
		first := mustCreateEvent(t, svc, alice, "E1", "2026-03-02", "10 AM", 2, bob.UserID)
		second := mustCreateEvent(t, svc, carol, "E2", "2026-03-02", "10 AM", 2, bob.UserID)

		if _, err := svc.Decline(ctx, bob, first.ID); err != nil {
			t.Fatalf("decline: %v", err)
		}
		if _, err := svc.Accept(ctx, bob, second.ID); err != nil {
			t.Fatalf("accept: %v", err)
		}
	})

	t.Run("hosting does not count as a commitment", func(t *testing.T) {
		svc, _ := newEventFixture(t)
		mustCreateEvent(t, svc, bob, "Own", "2026-03-02", "10 AM", 2)
		other := mustCreateEvent(t, svc, alice, "Other", "2026-03-02", "10 AM", 2, bob.UserID)

		if _, err := svc.Accept(ctx, bob, other.ID); err != nil {
			t.Fatalf("accept: %v", err)
		}
	})

	t.Run("requires an invitation", func(t *testing.T) {
		svc, store := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Private", "2026-03-02", "10 AM", 1)

		_, err := svc.Accept(ctx, carol, event.ID)
		if !errors.Is(err, ErrNoInvitation) {
			t.Fatalf("expected ErrNoInvitation, got %v", err)
		}
		if store.hasRecord(event.ID, carol.UserID) {
			t.Fatalf("no record must be created")
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		svc, _ := newEventFixture(t)

		if _, err := svc.Accept(ctx, bob, 404); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("concurrent accepts of overlapping events", func(t *testing.T) {
		svc, store := newEventFixture(t)
		first := mustCreateEvent(t, svc, alice, "E1", "2026-03-02", "10 AM", 2, bob.UserID)
		second := mustCreateEvent(t, svc, carol, "E2", "2026-03-02", "11 AM", 2, bob.UserID)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, id := range []int64{first.ID, second.ID} {
			wg.Add(1)
			go func(i int, id int64) {
				defer wg.Done()
				_, errs[i] = svc.Accept(ctx, bob, id)
			}(i, id)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			var cErr *ConflictError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &cErr):
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("expected exactly one accept to succeed, got %d (%v)", succeeded, errs)
		}
		going := 0
		for _, id := range []int64{first.ID, second.ID} {
			if store.status(id, bob.UserID) == participation.StatusGoing {
				going++
			}
		}
		if going != 1 {
			t.Fatalf("expected bob Going to exactly one event, got %d", going)
		}
	})
}

func TestEventService_Decline(t *testing.T) {
	ctx := context.Background()

	t.Run("without invitation creates nothing", func(t *testing.T) {
		svc, store := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Private", "2026-03-02", "10 AM", 1)

		_, err := svc.Decline(ctx, carol, event.ID)
		if !errors.Is(err, ErrNoInvitation) {
			t.Fatalf("expected ErrNoInvitation, got %v", err)
		}
		if store.hasRecord(event.ID, carol.UserID) {
			t.Fatalf("decline must not create a record")
		}
	})

	t.Run("host cannot decline", func(t *testing.T) {
		svc, store := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Mine", "2026-03-02", "10 AM", 1)

		_, err := svc.Decline(ctx, alice, event.ID)
		var sErr *StateError
		if !errors.As(err, &sErr) {
			t.Fatalf("expected StateError, got %v", err)
		}
		if got := store.status(event.ID, alice.UserID); got != participation.StatusHost {
			t.Fatalf("host record changed to %q", got)
		}
	})

	t.Run("second decline is a no-op", func(t *testing.T) {
		svc, _ := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID)

		if _, err := svc.Decline(ctx, bob, event.ID); err != nil {
			t.Fatalf("decline: %v", err)
		}
		result, err := svc.Decline(ctx, bob, event.ID)
		if err != nil {
			t.Fatalf("second decline: %v", err)
		}
		if result.Changed || result.Message != "already declined" {
			t.Fatalf("expected no-op, got %+v", result)
		}
	})

	t.Run("leave keeps a declined record", func(t *testing.T) {
		svc, store := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID)
		if _, err := svc.Accept(ctx, bob, event.ID); err != nil {
			t.Fatalf("accept: %v", err)
		}

		if _, err := svc.Leave(ctx, bob, event.ID); err != nil {
			t.Fatalf("leave: %v", err)
		}
		if got := store.status(event.ID, bob.UserID); got != participation.StatusDeclined {
			t.Fatalf("expected Declined, got %q", got)
		}
		loaded, _ := svc.GetEvent(ctx, alice, event.ID)
		if strings.Join(loaded.Attendees, ",") != "alice" {
			t.Fatalf("expected bob dropped from attendees, got %v", loaded.Attendees)
		}
		if n := len(store.notificationsFor(alice.UserID, NotificationDeclined)); n != 1 {
			t.Fatalf("expected one decline notification, got %d", n)
		}
	})
}

func TestEventService_SetAttendance(t *testing.T) {
	ctx := context.Background()

	t.Run("host marks an invitee going", func(t *testing.T) {
		svc, store := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID)

		updated, result, err := svc.SetAttendance(ctx, AttendanceParams{Principal: alice, EventID: event.ID, UserID: bob.UserID})
		if err != nil {
			t.Fatalf("set attendance: %v", err)
		}
		if !result.Changed || store.status(event.ID, bob.UserID) != participation.StatusGoing {
			t.Fatalf("expected bob Going, got %+v", result)
		}
		if strings.Join(updated.Attendees, ",") != "alice,bob" {
			t.Fatalf("expected updated attendees, got %v", updated.Attendees)
		}
		if len(store.notificationsFor(bob.UserID, NotificationEventModified)) != 1 {
			t.Fatalf("expected bob to be told about the change")
		}
	})

	t.Run("others cannot act for a user", func(t *testing.T) {
		svc, _ := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID, carol.UserID)

		_, _, err := svc.SetAttendance(ctx, AttendanceParams{Principal: carol, EventID: event.ID, UserID: bob.UserID})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("uninvited user cannot join directly", func(t *testing.T) {
		svc, _ := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1)

		_, _, err := svc.SetAttendance(ctx, AttendanceParams{Principal: carol, EventID: event.ID})
		if !errors.Is(err, ErrNoInvitation) {
			t.Fatalf("expected ErrNoInvitation, got %v", err)
		}
	})

	t.Run("direct join when allowed", func(t *testing.T) {
		svc, store := newEventFixture(t)
		svc.policy = participation.Policy{AllowDirectJoin: true}
		event := mustCreateEvent(t, svc, alice, "Open", "2026-03-02", "10 AM", 1)

		if _, _, err := svc.SetAttendance(ctx, AttendanceParams{Principal: carol, EventID: event.ID, Status: "going"}); err != nil {
			t.Fatalf("join: %v", err)
		}
		if store.status(event.ID, carol.UserID) != participation.StatusGoing {
			t.Fatalf("expected carol Going")
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		svc, _ := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID)

		_, _, err := svc.SetAttendance(ctx, AttendanceParams{Principal: bob, EventID: event.ID, Status: "Host"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestEventService_Invite(t *testing.T) {
	ctx := context.Background()

	t.Run("only the host or an admin may invite", func(t *testing.T) {
		svc, _ := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID)

		if _, err := svc.Invite(ctx, InviteParams{Principal: bob, EventID: event.ID, UserIDs: []int64{carol.UserID}}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := svc.Invite(ctx, InviteParams{Principal: admin, EventID: event.ID, UserIDs: []int64{carol.UserID}}); err != nil {
			t.Fatalf("admin invite: %v", err)
		}
	})

	t.Run("re-invites declined users and skips others", func(t *testing.T) {
		svc, store := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID, carol.UserID)
		if _, err := svc.Decline(ctx, bob, event.ID); err != nil {
			t.Fatalf("decline: %v", err)
		}
		if _, err := svc.Accept(ctx, carol, event.ID); err != nil {
			t.Fatalf("accept: %v", err)
		}

		results, err := svc.Invite(ctx, InviteParams{Principal: alice, EventID: event.ID, UserIDs: []int64{bob.UserID, carol.UserID, alice.UserID}})
		if err != nil {
			t.Fatalf("invite: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("expected three results, got %+v", results)
		}
		if !results[0].Changed || store.status(event.ID, bob.UserID) != participation.StatusInvited {
			t.Fatalf("expected bob invited again, got %+v", results[0])
		}
		if results[1].Changed || store.status(event.ID, carol.UserID) != participation.StatusGoing {
			t.Fatalf("expected carol untouched, got %+v", results[1])
		}
		if results[2].Changed || store.status(event.ID, alice.UserID) != participation.StatusHost {
			t.Fatalf("expected host untouched, got %+v", results[2])
		}
	})
}

func TestEventService_RemoveParticipant(t *testing.T) {
	ctx := context.Background()
	svc, store := newEventFixture(t)
	event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID)

	if _, err := svc.RemoveParticipant(ctx, bob, event.ID, bob.UserID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	var sErr *StateError
	if _, err := svc.RemoveParticipant(ctx, alice, event.ID, alice.UserID); !errors.As(err, &sErr) {
		t.Fatalf("expected StateError removing host, got %v", err)
	}

	if _, err := svc.RemoveParticipant(ctx, alice, event.ID, bob.UserID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if store.hasRecord(event.ID, bob.UserID) {
		t.Fatalf("expected bob's record to be deleted")
	}
	if _, err := svc.RemoveParticipant(ctx, alice, event.ID, bob.UserID); !errors.Is(err, ErrNoInvitation) {
		t.Fatalf("expected ErrNoInvitation on second removal, got %v", err)
	}
	if len(store.notificationsFor(bob.UserID, NotificationRemoved)) != 1 {
		t.Fatalf("expected a removal notification")
	}
}

func TestEventService_UpdateEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("moving into a participant's commitment is rejected", func(t *testing.T) {
		svc, store := newEventFixture(t)
		busy := mustCreateEvent(t, svc, carol, "Busy", "2026-03-02", "2 PM", 2, bob.UserID)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID)
		for _, id := range []int64{busy.ID, event.ID} {
			if _, err := svc.Accept(ctx, bob, id); err != nil {
				t.Fatalf("accept %d: %v", id, err)
			}
		}

		_, err := svc.UpdateEvent(ctx, UpdateEventParams{
			Principal: alice,
			EventID:   event.ID,
			Input: EventUpdateInput{EventInput: EventInput{
				Title: "Sync", Date: "2026-03-02", StartTime: "3 PM", DurationHours: 1,
			}},
		})
		var cErr *ConflictError
		if !errors.As(err, &cErr) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if !strings.Contains(cErr.Conflicts[0].Label, "bob") {
			t.Fatalf("expected conflict to name bob, got %+v", cErr.Conflicts)
		}
		stored, _ := store.GetEvent(ctx, event.ID)
		if stored.Start.Hour() != 10 {
			t.Fatalf("event must not move, starts at %s", stored.Start)
		}
	})

	t.Run("accept racing a move is checked against the new time", func(t *testing.T) {
		svc, store := newEventFixture(t)
		busy := mustCreateEvent(t, svc, carol, "Busy", "2026-03-02", "2 PM", 2, bob.UserID)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID)
		if _, err := svc.Accept(ctx, bob, busy.ID); err != nil {
			t.Fatalf("accept busy: %v", err)
		}

		accepted := make(chan error, 1)
		store.mu.Lock()
		store.onListParticipations = func() {
			go func() {
				_, err := svc.Accept(ctx, bob, event.ID)
				accepted <- err
			}()
		}
		store.mu.Unlock()

		if _, err := svc.UpdateEvent(ctx, UpdateEventParams{
			Principal: alice,
			EventID:   event.ID,
			Input: EventUpdateInput{EventInput: EventInput{
				Title: "Sync", Date: "2026-03-02", StartTime: "2 PM", DurationHours: 1,
			}},
		}); err != nil {
			t.Fatalf("update: %v", err)
		}

		var cErr *ConflictError
		if err := <-accepted; !errors.As(err, &cErr) {
			t.Fatalf("expected the concurrent accept to conflict, got %v", err)
		}
		if got := store.status(event.ID, bob.UserID); got != participation.StatusInvited {
			t.Fatalf("Sync must stay Invited, got %q", got)
		}
		if got := store.status(busy.ID, bob.UserID); got != participation.StatusGoing {
			t.Fatalf("Busy must stay Going, got %q", got)
		}
	})

	t.Run("removing a participant waits for their answer", func(t *testing.T) {
		svc, store := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID, carol.UserID)

		release := svc.locks.Acquire(lockset.UserScope(carol.UserID))
		done := make(chan error, 1)
		go func() {
			attendees := []int64{bob.UserID}
			_, err := svc.UpdateEvent(ctx, UpdateEventParams{
				Principal: alice,
				EventID:   event.ID,
				Input: EventUpdateInput{
					EventInput: EventInput{
						Title: "Sync", Date: "2026-03-02", StartTime: "10 AM", DurationHours: 1,
					},
					AttendeeIDs: &attendees,
				},
			})
			done <- err
		}()

		select {
		case err := <-done:
			t.Fatalf("update finished while carol's lock was held: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
		if got := store.status(event.ID, carol.UserID); got != participation.StatusInvited {
			t.Fatalf("carol must not be removed yet, got %q", got)
		}

		release()
		if err := <-done; err != nil {
			t.Fatalf("update: %v", err)
		}
		if store.hasRecord(event.ID, carol.UserID) {
			t.Fatalf("expected carol's record to be deleted")
		}
	})

	t.Run("edits the attendee list", func(t *testing.T) {
		svc, store := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID)
		attendees := []int64{carol.UserID}

		updated, err := svc.UpdateEvent(ctx, UpdateEventParams{
			Principal: alice,
			EventID:   event.ID,
			Input: EventUpdateInput{
				EventInput:  EventInput{Title: "Sync v2", Date: "2026-03-02", StartTime: "11 AM", DurationHours: 1},
				AttendeeIDs: &attendees,
			},
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Title != "Sync v2" || updated.Start.Hour() != 11 {
			t.Fatalf("unexpected event %+v", updated)
		}
		if store.hasRecord(event.ID, bob.UserID) {
			t.Fatalf("expected bob removed")
		}
		if store.status(event.ID, carol.UserID) != participation.StatusInvited {
			t.Fatalf("expected carol invited")
		}
		if store.status(event.ID, alice.UserID) != participation.StatusHost {
			t.Fatalf("host must survive attendee edits")
		}
		if len(store.notificationsFor(bob.UserID, NotificationRemoved)) != 1 {
			t.Fatalf("expected bob to be told he was removed")
		}
	})

	t.Run("requires host or admin", func(t *testing.T) {
		svc, _ := newEventFixture(t)
		event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID)

		_, err := svc.UpdateEvent(ctx, UpdateEventParams{
			Principal: bob,
			EventID:   event.ID,
			Input:     EventUpdateInput{EventInput: EventInput{Title: "Mine now", Date: "2026-03-02", StartTime: "10 AM", DurationHours: 1}},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestEventService_DeleteEvent(t *testing.T) {
	ctx := context.Background()
	svc, store := newEventFixture(t)
	event := mustCreateEvent(t, svc, alice, "Sync", "2026-03-02", "10 AM", 1, bob.UserID)

	if err := svc.DeleteEvent(ctx, bob, event.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.DeleteEvent(ctx, admin, event.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetEvent(ctx, alice, event.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	cancelled := store.notificationsFor(bob.UserID, NotificationEventDeleted)
	if len(cancelled) != 1 || cancelled[0].EventID != nil {
		t.Fatalf("expected a detached cancellation notice, got %+v", cancelled)
	}
}

func TestEventService_ListEvents(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEventFixture(t)
	monday := mustCreateEvent(t, svc, alice, "Monday", "2026-03-02", "10 AM", 1, bob.UserID)
	mustCreateEvent(t, svc, carol, "Tuesday", "2026-03-03", "10 AM", 1, bob.UserID)
	mustCreateEvent(t, svc, carol, "Wednesday", "2026-03-04", "10 AM", 1)
	if _, err := svc.Decline(ctx, bob, monday.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}

	mine, err := svc.ListEvents(ctx, ListEventsParams{Principal: bob, Mine: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].Title != "Tuesday" {
		t.Fatalf("expected only Tuesday for bob, got %+v", mine)
	}

	from := fixedNow().AddDate(0, 0, 2)
	to := from.AddDate(0, 0, 1)
	window, err := svc.ListEvents(ctx, ListEventsParams{Principal: bob, From: &from, To: &to})
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(window) != 1 || window[0].Title != "Tuesday" {
		t.Fatalf("expected Tuesday in window, got %+v", window)
	}

	if _, err := svc.ListEvents(ctx, ListEventsParams{Principal: bob, From: &to, To: &from}); err == nil {
		t.Fatalf("expected validation error for reversed window")
	}
}

func TestEventService_CalendarFeed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEventFixture(t)
	mustCreateEvent(t, svc, bob, "Hosted", "2026-03-02", "9 AM", 1)
	going := mustCreateEvent(t, svc, alice, "Going", "2026-03-03", "9 AM", 1, bob.UserID)
	mustCreateEvent(t, svc, alice, "Only invited", "2026-03-04", "9 AM", 1, bob.UserID)
	if _, err := svc.Accept(ctx, bob, going.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	feed, err := svc.CalendarFeed(ctx, bob)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if strings.Count(feed, "BEGIN:VEVENT") != 2 {
		t.Fatalf("expected two events in feed:\n%s", feed)
	}
	for _, want := range []string{"SUMMARY:Hosted", "SUMMARY:Going"} {
		if !strings.Contains(feed, want) {
			t.Fatalf("feed missing %q:\n%s", want, feed)
		}
	}
	if strings.Contains(feed, "Only invited") {
		t.Fatalf("feed must not contain events bob only was invited to")
	}
}

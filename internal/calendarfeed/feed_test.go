package calendarfeed

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
)

func TestEncoderEncode(t *testing.T) {
	now := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)
	enc := NewEncoder("calendar.example.com", "Team", func() time.Time { return now })

	start := time.Date(2024, time.May, 7, 14, 0, 0, 0, time.UTC)
	body := enc.Encode([]Entry{
		{
			ID:          42,
			Title:       "Design review",
			Description: "Quarterly review",
			Location:    "Room A",
			Start:       start,
			End:         start.Add(time.Hour),
			Attendees: []Attendee{
				{Name: "alice", Email: "alice@example.com", Status: AttendeeHost},
				{Name: "bob", Email: "bob@example.com", Status: AttendeeGoing},
				{Name: "carol", Email: "carol@example.com", Status: AttendeeDeclined},
			},
		},
		{ID: 43, Title: "Lunch", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour)},
	})

	cal, err := ics.ParseCalendar(strings.NewReader(body))
	if err != nil {
		t.Fatalf("generated calendar does not parse: %v", err)
	}

	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	first := events[0]
	if uid := first.GetProperty(ics.ComponentPropertyUniqueId); uid == nil || uid.Value != "event-42@calendar.example.com" {
		t.Fatalf("unexpected UID: %+v", uid)
	}
	if summary := first.GetProperty(ics.ComponentPropertySummary); summary == nil || summary.Value != "Design review" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if got := len(first.GetProperties(ics.ComponentPropertyAttendee)); got != 2 {
		t.Fatalf("expected 2 attendees, got %d", got)
	}
	if org := first.GetProperty(ics.ComponentPropertyOrganizer); org == nil || !strings.Contains(org.Value, "alice@example.com") {
		t.Fatalf("expected organizer alice, got %+v", org)
	}
	statuses := map[string]bool{}
	for _, attendee := range first.GetProperties(ics.ComponentPropertyAttendee) {
		for _, v := range attendee.ICalParameters["PARTSTAT"] {
			statuses[v] = true
		}
	}
	if !statuses["ACCEPTED"] || !statuses["DECLINED"] {
		t.Fatalf("expected accepted and declined statuses, got %v", statuses)
	}
}

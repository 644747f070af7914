// Package calendarfeed renders events as an iCalendar (RFC 5545) document.
package calendarfeed

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

const productID = "-//office-calendar//events//EN"

// AttendeeStatus mirrors the participation states that are exported.
type AttendeeStatus string

const (
	AttendeeHost     AttendeeStatus = "Host"
	AttendeeInvited  AttendeeStatus = "Invited"
	AttendeeGoing    AttendeeStatus = "Going"
	AttendeeDeclined AttendeeStatus = "Declined"
)

// Attendee is one participant of an exported event.
type Attendee struct {
	Name   string
	Email  string
	Status AttendeeStatus
}

// Entry is one exported event.
type Entry struct {
	ID          int64
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Attendees   []Attendee
}

// Encoder renders entries. Domain is used to build globally unique UIDs.
type Encoder struct {
	Domain string
	Name   string
	now    func() time.Time
}

// NewEncoder returns an Encoder for the given UID domain.
func NewEncoder(domain, name string, now func() time.Time) *Encoder {
	if strings.TrimSpace(domain) == "" {
		domain = "office-calendar.local"
	}
	if now == nil {
		now = time.Now
	}
	return &Encoder{Domain: domain, Name: name, now: now}
}

// Encode serializes entries as a PUBLISH calendar.
func (e *Encoder) Encode(entries []Entry) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if e.Name != "" {
		cal.SetXWRCalName(e.Name)
	}

	stamp := e.now().UTC()
	for _, entry := range entries {
		ev := cal.AddEvent(e.uid(entry.ID))
		ev.SetDtStampTime(stamp)
		if !entry.CreatedAt.IsZero() {
			ev.SetCreatedTime(entry.CreatedAt.UTC())
		}
		if !entry.UpdatedAt.IsZero() {
			ev.SetModifiedAt(entry.UpdatedAt.UTC())
		}
		ev.SetStartAt(entry.Start.UTC())
		ev.SetEndAt(entry.End.UTC())
		ev.SetSummary(entry.Title)
		if entry.Description != "" {
			ev.SetDescription(entry.Description)
		}
		if entry.Location != "" {
			ev.SetLocation(entry.Location)
		}

		for _, a := range entry.Attendees {
			if a.Email == "" {
				continue
			}
			address := "mailto:" + a.Email
			if a.Status == AttendeeHost {
				ev.SetOrganizer(address, ics.WithCN(a.Name))
				continue
			}
			ev.AddAttendee(address,
				ics.CalendarUserTypeIndividual,
				partStat(a.Status),
				ics.ParticipationRoleReqParticipant,
				ics.WithCN(a.Name),
			)
		}
	}

	return cal.Serialize()
}

func (e *Encoder) uid(id int64) string {
	return fmt.Sprintf("event-%d@%s", id, e.Domain)
}

func partStat(status AttendeeStatus) ics.ParticipationStatus {
	switch status {
	case AttendeeGoing:
		return ics.ParticipationStatusAccepted
	case AttendeeDeclined:
		return ics.ParticipationStatusDeclined
	default:
		return ics.ParticipationStatusNeedsAction
	}
}

package participation

import (
	"sort"
	"strings"
	"time"
)

// Record is a persisted participation as seen by the attendee view.
type Record struct {
	UserID    int64
	Username  string
	Status    Status
	UpdatedAt time.Time
}

// Attendees derives the display list for an event: the host first, then every
// Going participant ordered by when they joined. Each username appears once.
func Attendees(records []Record) []string {
	going := make([]Record, 0, len(records))
	var host *Record
	for i := range records {
		switch records[i].Status {
		case StatusHost:
			if host == nil {
				host = &records[i]
			}
		case StatusGoing:
			going = append(going, records[i])
		}
	}

	sort.SliceStable(going, func(i, j int) bool {
		if !going[i].UpdatedAt.Equal(going[j].UpdatedAt) {
			return going[i].UpdatedAt.Before(going[j].UpdatedAt)
		}
		return going[i].UserID < going[j].UserID
	})

	seen := make(map[int64]struct{}, len(going)+1)
	out := make([]string, 0, len(going)+1)
	if host != nil {
		seen[host.UserID] = struct{}{}
		out = append(out, host.Username)
	}
	for _, r := range going {
		if _, dup := seen[r.UserID]; dup {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r.Username)
	}
	return out
}

// FormatAttendees renders the list as the comma separated display string.
func FormatAttendees(names []string) string {
	return strings.Join(names, ", ")
}

func normalizeStatus(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

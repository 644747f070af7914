package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/office-calendar/internal/lockset"
	"github.com/example/office-calendar/internal/participation"
	"github.com/example/office-calendar/internal/persistence"
)

var testLocation = time.UTC

func fixedNow() time.Time {
	return time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
}

// memStore is an in-memory implementation of the event side repositories.
type memStore struct {
	mu             sync.Mutex
	nextEventID    int64
	users          map[int64]User
	events         map[int64]Event
	participations map[int64]map[int64]ParticipationRecord
	notifications  []Notification

	// listCalls counts ListEvents calls; used to observe conflict lookups.
	listCalls int
	// onListParticipations runs once, after the next ListParticipations read.
	onListParticipations func()
}

func newMemStore(users ...User) *memStore {
	s := &memStore{
		users:          make(map[int64]User),
		events:         make(map[int64]Event),
		participations: make(map[int64]map[int64]ParticipationRecord),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) CreateEvent(ctx context.Context, event Event, records []ParticipationRecord) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	event.ID = s.nextEventID
	event.Participants = nil
	event.Attendees = nil
	s.events[event.ID] = event
	s.participations[event.ID] = make(map[int64]ParticipationRecord)
	for _, r := range records {
		r.EventID = event.ID
		s.participations[event.ID][r.UserID] = r
	}
	return event, nil
}

func (s *memStore) GetEvent(ctx context.Context, id int64) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return event, nil
}

func (s *memStore) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; !ok {
		return Event{}, ErrNotFound
	}
	event.Participants = nil
	event.Attendees = nil
	s.events[event.ID] = event
	return event, nil
}

func (s *memStore) DeleteEvent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	delete(s.participations, id)
	return nil
}

func (s *memStore) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	var out []Event
	for _, e := range s.events {
		if filter.StartsBefore != nil && !e.Start.Before(*filter.StartsBefore) {
			continue
		}
		if filter.EndsAfter != nil && !e.End.After(*filter.EndsAfter) {
			continue
		}
		if filter.ParticipantID != 0 {
			r, ok := s.participations[e.ID][filter.ParticipantID]
			if !ok || !statusIn(r.Status, filter.Statuses) {
				continue
			}
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func statusIn(status participation.Status, statuses []participation.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *memStore) GetParticipation(ctx context.Context, eventID, userID int64) (ParticipationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.participations[eventID][userID]
	if !ok {
		return ParticipationRecord{}, ErrNotFound
	}
	return r, nil
}

func (s *memStore) ListParticipations(ctx context.Context, eventIDs ...int64) ([]ParticipationRecord, error) {
	var hook func()
	defer func() {
		if hook != nil {
			hook()
		}
	}()
	s.mu.Lock()
	defer s.mu.Unlock()
	hook, s.onListParticipations = s.onListParticipations, nil
	var out []ParticipationRecord
	for _, id := range eventIDs {
		for _, r := range s.participations[id] {
			u := s.users[r.UserID]
			r.Username = u.Username
			r.Email = u.Email
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventID != out[j].EventID {
			return out[i].EventID < out[j].EventID
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *memStore) SaveParticipation(ctx context.Context, record ParticipationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[record.EventID]; !ok {
		return ErrNotFound
	}
	if existing, ok := s.participations[record.EventID][record.UserID]; ok {
		record.CreatedAt = existing.CreatedAt
	}
	s.participations[record.EventID][record.UserID] = record
	return nil
}

func (s *memStore) DeleteParticipation(ctx context.Context, eventID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participations[eventID][userID]; !ok {
		return ErrNotFound
	}
	delete(s.participations[eventID], userID)
	return nil
}

func (s *memStore) MissingUserIDs(ctx context.Context, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []int64
	for _, id := range ids {
		if _, ok := s.users[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *memStore) Notify(ctx context.Context, notifications []Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, notifications...)
	return nil
}

func (s *memStore) status(eventID, userID int64) participation.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participations[eventID][userID].Status
}

func (s *memStore) hasRecord(eventID, userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.participations[eventID][userID]
	return ok
}

func (s *memStore) notificationsFor(userID int64, kind string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Notification
	for _, n := range s.notifications {
		if n.UserID == userID && n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// memRooms implements RoomRepository and BookingRepository.
type memRooms struct {
	mu            sync.Mutex
	rooms         map[int64]Room
	bookings      []Booking
	nextRoomID    int64
	nextBookingID int64

	createBookingsErr error
	// delay widens the window between the conflict check and the insert.
	delay time.Duration
}

func newMemRooms(rooms ...Room) *memRooms {
	m := &memRooms{rooms: make(map[int64]Room)}
	for _, r := range rooms {
		m.rooms[r.ID] = r
		if r.ID > m.nextRoomID {
			m.nextRoomID = r.ID
		}
	}
	return m
}

func (m *memRooms) CreateRoom(ctx context.Context, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.Name == room.Name {
			return Room{}, persistence.ErrDuplicate
		}
	}
	m.nextRoomID++
	room.ID = m.nextRoomID
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memRooms) GetRoom(ctx context.Context, id int64) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return r, nil
}

func (m *memRooms) UpdateRoom(ctx context.Context, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; !ok {
		return Room{}, ErrNotFound
	}
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memRooms) DeleteRoom(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return ErrNotFound
	}
	delete(m.rooms, id)
	return nil
}

func (m *memRooms) ListRooms(ctx context.Context) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRooms) CreateBookings(ctx context.Context, bookings []Booking) ([]Booking, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createBookingsErr != nil {
		return nil, m.createBookingsErr
	}
	out := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		m.nextBookingID++
		b.ID = m.nextBookingID
		out = append(out, b)
	}
	m.bookings = append(m.bookings, out...)
	return out, nil
}

func (m *memRooms) ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if filter.RoomID != 0 && b.RoomID != filter.RoomID {
			continue
		}
		if filter.UserID != 0 && b.UserID != filter.UserID {
			continue
		}
		if filter.Date != "" && b.Date != filter.Date {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *memRooms) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func newTestLocks() *lockset.Registry {
	locks, err := lockset.New(16)
	if err != nil {
		panic(err)
	}
	return locks
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/lockset"
	"github.com/example/office-calendar/internal/persistence"
	"github.com/example/office-calendar/internal/recurrence"
	"github.com/example/office-calendar/internal/scheduler"
)

// RoomRepository captures the persistence operations needed by the service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id int64) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	DeleteRoom(ctx context.Context, id int64) error
	ListRooms(ctx context.Context) ([]Room, error)
}

// BookingRepository stores room bookings. CreateBookings is all or nothing.
type BookingRepository interface {
	CreateBookings(ctx context.Context, bookings []Booking) ([]Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
}

// RoomService orchestrates validation, authorization, and persistence for rooms
// and their bookings.
type RoomService struct {
	rooms       RoomRepository
	bookings    BookingRepository
	locks       *lockset.Registry
	recurrence  *recurrence.Engine
	location    *time.Location
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, bookings BookingRepository, locks *lockset.Registry, loc *time.Location, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, bookings, locks, loc, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
// idGenerator names booking series.
func NewRoomServiceWithLogger(rooms RoomRepository, bookings BookingRepository, locks *lockset.Registry, loc *time.Location, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if loc == nil {
		loc = time.UTC
	}
	if locks == nil {
		locks, _ = lockset.New(lockset.DefaultIdleCapacity)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{
		rooms:       rooms,
		bookings:    bookings,
		locks:       locks,
		recurrence:  recurrence.NewEngine(loc),
		location:    loc,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room for administrators.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to create room", err)
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	input := normalizeRoomInput(params.Input)
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	room = Room{
		Name:      input.Name,
		Location:  input.Location,
		Capacity:  input.Capacity,
		CreatedAt: s.now(),
	}
	room.UpdatedAt = room.CreatedAt

	if s.rooms == nil {
		return
	}

	var persisted Room
	persisted, err = s.rooms.CreateRoom(ctx, room)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	room = persisted
	return
}

// UpdateRoom validates input and updates an existing room for administrators.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to update room", err)
			return
		}
		logger.InfoContext(ctx, "room updated")
	}()

	input := normalizeRoomInput(params.Input)
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	existing.Name = input.Name
	existing.Location = input.Location
	existing.Capacity = input.Capacity
	existing.UpdatedAt = s.now()

	room, err = s.rooms.UpdateRoom(ctx, existing)
	if err != nil {
		err = mapRoomRepoError(err)
	}
	return
}

// DeleteRoom removes a room and its bookings for administrators.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID int64) (err error) {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to delete room", err)
			return
		}
		logger.InfoContext(ctx, "room deleted")
	}()

	if err = s.rooms.DeleteRoom(ctx, roomID); err != nil {
		err = mapRoomRepoError(err)
	}
	return
}

// GetRoom returns a single room.
func (s *RoomService) GetRoom(ctx context.Context, principal Principal, roomID int64) (Room, error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return Room{}, fmt.Errorf("room repository not configured")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal) ([]Room, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return nil, nil
	}
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, mapRoomRepoError(err)
	}
	return rooms, nil
}

// BookRoom reserves a room, optionally as a repeating series. Every occurrence
// is checked against the bookings of the same room on the same date while the
// room/date scopes are locked, and the whole series is stored atomically.
func (s *RoomService) BookRoom(ctx context.Context, params BookRoomParams) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil || s.bookings == nil {
		err = fmt.Errorf("room repositories not configured")
		return
	}

	input := params.Input
	logger := s.loggerWith(ctx, "BookRoom",
		"principal_id", params.Principal.UserID,
		"room_id", input.RoomID,
		"date", input.Date,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "room booking failed", err)
			return
		}
		logger.With("booking_count", len(bookings)).InfoContext(ctx, "room booked")
	}()

	var occurrences []scheduler.Interval
	occurrences, err = s.parseBooking(input)
	if err != nil {
		return
	}

	var room Room
	if room, err = s.rooms.GetRoom(ctx, input.RoomID); err != nil {
		err = mapRoomRepoError(err)
		return
	}

	keys := make([]string, 0, len(occurrences))
	for _, occ := range occurrences {
		keys = append(keys, lockset.RoomScope(room.ID, scheduler.DateKey(occ.Start)))
	}
	release := s.locks.Acquire(keys...)
	defer release()

	if err = s.checkRoomConflicts(ctx, room, occurrences); err != nil {
		return
	}

	var seriesID *string
	if len(occurrences) > 1 {
		if id := s.idGenerator(); id != "" {
			seriesID = &id
		}
	}
	var purpose *string
	if trimmed := strings.TrimSpace(input.Purpose); trimmed != "" {
		purpose = &trimmed
	}

	now := s.now()
	pending := make([]Booking, 0, len(occurrences))
	for _, occ := range occurrences {
		pending = append(pending, Booking{
			RoomID:    room.ID,
			UserID:    params.Principal.UserID,
			Date:      scheduler.DateKey(occ.Start),
			Start:     occ.Start,
			End:       occ.End,
			Purpose:   purpose,
			SeriesID:  seriesID,
			CreatedAt: now,
		})
	}

	bookings, err = s.bookings.CreateBookings(ctx, pending)
	if err != nil {
		if errors.Is(err, persistence.ErrOverlap) {
			err = &ConflictError{Scope: fmt.Sprintf("room %s", room.Name)}
			return
		}
		err = mapRoomRepoError(err)
		return
	}
	for i := range bookings {
		bookings[i] = s.localizeBooking(bookings[i])
	}
	return
}

// ListBookings returns the bookings of a room, optionally restricted to one date.
func (s *RoomService) ListBookings(ctx context.Context, params ListBookingsParams) ([]Booking, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil || s.bookings == nil {
		return nil, fmt.Errorf("room repositories not configured")
	}

	filter := BookingFilter{RoomID: params.RoomID}
	if strings.TrimSpace(params.Date) != "" {
		day, err := scheduler.ParseDate(params.Date, s.location)
		if err != nil {
			vErr := &ValidationError{}
			vErr.add("date", "date must be yyyy-MM-dd or dd/MM/yyyy")
			return nil, vErr
		}
		filter.Date = scheduler.DateKey(day)
	}

	if _, err := s.rooms.GetRoom(ctx, params.RoomID); err != nil {
		return nil, mapRoomRepoError(err)
	}

	bookings, err := s.bookings.ListBookings(ctx, filter)
	if err != nil {
		return nil, mapRoomRepoError(err)
	}
	for i := range bookings {
		bookings[i] = s.localizeBooking(bookings[i])
	}
	return bookings, nil
}

// ListMyBookings returns the principal's own bookings.
func (s *RoomService) ListMyBookings(ctx context.Context, principal Principal) ([]Booking, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}
	if s.bookings == nil {
		return nil, fmt.Errorf("booking repository not configured")
	}
	bookings, err := s.bookings.ListBookings(ctx, BookingFilter{UserID: principal.UserID})
	if err != nil {
		return nil, mapRoomRepoError(err)
	}
	for i := range bookings {
		bookings[i] = s.localizeBooking(bookings[i])
	}
	return bookings, nil
}

// parseBooking validates the request and expands it into its occurrences.
func (s *RoomService) parseBooking(input BookingInput) ([]scheduler.Interval, error) {
	vErr := validateStruct(input)
	if vErr.HasErrors() {
		return nil, vErr
	}

	first, err := parseIntervalFields(input.Date, input.StartTime, input.DurationHours, s.location)
	if err != nil {
		return nil, err
	}
	if input.Repeat == nil || input.Repeat.Count <= 1 {
		return []scheduler.Interval{first}, nil
	}

	rule := recurrence.Rule{Count: input.Repeat.Count}
	if rule.Frequency, err = recurrence.ParseFrequency(input.Repeat.Frequency); err != nil {
		vErr.add("repeat.frequency", "frequency must be daily or weekly")
		return nil, vErr
	}
	for _, day := range input.Repeat.Weekdays {
		weekday, ok := parseWeekday(day)
		if !ok {
			vErr.add("repeat.weekdays", fmt.Sprintf("unknown weekday %q", day))
			return nil, vErr
		}
		rule.Weekdays = append(rule.Weekdays, weekday)
	}
	if input.Repeat.Until != "" {
		last, parseErr := scheduler.ParseDate(input.Repeat.Until, s.location)
		if parseErr != nil || scheduler.DateKey(last) < scheduler.DateKey(first.Start) {
			vErr.add("repeat.until", "until must be a date on or after the first booking")
			return nil, vErr
		}
		until := last.AddDate(0, 0, 1).Add(-time.Second)
		rule.Until = &until
	}

	occurrences, err := s.recurrence.Expand(rule, first.Start, first.End)
	if err != nil {
		vErr.add("repeat", err.Error())
		return nil, vErr
	}
	intervals := make([]scheduler.Interval, 0, len(occurrences))
	for _, occ := range occurrences {
		intervals = append(intervals, scheduler.Interval{Start: occ.Start, End: occ.End})
	}
	return intervals, nil
}

func (s *RoomService) checkRoomConflicts(ctx context.Context, room Room, occurrences []scheduler.Interval) error {
	conflictErr := &ConflictError{}
	accepted := make(map[string][]scheduler.Commitment)
	existingByDate := make(map[string][]scheduler.Commitment)

	for _, occ := range occurrences {
		dateKey := scheduler.DateKey(occ.Start)
		existing, ok := existingByDate[dateKey]
		if !ok {
			stored, err := s.bookings.ListBookings(ctx, BookingFilter{RoomID: room.ID, Date: dateKey})
			if err != nil {
				return mapRoomRepoError(err)
			}
			existing = make([]scheduler.Commitment, 0, len(stored))
			for _, b := range stored {
				b = s.localizeBooking(b)
				existing = append(existing, scheduler.Commitment{
					ID:       b.ID,
					Label:    fmt.Sprintf("booking %d", b.ID),
					Interval: scheduler.Interval{Start: b.Start, End: b.End},
				})
			}
			existingByDate[dateKey] = existing
		}

		source := func(context.Context) ([]scheduler.Commitment, error) {
			return append(append([]scheduler.Commitment(nil), existing...), accepted[dateKey]...), nil
		}
		clashes, err := scheduler.Check(ctx, source, occ)
		if err != nil {
			return err
		}
		if len(clashes) > 0 {
			if conflictErr.Scope == "" {
				conflictErr.Scope = fmt.Sprintf("room %s on %s", room.Name, dateKey)
			}
			for _, c := range clashes {
				conflictErr.Conflicts = append(conflictErr.Conflicts, Conflict{
					Kind:  "booking",
					ID:    c.ID,
					Label: c.Label,
					Start: c.Interval.Start,
					End:   c.Interval.End,
				})
			}
			continue
		}
		accepted[dateKey] = append(accepted[dateKey], scheduler.Commitment{Label: "this series", Interval: occ})
	}

	if len(conflictErr.Conflicts) > 0 {
		return conflictErr
	}
	return nil
}

func (s *RoomService) localizeBooking(b Booking) Booking {
	b.Start = b.Start.In(s.location)
	b.End = b.End.In(s.location)
	return b
}

// parseIntervalFields parses the date/startTime/durationHours triple shared by
// bookings and events, reporting failures per field.
func parseIntervalFields(date, startTime string, hours int, loc *time.Location) (scheduler.Interval, error) {
	vErr := &ValidationError{}
	day, err := scheduler.ParseDate(date, loc)
	if err != nil {
		vErr.add("date", "date must be yyyy-MM-dd or dd/MM/yyyy")
	}
	offset, err := scheduler.ParseTimeOfDay(startTime)
	if err != nil {
		vErr.add("startTime", "startTime must be a time of day such as 9 AM or 14:00")
	}
	if vErr.HasErrors() {
		return scheduler.Interval{}, vErr
	}
	interval, err := scheduler.NewInterval(day, offset, hours)
	if err != nil {
		vErr.add("durationHours", fmt.Sprintf("durationHours must be between %d and %d", scheduler.MinDurationHours, scheduler.MaxDurationHours))
		return scheduler.Interval{}, vErr
	}
	return interval, nil
}

func parseWeekday(value string) (time.Weekday, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "MO":
		return time.Monday, true
	case "TU":
		return time.Tuesday, true
	case "WE":
		return time.Wednesday, true
	case "TH":
		return time.Thursday, true
	case "FR":
		return time.Friday, true
	case "SA":
		return time.Saturday, true
	case "SU":
		return time.Sunday, true
	}
	return time.Sunday, false
}

func normalizeRoomInput(input RoomInput) RoomInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Location = strings.TrimSpace(input.Location)
	return input
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		vErr := &ValidationError{}
		vErr.add("name", "a room with this name already exists")
		return fmt.Errorf("%w: %w", ErrAlreadyExists, vErr)
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("capacity", "capacity must be positive")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return ErrNotFound
	}
	return mapRepoError(err)
}

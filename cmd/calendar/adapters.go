package main

import (
	"context"
	"errors"
	"time"

	"github.com/example/office-calendar/internal/application"
	"github.com/example/office-calendar/internal/participation"
	"github.com/example/office-calendar/internal/persistence"
	"github.com/example/office-calendar/internal/persistence/sqlite"
)

// newRepositories adapts the SQLite store to the application ports.
func newRepositories(store *sqlite.Store) application.Repositories {
	return application.Repositories{
		Credentials:    newCredentialStoreAdapter(store.Users),
		Sessions:       newSessionRepositoryAdapter(store.Sessions),
		Users:          newUserRepositoryAdapter(store.Users),
		Directory:      newUserDirectoryAdapter(store.Users),
		Rooms:          newRoomRepositoryAdapter(store.Rooms),
		Bookings:       newBookingRepositoryAdapter(store.Bookings),
		Events:         newEventRepositoryAdapter(store.Events),
		Participations: newParticipationRepositoryAdapter(store.Participations),
		Notifications:  newNotificationRepositoryAdapter(store.Notifications),
	}
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	created, err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash))
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(created), nil
}

func (a *credentialStoreAdapter) CountUsers(ctx context.Context) (int, error) {
	return a.repo.CountUsers(ctx)
}

func (a *credentialStoreAdapter) GetUserCredentialsByLogin(ctx context.Context, login string) (application.UserCredentials, error) {
	model, err := a.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{User: toApplicationUser(model), PasswordHash: model.PasswordHash}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id int64) (application.User, error) {
	model, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(model), nil
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id int64) (application.User, error) {
	model, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(model), nil
}

// UpdateUser keeps the stored password hash, which the application layer
// never sees.
func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, current.PasswordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id int64) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type userDirectoryAdapter struct {
	repo persistence.UserRepository
}

func newUserDirectoryAdapter(repo persistence.UserRepository) *userDirectoryAdapter {
	return &userDirectoryAdapter{repo: repo}
}

func (a *userDirectoryAdapter) MissingUserIDs(ctx context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		if _, err := a.repo.GetUser(ctx, id); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				missing = append(missing, id)
				continue
			}
			return nil, err
		}
	}
	return missing, nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	created, err := a.repo.CreateSession(ctx, persistence.Session(session))
	if err != nil {
		return application.Session{}, err
	}
	return application.Session(created), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	model, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return application.Session(model), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	model, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return application.Session(model), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	created, err := a.repo.CreateRoom(ctx, persistence.Room(room))
	if err != nil {
		return application.Room{}, err
	}
	return application.Room(created), nil
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id int64) (application.Room, error) {
	model, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return application.Room(model), nil
}

func (a *roomRepositoryAdapter) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, persistence.Room(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) DeleteRoom(ctx context.Context, id int64) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, application.Room(model))
	}
	return rooms, nil
}

type bookingRepositoryAdapter struct {
	repo persistence.BookingRepository
}

func newBookingRepositoryAdapter(repo persistence.BookingRepository) *bookingRepositoryAdapter {
	return &bookingRepositoryAdapter{repo: repo}
}

func (a *bookingRepositoryAdapter) CreateBookings(ctx context.Context, bookings []application.Booking) ([]application.Booking, error) {
	models := make([]persistence.RoomBooking, 0, len(bookings))
	for _, b := range bookings {
		models = append(models, toPersistenceBooking(b))
	}
	created, err := a.repo.CreateBookings(ctx, models)
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(created), nil
}

func (a *bookingRepositoryAdapter) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, persistence.BookingFilter{
		RoomID:      filter.RoomID,
		UserID:      filter.UserID,
		BookingDate: filter.Date,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event, participants []application.ParticipationRecord) (application.Event, error) {
	records := make([]persistence.Participation, 0, len(participants))
	for _, p := range participants {
		records = append(records, toPersistenceParticipation(p))
	}
	created, err := a.repo.CreateEvent(ctx, toPersistenceEvent(event), records)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(created), nil
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id int64) (application.Event, error) {
	model, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(model), nil
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, id int64) error {
	return a.repo.DeleteEvent(ctx, id)
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, filter application.EventFilter) ([]application.Event, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		StartsBefore:  filter.StartsBefore,
		EndsAfter:     filter.EndsAfter,
		ParticipantID: filter.ParticipantID,
		Statuses:      statuses,
	})
	if err != nil {
		return nil, err
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events, nil
}

type participationRepositoryAdapter struct {
	repo persistence.ParticipationRepository
}

func newParticipationRepositoryAdapter(repo persistence.ParticipationRepository) *participationRepositoryAdapter {
	return &participationRepositoryAdapter{repo: repo}
}

func (a *participationRepositoryAdapter) GetParticipation(ctx context.Context, eventID, userID int64) (application.ParticipationRecord, error) {
	model, err := a.repo.GetParticipation(ctx, eventID, userID)
	if err != nil {
		return application.ParticipationRecord{}, err
	}
	return toApplicationParticipation(model), nil
}

func (a *participationRepositoryAdapter) ListParticipations(ctx context.Context, eventIDs ...int64) ([]application.ParticipationRecord, error) {
	models, err := a.repo.ListParticipations(ctx, eventIDs...)
	if err != nil {
		return nil, err
	}
	records := make([]application.ParticipationRecord, 0, len(models))
	for _, model := range models {
		records = append(records, toApplicationParticipation(model))
	}
	return records, nil
}

func (a *participationRepositoryAdapter) SaveParticipation(ctx context.Context, record application.ParticipationRecord) error {
	return a.repo.UpsertParticipation(ctx, toPersistenceParticipation(record))
}

func (a *participationRepositoryAdapter) DeleteParticipation(ctx context.Context, eventID, userID int64) error {
	return a.repo.DeleteParticipation(ctx, eventID, userID)
}

type notificationRepositoryAdapter struct {
	repo persistence.NotificationRepository
}

func newNotificationRepositoryAdapter(repo persistence.NotificationRepository) *notificationRepositoryAdapter {
	return &notificationRepositoryAdapter{repo: repo}
}

func (a *notificationRepositoryAdapter) CreateNotifications(ctx context.Context, notifications []application.Notification) error {
	models := make([]persistence.Notification, 0, len(notifications))
	for _, n := range notifications {
		models = append(models, persistence.Notification(n))
	}
	return a.repo.CreateNotifications(ctx, models)
}

func (a *notificationRepositoryAdapter) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]application.Notification, error) {
	models, err := a.repo.ListNotifications(ctx, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	out := make([]application.Notification, 0, len(models))
	for _, model := range models {
		out = append(out, application.Notification(model))
	}
	return out, nil
}

func (a *notificationRepositoryAdapter) MarkRead(ctx context.Context, userID, id int64, readAt time.Time) error {
	return a.repo.MarkRead(ctx, userID, id, readAt)
}

func (a *notificationRepositoryAdapter) MarkAllRead(ctx context.Context, userID int64, readAt time.Time) (int64, error) {
	return a.repo.MarkAllRead(ctx, userID, readAt)
}

func (a *notificationRepositoryAdapter) DeleteReadBefore(ctx context.Context, reference time.Time) (int64, error) {
	return a.repo.DeleteReadBefore(ctx, reference)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Username:    model.Username,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		IsAdmin:     model.IsAdmin,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		IsAdmin:      user.IsAdmin,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toPersistenceBooking(b application.Booking) persistence.RoomBooking {
	return persistence.RoomBooking{
		ID:          b.ID,
		RoomID:      b.RoomID,
		UserID:      b.UserID,
		BookingDate: b.Date,
		StartsAt:    b.Start,
		EndsAt:      b.End,
		Purpose:     b.Purpose,
		SeriesID:    b.SeriesID,
		CreatedAt:   b.CreatedAt,
	}
}

func toApplicationBookings(models []persistence.RoomBooking) []application.Booking {
	out := make([]application.Booking, 0, len(models))
	for _, model := range models {
		out = append(out, application.Booking{
			ID:        model.ID,
			RoomID:    model.RoomID,
			UserID:    model.UserID,
			Date:      model.BookingDate,
			Start:     model.StartsAt,
			End:       model.EndsAt,
			Purpose:   model.Purpose,
			SeriesID:  model.SeriesID,
			CreatedAt: model.CreatedAt,
		})
	}
	return out
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:            event.ID,
		Title:         event.Title,
		Description:   event.Description,
		StartsAt:      event.Start,
		DurationHours: event.DurationHours,
		HostLabel:     event.HostLabel,
		Location:      event.Location,
		CreatorID:     event.CreatorID,
		CreatedAt:     event.CreatedAt,
		UpdatedAt:     event.UpdatedAt,
	}
}

func toApplicationEvent(model persistence.Event) application.Event {
	return application.Event{
		ID:            model.ID,
		Title:         model.Title,
		Description:   model.Description,
		Start:         model.StartsAt,
		End:           model.StartsAt.Add(time.Duration(model.DurationHours) * time.Hour),
		DurationHours: model.DurationHours,
		HostLabel:     model.HostLabel,
		Location:      model.Location,
		CreatorID:     model.CreatorID,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

func toPersistenceParticipation(record application.ParticipationRecord) persistence.Participation {
	return persistence.Participation{
		EventID:   record.EventID,
		UserID:    record.UserID,
		Status:    string(record.Status),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func toApplicationParticipation(model persistence.Participation) application.ParticipationRecord {
	return application.ParticipationRecord{
		EventID:   model.EventID,
		UserID:    model.UserID,
		Status:    participation.Status(model.Status),
		Username:  model.Username,
		Email:     model.Email,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/application"
	"github.com/example/office-calendar/internal/participation"
	"github.com/example/office-calendar/internal/scheduler"
)

type eventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	GetEvent(ctx context.Context, principal application.Principal, eventID int64) (application.Event, error)
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, eventID int64) error
	CalendarFeed(ctx context.Context, principal application.Principal) (string, error)

	Invite(ctx context.Context, params application.InviteParams) ([]application.ParticipationResult, error)
	Accept(ctx context.Context, principal application.Principal, eventID int64) (application.ParticipationResult, error)
	Decline(ctx context.Context, principal application.Principal, eventID int64) (application.ParticipationResult, error)
	Leave(ctx context.Context, principal application.Principal, eventID int64) (application.ParticipationResult, error)
	SetAttendance(ctx context.Context, params application.AttendanceParams) (application.Event, application.ParticipationResult, error)
	RemoveParticipant(ctx context.Context, principal application.Principal, eventID, userID int64) (application.ParticipationResult, error)
	ListParticipants(ctx context.Context, principal application.Principal, eventID int64) ([]application.Participant, error)
}

// EventHandler serves events and the participation lifecycle.
type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
	location  *time.Location
}

// NewEventHandler builds an EventHandler. loc interprets date-only query
// parameters and formats wall clock fields.
func NewEventHandler(service eventService, loc *time.Location, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	if loc == nil {
		loc = time.UTC
	}
	return &EventHandler{service: service, responder: newResponder(base), logger: base, location: loc}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req application.EventInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	event, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{
		Principal: principal,
		Input:     req,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "event creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event created", "event_id", event.ID, "invitees", len(event.Participants)-1)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, h.toEventDTO(event))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.GetEvent(r.Context(), principal, eventID)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "event_id", eventID).WarnContext(r.Context(), "event lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.toEventDTO(event))
}

// List returns events overlapping the optional from/to window. mine=true
// restricts the result to the caller's events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	params := application.ListEventsParams{Principal: principal}
	vErr := &application.ValidationError{FieldErrors: map[string]string{}}
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		from, err := h.parseBound(raw, false)
		if err != nil {
			vErr.FieldErrors["from"] = err.Error()
		} else {
			params.From = &from
		}
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		to, err := h.parseBound(raw, true)
		if err != nil {
			vErr.FieldErrors["to"] = err.Error()
		} else {
			params.To = &to
		}
	}
	if raw := strings.TrimSpace(query.Get("mine")); raw != "" {
		mine, err := strconv.ParseBool(raw)
		if err != nil {
			vErr.FieldErrors["mine"] = "mine must be true or false"
		}
		params.Mine = mine
	}
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	logger := h.log(r.Context(), "List", "principal_id", principal.UserID, "mine", params.Mine)
	events, err := h.service.ListEvents(r.Context(), params)
	if err != nil {
		logger.WarnContext(r.Context(), "event list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.DebugContext(r.Context(), "events listed", "result_count", len(events))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.toEventDTOs(events))
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req application.EventUpdateInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "event_id", eventID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "event_id", eventID)

	event, err := h.service.UpdateEvent(r.Context(), application.UpdateEventParams{
		Principal: principal,
		EventID:   eventID,
		Input:     req,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "event update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.toEventDTO(event))
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "event_id", eventID)

	if err := h.service.DeleteEvent(r.Context(), principal, eventID); err != nil {
		logger.WarnContext(r.Context(), "event delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) Invite(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Invite", "principal_id", principal.UserID, "event_id", eventID, "requested", len(req.UserIDs))

	results, err := h.service.Invite(r.Context(), application.InviteParams{
		Principal: principal,
		EventID:   eventID,
		UserIDs:   req.UserIDs,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "invite failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	participants, err := h.service.ListParticipants(r.Context(), principal, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "users invited", "changed", countChanged(results))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, inviteResponse{
		Results:      results,
		Participants: participants,
	})
}

func (h *EventHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, "Accept", func(ctx context.Context, p application.Principal, id int64) (application.ParticipationResult, error) {
		return h.service.Accept(ctx, p, id)
	})
}

func (h *EventHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, "Decline", func(ctx context.Context, p application.Principal, id int64) (application.ParticipationResult, error) {
		return h.service.Decline(ctx, p, id)
	})
}

func (h *EventHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, "Leave", func(ctx context.Context, p application.Principal, id int64) (application.ParticipationResult, error) {
		return h.service.Leave(ctx, p, id)
	})
}

func (h *EventHandler) answer(w http.ResponseWriter, r *http.Request, operation string, call func(context.Context, application.Principal, int64) (application.ParticipationResult, error)) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "event_id", eventID)

	result, err := call(r.Context(), principal, eventID)
	if err != nil {
		logger.WarnContext(r.Context(), "participation change rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !result.Changed {
		logger.InfoContext(r.Context(), "participation unchanged", "reason", result.Message)
		h.responder.writeUnchanged(r.Context(), w, result)
		return
	}

	logger.InfoContext(r.Context(), "participation changed", "status", result.Status)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, answerResponse{
		Message: result.Message,
		Status:  result.Status,
	})
}

// Attendance sets the attendance of the caller, or of another user when the
// caller manages the event.
func (h *EventHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req attendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if req.EventID <= 0 {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
			FieldErrors: map[string]string{"eventId": "eventId is required"},
		})
		return
	}

	logger := h.log(r.Context(), "Attendance", "principal_id", principal.UserID, "event_id", req.EventID, "user_id", req.UserID)

	event, result, err := h.service.SetAttendance(r.Context(), application.AttendanceParams{
		Principal: principal,
		EventID:   req.EventID,
		UserID:    req.UserID,
		Status:    req.Status,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "attendance change rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !result.Changed {
		h.responder.writeUnchanged(r.Context(), w, result)
		return
	}

	logger.InfoContext(r.Context(), "attendance changed", "status", result.Status)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.toEventDTO(event))
}

func (h *EventHandler) Participants(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	participants, err := h.service.ListParticipants(r.Context(), principal, eventID)
	if err != nil {
		h.log(r.Context(), "Participants", "principal_id", principal.UserID, "event_id", eventID).WarnContext(r.Context(), "participant list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, participants)
}

func (h *EventHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := pathID(r, "id")
	userID, userOK := pathID(r, "userId")
	if !ok || !userOK {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "RemoveParticipant", "principal_id", principal.UserID, "event_id", eventID, "user_id", userID)

	if _, err := h.service.RemoveParticipant(r.Context(), principal, eventID, userID); err != nil {
		logger.WarnContext(r.Context(), "participant removal failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "participant removed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Calendar serves the caller's hosted and attended events as text/calendar.
func (h *EventHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	feed, err := h.service.CalendarFeed(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Calendar", "principal_id", principal.UserID).ErrorContext(r.Context(), "calendar feed failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(feed))
}

// parseBound accepts RFC 3339 timestamps or calendar dates. A date used as an
// upper bound covers the whole day.
func (h *EventHandler) parseBound(raw string, upper bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := scheduler.ParseDate(raw, h.location)
	if err != nil {
		return time.Time{}, errInvalidBound
	}
	if upper {
		day = day.AddDate(0, 0, 1)
	}
	return day, nil
}

var errInvalidBound = errors.New("must be an RFC 3339 timestamp or yyyy-MM-dd date")

type inviteRequest struct {
	UserIDs []int64 `json:"userIds"`
}

type inviteResponse struct {
	Results      []application.ParticipationResult `json:"results"`
	Participants []application.Participant         `json:"participants"`
}

type answerResponse struct {
	Message string               `json:"message"`
	Status  participation.Status `json:"status"`
}

type attendanceRequest struct {
	EventID int64  `json:"eventId"`
	UserID  int64  `json:"userId"`
	Status  string `json:"status"`
}

type eventDTO struct {
	ID               int64                     `json:"id"`
	Title            string                    `json:"title"`
	Description      string                    `json:"description"`
	Date             string                    `json:"date"`
	StartTime        string                    `json:"startTime"`
	EndTime          string                    `json:"endTime"`
	Start            string                    `json:"start"`
	End              string                    `json:"end"`
	DurationHours    int                       `json:"durationHours"`
	HostLabel        string                    `json:"hostLabel"`
	Location         string                    `json:"location"`
	CreatorID        int64                     `json:"creatorId"`
	Attendees        []string                  `json:"attendees"`
	AttendeesDisplay string                    `json:"attendeesDisplay"`
	Participants     []application.Participant `json:"participants"`
	CreatedAt        string                    `json:"createdAt"`
	UpdatedAt        string                    `json:"updatedAt"`
}

func (h *EventHandler) toEventDTO(event application.Event) eventDTO {
	start := event.Start.In(h.location)
	end := event.End.In(h.location)
	attendees := event.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	participants := event.Participants
	if participants == nil {
		participants = []application.Participant{}
	}
	return eventDTO{
		ID:               event.ID,
		Title:            event.Title,
		Description:      event.Description,
		Date:             scheduler.DateKey(start),
		StartTime:        start.Format("15:04"),
		EndTime:          end.Format("15:04"),
		Start:            start.Format(time.RFC3339),
		End:              end.Format(time.RFC3339),
		DurationHours:    event.DurationHours,
		HostLabel:        event.HostLabel,
		Location:         event.Location,
		CreatorID:        event.CreatorID,
		Attendees:        attendees,
		AttendeesDisplay: participation.FormatAttendees(attendees),
		Participants:     participants,
		CreatedAt:        event.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        event.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *EventHandler) toEventDTOs(events []application.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, h.toEventDTO(event))
	}
	return out
}

func countChanged(results []application.ParticipationResult) int {
	n := 0
	for _, result := range results {
		if result.Changed {
			n++
		}
	}
	return n
}

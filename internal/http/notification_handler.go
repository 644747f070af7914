package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/office-calendar/internal/application"
)

type notificationService interface {
	List(ctx context.Context, principal application.Principal, unreadOnly bool) ([]application.Notification, error)
	MarkRead(ctx context.Context, principal application.Principal, id int64) error
	MarkAllRead(ctx context.Context, principal application.Principal) (int64, error)
}

type NotificationHandler struct {
	service   notificationService
	responder responder
	logger    *slog.Logger
}

func NewNotificationHandler(service notificationService, logger *slog.Logger) *NotificationHandler {
	base := defaultLogger(logger)
	return &NotificationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *NotificationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "NotificationHandler", operation, attrs...)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	unread := false
	if raw := strings.TrimSpace(r.URL.Query().Get("unread")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
				FieldErrors: map[string]string{"unread": "unread must be true or false"},
			})
			return
		}
		unread = parsed
	}

	notifications, err := h.service.List(r.Context(), principal, unread)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID).ErrorContext(r.Context(), "notification list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if notifications == nil {
		notifications = []application.Notification{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.MarkRead(r.Context(), principal, id); err != nil {
		h.log(r.Context(), "MarkRead", "principal_id", principal.UserID, "notification_id", id).WarnContext(r.Context(), "mark read failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "MarkAllRead", "principal_id", principal.UserID)
	marked, err := h.service.MarkAllRead(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "mark all read failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	logger.DebugContext(r.Context(), "notifications marked read", "count", marked)
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

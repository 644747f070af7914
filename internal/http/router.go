package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// RouterConfig wires the handlers into the API. Nil handlers leave their
// routes unregistered.
type RouterConfig struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Rooms         *RoomHandler
	Events        *EventHandler
	Notifications *NotificationHandler
	Health        *HealthHandler

	Sessions       SessionValidator
	AllowedOrigins []string
	Logger         *slog.Logger
	Middleware     []func(http.Handler) http.Handler
}

// NewRouter builds the /api route tree. Middleware wraps the whole tree in
// the order given and CORS, when origins are configured, is outermost.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methodNotAllowed(w)
	})

	api := router.PathPrefix("/api").Subrouter()

	if cfg.Health != nil {
		api.HandleFunc("/health", cfg.Health.Check).Methods(http.MethodGet)
	}
	if cfg.Auth != nil {
		api.HandleFunc("/auth/register", cfg.Auth.Register).Methods(http.MethodPost)
		api.HandleFunc("/auth/login", cfg.Auth.Login).Methods(http.MethodPost)
	}

	// Protected routes share the api subrouter so a method mismatch on any
	// path still reaches MethodNotAllowedHandler.
	requireSession := func(h http.Handler) http.Handler { return h }
	if cfg.Sessions != nil {
		requireSession = RequireSession(cfg.Sessions, logger)
	}
	protected := func(path string, h http.HandlerFunc) *mux.Route {
		return api.Handle(path, requireSession(h))
	}

	if cfg.Auth != nil {
		protected("/auth/logout", cfg.Auth.Logout).Methods(http.MethodPost)
	}

	if cfg.Users != nil {
		protected("/auth/me", cfg.Users.Me).Methods(http.MethodGet)
		protected("/users", cfg.Users.List).Methods(http.MethodGet)
		protected("/users/{id:[0-9]+}", cfg.Users.Get).Methods(http.MethodGet)
		protected("/users/{id:[0-9]+}", cfg.Users.Update).Methods(http.MethodPut)
		protected("/users/{id:[0-9]+}", cfg.Users.Delete).Methods(http.MethodDelete)
	}

	if cfg.Rooms != nil {
		protected("/rooms", cfg.Rooms.List).Methods(http.MethodGet)
		protected("/rooms", cfg.Rooms.Create).Methods(http.MethodPost)
		protected("/rooms/bookings", cfg.Rooms.Book).Methods(http.MethodPost)
		protected("/rooms/{id:[0-9]+}", cfg.Rooms.Update).Methods(http.MethodPut)
		protected("/rooms/{id:[0-9]+}", cfg.Rooms.Delete).Methods(http.MethodDelete)
		protected("/rooms/{id:[0-9]+}/bookings", cfg.Rooms.ListBookings).Methods(http.MethodGet)
		protected("/bookings/mine", cfg.Rooms.ListMyBookings).Methods(http.MethodGet)
	}

	if cfg.Events != nil {
		protected("/events", cfg.Events.List).Methods(http.MethodGet)
		protected("/events", cfg.Events.Create).Methods(http.MethodPost)
		protected("/events/calendar.ics", cfg.Events.Calendar).Methods(http.MethodGet)
		protected("/events/attendance", cfg.Events.Attendance).Methods(http.MethodPost)
		protected("/events/{id:[0-9]+}", cfg.Events.Get).Methods(http.MethodGet)
		protected("/events/{id:[0-9]+}", cfg.Events.Update).Methods(http.MethodPut)
		protected("/events/{id:[0-9]+}", cfg.Events.Delete).Methods(http.MethodDelete)
		protected("/events/{id:[0-9]+}/invite", cfg.Events.Invite).Methods(http.MethodPost)
		protected("/events/{id:[0-9]+}/accept", cfg.Events.Accept).Methods(http.MethodPost)
		protected("/events/{id:[0-9]+}/decline", cfg.Events.Decline).Methods(http.MethodPost)
		protected("/events/{id:[0-9]+}/leave", cfg.Events.Leave).Methods(http.MethodPost)
		protected("/events/{id:[0-9]+}/participants", cfg.Events.Participants).Methods(http.MethodGet)
		protected("/events/{id:[0-9]+}/participants/{userId:[0-9]+}", cfg.Events.RemoveParticipant).Methods(http.MethodDelete)
	}

	if cfg.Notifications != nil {
		protected("/notifications", cfg.Notifications.List).Methods(http.MethodGet)
		protected("/notifications/read", cfg.Notifications.MarkAllRead).Methods(http.MethodPost)
		protected("/notifications/{id:[0-9]+}/read", cfg.Notifications.MarkRead).Methods(http.MethodPost)
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	if len(cfg.AllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
		}).Handler(handler)
	}

	return handler
}

func notFound(w http.ResponseWriter, r *http.Request) {
	newResponder(nil).writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{
		ErrorCode: "NOT_FOUND",
		Message:   statusMessage(http.StatusNotFound),
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_, _ = w.Write([]byte(`{"message":"method not allowed"}` + "\n"))
}

package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger prefers the request-scoped logger installed by RequestLogger and
// RequireSession. Without it, the handler's own logger is tagged with the
// principal so direct handler use still logs who acted.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	fields := make([]any, 0, len(attrs)+6)
	fields = append(fields, "handler", handlerName)
	if operation != "" {
		fields = append(fields, "operation", operation)
	}

	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
		if principal, ok := PrincipalFromContext(ctx); ok {
			fields = append(fields, "principal_id", principal.UserID)
		}
	}
	return logger.With(append(fields, attrs...)...)
}

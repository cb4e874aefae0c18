package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/gocup/internal/api/apierr"
	"github.com/mcoot/gocup/internal/middleware"
)

// Logging logs API and websocket requests under the "http" component
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(httpLogger(logger))
}

// Recovery turns a panicking API handler into an INTERNAL_ERROR response
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(httpLogger(logger), func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}

func httpLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return logger.With(slog.String("component", "http"))
}

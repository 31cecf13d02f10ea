package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/capitalduel/internal/api/apierr"
	"github.com/mcoot/capitalduel/internal/middleware"
)

// Recovery creates panic recovery middleware for the API.
// The JSON error carries the request id so a client report can be matched to the log line.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	requestID := w.Header().Get(middleware.RequestIDHeader)
	if requestID == "" {
		apierr.WriteError(w, apierr.NewInternalError())
		return
	}
	apierr.WriteError(w, apierr.NewInternalErrorf("Internal server error (request %s)", requestID))
}

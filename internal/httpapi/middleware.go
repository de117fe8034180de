package httpapi

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const requestIDKey contextKey = "requestId"

// validRequestID accepts a conservative, safe-to-log subset of ASCII so
// an inbound X-Request-Id header can't smuggle control characters into
// logs or the echoed response header.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// RequestIDMiddleware reads X-Request-Id, generating one if absent or
// invalid, echoes it on the response, and attaches it to every
// structured log line emitted while handling the request. Renamed and
// header-swapped from the correlation-ID pattern this is grounded on,
// to match the envelope's request_id contract.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if !validRequestID.MatchString(requestID) {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-Id", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		logger := log.With().Str("request_id", requestID).Logger()
		ctx = logger.WithContext(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom retrieves the request ID from context.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestDeadlineMiddleware bounds the per-request context to d, per
// REQUEST_DEADLINE_MS. Handlers don't need to know about it: a board
// query that's still running when the deadline fires gets its context
// canceled, surfaces a context.DeadlineExceeded, and wrapBoardErr maps
// that to resource_exhausted (503) rather than a generic 500. A
// non-positive d disables the deadline.
func RequestDeadlineMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

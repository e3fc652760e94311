package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/cbodonnell/fairroll/pkg/log"
	"github.com/google/uuid"
)

type ContextKey int

const (
	// requestIDContextKey is the key used to store the request id in the request context
	requestIDContextKey ContextKey = iota
	// LoggerContextKey is the key used to store the request scoped logger
	LoggerContextKey
)

const RequestIDHeader = "X-Request-ID"

// NewRequestIDMiddleware tags every request with an id, reusing a
// well-formed one supplied by the caller, and attaches a logger carrying it.
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			logger := log.Default().With("request_id", requestID)
			logger.Trace("%s %s", r.Method, r.URL.Path)

			ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
			ctx = context.WithValue(ctx, LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logger returns the request scoped logger, or the default logger outside a request.
func Logger(ctx context.Context) *log.Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*log.Logger); ok {
		return logger
	}
	return log.Default()
}

// RequestID returns the id assigned by NewRequestIDMiddleware, or "" outside a request.
func RequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

func NewCORSMiddleware(allowOrigin string) func(next http.Handler) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, "+RequestIDHeader)
			w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					Logger(r.Context()).Error("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
					http.Error(w, fmt.Sprintf("Internal server error (request %s)", RequestID(r.Context())), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

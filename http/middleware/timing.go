package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/leeforge/huddle-media/http/responder"
)

type timingContextKey struct{}

// TimingMiddleware records request start time for calculating processing duration
func TimingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), timingContextKey{}, time.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestDuration returns the milliseconds elapsed since the request
// entered TimingMiddleware, or 0 outside of it.
func GetRequestDuration(ctx context.Context) int64 {
	if startTime, ok := ctx.Value(timingContextKey{}).(time.Time); ok {
		return time.Since(startTime).Milliseconds()
	}
	return 0
}

// GetRequestDurationFromRequest calculates the duration from request context
func GetRequestDurationFromRequest(r *http.Request) int64 {
	return GetRequestDuration(r.Context())
}

// ResponseMeta returns the envelope options for r: its trace ID and the time
// taken so far.
func ResponseMeta(r *http.Request) []responder.Option {
	return []responder.Option{
		responder.WithTraceID(GetTraceIDFromRequest(r)),
		responder.WithTook(GetRequestDurationFromRequest(r)),
	}
}

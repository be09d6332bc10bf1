package testutil

import (
	"net/http"
	"time"

	"scrip/pkg/domain"
	"scrip/pkg/requestcontext"
)

// WithCaller injects an authenticated caller address into the request
// context, simulating what the auth middleware does for verified requests.
func WithCaller(req *http.Request, address string) *http.Request {
	if addr, err := domain.ParseAddress(address); err == nil {
		return req.WithContext(requestcontext.WithCaller(req.Context(), addr))
	}
	return req
}

// WithRequestTime pins the request-scoped clock so time-dependent
// assertions are deterministic.
func WithRequestTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}

// WithRequestID injects a request ID into the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

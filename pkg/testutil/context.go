package testutil

import (
	"net/http"
	"time"

	"podbroker/pkg/requestcontext"
)

// AsPrincipal injects an authenticated principal into the request context,
// simulating what the auth middleware does for a verified token.
func AsPrincipal(req *http.Request, userID string) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), userID)
	return req.WithContext(ctx)
}

// AtTime freezes the request-scoped clock, simulating the RequestTime
// middleware with a fixed instant.
func AtTime(req *http.Request, at time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), at)
	return req.WithContext(ctx)
}

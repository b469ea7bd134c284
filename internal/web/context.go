package web

import (
	"net/http"

	"github.com/JonMunkholm/dataport/internal/core"
)

// requestMetadata adds the client IP and User-Agent to the request context
// for the service's log entries.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithIPAddress(r.Context(), r.RemoteAddr)
		ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal returns the caller set by the auth middleware.
func principal(r *http.Request) core.Principal {
	p, _ := core.PrincipalFromContext(r.Context())
	return p
}

package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/dataport/internal/config"
	"github.com/JonMunkholm/dataport/internal/core"
)

// LocalPrincipal is the caller assumed when API keys are not required and
// the request carries none.
var LocalPrincipal = core.Principal{UserID: "local", Roles: []string{core.RoleSuperAdmin}}

// APIKeyAuth resolves the X-API-Key header to a core.Principal and stores it
// in the request context.
// If required is false, requests without a key run as LocalPrincipal; a key
// that is sent is still validated.
func APIKeyAuth(creds []config.Credential, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")

			var p core.Principal
			switch {
			case apiKey == "" && !required:
				p = LocalPrincipal
			case apiKey == "":
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				deny(w, http.StatusUnauthorized, "missing API key", "AUTH002")
				return
			default:
				cred, ok := lookupKey(apiKey, creds)
				if !ok {
					slog.Warn("auth: invalid API key",
						"path", r.URL.Path,
						"method", r.Method,
						"remote_addr", r.RemoteAddr,
					)
					deny(w, http.StatusUnauthorized, "invalid API key", "AUTH002")
					return
				}
				p = core.Principal{UserID: cred.UserID, Roles: cred.Roles}
			}

			SetUser(r.Context(), p.UserID)
			next.ServeHTTP(w, r.WithContext(core.ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects callers that do not carry role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := core.PrincipalFromContext(r.Context())
			if !ok || !p.HasRole(role) {
				slog.Warn("auth: role required",
					"path", r.URL.Path,
					"role", role,
					"user_id", p.UserID,
				)
				msg := core.MapError(core.ErrForbidden)
				deny(w, http.StatusForbidden, msg.Message, msg.Code)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// lookupKey compares key against every credential in constant time, so the
// time taken does not reveal which key (if any) matched.
func lookupKey(key string, creds []config.Credential) (config.Credential, bool) {
	match := -1
	for i, c := range creds {
		if subtle.ConstantTimeCompare([]byte(key), []byte(c.Key)) == 1 {
			match = i
		}
	}
	if match < 0 {
		return config.Credential{}, false
	}
	return creds[match], true
}

func deny(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   message,
		"message": message,
		"code":    code,
	})
}

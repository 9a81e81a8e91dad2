package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"entrygate/pkg/requestcontext"
)

// RequireAdminToken guards operator routes with the X-Admin-Token header.
// An empty expected token disables the routes entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireToken(expectedToken, logger, "admin token mismatch", func(r *http.Request) string {
		return r.Header.Get("X-Admin-Token")
	})
}

// RequireBearerToken guards machine-to-machine routes (the scheduler target)
// with a static "Authorization: Bearer <token>" header.
func RequireBearerToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireToken(expectedToken, logger, "bearer token mismatch", func(r *http.Request) string {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			return ""
		}
		return token
	})
}

func requireToken(expected string, logger *slog.Logger, msg string, extract func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extract(r)
			// Constant-time comparison; never accept when nothing is configured.
			if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, msg,
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

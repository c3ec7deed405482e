package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"qrscan/pkg/requestcontext"
)

// RequireToken guards routes with a static bearer token. An empty token
// disables the check.
func RequireToken(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if ok && subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger.WarnContext(ctx, "unauthorized access",
				"request_id", requestcontext.RequestID(ctx),
				"client_ip", requestcontext.ClientIP(ctx),
				"user_agent", requestcontext.UserAgent(ctx),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`)); err != nil {
				logger.ErrorContext(ctx, "failed to write unauthorized response", "error", err)
			}
		})
	}
}

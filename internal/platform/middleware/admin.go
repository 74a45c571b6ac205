package middleware

import (
	"log/slog"
	"net/http"
	"strings"
)

// AdminValidator checks that a bearer token carries the admin role.
type AdminValidator interface {
	RequireAdmin(tokenString string) error
}

// RequireAdmin guards destructive endpoints behind an admin bearer token.
func RequireAdmin(validator AdminValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, r, logger, "missing bearer token")
				return
			}
			if err := validator.RequireAdmin(token); err != nil {
				unauthorized(w, r, logger, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	logger.WarnContext(r.Context(), "unauthorized admin access",
		"request_id", GetRequestID(r.Context()),
		"reason", reason,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":"admin token required","code":"unauthorized"}`))
}

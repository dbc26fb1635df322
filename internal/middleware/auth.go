package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/pantrytracker/internal/apperr"
	"github.com/dukerupert/pantrytracker/internal/auth"
)

// Authenticator resolves a presented session token to the caller it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.AuthContext, error)
}

// RequireAuth validates the bearer token or session cookie and populates
// AuthContext. Unauthenticated requests get a JSON 401.
func RequireAuth(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := authenticator.Authenticate(r.Context(), auth.ExtractToken(r))
			if err != nil {
				if apperr.KindOf(err) == apperr.KindInternal {
					logger.ErrorContext(r.Context(), "authenticate request", "error", err, "request_id", GetRequestID(r.Context()))
				}
				writeError(w, apperr.Status(err), apperr.Message(err))
				return
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

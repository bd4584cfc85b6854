package middleware

import (
	"errors"
	"net/http"
	"strings"

	"virtual-wallet/backend/internal/security"
	"virtual-wallet/backend/internal/server/respond"
)

const bearerPrefix = "bearer "

// AccessValidator validates access tokens. *security.TokenProvider implements it.
type AccessValidator interface {
	ValidateAccess(token string) (*security.Claims, error)
}

// RequireAccess rejects requests without a valid access token with 401 and stores the
// token's subject and phone in the request context.
func RequireAccess(tokens AccessValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				respond.Detail(w, http.StatusUnauthorized, "Missing authorization token")
				return
			}
			claims, err := tokens.ValidateAccess(token)
			if err != nil {
				respond.Detail(w, http.StatusUnauthorized, authFailureMessage(err))
				return
			}
			ctx := WithIdentity(r.Context(), claims.Subject, claims.Phone)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, security.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, security.ErrWrongTokenKind):
		return "Invalid token type, access token required"
	default:
		return "Invalid token signature"
	}
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/example/booklog-timeline/internal/auth"
)

// AccessTokenCookie is read before the Authorization header.
const AccessTokenCookie = "access_token"

// TokenValidator turns an access token into the reader's claims.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

type readerKey struct{}

// Authenticate rejects requests without a valid access token and stores the
// reader's claims on the request context.
func Authenticate(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := readerClaims(r, v)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(WithReader(r.Context(), claims)))
			case errors.Is(err, errNoToken):
				deny(w, http.StatusUnauthorized, "missing access token")
			case errors.Is(err, auth.ErrExpiredToken):
				deny(w, http.StatusUnauthorized, "access token expired")
			default:
				deny(w, http.StatusUnauthorized, "invalid access token")
			}
		})
	}
}

// Identify attaches the reader when the token is valid. Anonymous and
// badly authenticated requests reach next unchanged, so public timeline reads
// keep working.
func Identify(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, err := readerClaims(r, v); err == nil {
				r = r.WithContext(WithReader(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly must run after Authenticate.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ReaderFrom(r.Context())
		if !ok {
			deny(w, http.StatusUnauthorized, "missing access token")
			return
		}
		if !claims.IsAdmin() {
			deny(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

var errNoToken = errors.New("no access token")

func readerClaims(r *http.Request, v TokenValidator) (*auth.Claims, error) {
	token := accessToken(r)
	if token == "" {
		return nil, errNoToken
	}
	return v.ValidateAccessToken(token)
}

func accessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func deny(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func WithReader(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, readerKey{}, claims)
}

func ReaderFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(readerKey{}).(*auth.Claims)
	return claims, ok && claims != nil
}

// ReaderID returns the authenticated reader's user id.
func ReaderID(ctx context.Context) (int64, bool) {
	claims, ok := ReaderFrom(ctx)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// SessionHeader carries the cart session of a guest.
const SessionHeader = "X-Session-ID"

type ctxKey int

const (
	userIDKey ctxKey = iota
	ownerKey
)

// Identity resolves who is calling. A bearer token signed with secret
// (HS256) identifies a user by its subject claim; otherwise the session
// header identifies a guest. Requests with neither pass through without an
// identity. A bearer token that does not verify is rejected with 401.
func Identity(secret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				userID, err := verify(token, key)
				if err != nil {
					logger.Warn().Err(err).Str("path", r.URL.Path).Msg("rejected bearer token")
					writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "invalid bearer token")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, "user:"+userID)))
				return
			}

			if session := strings.TrimSpace(r.Header.Get(SessionHeader)); session != "" {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), "", "guest:"+session)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func verify(token string, key []byte) (string, error) {
	if len(key) == 0 {
		return "", errors.New("token verification is not configured")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// WithIdentity returns a context carrying a user ID and a cart owner.
func WithIdentity(ctx context.Context, userID, owner string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, ownerKey, owner)
}

// UserID returns the authenticated user, or "" for guests.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// Owner returns the cart owner of the request, or "" when unidentified.
func Owner(ctx context.Context) string {
	v, _ := ctx.Value(ownerKey).(string)
	return v
}

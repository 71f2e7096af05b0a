package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"house-alert-api/models"
	"house-alert-api/services/auth"
	"house-alert-api/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

const InternalSecretHeader = "X-Internal-Secret"

type TokenValidator interface {
	ValidateToken(token string) (*models.AuthUser, error)
}

// AuthMiddleware accepts a Bearer token or, failing that, the access token
// stored in the dashboard session cookie.
func AuthMiddleware(tokens TokenValidator, store sessions.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				token = SessionAccessToken(r, store)
			}
			if token == "" {
				log.Printf("Missing credentials from %s for %s", r.RemoteAddr, r.URL.Path)
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Missing authorization")
				return
			}

			user, err := tokens.ValidateToken(token)
			if err != nil {
				log.Printf("Token validation failed from %s: %v", r.RemoteAddr, err)

				message := "Authentication failed"
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					message = "Token expired"
				case errors.Is(err, auth.ErrInvalidToken):
					message = "Invalid token"
				}

				utils.SendErrorResponse(w, http.StatusUnauthorized, message)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireInternalSecret guards endpoints called by trusted services only.
// An empty secret disables them entirely.
func RequireInternalSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Internal API is disabled")
				return
			}

			provided := r.Header.Get(InternalSecretHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				log.Printf("Invalid internal secret from %s for %s", r.RemoteAddr, r.URL.Path)
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid internal secret")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func GetUserFromContext(ctx context.Context) *models.AuthUser {
	user, ok := ctx.Value(UserContextKey).(*models.AuthUser)
	if !ok {
		return nil
	}
	return user
}

// WithUser returns ctx carrying user, as AuthMiddleware would.
func WithUser(ctx context.Context, user *models.AuthUser) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

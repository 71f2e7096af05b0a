package middleware

import (
	"net/http"

	"github.com/gorilla/sessions"

	"house-alert-api/models"
)

const (
	SessionName = "house-alert-session"

	sessionAccessKey  = "access_token"
	sessionRefreshKey = "refresh_token"
)

type SessionOptions struct {
	Secret   string
	Domain   string
	MaxAge   int
	Secure   bool
	HttpOnly bool
}

func NewSessionStore(opts SessionOptions) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(opts.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   opts.MaxAge,
		Secure:   opts.Secure,
		HttpOnly: opts.HttpOnly,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// SessionAccessToken returns the access token kept in the session cookie.
func SessionAccessToken(r *http.Request, store sessions.Store) string {
	if store == nil {
		return ""
	}
	session, err := store.Get(r, SessionName)
	if err != nil {
		return ""
	}
	token, _ := session.Values[sessionAccessKey].(string)
	return token
}

// SessionRefreshToken returns the refresh token kept in the session cookie.
func SessionRefreshToken(r *http.Request, store sessions.Store) string {
	if store == nil {
		return ""
	}
	session, err := store.Get(r, SessionName)
	if err != nil {
		return ""
	}
	token, _ := session.Values[sessionRefreshKey].(string)
	return token
}

func SaveSessionTokens(w http.ResponseWriter, r *http.Request, store sessions.Store, tokens *models.AuthResponse) error {
	// A cookie signed with a rotated key fails to decode; start fresh.
	session, _ := store.Get(r, SessionName)
	session.Values[sessionAccessKey] = tokens.Token
	session.Values[sessionRefreshKey] = tokens.RefreshToken
	return session.Save(r, w)
}

func ClearSession(w http.ResponseWriter, r *http.Request, store sessions.Store) error {
	session, _ := store.Get(r, SessionName)
	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

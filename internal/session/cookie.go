package session

import (
	"net/http"
	"time"
)

const DefaultCookieName = "semaphore_session"

// CookieStore carries the session token in an HTTP-only cookie.
type CookieStore struct {
	Name   string
	MaxAge time.Duration
	Secure bool
	Domain string
}

// NewCookieStore returns the cookie settings for a deployment. The Secure
// flag and an explicit Domain only apply in production.
func NewCookieStore(name string, maxAge time.Duration, production bool, domain string) *CookieStore {
	if name == "" {
		name = DefaultCookieName
	}
	store := &CookieStore{Name: name, MaxAge: maxAge, Secure: production}
	if production {
		store.Domain = domain
	}
	return store
}

func (s *CookieStore) Persist(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.Name,
		Value:    token,
		Path:     "/",
		Domain:   s.Domain,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.MaxAge / time.Second),
		Expires:  time.Now().Add(s.MaxAge),
	})
}

// Read returns the raw token. A missing or empty cookie is the anonymous
// state, not an error.
func (s *CookieStore) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Clear expires the cookie. Clearing an absent cookie is harmless.
func (s *CookieStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.Name,
		Value:    "",
		Path:     "/",
		Domain:   s.Domain,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

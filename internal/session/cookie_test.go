package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sessionCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("expected %s cookie to be set", name)
	return nil
}

func TestPersistSetsFlags(t *testing.T) {
	store := NewCookieStore("", 7*24*time.Hour, false, "example.org")
	w := httptest.NewRecorder()
	store.Persist(w, "token-abc")

	cookie := sessionCookie(t, w.Result(), DefaultCookieName)
	if cookie.Value != "token-abc" {
		t.Fatalf("unexpected cookie value %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Fatalf("session cookie should be HttpOnly")
	}
	if cookie.Secure {
		t.Fatalf("non-production cookie should not be Secure")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected SameSite=Lax, got %v", cookie.SameSite)
	}
	if cookie.Path != "/" {
		t.Fatalf("expected cookie Path=/, got %q", cookie.Path)
	}
	if cookie.Domain != "" {
		t.Fatalf("expected no domain outside production, got %q", cookie.Domain)
	}
	if cookie.MaxAge != 7*24*60*60 {
		t.Fatalf("expected 7 day MaxAge, got %d", cookie.MaxAge)
	}
}

func TestPersistProductionIsSecure(t *testing.T) {
	store := NewCookieStore("sid", time.Hour, true, "example.org")
	w := httptest.NewRecorder()
	store.Persist(w, "token-abc")

	cookie := sessionCookie(t, w.Result(), "sid")
	if !cookie.Secure {
		t.Fatalf("production cookie should be Secure")
	}
	if cookie.Domain != "example.org" {
		t.Fatalf("expected configured domain, got %q", cookie.Domain)
	}
}

func TestReadMissingCookieIsAnonymous(t *testing.T) {
	store := NewCookieStore("", time.Hour, false, "")
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if _, ok := store.Read(req); ok {
		t.Fatalf("expected no token")
	}

	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "token-abc"})
	token, ok := store.Read(req)
	if !ok || token != "token-abc" {
		t.Fatalf("expected token-abc, got %q ok=%v", token, ok)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	store := NewCookieStore("", time.Hour, false, "")
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		store.Clear(w)
		cleared := sessionCookie(t, w.Result(), DefaultCookieName)
		if cleared.Value != "" {
			t.Fatalf("expected empty cookie value, got %q", cleared.Value)
		}
		if cleared.MaxAge >= 0 {
			t.Fatalf("expected MaxAge < 0 for cleared cookie, got %d", cleared.MaxAge)
		}
	}
}

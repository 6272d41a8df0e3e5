// Package guard decides whether a protected area renders, waits or redirects
// for the current session state.
package guard

import (
	"context"
	"net/http"

	"semaphore/auth-session/internal/access"
	"semaphore/auth-session/internal/model"
	"semaphore/auth-session/internal/reconciler"
)

type Action int

const (
	ActionWait Action = iota
	ActionRender
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	default:
		return "wait"
	}
}

// Decision is computed on demand and never stored.
type Decision struct {
	Action     Action
	RedirectTo string
}

func (d Decision) Allowed() bool {
	return d.Action == ActionRender
}

// Evaluate never redirects before the identity is known. Redirect targets
// keep the locale segment of path.
func Evaluate(state reconciler.State, allowed []access.Role, path, defaultLocale string) Decision {
	switch state.Status {
	case reconciler.StatusAnonymous:
		locale := access.LocaleFromPath(path, defaultLocale)
		return Decision{Action: ActionRedirect, RedirectTo: access.Localize(locale, access.ResourceLogin)}
	case reconciler.StatusAuthenticated:
		if state.Identity == nil {
			return Decision{Action: ActionWait}
		}
		if access.IsAllowed(state.Identity.Role, allowed) {
			return Decision{Action: ActionRender}
		}
		locale := access.LocaleFromPath(path, defaultLocale)
		return Decision{Action: ActionRedirect, RedirectTo: access.Localize(locale, access.DefaultLanding(state.Identity.Role))}
	default:
		return Decision{Action: ActionWait}
	}
}

type identityKey struct{}

// IdentityFromContext returns the identity a rendering Middleware attached.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(model.Identity)
	return identity, ok
}

// StateResolver derives the session state for a server-side request.
// Errors are infrastructure failures, not anonymity.
type StateResolver func(r *http.Request) (reconciler.State, error)

// Middleware applies Evaluate to server-side page routes. observe, when
// set, receives the area name and action of every decision.
func Middleware(area access.Area, defaultLocale string, resolve StateResolver, observe func(area, action string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, err := resolve(r)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			decision := Evaluate(state, area.Allowed, r.URL.Path, defaultLocale)
			if observe != nil {
				observe(string(area.Resource), decision.Action.String())
			}

			switch decision.Action {
			case ActionRender:
				ctx := context.WithValue(r.Context(), identityKey{}, *state.Identity)
				next.ServeHTTP(w, r.WithContext(ctx))
			case ActionRedirect:
				http.Redirect(w, r, decision.RedirectTo, http.StatusFound)
			default:
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			}
		})
	}
}

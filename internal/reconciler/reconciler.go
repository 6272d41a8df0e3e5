// Package reconciler keeps a client's view of the current user in step with
// the server's session.
//
// The state machine is UNKNOWN → LOADING → {AUTHENTICATED | ANONYMOUS}. Every
// path out of LOADING is guaranteed: network and server errors resolve to
// ANONYMOUS. Refreshes are driven by an explicit trigger queue (app start,
// post-login, post-logout, focus) serviced by Start.
package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"semaphore/auth-session/internal/access"
	"semaphore/auth-session/internal/clients"
	"semaphore/auth-session/internal/model"
)

const DefaultTimeout = 10 * time.Second

type Status int

const (
	StatusUnknown Status = iota
	StatusLoading
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot. Identity is set only when authenticated.
type State struct {
	Status   Status
	Identity *model.Identity
}

func Authenticated(identity model.Identity) State {
	return State{Status: StatusAuthenticated, Identity: &identity}
}

func Anonymous() State {
	return State{Status: StatusAnonymous}
}

type Trigger int

const (
	TriggerAppStart Trigger = iota
	TriggerPostLogin
	TriggerPostLogout
	TriggerFocus
)

// Backend is the server contract; clients.AuthClient implements it.
type Backend interface {
	WhoAmI(ctx context.Context) (*model.Identity, error)
	Login(ctx context.Context, req clients.LoginRequest) (clients.LoginResult, error)
	Logout(ctx context.Context) error
}

type Options struct {
	Timeout       time.Duration
	DefaultLocale string
	Logger        logr.Logger
}

type Credentials struct {
	Email    string
	Password string
	UserType access.Role
	// CurrentPath supplies the locale for the redirect.
	CurrentPath string
	// RedirectTo overrides the role's landing area.
	RedirectTo string
}

type LoginOutcome struct {
	Success    bool
	Identity   *model.Identity
	RedirectTo string
	Message    string
}

const msgUnreachable = "Unable to reach the server, please try again"

type Reconciler struct {
	backend Backend
	opts    Options
	log     logr.Logger

	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
	// generation advances on every login and logout. Identity checks that
	// started under an older generation carry a stale cookie and are dropped.
	generation uint64

	// notifyMu keeps listener notifications in the same order as updates.
	notifyMu sync.Mutex

	triggers chan Trigger
}

func New(backend Backend, opts Options) *Reconciler {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = access.DefaultLocale
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	return &Reconciler{
		backend:   backend,
		opts:      opts,
		log:       opts.Logger,
		listeners: make(map[int]func(State)),
		triggers:  make(chan Trigger, 8),
	}
}

// Start moves UNKNOWN to LOADING, queues the app-start check and services
// triggers until ctx ends.
func (r *Reconciler) Start(ctx context.Context) {
	r.set(State{Status: StatusLoading})
	r.Notify(TriggerAppStart)
	go r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-r.triggers:
			r.handle(ctx, trigger)
		}
	}
}

// Notify queues a trigger. A full queue already holds a pending refresh,
// so the trigger is dropped.
func (r *Reconciler) Notify(trigger Trigger) {
	select {
	case r.triggers <- trigger:
	default:
		r.log.V(1).Info("trigger queue full, dropping", "trigger", trigger)
	}
}

func (r *Reconciler) handle(ctx context.Context, trigger Trigger) {
	switch trigger {
	case TriggerPostLogout:
		r.reset(Anonymous())
	default:
		r.Refresh(ctx)
	}
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Current returns the authenticated identity, or nil.
func (r *Reconciler) Current() *model.Identity {
	state := r.State()
	if state.Status != StatusAuthenticated || state.Identity == nil {
		return nil
	}
	identity := *state.Identity
	return &identity
}

// Subscribe registers fn for every state change and returns its cancel
// function. fn runs while notifications are serialized and must not call
// back into methods that change state.
func (r *Reconciler) Subscribe(fn func(State)) func() {
	r.mu.Lock()
	id := r.addListener(fn)
	r.mu.Unlock()
	return r.unsubscribe(id)
}

// Observe is Subscribe plus an immediate call with the current state. No
// update can slip between the two, so fn sees states in order from the
// start. The same reentrancy rule applies.
func (r *Reconciler) Observe(fn func(State)) func() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	id := r.addListener(fn)
	current := r.state
	r.mu.Unlock()

	fn(current)
	return r.unsubscribe(id)
}

func (r *Reconciler) addListener(fn func(State)) int {
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return id
}

func (r *Reconciler) unsubscribe(id int) func() {
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Refresh re-runs the identity check without passing through LOADING
// unless the state is still UNKNOWN. Among checks of the same session the
// last completed wins; a check overtaken by a login or logout is discarded
// and the current state returned.
func (r *Reconciler) Refresh(ctx context.Context) State {
	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	if r.State().Status == StatusUnknown {
		r.set(State{Status: StatusLoading})
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	identity, err := r.backend.WhoAmI(ctx)
	next := Anonymous()
	switch {
	case err != nil:
		r.log.V(1).Info("identity check failed, treating as anonymous", "error", err.Error())
	case identity != nil:
		next = Authenticated(*identity)
	}
	if !r.setIf(gen, next) {
		r.log.V(1).Info("discarding identity check from a previous session", "status", next.Status.String())
		return r.State()
	}
	return next
}

func (r *Reconciler) Login(ctx context.Context, creds Credentials) LoginOutcome {
	gen := r.reset(State{Status: StatusLoading})

	callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	result, err := r.backend.Login(callCtx, clients.LoginRequest{
		Email:    creds.Email,
		Password: creds.Password,
		UserType: creds.UserType.String(),
	})
	if err != nil {
		r.setIf(gen, Anonymous())
		var rejected *clients.LoginError
		if errors.As(err, &rejected) && rejected.Message != "" {
			return LoginOutcome{Message: rejected.Message}
		}
		r.log.Error(err, "login request failed")
		return LoginOutcome{Message: msgUnreachable}
	}

	if r.setIf(gen, Authenticated(result.User)) {
		r.Notify(TriggerPostLogin)
	}

	identity := result.User
	return LoginOutcome{
		Success:    true,
		Identity:   &identity,
		RedirectTo: r.loginRedirect(creds, result.RedirectTo),
	}
}

// loginRedirect prefers the caller's target, then the server's, then the
// claimed role's landing, always under the current locale.
func (r *Reconciler) loginRedirect(creds Credentials, serverTarget string) string {
	locale := access.LocaleFromPath(creds.CurrentPath, r.opts.DefaultLocale)
	switch {
	case creds.RedirectTo != "":
		return access.LocalizePath(locale, creds.RedirectTo)
	case serverTarget != "":
		return access.LocalizePath(locale, serverTarget)
	default:
		return access.Localize(locale, access.DefaultLanding(creds.UserType))
	}
}

// Logout asks the server to drop the cookie and then resolves ANONYMOUS no
// matter how that call went.
func (r *Reconciler) Logout(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	if err := r.backend.Logout(callCtx); err != nil {
		r.log.V(1).Info("logout request failed", "error", err.Error())
	}
	r.handle(ctx, TriggerPostLogout)
}

func (r *Reconciler) set(next State) {
	r.update(next, func() bool { return true })
}

// setIf applies next only while no login or logout has begun since gen.
func (r *Reconciler) setIf(gen uint64, next State) bool {
	return r.update(next, func() bool { return r.generation == gen })
}

// reset starts a new session generation with next and returns it.
func (r *Reconciler) reset(next State) uint64 {
	var gen uint64
	r.update(next, func() bool {
		r.generation++
		gen = r.generation
		return true
	})
	return gen
}

// update runs accept under mu; the state changes and listeners hear about
// it only when accept returns true.
func (r *Reconciler) update(next State, accept func() bool) bool {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	if !accept() {
		r.mu.Unlock()
		return false
	}
	r.state = next
	listeners := make([]func(State), 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return true
}

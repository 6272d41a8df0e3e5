package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"semaphore/auth-session/internal/access"
	"semaphore/auth-session/internal/auth"
	"semaphore/auth-session/internal/config"
	"semaphore/auth-session/internal/guard"
	"semaphore/auth-session/internal/metrics"
	"semaphore/auth-session/internal/model"
	"semaphore/auth-session/internal/ratelimit"
	"semaphore/auth-session/internal/reconciler"
	"semaphore/auth-session/internal/session"
	"semaphore/auth-session/internal/telemetry"
)

const maxBodyBytes = 1 << 20

// Store is the read-only account store the server needs.
type Store interface {
	auth.UserLookup
	auth.UserByID
	Ping(ctx context.Context) error
}

type Server struct {
	cfg      config.Config
	store    Store
	verifier *auth.Verifier
	codec    *auth.Codec
	resolver *auth.Resolver
	sessions *session.CookieStore
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	log      logr.Logger
}

type Option func(*Server)

// WithLimiter enables login throttling.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = limiter }
}

func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

func WithLogger(log logr.Logger) Option {
	return func(s *Server) { s.log = log }
}

func NewServer(cfg config.Config, store Store, codec *auth.Codec, opts ...Option) (*Server, error) {
	if codec == nil {
		return nil, errors.New("missing_token_codec")
	}
	s := &Server{
		cfg:      cfg,
		store:    store,
		codec:    codec,
		resolver: auth.NewResolver(codec, store),
		sessions: session.NewCookieStore(cfg.SessionCookieName, codec.TTL(), cfg.IsProduction(), cfg.CookieDomain),
		log:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.cfg.DefaultLocale == "" {
		s.cfg.DefaultLocale = access.DefaultLocale
	}

	verifier, err := auth.NewVerifier(store, cfg.BcryptCost, s.log.WithName("verifier"))
	if err != nil {
		return nil, err
	}
	s.verifier = verifier
	return s, nil
}

// Resolver exposes the identity resolver shared with the gRPC service.
func (s *Server) Resolver() *auth.Resolver {
	return s.resolver
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)
	r.Get("/auth/me", s.handleGetMe)

	r.Route("/{locale:[a-zA-Z][a-zA-Z]}", func(r chi.Router) {
		for _, area := range access.Areas() {
			guarded := r.With(guard.Middleware(area, s.cfg.DefaultLocale, s.sessionState, s.metrics.ObserveGuard))
			handler := s.handleArea(area.Resource)
			guarded.Get(area.Resource.Path(), handler)
			guarded.Get(area.Resource.Path()+"/*", handler)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.log.Error(err, "health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"userType"`
}

type authResponse struct {
	Success    bool            `json:"success"`
	User       *model.Identity `json:"user,omitempty"`
	RedirectTo string          `json:"redirectTo,omitempty"`
	Message    string          `json:"message,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.metrics.ObserveLogin("invalid", metrics.OutcomeInvalid)
		writeFailure(w, http.StatusBadRequest, auth.MsgMissingCredentials)
		return
	}

	userType := strings.TrimSpace(strings.ToLower(req.UserType))
	ctx, span := telemetry.StartLoginSpan(r.Context(), userTypeLabel(userType))
	outcome, status, message := s.login(ctx, w, r, req, userType)
	telemetry.EndLoginSpan(span, outcome, statusErr(status))
	s.metrics.ObserveLogin(userTypeLabel(userType), outcome)

	if status != http.StatusOK {
		writeFailure(w, status, message)
	}
}

// login writes the success response itself and returns the outcome label,
// status and caller-facing message for everything else.
func (s *Server) login(ctx context.Context, w http.ResponseWriter, r *http.Request, req loginRequest, userType string) (string, int, string) {
	if req.Email == "" || req.Password == "" || userType == "" {
		return metrics.OutcomeInvalid, http.StatusBadRequest, auth.MsgMissingCredentials
	}
	claimed, err := access.ParseRole(userType)
	if err != nil || !claimed.Claimable() {
		return metrics.OutcomeInvalid, http.StatusBadRequest, auth.MsgInvalidUserType
	}

	email := auth.NormalizeEmail(req.Email)
	ip := clientIP(r)
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, email, ip); err != nil {
			if errors.Is(err, ratelimit.ErrRateLimited) {
				return metrics.OutcomeRateLimited, http.StatusTooManyRequests, auth.MsgTooManyAttempts
			}
			s.log.Info("login throttle unavailable, continuing without it", "error", err.Error())
		}
	}

	identity, err := s.verifier.Authenticate(ctx, email, req.Password, claimed)
	if err != nil {
		var failure *auth.Failure
		if !errors.As(err, &failure) {
			failure = &auth.Failure{Kind: auth.KindInfrastructure, Message: auth.MsgInternal, Err: err}
		}
		switch failure.Kind {
		case auth.KindValidation:
			return metrics.OutcomeInvalid, http.StatusBadRequest, failure.Message
		case auth.KindAuth:
			s.recordFailure(ctx, email, ip)
			return metrics.OutcomeRejected, http.StatusUnauthorized, failure.Message
		default:
			s.log.Error(err, "login failed")
			return metrics.OutcomeServerError, http.StatusInternalServerError, auth.MsgInternal
		}
	}

	token, err := s.codec.Issue(identity)
	if err != nil {
		s.log.Error(err, "issue session token", "userID", identity.ID)
		return metrics.OutcomeServerError, http.StatusInternalServerError, auth.MsgInternal
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.log.Info("reset login throttle", "error", err.Error())
		}
	}

	s.sessions.Persist(w, token)
	writeJSON(w, http.StatusOK, authResponse{
		Success:    true,
		User:       &identity,
		RedirectTo: access.DefaultLanding(claimed).Path(),
	})
	return metrics.OutcomeSuccess, http.StatusOK, ""
}

func (s *Server) recordFailure(ctx context.Context, email, ip string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, email, ip); err != nil {
		s.log.Info("record failed login", "error", err.Error())
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.sessions.Clear(w)
	writeJSON(w, http.StatusOK, authResponse{Success: true})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identity(r, "http")
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, authResponse{Success: true, User: &identity})
	case auth.IsAnonymous(err):
		if errors.Is(err, auth.ErrInvalidToken) {
			s.sessions.Clear(w)
		}
		writeJSON(w, http.StatusOK, authResponse{Success: false})
	default:
		s.log.Error(err, "identity check failed")
		writeFailure(w, http.StatusInternalServerError, auth.MsgInternal)
	}
}

type areaResponse struct {
	Success bool           `json:"success"`
	Area    string         `json:"area"`
	User    model.Identity `json:"user"`
}

func (s *Server) handleArea(resource access.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := guard.IdentityFromContext(r.Context())
		if !ok {
			writeFailure(w, http.StatusInternalServerError, auth.MsgInternal)
			return
		}
		writeJSON(w, http.StatusOK, areaResponse{Success: true, Area: string(resource), User: identity})
	}
}

// sessionState resolves the cookie into the state the page guard evaluates.
// Server-side resolution is synchronous, so it is never LOADING.
func (s *Server) sessionState(r *http.Request) (reconciler.State, error) {
	identity, err := s.identity(r, "page")
	switch {
	case err == nil:
		return reconciler.Authenticated(identity), nil
	case auth.IsAnonymous(err):
		return reconciler.Anonymous(), nil
	default:
		s.log.Error(err, "page identity check failed", "path", r.URL.Path)
		return reconciler.State{}, err
	}
}

func (s *Server) identity(r *http.Request, source string) (model.Identity, error) {
	ctx, span := telemetry.StartIdentitySpan(r.Context(), source)
	token, _ := s.sessions.Read(r)
	identity, err := s.resolver.Resolve(ctx, token)

	result := metrics.ResultAuthenticated
	switch {
	case err == nil:
	case auth.IsAnonymous(err):
		result = metrics.ResultAnonymous
	default:
		result = metrics.OutcomeServerError
	}
	telemetry.EndIdentitySpan(span, result)
	s.metrics.ObserveIdentityCheck(result)
	return identity, err
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.V(1).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()),
		)
	})
}

// userTypeLabel keeps arbitrary request input out of metric labels.
func userTypeLabel(userType string) string {
	if role, err := access.ParseRole(userType); err == nil && role.Claimable() {
		return role.String()
	}
	return "invalid"
}

func statusErr(status int) error {
	if status == http.StatusOK {
		return nil
	}
	return errors.New(http.StatusText(status))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, authResponse{Success: false, Message: message})
}

// clientIP keys the throttle on the connection address. Forwarding headers
// only count when TrustProxy has installed middleware.RealIP, which rewrites
// RemoteAddr before this runs.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

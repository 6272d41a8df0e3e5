package auth

import (
	"errors"
	"time"

	"github.com/go-logr/logr"
	"github.com/golang-jwt/jwt/v5"

	"semaphore/auth-session/internal/access"
	"semaphore/auth-session/internal/model"
)

// TokenTTL is the fixed session lifetime.
const TokenTTL = 7 * 24 * time.Hour

type Claims struct {
	UserID string      `json:"uid"`
	Email  string      `json:"email"`
	Role   access.Role `json:"role"`
	jwt.RegisteredClaims
}

// Codec issues and validates HS256 session tokens. It holds no mutable
// state and is safe for concurrent use.
type Codec struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
	log       logr.Logger
	onFailure func(reason string)
}

type CodecOption func(*Codec)

func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

func WithLogger(log logr.Logger) CodecOption {
	return func(c *Codec) {
		c.log = log
	}
}

// WithFailureHook observes the internal reason of every rejected token.
func WithFailureHook(fn func(reason string)) CodecOption {
	return func(c *Codec) {
		c.onFailure = fn
	}
}

func NewCodec(secret []byte, issuer string, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("missing_signing_secret")
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		ttl:    TokenTTL,
		now:    time.Now,
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

func (c *Codec) Issue(identity model.Identity) (string, error) {
	now := c.now().UTC()
	claims := Claims{
		UserID: identity.ID,
		Email:  identity.Email,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt(now, c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Validate checks the signature before any claim, then issuer and expiry.
// A token presented at exactly its expiry instant is expired. Every
// rejection returns ErrInvalidToken.
func (c *Codec) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, c.reject(failureReason(err), err)
	}
	if !token.Valid || claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, c.reject("claims", jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}

// expiresAt rounds up to the next whole second. NumericDate drops the
// fraction, and truncating would end the session before ttl has passed.
func expiresAt(issued time.Time, ttl time.Duration) time.Time {
	exp := issued.Add(ttl)
	if whole := exp.Truncate(time.Second); whole.Before(exp) {
		return whole.Add(time.Second)
	}
	return exp
}

func (c *Codec) reject(reason string, err error) error {
	c.log.V(1).Info("session token rejected", "reason", reason, "error", err.Error())
	if c.onFailure != nil {
		c.onFailure(reason)
	}
	return ErrInvalidToken
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "signature"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	default:
		return "claims"
	}
}

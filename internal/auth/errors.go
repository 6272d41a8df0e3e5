package auth

import (
	"errors"
	"fmt"

	"semaphore/auth-session/internal/access"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgAccountDeactivated = "Account is deactivated"
	MsgInvalidEmail       = "Invalid email address"
	MsgMissingCredentials = "Email, password and user type are required"
	MsgInvalidUserType    = "Invalid user type"
	MsgTooManyAttempts    = "Too many login attempts, please try again later"
	MsgInternal           = "Internal server error"
)

// Failure is a typed login failure. Message is safe to show the caller; Err
// carries the internal cause and is never rendered.
type Failure struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func validationFailure(message string) *Failure {
	return &Failure{Kind: KindValidation, Message: message}
}

func authFailure(message string) *Failure {
	return &Failure{Kind: KindAuth, Message: message}
}

func infrastructureFailure(err error) *Failure {
	return &Failure{Kind: KindInfrastructure, Message: MsgInternal, Err: err}
}

// RestrictedMessage is shown once the password is proven but the claimed
// role does not match the stored one.
func RestrictedMessage(role access.Role) string {
	return fmt.Sprintf("This account is restricted to role %s", role)
}

var (
	// ErrInvalidToken covers bad signatures, malformed tokens and expiry alike.
	ErrInvalidToken = errors.New("invalid_token")
	// ErrNoSession means the caller is anonymous: no token, or the account
	// behind it is gone or deactivated.
	ErrNoSession = errors.New("no_session")
)

// IsAnonymous reports whether err means "no authenticated caller" rather
// than an infrastructure problem.
func IsAnonymous(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrNoSession)
}

// KindOf maps err to its failure kind; unknown errors are infrastructure.
func KindOf(err error) Kind {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return KindInfrastructure
}

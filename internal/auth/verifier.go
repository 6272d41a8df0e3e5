package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"

	"github.com/go-logr/logr"

	"semaphore/auth-session/internal/access"
	"semaphore/auth-session/internal/crypto"
	"semaphore/auth-session/internal/model"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserLookup is the narrow read contract on the account store.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

// Verifier checks login credentials. It has no session side effects.
type Verifier struct {
	users     UserLookup
	dummyHash string
	log       logr.Logger
}

// NewVerifier prepares a decoy digest at the given bcrypt cost so unknown
// emails take as long to reject as wrong passwords.
func NewVerifier(users UserLookup, cost int, log logr.Logger) (*Verifier, error) {
	if users == nil {
		return nil, errors.New("missing_user_lookup")
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	dummy, err := crypto.HashPasswordCost(base64.RawURLEncoding.EncodeToString(buf), cost)
	if err != nil {
		return nil, err
	}
	return &Verifier{users: users, dummyHash: dummy, log: log}, nil
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Authenticate checks email, password and the claimed role against the
// stored record. Admin accounts may log in as any claimable role.
func (v *Verifier) Authenticate(ctx context.Context, email, password string, claimed access.Role) (model.Identity, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return model.Identity{}, validationFailure(MsgMissingCredentials)
	}
	if !ValidEmail(email) {
		return model.Identity{}, validationFailure(MsgInvalidEmail)
	}
	if !claimed.Claimable() {
		return model.Identity{}, validationFailure(MsgInvalidUserType)
	}

	user, err := v.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			_ = crypto.CheckPassword(v.dummyHash, password)
			return model.Identity{}, authFailure(MsgInvalidCredentials)
		}
		v.log.Error(err, "user lookup failed")
		return model.Identity{}, infrastructureFailure(err)
	}

	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		if !errors.Is(err, crypto.ErrPasswordMismatch) {
			v.log.Error(err, "stored password digest unusable", "userID", user.ID)
		}
		return model.Identity{}, authFailure(MsgInvalidCredentials)
	}

	if !user.IsActive {
		return model.Identity{}, authFailure(MsgAccountDeactivated)
	}

	if user.Role != claimed && user.Role != access.RoleAdmin {
		return model.Identity{}, authFailure(RestrictedMessage(user.Role))
	}

	return model.IdentityFromUser(user), nil
}

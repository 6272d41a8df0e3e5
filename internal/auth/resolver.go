package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"semaphore/auth-session/internal/model"
)

type UserByID interface {
	GetUserByID(ctx context.Context, userID string) (model.User, error)
}

// Resolver turns a session token back into a corroborated identity.
type Resolver struct {
	codec *Codec
	users UserByID
}

func NewResolver(codec *Codec, users UserByID) *Resolver {
	return &Resolver{codec: codec, users: users}
}

// Resolve returns ErrNoSession for an empty token or a missing/deactivated
// account, ErrInvalidToken for any token failure, and a *Failure for store
// outages.
func (r *Resolver) Resolve(ctx context.Context, token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, ErrNoSession
	}
	claims, err := r.codec.Validate(token)
	if err != nil {
		return model.Identity{}, err
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return model.Identity{}, ErrInvalidToken
	}

	user, err := r.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.Identity{}, ErrNoSession
		}
		return model.Identity{}, infrastructureFailure(err)
	}
	if !user.IsActive {
		return model.Identity{}, ErrNoSession
	}

	return model.Identity{
		ID:        claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsActive:  true,
	}, nil
}

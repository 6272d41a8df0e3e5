package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"semaphore/auth-session/internal/access"
	"semaphore/auth-session/internal/model"
)

// ErrAmbiguousEmail is returned when more than one account shares an email.
// Uniqueness belongs to the store; this service refuses to pick one.
var ErrAmbiguousEmail = errors.New("ambiguous_email")

// Store reads user records from Postgres. Writes belong to account
// provisioning.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `id::text, email, password_hash, role, first_name, last_name, is_active, created_at, updated_at`

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	rows, err := s.pool.Query(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE email = $1
    LIMIT 2
  `, email)
	if err != nil {
		return model.User{}, fmt.Errorf("query user by email: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return model.User{}, fmt.Errorf("scan user by email: %w", err)
	}
	switch len(users) {
	case 0:
		return model.User{}, model.ErrUserNotFound
	case 1:
		return users[0], nil
	default:
		return model.User{}, ErrAmbiguousEmail
	}
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE id = $1
  `, userID)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("query user by id: %w", err)
	}
	return user, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanUser(row pgx.Row) (model.User, error) {
	var (
		user model.User
		role string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.FirstName,
		&user.LastName,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	user.Role = parseStoredRole(role)
	return user, nil
}

// parseStoredRole maps unknown stored roles to the generic user role, which
// reaches no role-scoped area.
func parseStoredRole(value string) access.Role {
	role, err := access.ParseRole(value)
	if err != nil {
		return access.RoleUser
	}
	return role
}

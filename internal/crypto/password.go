package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the minimum bcrypt work factor accepted for stored digests.
const DefaultCost = 12

var ErrPasswordMismatch = errors.New("password_mismatch")

func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, DefaultCost)
}

func HashPasswordCost(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword runs the full bcrypt comparison; its duration depends on the
// digest cost, not on how much of the password matched.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// Cost reports the work factor encoded in a digest.
func Cost(hash string) (int, error) {
	return bcrypt.Cost([]byte(hash))
}

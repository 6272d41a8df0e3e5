package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/bcrypt"

	"semaphore/auth-session/internal/access"
	"semaphore/auth-session/internal/crypto"
	"semaphore/auth-session/internal/model"
	"semaphore/auth-session/internal/repository"
)

const (
	adminID    = "22222222-2222-2222-2222-222222222221"
	teacherID  = "22222222-2222-2222-2222-222222222222"
	studentID  = "22222222-2222-2222-2222-222222222223"
	inactiveID = "22222222-2222-2222-2222-222222222224"
	password   = "dev-password"
)

func testUsers(t *testing.T) *repository.MemoryStore {
	t.Helper()
	hash, err := crypto.HashPasswordCost(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	return repository.NewMemoryStore(
		model.User{ID: adminID, Email: "admin@example.local", PasswordHash: hash, Role: access.RoleAdmin, IsActive: true},
		model.User{ID: teacherID, Email: "teacher@example.local", PasswordHash: hash, Role: access.RoleTeacher, IsActive: true},
		model.User{ID: studentID, Email: "student@example.local", PasswordHash: hash, Role: access.RoleStudent, IsActive: true},
		model.User{ID: inactiveID, Email: "gone@example.local", PasswordHash: hash, Role: access.RoleStudent, IsActive: false},
	)
}

func testVerifier(t *testing.T, users UserLookup) *Verifier {
	t.Helper()
	verifier, err := NewVerifier(users, bcrypt.MinCost, logr.Discard())
	if err != nil {
		t.Fatalf("verifier error: %v", err)
	}
	return verifier
}

func failureOf(t *testing.T, err error) *Failure {
	t.Helper()
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	return failure
}

func TestAuthenticateMatchingRole(t *testing.T) {
	verifier := testVerifier(t, testUsers(t))

	identity, err := verifier.Authenticate(context.Background(), " Student@Example.local ", password, access.RoleStudent)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if identity.ID != studentID || identity.Role != access.RoleStudent || !identity.IsActive {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestAuthenticateAdminOverride(t *testing.T) {
	verifier := testVerifier(t, testUsers(t))

	for _, claimed := range access.LoginRoles {
		identity, err := verifier.Authenticate(context.Background(), "admin@example.local", password, claimed)
		if err != nil {
			t.Fatalf("admin claiming %s: %v", claimed, err)
		}
		if identity.ID != adminID || identity.Role != access.RoleAdmin {
			t.Fatalf("unexpected identity %+v", identity)
		}
	}
}

func TestAuthenticateWrongRoleRevealsStoredRole(t *testing.T) {
	verifier := testVerifier(t, testUsers(t))

	_, err := verifier.Authenticate(context.Background(), "student@example.local", password, access.RoleTeacher)
	failure := failureOf(t, err)
	if failure.Kind != KindAuth {
		t.Fatalf("expected auth failure, got %s", failure.Kind)
	}
	if failure.Message != "This account is restricted to role student" {
		t.Fatalf("unexpected message %q", failure.Message)
	}
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	verifier := testVerifier(t, testUsers(t))
	ctx := context.Background()

	_, unknown := verifier.Authenticate(ctx, "nobody@example.local", password, access.RoleStudent)
	_, wrongPassword := verifier.Authenticate(ctx, "student@example.local", "nope", access.RoleStudent)
	_, inactiveWrongPassword := verifier.Authenticate(ctx, "gone@example.local", "nope", access.RoleStudent)

	for _, err := range []error{unknown, wrongPassword, inactiveWrongPassword} {
		failure := failureOf(t, err)
		if failure.Kind != KindAuth || failure.Message != MsgInvalidCredentials {
			t.Fatalf("expected generic invalid credentials, got %+v", failure)
		}
	}
}

func TestAuthenticateDeactivatedAfterPassword(t *testing.T) {
	verifier := testVerifier(t, testUsers(t))

	_, err := verifier.Authenticate(context.Background(), "gone@example.local", password, access.RoleStudent)
	failure := failureOf(t, err)
	if failure.Kind != KindAuth || failure.Message != MsgAccountDeactivated {
		t.Fatalf("expected deactivated failure, got %+v", failure)
	}
}

func TestAuthenticateValidation(t *testing.T) {
	verifier := testVerifier(t, testUsers(t))
	ctx := context.Background()

	cases := []struct {
		email    string
		password string
		role     access.Role
		message  string
	}{
		{"", password, access.RoleStudent, MsgMissingCredentials},
		{"student@example.local", "", access.RoleStudent, MsgMissingCredentials},
		{"not-an-email", password, access.RoleStudent, MsgInvalidEmail},
		{"admin@example.local", password, access.RoleAdmin, MsgInvalidUserType},
		{"student@example.local", password, access.RoleUser, MsgInvalidUserType},
	}
	for _, tc := range cases {
		_, err := verifier.Authenticate(ctx, tc.email, tc.password, tc.role)
		failure := failureOf(t, err)
		if failure.Kind != KindValidation || failure.Message != tc.message {
			t.Fatalf("email=%q role=%s: unexpected failure %+v", tc.email, tc.role, failure)
		}
	}
}

type failingLookup struct{}

func (failingLookup) GetUserByEmail(context.Context, string) (model.User, error) {
	return model.User{}, errors.New("connection refused")
}

func TestAuthenticateStoreOutage(t *testing.T) {
	verifier := testVerifier(t, failingLookup{})

	_, err := verifier.Authenticate(context.Background(), "student@example.local", password, access.RoleStudent)
	failure := failureOf(t, err)
	if failure.Kind != KindInfrastructure || failure.Message != MsgInternal {
		t.Fatalf("expected infrastructure failure, got %+v", failure)
	}
	if KindOf(err) != KindInfrastructure {
		t.Fatalf("expected KindOf to report infrastructure")
	}
}

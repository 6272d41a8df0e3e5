package access

import (
	"fmt"
	"strings"
)

// Role is one of the closed set of account categories.
type Role int

// New roles are appended directly before roleCount; landing.go refuses to
// compile until the new role has a landing entry.
const (
	RoleUser Role = iota
	RoleStudent
	RoleTeacher
	RoleParent
	RoleAdmin
	roleCount
)

var roleNames = [...]string{
	RoleUser:    "user",
	RoleStudent: "student",
	RoleTeacher: "teacher",
	RoleParent:  "parent",
	RoleAdmin:   "admin",
}

var _ = [1]struct{}{}[len(roleNames)-int(roleCount)]

// LoginRoles are the roles a caller may claim on the login form. Admin is
// never claimable; it only comes from the stored record.
var LoginRoles = []Role{RoleStudent, RoleTeacher, RoleParent}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

func (r Role) Valid() bool {
	return r >= 0 && r < roleCount
}

// Claimable reports whether r may be submitted as a login user type.
func (r Role) Claimable() bool {
	for _, candidate := range LoginRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(roleNames[r]), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole accepts the lower-case wire names, case-insensitively.
func ParseRole(value string) (Role, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	for i, name := range roleNames {
		if name == value {
			return Role(i), nil
		}
	}
	return RoleUser, fmt.Errorf("unknown role %q", value)
}

// Roles returns every role in declaration order.
func Roles() []Role {
	roles := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		roles = append(roles, r)
	}
	return roles
}

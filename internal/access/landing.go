package access

// Resource identifies a protected area by its path segment.
type Resource string

const (
	ResourceLogin       Resource = "login"
	ResourceDashboard   Resource = "dashboard"
	ResourceStudentArea Resource = "student"
	ResourceTeacherArea Resource = "teacher"
	ResourceParentArea  Resource = "parent"
	ResourceAdminArea   Resource = "admin"
)

var landingByRole = [...]Resource{
	RoleUser:    ResourceDashboard,
	RoleStudent: ResourceStudentArea,
	RoleTeacher: ResourceTeacherArea,
	RoleParent:  ResourceParentArea,
	RoleAdmin:   ResourceAdminArea,
}

// Build fails here when a role is added without a landing.
var _ = [1]struct{}{}[len(landingByRole)-int(roleCount)]

// DefaultLanding returns the area a role is sent to after login or when it
// reaches an area it may not see. Invalid roles land on the dashboard.
func DefaultLanding(role Role) Resource {
	if !role.Valid() {
		return ResourceDashboard
	}
	return landingByRole[role]
}

// Path returns the resource path without a locale prefix.
func (r Resource) Path() string {
	return "/" + string(r)
}

// Area is a protected resource and the roles it admits. An empty Allowed
// set admits any authenticated caller.
type Area struct {
	Resource Resource
	Allowed  []Role
}

var areas = []Area{
	{Resource: ResourceDashboard},
	{Resource: ResourceStudentArea, Allowed: []Role{RoleStudent}},
	{Resource: ResourceTeacherArea, Allowed: []Role{RoleTeacher, RoleAdmin}},
	{Resource: ResourceParentArea, Allowed: []Role{RoleParent, RoleAdmin}},
	{Resource: ResourceAdminArea, Allowed: []Role{RoleAdmin}},
}

// Areas returns a copy of the protected area declarations.
func Areas() []Area {
	out := make([]Area, len(areas))
	for i, area := range areas {
		out[i] = Area{Resource: area.Resource, Allowed: append([]Role(nil), area.Allowed...)}
	}
	return out
}

// IsAllowed is true when required is empty or contains role. Admin gets no
// implicit grant; areas list it explicitly where oversight is wanted.
func IsAllowed(role Role, required []Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, candidate := range required {
		if candidate == role {
			return true
		}
	}
	return false
}

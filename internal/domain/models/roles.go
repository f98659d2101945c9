// internal/domain/models/roles.go
package models

import "strings"

// Role is the closed set of user roles. Role strings arriving from the
// database or a session are parsed exactly once, at the data-access
// boundary, via ParseRole; everything downstream compares Role values and
// never re-inspects raw strings.
type Role string

const (
	RoleMentee           Role = "mentee"
	RoleMentor           Role = "mentor"
	RoleOrgAdmin         Role = "org_admin"
	RolePlatformOperator Role = "platform_operator"

	// RoleUnknown is returned by ParseRole for spellings outside the closed
	// set. Policy code treats it as the least-privileged role.
	RoleUnknown Role = ""
)

// ParseRole normalizes the role spellings that have appeared in stored user
// documents over time into the closed Role set.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mentee", "student":
		return RoleMentee
	case "mentor":
		return RoleMentor
	case "org_admin", "orgadmin", "organization-admin", "admin":
		return RoleOrgAdmin
	case "platform_operator", "operator", "superadmin":
		return RolePlatformOperator
	default:
		return RoleUnknown
	}
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMentee, RoleMentor, RoleOrgAdmin, RolePlatformOperator:
		return true
	}
	return false
}

// Staff reports whether r carries the admin override for direct
// conversations (organization admins and platform operators).
func (r Role) Staff() bool {
	return r == RoleOrgAdmin || r == RolePlatformOperator
}

func (r Role) String() string { return string(r) }

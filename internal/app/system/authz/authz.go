// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/dalemusser/mentorhub/internal/app/system/auth"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role, name, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// (RoleUnknown, "", NilObjectID, false) so callers can trust that ok=true
// means a valid, authenticated user with a valid ObjectID. The role string
// was normalized by the session fetcher; this is the only place it is parsed.
func UserCtx(r *http.Request) (role models.Role, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return models.RoleUnknown, "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed.
		return models.RoleUnknown, "", primitive.NilObjectID, false
	}
	return models.ParseRole(user.Role), user.Name, userID, true
}

// IsPlatformOperator reports whether the current request's user is a
// platform operator.
func IsPlatformOperator(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RolePlatformOperator
}

// IsOrgAdmin reports whether the current request's user is an organization
// admin.
func IsOrgAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleOrgAdmin
}

// IsStaff reports whether the current user carries the admin override
// (org admin or platform operator).
func IsStaff(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role.Staff()
}

// UserOrgID returns the current user's organization ID as an ObjectID.
// Returns NilObjectID if the user is not signed in or has no organization
// (platform operators).
func UserOrgID(r *http.Request) primitive.ObjectID {
	user, ok := auth.CurrentUser(r)
	if !ok || user.OrganizationID == "" {
		return primitive.NilObjectID
	}
	oid, err := primitive.ObjectIDFromHex(user.OrganizationID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// CanAccessOrg reports whether the current user may read data scoped to
// orgID: members of the organization always can, platform operators can
// cross tenant boundaries, everyone else cannot.
func CanAccessOrg(r *http.Request, orgID primitive.ObjectID) bool {
	role, _, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	if role == models.RolePlatformOperator {
		return true
	}
	return UserOrgID(r) == orgID
}

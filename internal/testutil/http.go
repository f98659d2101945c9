// internal/testutil/http.go
package testutil

import (
	"net/http"

	"github.com/dalemusser/mentorhub/internal/app/system/auth"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionUserFor builds the session view of a stored user for handler
// tests.
func SessionUserFor(u models.User) *auth.SessionUser {
	su := &auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName,
		Email: u.Email,
		Role:  u.Role.String(),
	}
	if u.OrganizationID != nil {
		su.OrganizationID = u.OrganizationID.Hex()
	}
	return su
}

// OrgAdminUser returns a signed-in org admin for orgID.
func OrgAdminUser(orgID primitive.ObjectID) *auth.SessionUser {
	return &auth.SessionUser{
		ID:             primitive.NewObjectID().Hex(),
		Name:           "Test Admin",
		Email:          "admin@test.example",
		Role:           models.RoleOrgAdmin.String(),
		OrganizationID: orgID.Hex(),
	}
}

// OperatorUser returns a signed-in platform operator (no organization).
func OperatorUser() *auth.SessionUser {
	return &auth.SessionUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test Operator",
		Email: "operator@test.example",
		Role:  models.RolePlatformOperator.String(),
	}
}

// MenteeUser returns a signed-in mentee in orgID.
func MenteeUser(orgID primitive.ObjectID) *auth.SessionUser {
	return &auth.SessionUser{
		ID:             primitive.NewObjectID().Hex(),
		Name:           "Test Mentee",
		Email:          "mentee@test.example",
		Role:           models.RoleMentee.String(),
		OrganizationID: orgID.Hex(),
	}
}

// SignedInRequest attaches a test user to the request context, bypassing
// the cookie store.
func SignedInRequest(r *http.Request, u *auth.SessionUser) *http.Request {
	return auth.WithTestUser(r, u)
}

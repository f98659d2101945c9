// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents mentees, mentors, organization admins, and platform
// operators.
//
// NOTE:
//   - Role and OrganizationID are mutable; role changes are picked up by the
//     membership synchronizer, which heals the default chat groups.
//   - CreatedAt doubles as the "joinable from" boundary for group history:
//     it is the best available proxy for when the user became eligible for a
//     default group. A tracked join event would be more precise, but changing
//     it changes observable behavior, so the proxy stays.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"full_name" json:"full_name"`
	FullNameCI   string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	Status       string             `bson:"status,omitempty" json:"status,omitempty"`

	// OrganizationID is nil only for platform operators, who sit outside
	// any single tenant.
	OrganizationID *primitive.ObjectID `bson:"organization_id,omitempty" json:"organization_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// OrgID returns the user's organization id, or NilObjectID when unset.
func (u User) OrgID() primitive.ObjectID {
	if u.OrganizationID == nil {
		return primitive.NilObjectID
	}
	return *u.OrganizationID
}

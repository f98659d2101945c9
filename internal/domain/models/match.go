// internal/domain/models/match.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Match statuses.
const (
	MatchActive   = "active"
	MatchInactive = "inactive"
)

// Match pairs a mentor and a mentee inside one organization. An active match
// grants the pair implicit direct-messaging eligibility; an inactive match
// grants nothing (though a previously approved private-message request keeps
// the pair visible regardless).
type Match struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	MentorID       primitive.ObjectID `bson:"mentor_id" json:"mentor_id"`
	MenteeID       primitive.ObjectID `bson:"mentee_id" json:"mentee_id"`
	Status         string             `bson:"status" json:"status"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// Pairs reports whether the match joins users a and b (in either order).
func (m Match) Pairs(a, b primitive.ObjectID) bool {
	return (m.MentorID == a && m.MenteeID == b) || (m.MentorID == b && m.MenteeID == a)
}

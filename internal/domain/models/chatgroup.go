// internal/domain/models/chatgroup.go
package models

import (
	"crypto/sha256"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupKind distinguishes the two synthesized/healed default groups from
// user-created ones.
type GroupKind string

const (
	GroupDefaultMentors GroupKind = "default_mentors"
	GroupDefaultMentees GroupKind = "default_mentees"
	GroupCustom         GroupKind = "custom"
)

// Default reports whether k is one of the two default group kinds.
func (k GroupKind) Default() bool {
	return k == GroupDefaultMentors || k == GroupDefaultMentees
}

// ChatGroup represents a group conversation.
//
// NOTE:
//   - MemberIDs is a set: no duplicates, insertion order irrelevant.
//   - The two default groups per organization live under deterministic ids
//     (DefaultGroupID) so they can be healed in place and never re-created
//     under a second id.
//   - Platform operators are never added to default groups automatically,
//     only by explicit invitation.
type ChatGroup struct {
	ID             primitive.ObjectID   `bson:"_id" json:"id"`
	OrganizationID primitive.ObjectID   `bson:"organization_id" json:"organization_id"`
	Name           string               `bson:"name" json:"name"`
	NameCI         string               `bson:"name_ci" json:"-"`
	Kind           GroupKind            `bson:"kind" json:"kind"`
	MemberIDs      []primitive.ObjectID `bson:"member_ids" json:"member_ids"`
	CreatedByID    primitive.ObjectID   `bson:"created_by_id,omitempty" json:"created_by_id,omitempty"`
	CreatedAt      time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `bson:"updated_at" json:"updated_at"`
}

// MemberSet returns the member ids as a set.
func (g ChatGroup) MemberSet() map[primitive.ObjectID]struct{} {
	set := make(map[primitive.ObjectID]struct{}, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		set[id] = struct{}{}
	}
	return set
}

// HasMember reports whether userID is in the group's member set.
func (g ChatGroup) HasMember(userID primitive.ObjectID) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// DefaultGroupID derives the fixed, well-known id for an organization's
// default group on the given side. The id is a function of (orgID, kind)
// only, so every node computes the same id and the synchronizer can heal the
// group in place without coordination.
func DefaultGroupID(orgID primitive.ObjectID, kind GroupKind) primitive.ObjectID {
	sum := sha256.Sum256([]byte("chat_group:" + string(kind) + ":" + orgID.Hex()))
	var id primitive.ObjectID
	copy(id[:], sum[:12])
	return id
}

// DefaultGroupKind reports which default side the canonical group id
// belongs to within the organization, if any.
func DefaultGroupKind(orgID, groupID primitive.ObjectID) (GroupKind, bool) {
	for _, kind := range []GroupKind{GroupDefaultMentors, GroupDefaultMentees} {
		if DefaultGroupID(orgID, kind) == groupID {
			return kind, true
		}
	}
	return "", false
}

// DefaultGroupName returns the display name used when a default group is
// first created or synthesized.
func DefaultGroupName(kind GroupKind) string {
	switch kind {
	case GroupDefaultMentors:
		return "All Mentors"
	case GroupDefaultMentees:
		return "All Mentees"
	default:
		return ""
	}
}

// QualifiesForDefaultGroup reports whether a role belongs in the default
// group of the given kind. Organization admins belong to both sides;
// platform operators never qualify automatically.
func QualifiesForDefaultGroup(role Role, kind GroupKind) bool {
	switch kind {
	case GroupDefaultMentors:
		return role == RoleMentor || role == RoleOrgAdmin
	case GroupDefaultMentees:
		return role == RoleMentee || role == RoleOrgAdmin
	default:
		return false
	}
}

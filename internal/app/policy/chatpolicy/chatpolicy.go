// Package chatpolicy decides, per viewer and per message, what a chat
// participant may see. It is deliberately pure: no database handles, no
// clocks, no side effects. Callers resolve the facts (group membership,
// match status, consent) and the policy only combines them, so it can be
// re-evaluated on every incoming batch as membership, roles, and consent
// drift underneath it.
//
// "No access" is never an error here. The functions return false or an
// empty slice; errors are reserved for the infrastructure that feeds them.
package chatpolicy

import (
	"time"

	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Viewer is the subject of every policy decision.
type Viewer struct {
	ID    primitive.ObjectID
	Role  models.Role
	OrgID primitive.ObjectID

	// JoinableFrom approximates when the viewer became eligible for group
	// conversations; account-creation time is the best available proxy.
	// Group history older than this stays hidden.
	JoinableFrom time.Time
}

// GroupFacts is the resolved state of one group conversation.
type GroupFacts struct {
	Exists    bool
	OrgID     primitive.ObjectID
	MemberIDs map[primitive.ObjectID]struct{}
	CreatedAt time.Time
}

// DirectFacts is the resolved state of one direct conversation, from the
// viewer's perspective.
type DirectFacts struct {
	CounterpartID primitive.ObjectID

	// CounterpartKnown is false when the counterpart user cannot be
	// resolved (deleted account). Already-exchanged messages then stay
	// visible by id match alone; new subscriptions are refused.
	CounterpartKnown bool
	CounterpartRole  models.Role
	ActiveMatch      bool
	ConsentApproved  bool
}

// ApplyDefaultMembership widens persisted group facts with the default-group
// rule: a viewer whose current role qualifies for the organization's default
// group counts as a member of its canonical group id, even while the
// synchronizer has yet to heal the persisted member set. When the canonical
// document does not exist at all, facts are synthesized with the viewer as
// sole member; CreatedAt stays zero so the temporal cutoff falls back to the
// viewer's own eligibility. Facts for every other group pass through
// unchanged.
func ApplyDefaultMembership(v Viewer, groupID primitive.ObjectID, g GroupFacts) GroupFacts {
	kind, ok := models.DefaultGroupKind(v.OrgID, groupID)
	if !ok || !models.QualifiesForDefaultGroup(v.Role, kind) {
		return g
	}
	if !g.Exists {
		g.Exists = true
		g.OrgID = v.OrgID
	}
	members := make(map[primitive.ObjectID]struct{}, len(g.MemberIDs)+1)
	for id := range g.MemberIDs {
		members[id] = struct{}{}
	}
	members[v.ID] = struct{}{}
	g.MemberIDs = members
	return g
}

// CanSee reports whether the viewer may read the message. Facts for the
// message's conversation kind must be supplied; the other may be zero.
func CanSee(v Viewer, m models.ChatMessage, g GroupFacts, d DirectFacts) bool {
	if !sameTenant(v, m.OrganizationID) {
		return false
	}
	switch m.ConversationKind {
	case models.ConversationGroup:
		return canSeeGroup(v, m, g)
	case models.ConversationDirect:
		return canSeeDirect(v, m, d)
	default:
		return false
	}
}

// CanSubscribeGroup reports whether the viewer may open a stream on the
// group at all. Non-members get an empty published result, not a stream.
func CanSubscribeGroup(v Viewer, g GroupFacts) bool {
	if !g.Exists {
		return false
	}
	if !sameTenant(v, g.OrgID) {
		return false
	}
	_, member := g.MemberIDs[v.ID]
	return member
}

// CanSubscribeDirect reports whether the viewer may open a direct
// conversation with the counterpart. Requires the counterpart to resolve:
// visibility of old messages with a deleted counterpart fails open, but new
// subscriptions fail closed.
func CanSubscribeDirect(v Viewer, d DirectFacts) bool {
	if !d.CounterpartKnown {
		return false
	}
	if v.ID == d.CounterpartID {
		return false
	}
	return directEligible(v, d)
}

// FilterMessages returns the messages the viewer may see, preserving order.
// It returns nil when nothing is visible.
func FilterMessages(v Viewer, msgs []models.ChatMessage, g GroupFacts, d DirectFacts) []models.ChatMessage {
	var out []models.ChatMessage
	for _, m := range msgs {
		if CanSee(v, m, g, d) {
			out = append(out, m)
		}
	}
	return out
}

func canSeeGroup(v Viewer, m models.ChatMessage, g GroupFacts) bool {
	if !g.Exists {
		return false
	}
	if _, member := g.MemberIDs[v.ID]; !member {
		return false
	}
	// Messages predating the viewer's eligibility stay hidden: a member
	// added later must not read history from before they could have joined.
	cutoff := g.CreatedAt
	if v.JoinableFrom.After(cutoff) {
		cutoff = v.JoinableFrom
	}
	return !m.SentAt.Before(cutoff)
}

func canSeeDirect(v Viewer, m models.ChatMessage, d DirectFacts) bool {
	// The viewer must be a party to the message: its sender, or the
	// recipient the conversation is keyed by.
	if v.ID != m.SenderID && v.ID != m.ConversationID {
		return false
	}
	// Deleted counterpart: fail open for messages already exchanged.
	if !d.CounterpartKnown {
		return true
	}
	return directEligible(v, d)
}

// directEligible is the shared direct-pair rule: staff on either side, an
// active match, or approved consent (in either direction) makes the pair
// mutually visible.
func directEligible(v Viewer, d DirectFacts) bool {
	if v.Role.Staff() || d.CounterpartRole.Staff() {
		return true
	}
	if d.ActiveMatch {
		return true
	}
	return d.ConsentApproved
}

// sameTenant enforces organization isolation. Platform operators may cross
// tenant boundaries; everyone else is confined to their own organization.
func sameTenant(v Viewer, orgID primitive.ObjectID) bool {
	if v.Role == models.RolePlatformOperator {
		return true
	}
	return !v.OrgID.IsZero() && v.OrgID == orgID
}

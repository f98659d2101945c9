// Package directory produces the ranked list of conversations a viewer may
// open. It is a pure merge over persisted groups, the organization roster,
// match records, and approved consent partners; the store is never touched
// from here.
package directory

import (
	"sort"

	"github.com/dalemusser/mentorhub/internal/app/policy/chatpolicy"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is one row in the viewer's conversation list.
type Conversation struct {
	// ID is the group id for group conversations and the counterpart's
	// user id for direct ones, hex encoded. Unique within one viewer's list.
	ID   string                  `json:"id"`
	Kind models.ConversationKind `json:"kind"`
	Name string                  `json:"name"`

	GroupID       primitive.ObjectID `json:"-"`
	CounterpartID primitive.ObjectID `json:"-"`

	// Default marks the two synthesized/healed per-organization groups.
	Default bool `json:"default"`

	// Synthesized is true when the row is a placeholder for a default group
	// the membership synchronizer has not persisted yet. A persisted group
	// under the same id always replaces the placeholder.
	Synthesized bool `json:"-"`

	Pinned bool `json:"pinned"`
}

// Input carries everything Build needs, already loaded.
type Input struct {
	Viewer     chatpolicy.Viewer
	ViewerName string

	Groups  []models.ChatGroup // persisted groups in the viewer's org
	Roster  []models.User      // org users plus platform operators
	Matches []models.Match

	// ApprovedPartners is the viewer's durable consent set.
	ApprovedPartners map[primitive.ObjectID]struct{}

	// Pinned holds conversation ids the viewer pinned, in no order.
	Pinned map[string]struct{}
}

// Build returns the viewer's ranked conversation list. A viewer with no
// organization (and no operator privileges) gets an empty list, not an
// error.
func Build(in Input) []Conversation {
	v := in.Viewer
	if v.OrgID.IsZero() && v.Role != models.RolePlatformOperator {
		return nil
	}

	var out []Conversation
	seen := make(map[string]struct{})

	add := func(c Conversation) {
		if _, dup := seen[c.ID]; dup {
			return
		}
		seen[c.ID] = struct{}{}
		if _, p := in.Pinned[c.ID]; p {
			c.Pinned = true
		}
		out = append(out, c)
	}

	// Default groups first: persisted record wins by id, a synthesized
	// placeholder bridges the gap while the synchronizer heals the store.
	persisted := make(map[primitive.ObjectID]models.ChatGroup, len(in.Groups))
	for _, g := range in.Groups {
		persisted[g.ID] = g
	}
	for _, kind := range []models.GroupKind{models.GroupDefaultMentors, models.GroupDefaultMentees} {
		id := models.DefaultGroupID(v.OrgID, kind)
		if g, ok := persisted[id]; ok {
			if groupVisible(v, g) {
				add(groupConversation(g))
			}
			continue
		}
		// No persisted canonical group yet: synthesize the placeholder when
		// the viewer's role implies eligibility. Platform operators are
		// never auto-enrolled, so they never get a placeholder.
		if models.QualifiesForDefaultGroup(v.Role, kind) {
			add(Conversation{
				ID:          id.Hex(),
				Kind:        models.ConversationGroup,
				Name:        models.DefaultGroupName(kind),
				GroupID:     id,
				Default:     true,
				Synthesized: true,
			})
		}
	}

	// Remaining persisted groups, sorted by name for a stable base order.
	rest := make([]models.ChatGroup, 0, len(in.Groups))
	for _, g := range in.Groups {
		rest = append(rest, g)
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].NameCI < rest[j].NameCI })
	for _, g := range rest {
		if groupVisible(v, g) {
			add(groupConversation(g))
		}
	}

	// Eligible direct counterparts: staff, active match partners, approved
	// consent partners; never self.
	eligible := make(map[primitive.ObjectID]struct{})
	for _, u := range in.Roster {
		if u.Role.Staff() {
			eligible[u.ID] = struct{}{}
		}
	}
	for _, m := range in.Matches {
		if m.Status != models.MatchActive {
			continue
		}
		if m.MentorID == v.ID {
			eligible[m.MenteeID] = struct{}{}
		}
		if m.MenteeID == v.ID {
			eligible[m.MentorID] = struct{}{}
		}
	}
	for id := range in.ApprovedPartners {
		eligible[id] = struct{}{}
	}
	delete(eligible, v.ID)

	directs := make([]Conversation, 0, len(eligible))
	for _, u := range in.Roster {
		if _, ok := eligible[u.ID]; !ok {
			continue
		}
		directs = append(directs, Conversation{
			ID:            u.ID.Hex(),
			Kind:          models.ConversationDirect,
			Name:          u.FullName,
			CounterpartID: u.ID,
		})
	}
	sort.SliceStable(directs, func(i, j int) bool { return directs[i].Name < directs[j].Name })
	for _, c := range directs {
		add(c)
	}

	// Pinned conversations float to the top; the stable sort keeps the base
	// order for ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pinned && !out[j].Pinned })
	return out
}

// groupVisible decides whether a persisted group belongs in the viewer's
// list. Default groups admit qualifying roles even before the member set is
// healed; custom groups require explicit membership. Platform operators see
// a group only once explicitly added to its member set.
func groupVisible(v chatpolicy.Viewer, g models.ChatGroup) bool {
	if v.Role != models.RolePlatformOperator && g.OrganizationID != v.OrgID {
		return false
	}
	if g.HasMember(v.ID) {
		return true
	}
	if v.Role == models.RolePlatformOperator {
		return false
	}
	return g.Kind.Default() && models.QualifiesForDefaultGroup(v.Role, g.Kind)
}

func groupConversation(g models.ChatGroup) Conversation {
	return Conversation{
		ID:      g.ID.Hex(),
		Kind:    models.ConversationGroup,
		Name:    g.Name,
		GroupID: g.ID,
		Default: g.Kind.Default(),
	}
}

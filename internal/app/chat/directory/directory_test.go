package directory_test

import (
	"testing"
	"time"

	"github.com/dalemusser/mentorhub/internal/app/chat/directory"
	"github.com/dalemusser/mentorhub/internal/app/policy/chatpolicy"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func orgUser(id primitive.ObjectID, name string, role models.Role, org primitive.ObjectID) models.User {
	return models.User{
		ID:             id,
		FullName:       name,
		FullNameCI:     name,
		Role:           role,
		OrganizationID: &org,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestBuild_EmptyWithoutOrg(t *testing.T) {
	v := chatpolicy.Viewer{ID: primitive.NewObjectID(), Role: models.RoleMentor}
	got := directory.Build(directory.Input{Viewer: v})
	if len(got) != 0 {
		t.Fatalf("viewer without org must get an empty list, got %d rows", len(got))
	}
}

func TestBuild_SynthesizesDefaultGroups(t *testing.T) {
	org := primitive.NewObjectID()
	v := chatpolicy.Viewer{ID: primitive.NewObjectID(), Role: models.RoleMentor, OrgID: org}

	got := directory.Build(directory.Input{Viewer: v})
	if len(got) != 1 {
		t.Fatalf("mentor with no persisted groups should get 1 synthesized default, got %d", len(got))
	}
	want := models.DefaultGroupID(org, models.GroupDefaultMentors).Hex()
	if got[0].ID != want {
		t.Errorf("synthesized group id: got %s, want canonical %s", got[0].ID, want)
	}
	if !got[0].Default {
		t.Error("synthesized default group must be flagged Default")
	}
}

func TestBuild_OrgAdminGetsBothDefaults(t *testing.T) {
	org := primitive.NewObjectID()
	v := chatpolicy.Viewer{ID: primitive.NewObjectID(), Role: models.RoleOrgAdmin, OrgID: org}

	got := directory.Build(directory.Input{Viewer: v})
	if len(got) != 2 {
		t.Fatalf("org admin should get both default groups, got %d", len(got))
	}
}

func TestBuild_PersistedWinsOverSynthesized(t *testing.T) {
	org := primitive.NewObjectID()
	v := chatpolicy.Viewer{ID: primitive.NewObjectID(), Role: models.RoleMentor, OrgID: org}

	id := models.DefaultGroupID(org, models.GroupDefaultMentors)
	persisted := models.ChatGroup{
		ID:             id,
		OrganizationID: org,
		Name:           "All Mentors (healed)",
		NameCI:         "all mentors (healed)",
		Kind:           models.GroupDefaultMentors,
		MemberIDs:      []primitive.ObjectID{v.ID},
	}

	got := directory.Build(directory.Input{Viewer: v, Groups: []models.ChatGroup{persisted}})
	if len(got) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(got))
	}
	if got[0].Name != "All Mentors (healed)" {
		t.Errorf("persisted group must win over the placeholder, got name %q", got[0].Name)
	}
	if got[0].Synthesized {
		t.Error("persisted group must not be marked synthesized")
	}
}

func TestBuild_CustomGroupRequiresMembership(t *testing.T) {
	org := primitive.NewObjectID()
	v := chatpolicy.Viewer{ID: primitive.NewObjectID(), Role: models.RoleMentee, OrgID: org}

	mine := models.ChatGroup{
		ID:             primitive.NewObjectID(),
		OrganizationID: org,
		Name:           "Book Club",
		NameCI:         "book club",
		Kind:           models.GroupCustom,
		MemberIDs:      []primitive.ObjectID{v.ID},
	}
	other := models.ChatGroup{
		ID:             primitive.NewObjectID(),
		OrganizationID: org,
		Name:           "Staff Only",
		NameCI:         "staff only",
		Kind:           models.GroupCustom,
	}

	got := directory.Build(directory.Input{Viewer: v, Groups: []models.ChatGroup{mine, other}})

	names := make(map[string]bool)
	for _, c := range got {
		names[c.Name] = true
	}
	if !names["Book Club"] {
		t.Error("member's custom group missing from list")
	}
	if names["Staff Only"] {
		t.Error("non-member custom group must be filtered out")
	}
}

func TestBuild_PlatformOperatorOmittedUntilInvited(t *testing.T) {
	// A platform operator sees a default group only once explicitly added
	// to its member set.
	org := primitive.NewObjectID()
	op := chatpolicy.Viewer{ID: primitive.NewObjectID(), Role: models.RolePlatformOperator, OrgID: org}

	id := models.DefaultGroupID(org, models.GroupDefaultMentees)
	mentees := models.ChatGroup{
		ID:             id,
		OrganizationID: org,
		Name:           "All Mentees",
		NameCI:         "all mentees",
		Kind:           models.GroupDefaultMentees,
		MemberIDs:      []primitive.ObjectID{primitive.NewObjectID()},
	}

	got := directory.Build(directory.Input{Viewer: op, Groups: []models.ChatGroup{mentees}})
	for _, c := range got {
		if c.Kind == models.ConversationGroup && c.GroupID == id {
			t.Fatal("operator must not see the default group before being invited")
		}
	}

	mentees.MemberIDs = append(mentees.MemberIDs, op.ID)
	got = directory.Build(directory.Input{Viewer: op, Groups: []models.ChatGroup{mentees}})
	found := false
	for _, c := range got {
		if c.GroupID == id {
			found = true
		}
	}
	if !found {
		t.Error("operator explicitly in the member set must see the group")
	}
}

func TestBuild_DirectCounterparts(t *testing.T) {
	org := primitive.NewObjectID()
	viewerID := primitive.NewObjectID()
	v := chatpolicy.Viewer{ID: viewerID, Role: models.RoleMentee, OrgID: org}

	adminID := primitive.NewObjectID()
	mentorID := primitive.NewObjectID()
	strangerID := primitive.NewObjectID()
	consentedID := primitive.NewObjectID()

	roster := []models.User{
		orgUser(viewerID, "Me", models.RoleMentee, org),
		orgUser(adminID, "Admin", models.RoleOrgAdmin, org),
		orgUser(mentorID, "Mentor", models.RoleMentor, org),
		orgUser(strangerID, "Stranger", models.RoleMentor, org),
		orgUser(consentedID, "Consented", models.RoleMentee, org),
	}
	matches := []models.Match{{
		OrganizationID: org,
		MentorID:       mentorID,
		MenteeID:       viewerID,
		Status:         models.MatchActive,
	}}

	got := directory.Build(directory.Input{
		Viewer:           v,
		Roster:           roster,
		Matches:          matches,
		ApprovedPartners: map[primitive.ObjectID]struct{}{consentedID: {}},
	})

	direct := make(map[primitive.ObjectID]bool)
	for _, c := range got {
		if c.Kind == models.ConversationDirect {
			direct[c.CounterpartID] = true
		}
	}
	if !direct[adminID] {
		t.Error("org admin must be an eligible direct counterpart")
	}
	if !direct[mentorID] {
		t.Error("active match partner must be an eligible direct counterpart")
	}
	if !direct[consentedID] {
		t.Error("approved consent partner must be an eligible direct counterpart")
	}
	if direct[strangerID] {
		t.Error("an unmatched, unconsented mentor must not appear")
	}
	if direct[viewerID] {
		t.Error("the viewer must never be their own counterpart")
	}
}

func TestBuild_InactiveMatchExcluded(t *testing.T) {
	org := primitive.NewObjectID()
	viewerID := primitive.NewObjectID()
	exID := primitive.NewObjectID()
	v := chatpolicy.Viewer{ID: viewerID, Role: models.RoleMentee, OrgID: org}

	got := directory.Build(directory.Input{
		Viewer: v,
		Roster: []models.User{orgUser(exID, "Ex Mentor", models.RoleMentor, org)},
		Matches: []models.Match{{
			OrganizationID: org,
			MentorID:       exID,
			MenteeID:       viewerID,
			Status:         models.MatchInactive,
		}},
	})
	for _, c := range got {
		if c.Kind == models.ConversationDirect && c.CounterpartID == exID {
			t.Error("inactive match must not grant a direct conversation")
		}
	}
}

func TestBuild_PinnedFirstStable(t *testing.T) {
	org := primitive.NewObjectID()
	v := chatpolicy.Viewer{ID: primitive.NewObjectID(), Role: models.RoleOrgAdmin, OrgID: org}

	aID := primitive.NewObjectID()
	bID := primitive.NewObjectID()
	roster := []models.User{
		orgUser(aID, "Alice", models.RoleOrgAdmin, org),
		orgUser(bID, "Bob", models.RoleOrgAdmin, org),
	}

	got := directory.Build(directory.Input{
		Viewer: v,
		Roster: roster,
		Pinned: map[string]struct{}{bID.Hex(): {}},
	})
	if len(got) == 0 {
		t.Fatal("expected conversations")
	}
	if got[0].ID != bID.Hex() {
		t.Errorf("pinned conversation must rank first, got %s", got[0].Name)
	}
	if !got[0].Pinned {
		t.Error("pinned flag must be set")
	}
	// The unpinned remainder keeps its base order: defaults, then directs
	// by name.
	if got[1].Kind != models.ConversationGroup {
		t.Error("default groups should precede unpinned directs")
	}
}

func TestBuild_DeduplicatesById(t *testing.T) {
	org := primitive.NewObjectID()
	v := chatpolicy.Viewer{ID: primitive.NewObjectID(), Role: models.RoleMentor, OrgID: org}

	id := models.DefaultGroupID(org, models.GroupDefaultMentors)
	g := models.ChatGroup{
		ID:             id,
		OrganizationID: org,
		Name:           "All Mentors",
		NameCI:         "all mentors",
		Kind:           models.GroupDefaultMentors,
		MemberIDs:      []primitive.ObjectID{v.ID},
	}

	// The same group arriving twice (eventually consistent reads) must
	// produce one row.
	got := directory.Build(directory.Input{Viewer: v, Groups: []models.ChatGroup{g, g}})
	count := 0
	for _, c := range got {
		if c.GroupID == id {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly 1 row for the group, got %d", count)
	}
}

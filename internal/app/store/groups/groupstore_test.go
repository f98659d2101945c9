package groupstore_test

import (
	"errors"
	"testing"

	groupstore "github.com/dalemusser/mentorhub/internal/app/store/groups"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/dalemusser/mentorhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newStore(t *testing.T) *groupstore.Store {
	t.Helper()
	return groupstore.New(testutil.SetupTestDB(t), zap.NewNop())
}

func TestCreate_FixedIDIsStable(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orgID := primitive.NewObjectID()
	wantID := models.DefaultGroupID(orgID, models.GroupDefaultMentees)

	g, err := store.Create(ctx, models.ChatGroup{
		OrganizationID: orgID,
		Name:           models.DefaultGroupName(models.GroupDefaultMentees),
		Kind:           models.GroupDefaultMentees,
	}, &wantID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.ID != wantID {
		t.Errorf("id = %s, want deterministic %s", g.ID.Hex(), wantID.Hex())
	}

	// A racing second create under the same id loses cleanly.
	_, err = store.Create(ctx, models.ChatGroup{
		OrganizationID: orgID,
		Name:           "duplicate",
		Kind:           models.GroupDefaultMentees,
	}, &wantID)
	if !errors.Is(err, groupstore.ErrGroupExists) {
		t.Errorf("err = %v, want ErrGroupExists", err)
	}
}

func TestCreate_DedupesMembersAndDefaultsKind(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	member := primitive.NewObjectID()
	g, err := store.Create(ctx, models.ChatGroup{
		OrganizationID: primitive.NewObjectID(),
		Name:           "Cohort 12",
		MemberIDs:      []primitive.ObjectID{member, member},
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(g.MemberIDs) != 1 {
		t.Errorf("members = %d, want 1 after dedupe", len(g.MemberIDs))
	}
	if g.Kind != models.GroupCustom {
		t.Errorf("kind = %q, want custom by default", g.Kind)
	}
}

func TestAddRemoveMember_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g, err := store.Create(ctx, models.ChatGroup{
		OrganizationID: primitive.NewObjectID(),
		Name:           "Cohort 12",
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	member := primitive.NewObjectID()

	if err := store.AddMember(ctx, g.ID, member); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := store.AddMember(ctx, g.ID, member); err != nil {
		t.Fatalf("second AddMember: %v", err)
	}
	got, err := store.GetByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got.MemberIDs) != 1 || !got.HasMember(member) {
		t.Fatalf("members = %v, want just the one added member", got.MemberIDs)
	}

	if err := store.RemoveMember(ctx, g.ID, member); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	got, err = store.GetByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.HasMember(member) {
		t.Errorf("member should be gone, got %v", got.MemberIDs)
	}
}

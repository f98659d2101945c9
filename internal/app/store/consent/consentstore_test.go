package consentstore_test

import (
	"errors"
	"testing"

	consentstore "github.com/dalemusser/mentorhub/internal/app/store/consent"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/dalemusser/mentorhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newStore(t *testing.T) *consentstore.Store {
	t.Helper()
	return consentstore.New(testutil.SetupTestDB(t), zap.NewNop())
}

func pending(orgID, requesterID, recipientID primitive.ObjectID) models.PrivateMessageRequest {
	return models.PrivateMessageRequest{
		OrganizationID: orgID,
		RequesterID:    requesterID,
		RecipientID:    recipientID,
	}
}

func TestCreate_SecondPendingConflicts(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := primitive.NewObjectID()
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	if _, err := store.Create(ctx, pending(org, a, b)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := store.Create(ctx, pending(org, a, b))
	if !errors.Is(err, consentstore.ErrConflictingRequest) {
		t.Errorf("err = %v, want ErrConflictingRequest", err)
	}

	// The reverse direction is a different ordered pair and is allowed.
	if _, err := store.Create(ctx, pending(org, b, a)); err != nil {
		t.Errorf("reverse-direction create: %v", err)
	}
}

func TestCreate_DeclineIsTerminalForThePair(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := primitive.NewObjectID()
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	first, err := store.Create(ctx, pending(org, a, b))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Resolve(ctx, first.ID, false); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// A decline is terminal: the same direction cannot be re-requested.
	if _, err := store.Create(ctx, pending(org, a, b)); !errors.Is(err, consentstore.ErrConflictingRequest) {
		t.Errorf("err = %v, want ErrConflictingRequest after decline", err)
	}

	// The recipient of the decline may still ask the other way.
	if _, err := store.Create(ctx, pending(org, b, a)); err != nil {
		t.Errorf("reverse-direction create after decline: %v", err)
	}
}

func TestResolve_IsTerminal(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := primitive.NewObjectID()
	req, err := store.Create(ctx, pending(org, primitive.NewObjectID(), primitive.NewObjectID()))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	approved, err := store.Resolve(ctx, req.ID, true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if approved.Status != models.RequestApproved {
		t.Errorf("status = %q, want %q", approved.Status, models.RequestApproved)
	}
	if approved.RespondedAt == nil {
		t.Errorf("responded_at should be set")
	}

	// A second resolution, even with the opposite outcome, changes nothing.
	if _, err := store.Resolve(ctx, req.ID, false); !errors.Is(err, consentstore.ErrAlreadyResolved) {
		t.Errorf("err = %v, want ErrAlreadyResolved", err)
	}
	got, err := store.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != models.RequestApproved {
		t.Errorf("status flipped to %q after failed re-resolution", got.Status)
	}
}

func TestApprovedPartners_BothDirectionsNoDuplicates(t *testing.T) {
	store := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := primitive.NewObjectID()
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	c := primitive.NewObjectID()

	// a asked b (approved), c asked a (approved), a asked c (declined).
	ab, _ := store.Create(ctx, pending(org, a, b))
	if _, err := store.Resolve(ctx, ab.ID, true); err != nil {
		t.Fatalf("resolve ab: %v", err)
	}
	ca, _ := store.Create(ctx, pending(org, c, a))
	if _, err := store.Resolve(ctx, ca.ID, true); err != nil {
		t.Fatalf("resolve ca: %v", err)
	}
	ac, _ := store.Create(ctx, pending(org, a, c))
	if _, err := store.Resolve(ctx, ac.ID, false); err != nil {
		t.Fatalf("resolve ac: %v", err)
	}

	partners, err := store.ApprovedPartners(ctx, a, org)
	if err != nil {
		t.Fatalf("ApprovedPartners: %v", err)
	}
	if len(partners) != 2 {
		t.Fatalf("partners = %d, want 2 (b and c once each)", len(partners))
	}
	seen := map[primitive.ObjectID]bool{}
	for _, p := range partners {
		seen[p] = true
	}
	if !seen[b] || !seen[c] {
		t.Errorf("partners missing b or c: %v", partners)
	}
}

package groups_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/mentorhub/internal/app/features/groups"
	groupstore "github.com/dalemusser/mentorhub/internal/app/store/groups"
	"github.com/dalemusser/mentorhub/internal/app/system/auth"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/dalemusser/mentorhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*groups.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	handler := groups.NewHandler(groupstore.New(db, zap.NewNop()), zap.NewNop())
	return handler, testutil.NewFixtures(t, db)
}

func TestCreateGroup_Admin_Success(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	admin := fixtures.CreateUser(ctx, "Alice Admin", models.RoleOrgAdmin, org.ID)

	body := `{"name":"Cohort 12"}`
	req := httptest.NewRequest("POST", "/groups", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = auth.WithTestUser(req, testutil.SessionUserFor(admin))

	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	count, err := fixtures.DB().Collection("chat_groups").CountDocuments(ctx, bson.M{"name": "Cohort 12"})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 group, got %d", count)
	}
}

func TestCreateGroup_Mentee_Forbidden(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	mentee := fixtures.CreateUser(ctx, "Mo Mentee", models.RoleMentee, org.ID)

	req := httptest.NewRequest("POST", "/groups", strings.NewReader(`{"name":"Rogue"}`))
	req = auth.WithTestUser(req, testutil.SessionUserFor(mentee))

	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAddMember_CrossOrg_Forbidden(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orgA := fixtures.CreateOrganization(ctx, "Org A")
	orgB := fixtures.CreateOrganization(ctx, "Org B")
	adminB := fixtures.CreateUser(ctx, "Bea Admin", models.RoleOrgAdmin, orgB.ID)
	group := fixtures.CreateGroup(ctx, orgA.ID, "A Only", models.GroupCustom)
	stranger := fixtures.CreateUser(ctx, "Sam Stranger", models.RoleMentee, orgB.ID)

	req := httptest.NewRequest("POST", "/groups/"+group.ID.Hex()+"/members/"+stranger.ID.Hex(), nil)
	req = auth.WithTestUser(req, testutil.SessionUserFor(adminB))
	req = testutil.WithChiURLParam(req, "id", group.ID.Hex())
	req = testutil.WithChiURLParam(req, "userID", stranger.ID.Hex())

	rec := httptest.NewRecorder()
	handler.AddMember(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusForbidden, rec.Body.String())
	}
}

package users_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/mentorhub/internal/app/features/users"
	userstore "github.com/dalemusser/mentorhub/internal/app/store/users"
	"github.com/dalemusser/mentorhub/internal/app/system/auth"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/dalemusser/mentorhub/internal/testutil"
	"go.uber.org/zap"
)

type kickCounter struct{ n int }

func (k *kickCounter) Kick() { k.n++ }

func newTestHandler(t *testing.T) (*users.Handler, *kickCounter, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	kicks := &kickCounter{}
	handler := users.NewHandler(userstore.New(db, zap.NewNop()), kicks, zap.NewNop())
	return handler, kicks, testutil.NewFixtures(t, db)
}

func TestSetRole_KicksMembershipSync(t *testing.T) {
	handler, kicks, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	admin := fixtures.CreateUser(ctx, "Alice Admin", models.RoleOrgAdmin, org.ID)
	target := fixtures.CreateUser(ctx, "Mo Mentee", models.RoleMentee, org.ID)

	req := httptest.NewRequest("PUT", "/users/"+target.ID.Hex()+"/role", strings.NewReader(`{"role":"mentor"}`))
	req = auth.WithTestUser(req, testutil.SessionUserFor(admin))
	req = testutil.WithChiURLParam(req, "id", target.ID.Hex())

	rec := httptest.NewRecorder()
	handler.SetRole(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	if kicks.n != 1 {
		t.Errorf("membership sync kicked %d times, want 1", kicks.n)
	}

	store := userstore.New(fixtures.DB(), zap.NewNop())
	updated, err := store.GetByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Role != models.RoleMentor {
		t.Errorf("role = %q, want mentor", updated.Role)
	}
}

func TestSetRole_OperatorGrantRequiresOperator(t *testing.T) {
	handler, _, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	admin := fixtures.CreateUser(ctx, "Alice Admin", models.RoleOrgAdmin, org.ID)
	target := fixtures.CreateUser(ctx, "Mo Mentee", models.RoleMentee, org.ID)

	req := httptest.NewRequest("PUT", "/users/"+target.ID.Hex()+"/role", strings.NewReader(`{"role":"platform_operator"}`))
	req = auth.WithTestUser(req, testutil.SessionUserFor(admin))
	req = testutil.WithChiURLParam(req, "id", target.ID.Hex())

	rec := httptest.NewRecorder()
	handler.SetRole(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestCreate_DuplicateEmailConflicts(t *testing.T) {
	handler, _, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	admin := fixtures.CreateUser(ctx, "Alice Admin", models.RoleOrgAdmin, org.ID)

	body := `{"full_name":"New Mentor","email":"dup@test.example","password":"longenough","role":"mentor"}`
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest("POST", "/users", strings.NewReader(body))
		req = auth.WithTestUser(req, testutil.SessionUserFor(admin))
		rec := httptest.NewRecorder()
		handler.Create(rec, req)
		if rec.Code != want {
			t.Fatalf("attempt %d: status = %d, want %d: %s", i+1, rec.Code, want, rec.Body.String())
		}
	}
}

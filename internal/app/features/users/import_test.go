package users_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/mentorhub/internal/app/system/auth"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/dalemusser/mentorhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestImport_CreatesRosterAndKicksSync(t *testing.T) {
	handler, kicks, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	admin := fixtures.CreateUser(ctx, "Alice Admin", models.RoleOrgAdmin, org.ID)

	csv := "full_name,email,role\nJohn Doe,john@example.com,mentee\nJane Smith,jane@example.com,mentor,temp-pass\n"
	req := httptest.NewRequest("POST", "/users/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	req = auth.WithTestUser(req, testutil.SessionUserFor(admin))

	rec := httptest.NewRecorder()
	handler.Import(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp struct {
		Created int `json:"created"`
		Skipped int `json:"skipped"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Created != 2 || resp.Skipped != 0 {
		t.Errorf("created = %d skipped = %d, want 2 and 0", resp.Created, resp.Skipped)
	}
	if kicks.n != 1 {
		t.Errorf("sync kicks = %d, want 1", kicks.n)
	}

	var imported models.User
	err := fixtures.DB().Collection("users").FindOne(ctx, bson.M{"email": "jane@example.com"}).Decode(&imported)
	if err != nil {
		t.Fatalf("imported user not found: %v", err)
	}
	if imported.Role != models.RoleMentor {
		t.Errorf("role = %q, want %q", imported.Role, models.RoleMentor)
	}
	if imported.OrgID() != org.ID {
		t.Errorf("org = %s, want %s", imported.OrgID().Hex(), org.ID.Hex())
	}
	if imported.PasswordHash == "" {
		t.Errorf("temp password should produce a hash")
	}
}

func TestImport_Reupload_SkipsExisting(t *testing.T) {
	handler, _, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	admin := fixtures.CreateUser(ctx, "Alice Admin", models.RoleOrgAdmin, org.ID)

	csv := "John Doe,john@example.com,mentee\n"
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/users/import", strings.NewReader(csv))
		req = auth.WithTestUser(req, testutil.SessionUserFor(admin))
		rec := httptest.NewRecorder()
		handler.Import(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("upload %d status = %d: %s", i, rec.Code, rec.Body.String())
		}
		if i == 1 && !strings.Contains(rec.Body.String(), `"skipped":1`) {
			t.Errorf("second upload should skip the existing user: %s", rec.Body.String())
		}
	}

	count, err := fixtures.DB().Collection("users").CountDocuments(ctx, bson.M{"email": "john@example.com"})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 user after re-upload, got %d", count)
	}
}

func TestImport_BadFile_RejectedWhole(t *testing.T) {
	handler, kicks, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Test Org")
	admin := fixtures.CreateUser(ctx, "Alice Admin", models.RoleOrgAdmin, org.ID)

	csv := "Good Row,good@example.com,mentee\nBad Row,bad@example.com,wizard\n"
	req := httptest.NewRequest("POST", "/users/import", strings.NewReader(csv))
	req = auth.WithTestUser(req, testutil.SessionUserFor(admin))

	rec := httptest.NewRecorder()
	handler.Import(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
	if kicks.n != 0 {
		t.Errorf("sync kicks = %d, want 0", kicks.n)
	}

	// The valid row must not have been created either.
	count, err := fixtures.DB().Collection("users").CountDocuments(ctx, bson.M{"email": "good@example.com"})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 users from a rejected file, got %d", count)
	}
}

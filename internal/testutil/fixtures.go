// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
// Repeated calls accumulate parameters.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrganization creates a test organization with the given name.
func (f *Fixtures) CreateOrganization(ctx context.Context, name string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		TimeZone:  "America/New_York",
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("organizations").InsertOne(ctx, org); err != nil {
		f.t.Fatalf("fixture: inserting organization: %v", err)
	}
	return org
}

// CreateUser creates a test user with the given role inside orgID. Pass
// primitive.NilObjectID for platform operators.
func (f *Fixtures) CreateUser(ctx context.Context, name string, role models.Role, orgID primitive.ObjectID) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   name,
		FullNameCI: text.Fold(name),
		Email:      text.Fold(name) + "@test.example",
		Role:       role,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if !orgID.IsZero() {
		u.OrganizationID = &orgID
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("fixture: inserting user: %v", err)
	}
	return u
}

// CreateMatch pairs a mentor and a mentee with the given status.
func (f *Fixtures) CreateMatch(ctx context.Context, orgID, mentorID, menteeID primitive.ObjectID, status string) models.Match {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.Match{
		ID:             primitive.NewObjectID(),
		OrganizationID: orgID,
		MentorID:       mentorID,
		MenteeID:       menteeID,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := f.db.Collection("matches").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("fixture: inserting match: %v", err)
	}
	return m
}

// CreateGroup creates a chat group with the given members.
func (f *Fixtures) CreateGroup(ctx context.Context, orgID primitive.ObjectID, name string, kind models.GroupKind, members ...primitive.ObjectID) models.ChatGroup {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.ChatGroup{
		ID:             primitive.NewObjectID(),
		OrganizationID: orgID,
		Name:           name,
		NameCI:         text.Fold(name),
		Kind:           kind,
		MemberIDs:      members,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if kind.Default() {
		g.ID = models.DefaultGroupID(orgID, kind)
	}
	if _, err := f.db.Collection("chat_groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("fixture: inserting group: %v", err)
	}
	return g
}

// CreateMessage inserts a group message from sender.
func (f *Fixtures) CreateMessage(ctx context.Context, orgID, conversationID, senderID primitive.ObjectID, kind models.ConversationKind, body string) models.ChatMessage {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.ChatMessage{
		ID:               primitive.NewObjectID(),
		OrganizationID:   orgID,
		ConversationID:   conversationID,
		ConversationKind: kind,
		SenderID:         senderID,
		Body:             body,
		SentAt:           now,
		CreatedAt:        now,
	}
	if _, err := f.db.Collection("chat_messages").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("fixture: inserting message: %v", err)
	}
	return m
}

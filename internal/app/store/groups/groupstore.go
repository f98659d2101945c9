// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/mentorhub/internal/app/store/streams"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Store struct {
	c   *mongo.Collection
	log *zap.Logger
}

var (
	ErrGroupExists  = errors.New("a group with this id already exists")
	ErrMissingOrgID = errors.New("group is missing its organization id")
)

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{c: db.Collection("chat_groups"), log: logger}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.ChatGroup, error) {
	var g models.ChatGroup
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.ChatGroup{}, err
	}
	return g, nil
}

// Create inserts a group. When fixedID is non-nil the group is created under
// that id (used for the two default groups, whose ids are deterministic);
// otherwise a fresh id is generated.
func (s *Store) Create(ctx context.Context, g models.ChatGroup, fixedID *primitive.ObjectID) (models.ChatGroup, error) {
	if g.OrganizationID.IsZero() {
		return models.ChatGroup{}, ErrMissingOrgID
	}
	now := time.Now().UTC()
	if fixedID != nil {
		g.ID = *fixedID
	} else {
		g.ID = primitive.NewObjectID()
	}
	g.NameCI = text.Fold(g.Name)
	if g.Kind == "" {
		g.Kind = models.GroupCustom
	}
	g.MemberIDs = dedupe(g.MemberIDs)
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ChatGroup{}, ErrGroupExists
		}
		return models.ChatGroup{}, err
	}
	return g, nil
}

// SetMembers replaces the member set. Callers are expected to have computed
// the difference first; this write is unconditional.
func (s *Store) SetMembers(ctx context.Context, id primitive.ObjectID, members []primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"member_ids": dedupe(members),
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// AddMember adds a user to the member set (no duplicates).
func (s *Store) AddMember(ctx context.Context, id, userID primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$addToSet": bson.M{"member_ids": userID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

// RemoveMember removes a user from the member set.
func (s *Store) RemoveMember(ctx context.Context, id, userID primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$pull": bson.M{"member_ids": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.ChatGroup, error) {
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ChatGroup
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe delivers the org's groups now and after every change to the
// chat_groups collection. The channel closes when ctx ends.
func (s *Store) Subscribe(ctx context.Context, orgID primitive.ObjectID) <-chan []models.ChatGroup {
	return streams.Snapshot(ctx, s.log, "groups:"+orgID.Hex(),
		func(ctx context.Context) (*mongo.ChangeStream, error) {
			return s.c.Watch(ctx, mongo.Pipeline{})
		},
		func(ctx context.Context) ([]models.ChatGroup, error) {
			return s.ListByOrg(ctx, orgID)
		},
	)
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// internal/app/store/users/userstore.go
package userstore

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
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Store struct {
	c   *mongo.Collection
	log *zap.Logger
}

var ErrDuplicateEmail = errors.New("a user with this email already exists")

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{c: db.Collection("users"), log: logger}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return models.User{}, err
	}
	u.Role = models.ParseRole(string(u.Role))
	return u, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": text.Fold(email)}).Decode(&u); err != nil {
		return models.User{}, err
	}
	u.Role = models.ParseRole(string(u.Role))
	return u, nil
}

func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = text.Fold(u.Email)
	u.Role = models.ParseRole(string(u.Role))
	if u.Status == "" {
		u.Status = "active"
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// UpdateRole changes a user's role. The membership synchronizer picks the
// change up from the users subscription and heals the default groups.
func (s *Store) UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	if !role.Valid() {
		return errors.New("unknown role")
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"role":       role,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// ListRoster returns the users visible inside orgID's tenant: the
// organization's own users plus platform operators, who sit outside any
// single tenant but can be direct-message counterparts.
func (s *Store) ListRoster(ctx context.Context, orgID primitive.ObjectID) ([]models.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"organization_id": orgID},
		bson.M{"role": models.RolePlatformOperator},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "full_name_ci", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Role = models.ParseRole(string(out[i].Role))
	}
	return out, nil
}

// Subscribe delivers the org roster now and after every change to the users
// collection. The channel closes when ctx ends.
func (s *Store) Subscribe(ctx context.Context, orgID primitive.ObjectID) <-chan []models.User {
	return streams.Snapshot(ctx, s.log, "users:"+orgID.Hex(),
		func(ctx context.Context) (*mongo.ChangeStream, error) {
			return s.c.Watch(ctx, mongo.Pipeline{})
		},
		func(ctx context.Context) ([]models.User, error) {
			return s.ListRoster(ctx, orgID)
		},
	)
}

// SubscribeChanges signals whenever any user document changes, across all
// organizations. The membership synchronizer uses it to reconcile promptly
// after roster writes it did not make itself.
func (s *Store) SubscribeChanges(ctx context.Context) <-chan struct{} {
	return streams.Changes(ctx, s.log, "users:changes",
		func(ctx context.Context) (*mongo.ChangeStream, error) {
			return s.c.Watch(ctx, mongo.Pipeline{})
		},
	)
}

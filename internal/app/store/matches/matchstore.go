// internal/app/store/matches/matchstore.go
package matchstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/mentorhub/internal/app/store/streams"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Store struct {
	c   *mongo.Collection
	log *zap.Logger
}

var ErrMissingOrgID = errors.New("match is missing its organization id")

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{c: db.Collection("matches"), log: logger}
}

func (s *Store) Create(ctx context.Context, m models.Match) (models.Match, error) {
	if m.OrganizationID.IsZero() {
		return models.Match{}, ErrMissingOrgID
	}
	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	if m.Status == "" {
		m.Status = models.MatchActive
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.Match{}, err
	}
	return m, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Match, error) {
	var m models.Match
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	return m, err
}

// SetStatus flips a match between active and inactive.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	if status != models.MatchActive && status != models.MatchInactive {
		return errors.New("status must be active or inactive")
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.Match, error) {
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Match
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe delivers the org's matches now and after every change.
func (s *Store) Subscribe(ctx context.Context, orgID primitive.ObjectID) <-chan []models.Match {
	return streams.Snapshot(ctx, s.log, "matches:"+orgID.Hex(),
		func(ctx context.Context) (*mongo.ChangeStream, error) {
			return s.c.Watch(ctx, mongo.Pipeline{})
		},
		func(ctx context.Context) ([]models.Match, error) {
			return s.ListByOrg(ctx, orgID)
		},
	)
}

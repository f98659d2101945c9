// internal/app/store/organizations/orgstore.go
package orgstore

import (
	"context"
	"time"

	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organizations")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	var org models.Organization
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&org); err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) Create(ctx context.Context, org models.Organization) (models.Organization, error) {
	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.NameCI = text.Fold(org.Name)
	if org.Status == "" {
		org.Status = "active"
	}
	org.CreatedAt = now
	org.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, org); err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// SetStatus activates or retires an organization. Retired organizations are
// skipped by the membership synchronizer and hidden from pickers.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListActive returns every active organization. The membership synchronizer
// iterates this on each pass.
func (s *Store) ListActive(ctx context.Context) ([]models.Organization, error) {
	cur, err := s.c.Find(ctx, bson.M{"status": "active"})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Organization
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// internal/app/store/notifications/notificationstore.go
package notificationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

var ErrMissingOrgID = errors.New("notification is missing its organization id")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications")}
}

// Create records a notification. Callers treat this as fire-and-forget:
// failures are logged by the caller, never surfaced to the user who
// triggered the notification.
func (s *Store) Create(ctx context.Context, n models.Notification) error {
	if n.OrganizationID.IsZero() {
		return ErrMissingOrgID
	}
	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now().UTC()
	_, err := s.c.InsertOne(ctx, n)
	return err
}

// ListUnread returns a user's unread notifications, newest first.
func (s *Store) ListUnread(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "read": false})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flips a notification to read. The userID filter stops one user
// from clearing another's notifications.
func (s *Store) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

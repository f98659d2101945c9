// internal/app/store/messages/messagestore.go
package messagestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/mentorhub/internal/app/store/streams"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
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

var (
	ErrMissingOrgID = errors.New("message is missing its organization id")
	ErrMissingBody  = errors.New("message has neither body nor attachment")
	ErrInvalidEmoji = errors.New("reaction emoji is not a valid key")
)

// maxEmojiLen caps reaction keys; real emoji sequences stay well under it.
const maxEmojiLen = 32

// validEmojiKey rejects reaction keys that cannot be stored as a map key.
// The key becomes part of a document field path, so '.' would nest the
// reactions document and '$' would be read as an operator.
func validEmojiKey(emoji string) bool {
	if emoji == "" || len(emoji) > maxEmojiLen {
		return false
	}
	for _, r := range emoji {
		if r == '.' || r == '$' || r == 0 {
			return false
		}
	}
	return true
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{c: db.Collection("chat_messages"), log: logger}
}

// Create inserts a message. When the message carries a send token and a
// message with that token already exists, the existing message is returned
// instead: retried sends are idempotent upserts, not duplicates.
func (s *Store) Create(ctx context.Context, m models.ChatMessage) (models.ChatMessage, error) {
	if m.OrganizationID.IsZero() {
		return models.ChatMessage{}, ErrMissingOrgID
	}
	if m.Body == "" && m.AttachmentURL == "" {
		return models.ChatMessage{}, ErrMissingBody
	}
	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	if m.SentAt.IsZero() {
		m.SentAt = now
	}
	m.CreatedAt = now
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) && m.SendToken != "" {
			var existing models.ChatMessage
			if ferr := s.c.FindOne(ctx, bson.M{"send_token": m.SendToken}).Decode(&existing); ferr == nil {
				return existing, nil
			}
		}
		return models.ChatMessage{}, err
	}
	return m, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.ChatMessage, error) {
	var m models.ChatMessage
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return models.ChatMessage{}, err
	}
	return m, nil
}

// ToggleReaction adds userID to the emoji's reactor set, or removes them if
// already present. When the last reactor leaves, the emoji key is dropped so
// toggling twice returns the reaction map to its original state.
func (s *Store) ToggleReaction(ctx context.Context, id primitive.ObjectID, emoji string, userID primitive.ObjectID) error {
	if !validEmojiKey(emoji) {
		return ErrInvalidEmoji
	}
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	reacted := false
	for _, rid := range m.Reactions[emoji] {
		if rid == userID {
			reacted = true
			break
		}
	}

	field := "reactions." + emoji
	if !reacted {
		_, err = s.c.UpdateByID(ctx, id, bson.M{"$addToSet": bson.M{field: userID}})
		return err
	}
	if _, err = s.c.UpdateByID(ctx, id, bson.M{"$pull": bson.M{field: userID}}); err != nil {
		return err
	}
	// Drop the emoji key once its reactor set is empty.
	_, err = s.c.UpdateOne(ctx,
		bson.M{"_id": id, field: bson.M{"$size": 0}},
		bson.M{"$unset": bson.M{field: ""}})
	return err
}

// MarkRead adds userID to the read-by set of each given message.
func (s *Store) MarkRead(ctx context.Context, ids []primitive.ObjectID, userID primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$addToSet": bson.M{"read_by": userID}})
	return err
}

// ListGroup returns a group conversation's messages ordered by send time.
func (s *Store) ListGroup(ctx context.Context, orgID, groupID primitive.ObjectID) ([]models.ChatMessage, error) {
	return s.list(ctx, bson.M{
		"organization_id":   orgID,
		"conversation_kind": models.ConversationGroup,
		"conversation_id":   groupID,
	})
}

// ListDirect returns the direct conversation between users a and b: messages
// in both directions, ordered by send time.
func (s *Store) ListDirect(ctx context.Context, orgID, a, b primitive.ObjectID) ([]models.ChatMessage, error) {
	return s.list(ctx, bson.M{
		"organization_id":   orgID,
		"conversation_kind": models.ConversationDirect,
		"$or": bson.A{
			bson.M{"sender_id": a, "conversation_id": b},
			bson.M{"sender_id": b, "conversation_id": a},
		},
	})
}

func (s *Store) list(ctx context.Context, filter bson.M) ([]models.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ChatMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubscribeGroup streams snapshots of a group conversation.
func (s *Store) SubscribeGroup(ctx context.Context, orgID, groupID primitive.ObjectID) <-chan []models.ChatMessage {
	return streams.Snapshot(ctx, s.log, "messages:group:"+groupID.Hex(),
		s.watch,
		func(ctx context.Context) ([]models.ChatMessage, error) {
			return s.ListGroup(ctx, orgID, groupID)
		},
	)
}

// SubscribeDirect streams snapshots of the direct conversation between a and b.
func (s *Store) SubscribeDirect(ctx context.Context, orgID, a, b primitive.ObjectID) <-chan []models.ChatMessage {
	return streams.Snapshot(ctx, s.log, "messages:direct:"+a.Hex()+":"+b.Hex(),
		s.watch,
		func(ctx context.Context) ([]models.ChatMessage, error) {
			return s.ListDirect(ctx, orgID, a, b)
		},
	)
}

func (s *Store) watch(ctx context.Context) (*mongo.ChangeStream, error) {
	return s.c.Watch(ctx, mongo.Pipeline{})
}

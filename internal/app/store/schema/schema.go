// Package schema creates the indexes the stores rely on. Ensure is
// idempotent; it runs at startup and at the top of database-backed tests.
package schema

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Ensure creates every index the application depends on for correctness:
// the unique email, the message send-token dedupe, and the unique index
// backing the one-request-per-ordered-pair rule.
func Ensure(ctx context.Context, db *mongo.Database) error {
	byCollection := map[string][]mongo.IndexModel{
		"users": {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "role", Value: 1}},
			},
		},
		"organizations": {
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		"chat_groups": {
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "kind", Value: 1}}},
		},
		"chat_messages": {
			{
				// Retried sends land on the same token and are rejected as
				// duplicates; the store then returns the original message.
				Keys: bson.D{{Key: "send_token", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"send_token": bson.M{"$type": "string"}}),
			},
			{
				Keys: bson.D{
					{Key: "organization_id", Value: 1},
					{Key: "conversation_kind", Value: 1},
					{Key: "conversation_id", Value: 1},
					{Key: "sent_at", Value: 1},
				},
			},
			{
				// Direct conversations are queried from both directions.
				Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "conversation_id", Value: 1}},
			},
		},
		"matches": {
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		"private_message_requests": {
			{
				// One request per ordered (requester, recipient) pair, ever.
				// A decline is terminal: the resolved record stays in place
				// and blocks re-requesting in the same direction.
				Keys: bson.D{
					{Key: "organization_id", Value: 1},
					{Key: "requester_id", Value: 1},
					{Key: "recipient_id", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "status", Value: 1}},
			},
		},
		"notifications": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "read", Value: 1}}},
		},
	}

	for name, indexes := range byCollection {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return err
		}
	}
	return nil
}

// internal/domain/models/chatmessage.go
package models

import (
	"hash/fnv"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConversationKind distinguishes group chats from direct pairs.
type ConversationKind string

const (
	ConversationGroup  ConversationKind = "group"
	ConversationDirect ConversationKind = "direct"
)

// ChatMessage is one message in a group or direct conversation.
//
// For group messages ConversationID is the group id. For direct messages it
// is the recipient's user id; the pair's conversation is the union of
// messages in both directions, so readers query (sender=A, conversation=B)
// OR (sender=B, conversation=A).
type ChatMessage struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID   primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	ConversationID   primitive.ObjectID `bson:"conversation_id" json:"conversation_id"`
	ConversationKind ConversationKind   `bson:"conversation_kind" json:"conversation_kind"`
	SenderID         primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	SenderName       string             `bson:"sender_name" json:"sender_name"`
	Body             string             `bson:"body" json:"body"`
	AttachmentURL    string             `bson:"attachment_url,omitempty" json:"attachment_url,omitempty"`

	// Reactions maps emoji to the set of user ids who reacted with it.
	// A key is removed when its last reactor toggles the reaction off.
	Reactions map[string][]primitive.ObjectID `bson:"reactions,omitempty" json:"reactions,omitempty"`

	// ReadBy is the set of user ids who have marked the message read.
	ReadBy []primitive.ObjectID `bson:"read_by,omitempty" json:"read_by,omitempty"`

	// SendToken is a client-supplied idempotency token. A unique index on it
	// makes retried sends an upsert rather than a duplicate.
	SendToken string `bson:"send_token,omitempty" json:"-"`

	SentAt    time.Time `bson:"sent_at" json:"sent_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ReadByUser reports whether userID is in the message's read-by set.
func (m ChatMessage) ReadByUser(userID primitive.ObjectID) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// FingerprintMessages hashes the identity and mutable fields of an ordered
// message list. Two lists with the same fingerprint render identically, so
// consumers use it to skip redundant publishes and recomputation.
func FingerprintMessages(msgs []ChatMessage) uint64 {
	h := fnv.New64a()
	for _, m := range msgs {
		h.Write(m.ID[:])
		h.Write([]byte(m.Body))
		for _, id := range m.ReadBy {
			h.Write(id[:])
		}
		if len(m.Reactions) > 0 {
			emojis := make([]string, 0, len(m.Reactions))
			for e := range m.Reactions {
				emojis = append(emojis, e)
			}
			sort.Strings(emojis)
			for _, e := range emojis {
				h.Write([]byte(e))
				for _, id := range m.Reactions[e] {
					h.Write(id[:])
				}
			}
		}
	}
	return h.Sum64()
}

// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification kinds.
const (
	NotifyPrivateMessageRequest  = "private_message_request"
	NotifyPrivateMessageResponse = "private_message_response"
)

// Notification is the internal record of a fire-and-forget notification.
// Delivery to external push providers is out of scope; write failures are
// logged, never surfaced to the sender.
type Notification struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	Kind           string             `bson:"kind" json:"kind"`
	Body           string             `bson:"body" json:"body"`
	Token          string             `bson:"token,omitempty" json:"-"` // idempotency token
	Read           bool               `bson:"read" json:"read"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

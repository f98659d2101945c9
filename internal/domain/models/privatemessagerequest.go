// internal/domain/models/privatemessagerequest.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Private-message request statuses. A request is created pending and
// resolved exactly once; approval is monotonic: once granted it keeps the
// pair mutually visible regardless of later role or match changes.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestDeclined = "declined"
)

// PrivateMessageRequest is the consent record gating unsolicited direct
// messages between unmatched users. One outstanding or resolved request is
// tracked per ordered (requester, recipient) pair.
type PrivateMessageRequest struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	RequesterID    primitive.ObjectID `bson:"requester_id" json:"requester_id"`
	RequesterName  string             `bson:"requester_name" json:"requester_name"`
	RecipientID    primitive.ObjectID `bson:"recipient_id" json:"recipient_id"`
	Status         string             `bson:"status" json:"status"`
	RespondedAt    *time.Time         `bson:"responded_at,omitempty" json:"responded_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// Resolved reports whether the request has reached a terminal status.
func (r PrivateMessageRequest) Resolved() bool {
	return r.Status == RequestApproved || r.Status == RequestDeclined
}

// Between reports whether the request joins users a and b (in either
// direction).
func (r PrivateMessageRequest) Between(a, b primitive.ObjectID) bool {
	return (r.RequesterID == a && r.RecipientID == b) || (r.RequesterID == b && r.RecipientID == a)
}

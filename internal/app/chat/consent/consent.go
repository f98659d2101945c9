// Package consent runs the private-message request workflow: a user asks to
// message someone they are not matched with, the recipient approves or
// declines, and an approval durably widens both users' direct-message
// eligibility.
package consent

import (
	"context"
	"errors"

	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	// ErrSelfRequest means the requester addressed themself.
	ErrSelfRequest = errors.New("cannot request private messages with yourself")

	// ErrNotRecipient means the responder is not the request's recipient.
	ErrNotRecipient = errors.New("only the recipient can respond to a request")
)

// Requests is the slice of the request store the workflow needs.
// consentstore.Store satisfies it.
type Requests interface {
	Create(ctx context.Context, req models.PrivateMessageRequest) (models.PrivateMessageRequest, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.PrivateMessageRequest, error)
	Resolve(ctx context.Context, id primitive.ObjectID, approve bool) (models.PrivateMessageRequest, error)
	ApprovedPartners(ctx context.Context, userID, orgID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// Notifier records fire-and-forget notifications. notificationstore.Store
// satisfies it.
type Notifier interface {
	Create(ctx context.Context, n models.Notification) error
}

// Workflow coordinates request creation and resolution.
type Workflow struct {
	requests Requests
	notify   Notifier
	cache    *PartnerCache
	log      *zap.Logger
}

func New(requests Requests, notify Notifier, logger *zap.Logger) *Workflow {
	return &Workflow{
		requests: requests,
		notify:   notify,
		cache:    NewPartnerCache(requests),
		log:      logger,
	}
}

// Partners exposes the read-through approved-partner cache for directory
// and policy fact resolution.
func (w *Workflow) Partners(ctx context.Context, userID, orgID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return w.cache.Partners(ctx, userID, orgID)
}

// InvalidatePartners drops a user's cached partner set so the next read
// loads fresh grants. Sessions call it when their request subscription
// reports a resolution made elsewhere.
func (w *Workflow) InvalidatePartners(userID, orgID primitive.ObjectID) {
	w.cache.Invalidate(userID, orgID)
}

// Request creates a pending request from requester to recipient. Any prior
// request for the same ordered pair, pending or resolved, fails with
// consentstore.ErrConflictingRequest: a decline is terminal and cannot be
// retried. A request in the opposite direction is allowed. The recipient's
// notification is best effort.
func (w *Workflow) Request(ctx context.Context, requesterID primitive.ObjectID, requesterName string, orgID, recipientID primitive.ObjectID) (models.PrivateMessageRequest, error) {
	if requesterID == recipientID {
		return models.PrivateMessageRequest{}, ErrSelfRequest
	}

	req, err := w.requests.Create(ctx, models.PrivateMessageRequest{
		OrganizationID: orgID,
		RequesterID:    requesterID,
		RequesterName:  requesterName,
		RecipientID:    recipientID,
	})
	if err != nil {
		return models.PrivateMessageRequest{}, err
	}

	if nerr := w.notify.Create(ctx, models.Notification{
		OrganizationID: orgID,
		UserID:         recipientID,
		Kind:           models.NotifyPrivateMessageRequest,
		Body:           requesterName + " would like to send you private messages.",
		Token:          req.ID.Hex() + ":request",
	}); nerr != nil {
		w.log.Warn("private message request notification failed",
			zap.String("request_id", req.ID.Hex()), zap.Error(nerr))
	}
	return req, nil
}

// Respond resolves a pending request. Only the recipient may respond, and
// only once: a repeat attempt fails with consentstore.ErrAlreadyResolved and
// changes nothing. On approval the requester becomes an approved partner of
// both users immediately.
func (w *Workflow) Respond(ctx context.Context, responderID, requestID primitive.ObjectID, approve bool) (models.PrivateMessageRequest, error) {
	req, err := w.requests.GetByID(ctx, requestID)
	if err != nil {
		return models.PrivateMessageRequest{}, err
	}
	if req.RecipientID != responderID {
		return models.PrivateMessageRequest{}, ErrNotRecipient
	}

	resolved, err := w.requests.Resolve(ctx, requestID, approve)
	if err != nil {
		return models.PrivateMessageRequest{}, err
	}

	if approve {
		// The responder's cached set gains the requester in place; the
		// requester's entry is dropped so their next read sees the grant.
		w.cache.Add(resolved.RecipientID, resolved.OrganizationID, resolved.RequesterID)
		w.cache.Invalidate(resolved.RequesterID, resolved.OrganizationID)
	}

	outcome := "declined"
	if approve {
		outcome = "approved"
	}
	if nerr := w.notify.Create(ctx, models.Notification{
		OrganizationID: resolved.OrganizationID,
		UserID:         resolved.RequesterID,
		Kind:           models.NotifyPrivateMessageResponse,
		Body:           "Your private message request was " + outcome + ".",
		Token:          resolved.ID.Hex() + ":response",
	}); nerr != nil {
		w.log.Warn("private message response notification failed",
			zap.String("request_id", resolved.ID.Hex()), zap.Error(nerr))
	}
	return resolved, nil
}

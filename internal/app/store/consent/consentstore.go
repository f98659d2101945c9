// internal/app/store/consent/consentstore.go
package consentstore

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
	// ErrConflictingRequest means a request already exists for this ordered
	// (requester, recipient) pair, pending or resolved. A decline is
	// terminal, so the pair cannot be re-requested in the same direction.
	ErrConflictingRequest = errors.New("a private message request already exists for this pair")

	// ErrAlreadyResolved means the request reached a terminal status before
	// this resolution attempt; no state was changed.
	ErrAlreadyResolved = errors.New("private message request is already resolved")

	ErrMissingOrgID = errors.New("request is missing its organization id")
)

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{c: db.Collection("private_message_requests"), log: logger}
}

// Create inserts a pending request. The unique index on
// (organization_id, requester_id, recipient_id) admits one request per
// ordered pair ever, whatever its status: a decline is terminal and blocks
// re-requesting in the same direction. A request the other way remains a
// distinct pair.
func (s *Store) Create(ctx context.Context, req models.PrivateMessageRequest) (models.PrivateMessageRequest, error) {
	if req.OrganizationID.IsZero() {
		return models.PrivateMessageRequest{}, ErrMissingOrgID
	}
	req.ID = primitive.NewObjectID()
	req.Status = models.RequestPending
	req.RespondedAt = nil
	req.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, req); err != nil {
		if wafflemongo.IsDup(err) {
			return models.PrivateMessageRequest{}, ErrConflictingRequest
		}
		return models.PrivateMessageRequest{}, err
	}
	return req, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.PrivateMessageRequest, error) {
	var req models.PrivateMessageRequest
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&req); err != nil {
		return models.PrivateMessageRequest{}, err
	}
	return req, nil
}

// Resolve transitions a pending request to approved or declined. The
// transition is a single conditional update: either the request was pending
// and is now terminal, or nothing changed at all.
func (s *Store) Resolve(ctx context.Context, id primitive.ObjectID, approve bool) (models.PrivateMessageRequest, error) {
	status := models.RequestDeclined
	if approve {
		status = models.RequestApproved
	}
	now := time.Now().UTC()

	var req models.PrivateMessageRequest
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.RequestPending},
		bson.M{"$set": bson.M{"status": status, "responded_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&req)
	if err == mongo.ErrNoDocuments {
		// Distinguish "never existed" from "already resolved".
		if _, gerr := s.GetByID(ctx, id); gerr == nil {
			return models.PrivateMessageRequest{}, ErrAlreadyResolved
		}
		return models.PrivateMessageRequest{}, mongo.ErrNoDocuments
	}
	if err != nil {
		return models.PrivateMessageRequest{}, err
	}
	return req, nil
}

// ApprovedPartners returns the user ids with whom userID shares an approved
// request, in either direction. This is the durable consent record: role and
// match changes never shrink it.
func (s *Store) ApprovedPartners(ctx context.Context, userID, orgID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"organization_id": orgID,
		"status":          models.RequestApproved,
		"$or": bson.A{
			bson.M{"requester_id": userID},
			bson.M{"recipient_id": userID},
		},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	seen := make(map[primitive.ObjectID]struct{})
	var out []primitive.ObjectID
	for cur.Next(ctx) {
		var req models.PrivateMessageRequest
		if err := cur.Decode(&req); err != nil {
			return nil, err
		}
		partner := req.RequesterID
		if partner == userID {
			partner = req.RecipientID
		}
		if _, dup := seen[partner]; dup {
			continue
		}
		seen[partner] = struct{}{}
		out = append(out, partner)
	}
	return out, cur.Err()
}

// ListInvolving returns every request where userID is requester or
// recipient.
func (s *Store) ListInvolving(ctx context.Context, userID, orgID primitive.ObjectID) ([]models.PrivateMessageRequest, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"organization_id": orgID,
		"$or": bson.A{
			bson.M{"requester_id": userID},
			bson.M{"recipient_id": userID},
		},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.PrivateMessageRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe delivers the requests involving userID now and after every
// change to the collection.
func (s *Store) Subscribe(ctx context.Context, userID, orgID primitive.ObjectID) <-chan []models.PrivateMessageRequest {
	return streams.Snapshot(ctx, s.log, "pmrequests:"+userID.Hex(),
		func(ctx context.Context) (*mongo.ChangeStream, error) {
			return s.c.Watch(ctx, mongo.Pipeline{})
		},
		func(ctx context.Context) ([]models.PrivateMessageRequest, error) {
			return s.ListInvolving(ctx, userID, orgID)
		},
	)
}

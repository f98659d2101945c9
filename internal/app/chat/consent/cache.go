package consent

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type cacheKey struct {
	userID primitive.ObjectID
	orgID  primitive.ObjectID
}

// PartnerCache is a read-through cache over the approved-partner query.
// Directory rebuilds and policy checks hit it on every event, so the
// underlying aggregation runs once per (user, org) until an approval
// touches the entry.
type PartnerCache struct {
	requests Requests

	mu      sync.Mutex
	entries map[cacheKey]map[primitive.ObjectID]struct{}
}

func NewPartnerCache(requests Requests) *PartnerCache {
	return &PartnerCache{
		requests: requests,
		entries:  make(map[cacheKey]map[primitive.ObjectID]struct{}),
	}
}

// Partners returns userID's approved partners in orgID, loading from the
// store on a miss. The returned slice is a copy.
func (c *PartnerCache) Partners(ctx context.Context, userID, orgID primitive.ObjectID) ([]primitive.ObjectID, error) {
	key := cacheKey{userID: userID, orgID: orgID}

	c.mu.Lock()
	set, ok := c.entries[key]
	c.mu.Unlock()

	if !ok {
		ids, err := c.requests.ApprovedPartners(ctx, userID, orgID)
		if err != nil {
			return nil, err
		}
		set = make(map[primitive.ObjectID]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		c.mu.Lock()
		// A concurrent Add may have seeded the entry; merge rather than
		// clobber.
		if existing, raced := c.entries[key]; raced {
			for id := range existing {
				set[id] = struct{}{}
			}
		}
		c.entries[key] = set
		c.mu.Unlock()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]primitive.ObjectID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out, nil
}

// Add inserts partnerID into userID's cached set if one is loaded. A cold
// entry stays cold; the next read loads the grant from the store anyway.
func (c *PartnerCache) Add(userID, orgID, partnerID primitive.ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.entries[cacheKey{userID: userID, orgID: orgID}]; ok {
		set[partnerID] = struct{}{}
	}
}

// Invalidate drops userID's cached set.
func (c *PartnerCache) Invalidate(userID, orgID primitive.ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey{userID: userID, orgID: orgID})
}

// Package stream owns the live message subscription for the active
// conversation. At most one subscription is open per viewer session; when
// the viewer switches conversations the old subscription is closed before
// the new one opens, and a late batch from a closed subscription is
// discarded by generation check so a fast switch can never resurrect stale
// state.
package stream

import (
	"context"
	"sync"

	"github.com/dalemusser/mentorhub/internal/app/policy/chatpolicy"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ConversationKey identifies the conversation a subscription covers.
type ConversationKey struct {
	Kind          models.ConversationKind
	OrgID         primitive.ObjectID
	GroupID       primitive.ObjectID // kind=group
	CounterpartID primitive.ObjectID // kind=direct
}

// ID returns the conversation's directory id (group id, or counterpart id
// for direct pairs).
func (k ConversationKey) ID() string {
	if k.Kind == models.ConversationGroup {
		return k.GroupID.Hex()
	}
	return k.CounterpartID.Hex()
}

// Source opens message snapshot streams; the message store implements it
// with change streams, tests with fakes. The returned channel must close
// when ctx ends.
type Source interface {
	SubscribeGroup(ctx context.Context, orgID, groupID primitive.ObjectID) <-chan []models.ChatMessage
	SubscribeDirect(ctx context.Context, orgID, a, b primitive.ObjectID) <-chan []models.ChatMessage
}

// Facts re-resolves policy inputs for the active conversation. It is called
// for every batch, because membership, roles, and consent can change
// between batches.
type Facts interface {
	GroupFacts(groupID primitive.ObjectID) chatpolicy.GroupFacts
	DirectFacts(counterpartID primitive.ObjectID) chatpolicy.DirectFacts
}

// Result is one published update for the active conversation.
type Result struct {
	ConversationID string
	Messages       []models.ChatMessage
}

// Multiplexer is the per-session conversation slot. Select and Close are
// safe for concurrent use with batch delivery.
type Multiplexer struct {
	source  Source
	facts   Facts
	publish func(Result)
	log     *zap.Logger

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	active   *ConversationKey
	lastHash uint64
	hasLast  bool
}

// New builds a multiplexer that pushes filtered results to publish.
func New(source Source, facts Facts, publish func(Result), logger *zap.Logger) *Multiplexer {
	return &Multiplexer{source: source, facts: facts, publish: publish, log: logger}
}

// Select makes conv the active conversation: the previous subscription is
// closed first, then the subscribe gate runs. A viewer who may not
// subscribe gets one empty result and no stream.
func (m *Multiplexer) Select(ctx context.Context, viewer chatpolicy.Viewer, conv ConversationKey) {
	m.mu.Lock()
	m.closeLocked()
	gen := m.gen
	m.active = &conv
	m.mu.Unlock()

	if !m.canSubscribe(viewer, conv) {
		m.deliver(gen, conv, nil, true)
		return
	}

	subCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.gen != gen {
		// Lost a race with a newer Select; stand down.
		m.mu.Unlock()
		cancel()
		return
	}
	m.cancel = cancel
	m.mu.Unlock()

	var ch <-chan []models.ChatMessage
	if conv.Kind == models.ConversationGroup {
		ch = m.source.SubscribeGroup(subCtx, conv.OrgID, conv.GroupID)
	} else {
		ch = m.source.SubscribeDirect(subCtx, conv.OrgID, viewer.ID, conv.CounterpartID)
	}

	go func() {
		for batch := range ch {
			m.deliver(gen, conv, m.filter(viewer, conv, batch), false)
		}
	}()
}

// Close tears down the active subscription synchronously. The generation
// bump makes any in-flight batch from the old subscription a no-op.
func (m *Multiplexer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	m.active = nil
}

// Active returns the currently selected conversation, if any.
func (m *Multiplexer) Active() (ConversationKey, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ConversationKey{}, false
	}
	return *m.active, true
}

func (m *Multiplexer) closeLocked() {
	m.gen++
	m.hasLast = false
	m.lastHash = 0
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Multiplexer) canSubscribe(viewer chatpolicy.Viewer, conv ConversationKey) bool {
	if conv.Kind == models.ConversationGroup {
		return chatpolicy.CanSubscribeGroup(viewer, m.facts.GroupFacts(conv.GroupID))
	}
	return chatpolicy.CanSubscribeDirect(viewer, m.facts.DirectFacts(conv.CounterpartID))
}

// filter re-applies the visibility policy with freshly resolved facts.
func (m *Multiplexer) filter(viewer chatpolicy.Viewer, conv ConversationKey, batch []models.ChatMessage) []models.ChatMessage {
	if conv.Kind == models.ConversationGroup {
		return chatpolicy.FilterMessages(viewer, batch, m.facts.GroupFacts(conv.GroupID), chatpolicy.DirectFacts{})
	}
	return chatpolicy.FilterMessages(viewer, batch, chatpolicy.GroupFacts{}, m.facts.DirectFacts(conv.CounterpartID))
}

// deliver publishes the filtered batch unless it belongs to a closed
// generation or is identical to the last published result. force pushes an
// empty result through even if nothing was published yet (the subscribe-gate
// denial path).
func (m *Multiplexer) deliver(gen uint64, conv ConversationKey, msgs []models.ChatMessage, force bool) {
	hash := models.FingerprintMessages(msgs)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	if !force && m.hasLast && m.lastHash == hash {
		m.mu.Unlock()
		return
	}
	m.lastHash = hash
	m.hasLast = true
	m.mu.Unlock()

	m.publish(Result{ConversationID: conv.ID(), Messages: msgs})
}

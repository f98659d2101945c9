// Package session runs one event loop per connected viewer. Store snapshots
// and viewer commands are serialized onto that loop, so directory state,
// the active conversation slot, and unread accounting never need their own
// locking story beyond what the multiplexer does internally.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/mentorhub/internal/app/chat/directory"
	"github.com/dalemusser/mentorhub/internal/app/chat/stream"
	"github.com/dalemusser/mentorhub/internal/app/chat/unread"
	"github.com/dalemusser/mentorhub/internal/app/policy/chatpolicy"
	"github.com/dalemusser/mentorhub/internal/app/system/sanitize"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrSessionClosed        = errors.New("chat session is closed")
	ErrUnknownConversation  = errors.New("conversation is not in the viewer's directory")
	ErrNoActiveConversation = errors.New("no conversation is selected")
	ErrEmptyMessage         = errors.New("message body is empty")
	ErrMessageTooLong       = errors.New("message body is too long")
)

// Sink receives everything the session pushes toward the connected client.
// The websocket handler implements it; tests capture it.
type Sink interface {
	Conversations(list []directory.Conversation)
	Messages(res stream.Result)
	Unread(conversationID string, st unread.State)
	Requests(pending []models.PrivateMessageRequest)
}

// Feed interfaces cover the snapshot subscriptions the session consumes.
// The corresponding stores satisfy them.
type (
	UserFeed interface {
		Subscribe(ctx context.Context, orgID primitive.ObjectID) <-chan []models.User
	}
	GroupFeed interface {
		Subscribe(ctx context.Context, orgID primitive.ObjectID) <-chan []models.ChatGroup
	}
	MatchFeed interface {
		Subscribe(ctx context.Context, orgID primitive.ObjectID) <-chan []models.Match
	}
	RequestFeed interface {
		Subscribe(ctx context.Context, userID, orgID primitive.ObjectID) <-chan []models.PrivateMessageRequest
	}
)

// MessageOps is the slice of the message store the session writes through.
type MessageOps interface {
	stream.Source
	Create(ctx context.Context, m models.ChatMessage) (models.ChatMessage, error)
	ToggleReaction(ctx context.Context, id primitive.ObjectID, emoji string, userID primitive.ObjectID) error
	MarkRead(ctx context.Context, ids []primitive.ObjectID, userID primitive.ObjectID) error
}

// Consent is the slice of the consent workflow the session drives.
type Consent interface {
	Request(ctx context.Context, requesterID primitive.ObjectID, requesterName string, orgID, recipientID primitive.ObjectID) (models.PrivateMessageRequest, error)
	Respond(ctx context.Context, responderID, requestID primitive.ObjectID, approve bool) (models.PrivateMessageRequest, error)
	Partners(ctx context.Context, userID, orgID primitive.ObjectID) ([]primitive.ObjectID, error)
	InvalidatePartners(userID, orgID primitive.ObjectID)
}

// Deps bundles what a session needs.
type Deps struct {
	Users    UserFeed
	Groups   GroupFeed
	Matches  MatchFeed
	Requests RequestFeed
	Messages MessageOps
	Consent  Consent
	Sink     Sink
	Log      *zap.Logger
}

// Session is one viewer's live chat state. Create with New, drive with Run,
// and issue commands from any goroutine; they are serialized onto the loop.
type Session struct {
	deps   Deps
	viewer chatpolicy.Viewer
	name   string

	mux  *stream.Multiplexer
	acct *unread.Accountant

	cmds chan func()
	done chan struct{}
	once sync.Once

	// Loop-owned state. facts reads cross goroutines, hence the mutex.
	mu       sync.Mutex
	groups   []models.ChatGroup
	roster   []models.User
	matches  []models.Match
	partners map[primitive.ObjectID]struct{}
	pinned   map[string]struct{}
	dir      []directory.Conversation
	active   *directory.Conversation

	runCtx context.Context
}

func New(user models.User, deps Deps) *Session {
	s := &Session{
		deps: deps,
		viewer: chatpolicy.Viewer{
			ID:           user.ID,
			Role:         user.Role,
			OrgID:        user.OrgID(),
			JoinableFrom: user.CreatedAt,
		},
		name:     user.FullName,
		acct:     unread.NewAccountant(user.ID),
		cmds:     make(chan func(), 32),
		done:     make(chan struct{}),
		partners: make(map[primitive.ObjectID]struct{}),
		pinned:   make(map[string]struct{}),
	}
	s.mux = stream.New(deps.Messages, factsResolver{s}, s.publish, deps.Log)
	return s
}

// Run blocks until ctx ends, consuming snapshots and commands. Teardown is
// synchronous: when Run returns, the message subscription is closed and no
// further sink calls happen.
func (s *Session) Run(ctx context.Context) {
	s.runCtx = ctx
	defer s.once.Do(func() { close(s.done) })
	defer s.mux.Close()

	usersCh := s.deps.Users.Subscribe(ctx, s.viewer.OrgID)
	groupsCh := s.deps.Groups.Subscribe(ctx, s.viewer.OrgID)
	matchesCh := s.deps.Matches.Subscribe(ctx, s.viewer.OrgID)
	requestsCh := s.deps.Requests.Subscribe(ctx, s.viewer.ID, s.viewer.OrgID)

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-usersCh:
			if !ok {
				usersCh = nil
				continue
			}
			s.mu.Lock()
			s.roster = batch
			s.mu.Unlock()
			s.rebuild(ctx)
		case batch, ok := <-groupsCh:
			if !ok {
				groupsCh = nil
				continue
			}
			s.mu.Lock()
			s.groups = batch
			s.mu.Unlock()
			s.rebuild(ctx)
		case batch, ok := <-matchesCh:
			if !ok {
				matchesCh = nil
				continue
			}
			s.mu.Lock()
			s.matches = batch
			s.mu.Unlock()
			s.rebuild(ctx)
		case batch, ok := <-requestsCh:
			if !ok {
				requestsCh = nil
				continue
			}
			s.onRequests(ctx, batch)
		case fn := <-s.cmds:
			fn()
		}
	}
}

// publish receives multiplexer results on subscription goroutines and hops
// them onto the loop.
func (s *Session) publish(res stream.Result) {
	s.post(func() { s.onBatch(res) })
}

func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(ran) }:
	case <-s.done:
		return ErrSessionClosed
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// onRequests refreshes consent state. An approval granted by the other side
// shows up here first, so the viewer's partner cache is invalidated before
// the rebuild re-reads it.
func (s *Session) onRequests(ctx context.Context, batch []models.PrivateMessageRequest) {
	s.deps.Consent.InvalidatePartners(s.viewer.ID, s.viewer.OrgID)

	pending := make([]models.PrivateMessageRequest, 0, len(batch))
	for _, r := range batch {
		if r.Status == models.RequestPending && r.RecipientID == s.viewer.ID {
			pending = append(pending, r)
		}
	}
	s.deps.Sink.Requests(pending)
	s.rebuild(ctx)
}

// rebuild recomputes the conversation directory and publishes it when it
// changed. If the active conversation fell out of the directory its stream
// is torn down.
func (s *Session) rebuild(ctx context.Context) {
	ids, err := s.deps.Consent.Partners(ctx, s.viewer.ID, s.viewer.OrgID)
	if err != nil {
		s.deps.Log.Warn("approved partner load failed; keeping previous set",
			zap.String("user_id", s.viewer.ID.Hex()), zap.Error(err))
	} else {
		next := make(map[primitive.ObjectID]struct{}, len(ids))
		for _, id := range ids {
			next[id] = struct{}{}
		}
		s.mu.Lock()
		s.partners = next
		s.mu.Unlock()
	}

	s.mu.Lock()
	in := directory.Input{
		Viewer:           s.viewer,
		ViewerName:       s.name,
		Groups:           s.groups,
		Roster:           s.roster,
		Matches:          s.matches,
		ApprovedPartners: s.partners,
		Pinned:           s.pinned,
	}
	prev := s.dir
	s.mu.Unlock()

	next := directory.Build(in)
	if conversationsEqual(prev, next) {
		return
	}
	s.mu.Lock()
	s.dir = next
	active := s.active
	stillThere := active == nil
	for i := range next {
		if active != nil && next[i].ID == active.ID {
			stillThere = true
			break
		}
	}
	if !stillThere {
		s.active = nil
	}
	s.mu.Unlock()

	if !stillThere {
		s.acct.Forget(active.ID)
		s.mux.Close()
	}
	s.deps.Sink.Conversations(next)
}

// onBatch handles one filtered message batch for the active conversation.
func (s *Session) onBatch(res stream.Result) {
	s.deps.Sink.Messages(res)

	if st, changed := s.acct.Apply(res.ConversationID, res.Messages); changed {
		s.deps.Sink.Unread(res.ConversationID, st)
	}

	// Viewing a conversation reads it. Receipt writes are best effort.
	s.mu.Lock()
	activeID := ""
	if s.active != nil {
		activeID = s.active.ID
	}
	s.mu.Unlock()
	if activeID != res.ConversationID {
		return
	}
	var ids []primitive.ObjectID
	for _, m := range res.Messages {
		if m.SenderID != s.viewer.ID && !m.ReadByUser(s.viewer.ID) {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(s.runCtx, 5*time.Second)
	defer cancel()
	if err := s.deps.Messages.MarkRead(ctx, ids, s.viewer.ID); err != nil {
		s.deps.Log.Warn("read receipt write failed",
			zap.String("conversation_id", res.ConversationID), zap.Error(err))
	}
}

// SelectConversation makes the directory entry with the given id active and
// opens its message stream. The previous conversation's stream closes first
// and its manual mood override, if any, is lifted.
func (s *Session) SelectConversation(id string) error {
	var err error
	derr := s.do(func() {
		s.mu.Lock()
		var found *directory.Conversation
		for i := range s.dir {
			if s.dir[i].ID == id {
				found = &s.dir[i]
				break
			}
		}
		if found == nil {
			s.mu.Unlock()
			err = ErrUnknownConversation
			return
		}
		prev := s.active
		conv := *found
		s.active = &conv
		s.mu.Unlock()

		if prev != nil && prev.ID != conv.ID {
			s.acct.ClearOverride(prev.ID)
		}
		s.mux.Select(s.runCtx, s.viewer, conversationKey(s.viewer, conv))
	})
	if derr != nil {
		return derr
	}
	return err
}

// SendMessage sanitizes and persists a message to the active conversation.
// The send carries an idempotency token, so a retried call cannot double
// post.
func (s *Session) SendMessage(ctx context.Context, body string) (models.ChatMessage, error) {
	var (
		msg models.ChatMessage
		err error
	)
	derr := s.do(func() {
		s.mu.Lock()
		active := s.active
		s.mu.Unlock()
		if active == nil {
			err = ErrNoActiveConversation
			return
		}

		clean := sanitize.MessageBody(body)
		if clean == "" {
			err = ErrEmptyMessage
			return
		}
		if len(clean) > sanitize.MaxMessageLen {
			err = ErrMessageTooLong
			return
		}

		m := models.ChatMessage{
			OrganizationID:   conversationOrg(s.viewer, *active),
			ConversationKind: active.Kind,
			SenderID:         s.viewer.ID,
			SenderName:       s.name,
			Body:             clean,
			SendToken:        uuid.NewString(),
			SentAt:           time.Now().UTC(),
		}
		if active.Kind == models.ConversationGroup {
			m.ConversationID = active.GroupID
		} else {
			m.ConversationID = active.CounterpartID
		}
		msg, err = s.deps.Messages.Create(ctx, m)
	})
	if derr != nil {
		return models.ChatMessage{}, derr
	}
	return msg, err
}

// ToggleReaction flips the viewer's emoji reaction on a message.
func (s *Session) ToggleReaction(ctx context.Context, messageID primitive.ObjectID, emoji string) error {
	var err error
	derr := s.do(func() {
		err = s.deps.Messages.ToggleReaction(ctx, messageID, emoji, s.viewer.ID)
	})
	if derr != nil {
		return derr
	}
	return err
}

// RequestPrivateMessage starts the consent workflow toward recipientID.
func (s *Session) RequestPrivateMessage(ctx context.Context, recipientID primitive.ObjectID) (models.PrivateMessageRequest, error) {
	var (
		req models.PrivateMessageRequest
		err error
	)
	derr := s.do(func() {
		req, err = s.deps.Consent.Request(ctx, s.viewer.ID, s.name, s.viewer.OrgID, recipientID)
	})
	if derr != nil {
		return models.PrivateMessageRequest{}, derr
	}
	return req, err
}

// RespondToRequest resolves a pending request addressed to the viewer. On
// approval the directory is rebuilt immediately so the new direct
// conversation appears without waiting for a store event.
func (s *Session) RespondToRequest(ctx context.Context, requestID primitive.ObjectID, approve bool) (models.PrivateMessageRequest, error) {
	var (
		req models.PrivateMessageRequest
		err error
	)
	derr := s.do(func() {
		req, err = s.deps.Consent.Respond(ctx, s.viewer.ID, requestID, approve)
		if err == nil && approve {
			s.rebuild(ctx)
		}
	})
	if derr != nil {
		return models.PrivateMessageRequest{}, derr
	}
	return req, err
}

// SetMood pins a manual mood on the active conversation until the viewer
// switches away.
func (s *Session) SetMood(mood string) error {
	var err error
	derr := s.do(func() {
		s.mu.Lock()
		active := s.active
		s.mu.Unlock()
		if active == nil {
			err = ErrNoActiveConversation
			return
		}
		st := s.acct.OverrideMood(active.ID, mood)
		s.deps.Sink.Unread(active.ID, st)
	})
	if derr != nil {
		return derr
	}
	return err
}

// PinConversation toggles a directory pin and republishes the list.
func (s *Session) PinConversation(id string, pinned bool) error {
	return s.do(func() {
		s.mu.Lock()
		if pinned {
			s.pinned[id] = struct{}{}
		} else {
			delete(s.pinned, id)
		}
		s.mu.Unlock()
		s.rebuild(s.runCtx)
	})
}

func conversationKey(v chatpolicy.Viewer, c directory.Conversation) stream.ConversationKey {
	return stream.ConversationKey{
		Kind:          c.Kind,
		OrgID:         conversationOrg(v, c),
		GroupID:       c.GroupID,
		CounterpartID: c.CounterpartID,
	}
}

// conversationOrg is the tenant a conversation lives in. Subscriptions are
// already scoped to the viewer's org, so this is the viewer's org for
// everyone who has one.
func conversationOrg(v chatpolicy.Viewer, _ directory.Conversation) primitive.ObjectID {
	return v.OrgID
}

func conversationsEqual(a, b []directory.Conversation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// factsResolver adapts session state to the multiplexer's policy-fact
// lookups. Called from subscription goroutines.
type factsResolver struct {
	s *Session
}

func (f factsResolver) GroupFacts(groupID primitive.ObjectID) chatpolicy.GroupFacts {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	var facts chatpolicy.GroupFacts
	for _, g := range f.s.groups {
		if g.ID == groupID {
			facts = chatpolicy.GroupFacts{
				Exists:    true,
				OrgID:     g.OrganizationID,
				MemberIDs: g.MemberSet(),
				CreatedAt: g.CreatedAt,
			}
			break
		}
	}
	// A qualifying viewer counts as a default-group member before the
	// synchronizer heals the persisted member set, matching the directory.
	return chatpolicy.ApplyDefaultMembership(f.s.viewer, groupID, facts)
}

func (f factsResolver) DirectFacts(counterpartID primitive.ObjectID) chatpolicy.DirectFacts {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	d := chatpolicy.DirectFacts{CounterpartID: counterpartID}
	for _, u := range f.s.roster {
		if u.ID == counterpartID {
			d.CounterpartKnown = true
			d.CounterpartRole = u.Role
			break
		}
	}
	for _, m := range f.s.matches {
		if m.Status == models.MatchActive && m.Pairs(f.s.viewer.ID, counterpartID) {
			d.ActiveMatch = true
			break
		}
	}
	if _, ok := f.s.partners[counterpartID]; ok {
		d.ConsentApproved = true
	}
	return d
}

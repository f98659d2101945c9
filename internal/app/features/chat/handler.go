// internal/app/features/chat/handler.go
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/mentorhub/internal/app/chat/consent"
	"github.com/dalemusser/mentorhub/internal/app/chat/directory"
	apierrors "github.com/dalemusser/mentorhub/internal/app/features/errors"
	"github.com/dalemusser/mentorhub/internal/app/policy/chatpolicy"
	consentstore "github.com/dalemusser/mentorhub/internal/app/store/consent"
	groupstore "github.com/dalemusser/mentorhub/internal/app/store/groups"
	matchstore "github.com/dalemusser/mentorhub/internal/app/store/matches"
	messagestore "github.com/dalemusser/mentorhub/internal/app/store/messages"
	notificationstore "github.com/dalemusser/mentorhub/internal/app/store/notifications"
	userstore "github.com/dalemusser/mentorhub/internal/app/store/users"
	"github.com/dalemusser/mentorhub/internal/app/system/authz"
	"github.com/dalemusser/mentorhub/internal/app/system/timeouts"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the messaging surface: the one-shot REST views plus the
// websocket session endpoint in ws.go.
type Handler struct {
	Users         *userstore.Store
	Groups        *groupstore.Store
	Matches       *matchstore.Store
	Messages      *messagestore.Store
	Requests      *consentstore.Store
	Notifications *notificationstore.Store
	Consent       *consent.Workflow
	Log           *zap.Logger
}

func NewHandler(
	users *userstore.Store,
	groups *groupstore.Store,
	matches *matchstore.Store,
	messages *messagestore.Store,
	requests *consentstore.Store,
	notifications *notificationstore.Store,
	workflow *consent.Workflow,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:         users,
		Groups:        groups,
		Matches:       matches,
		Messages:      messages,
		Requests:      requests,
		Notifications: notifications,
		Consent:       workflow,
		Log:           logger,
	}
}

// viewerUser loads the signed-in user's full record. Platform operators may
// scope the call to an organization with ?org=; the scoped copy carries that
// org so downstream queries stay tenant-bound.
func (h *Handler) viewerUser(ctx context.Context, r *http.Request) (models.User, error) {
	_, _, id, ok := authz.UserCtx(r)
	if !ok {
		return models.User{}, errNotSignedIn
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if u.Role == models.RolePlatformOperator {
		if raw := r.URL.Query().Get("org"); raw != "" {
			orgID, err := primitive.ObjectIDFromHex(raw)
			if err != nil {
				return models.User{}, errBadOrgParam
			}
			u.OrganizationID = &orgID
		}
	}
	return u, nil
}

var (
	errNotSignedIn = errors.New("not signed in")
	errBadOrgParam = errors.New("org must be a valid organization id")
)

func (h *Handler) writeViewerErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotSignedIn):
		apierrors.Unauthorized(w, "sign in to use chat")
	case errors.Is(err, errBadOrgParam):
		apierrors.Invalid(w, err.Error())
	default:
		apierrors.FromStore(w, err)
	}
}

// ListConversations handles GET /chat/conversations: a one-shot build of
// the viewer's directory, the same list the websocket session pushes live.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.viewerUser(ctx, r)
	if err != nil {
		h.writeViewerErr(w, err)
		return
	}

	list, err := h.buildDirectory(ctx, user)
	if err != nil {
		h.Log.Error("chat: directory build failed",
			zap.String("user_id", user.ID.Hex()), zap.Error(err))
		apierrors.FromStore(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) buildDirectory(ctx context.Context, user models.User) ([]directory.Conversation, error) {
	orgID := user.OrgID()
	if orgID.IsZero() {
		return []directory.Conversation{}, nil
	}

	roster, err := h.Users.ListRoster(ctx, orgID)
	if err != nil {
		return nil, err
	}
	groups, err := h.Groups.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	matches, err := h.Matches.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	partnerIDs, err := h.Consent.Partners(ctx, user.ID, orgID)
	if err != nil {
		return nil, err
	}
	partners := make(map[primitive.ObjectID]struct{}, len(partnerIDs))
	for _, id := range partnerIDs {
		partners[id] = struct{}{}
	}

	return directory.Build(directory.Input{
		Viewer:           viewerFor(user),
		ViewerName:       user.FullName,
		Groups:           groups,
		Roster:           roster,
		Matches:          matches,
		ApprovedPartners: partners,
	}), nil
}

func viewerFor(user models.User) chatpolicy.Viewer {
	return chatpolicy.Viewer{
		ID:           user.ID,
		Role:         user.Role,
		OrgID:        user.OrgID(),
		JoinableFrom: user.CreatedAt,
	}
}

// History handles GET /chat/conversations/{id}/messages?kind=group|direct.
// The id is a group id or a counterpart user id, and results pass through
// the same visibility policy the live stream applies.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.viewerUser(ctx, r)
	if err != nil {
		h.writeViewerErr(w, err)
		return
	}
	convID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Invalid(w, "invalid conversation id")
		return
	}
	viewer := viewerFor(user)

	var msgs []models.ChatMessage
	switch models.ConversationKind(r.URL.Query().Get("kind")) {
	case models.ConversationGroup:
		facts, err := h.groupFacts(ctx, viewer, convID)
		if err != nil {
			apierrors.FromStore(w, err)
			return
		}
		if !chatpolicy.CanSubscribeGroup(viewer, facts) {
			apierrors.Forbidden(w, "you cannot read this group")
			return
		}
		raw, err := h.Messages.ListGroup(ctx, facts.OrgID, convID)
		if err != nil {
			apierrors.FromStore(w, err)
			return
		}
		msgs = chatpolicy.FilterMessages(viewer, raw, facts, chatpolicy.DirectFacts{})
	case models.ConversationDirect:
		facts, err := h.directFacts(ctx, viewer, convID)
		if err != nil {
			apierrors.FromStore(w, err)
			return
		}
		if !chatpolicy.CanSubscribeDirect(viewer, facts) {
			apierrors.Forbidden(w, "you cannot message this user")
			return
		}
		raw, err := h.Messages.ListDirect(ctx, viewer.OrgID, viewer.ID, convID)
		if err != nil {
			apierrors.FromStore(w, err)
			return
		}
		msgs = chatpolicy.FilterMessages(viewer, raw, chatpolicy.GroupFacts{}, facts)
	default:
		apierrors.Invalid(w, "kind must be group or direct")
		return
	}

	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(msgs)
}

// groupFacts resolves policy inputs for one group. A qualifying viewer
// counts as a default-group member even before the synchronizer heals the
// persisted member set, and the canonical default id resolves even when no
// document has been persisted yet.
func (h *Handler) groupFacts(ctx context.Context, viewer chatpolicy.Viewer, groupID primitive.ObjectID) (chatpolicy.GroupFacts, error) {
	g, err := h.Groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			facts := chatpolicy.ApplyDefaultMembership(viewer, groupID, chatpolicy.GroupFacts{})
			if facts.Exists {
				return facts, nil
			}
		}
		return chatpolicy.GroupFacts{}, err
	}
	return chatpolicy.ApplyDefaultMembership(viewer, groupID, chatpolicy.GroupFacts{
		Exists:    true,
		OrgID:     g.OrganizationID,
		MemberIDs: g.MemberSet(),
		CreatedAt: g.CreatedAt,
	}), nil
}

func (h *Handler) directFacts(ctx context.Context, viewer chatpolicy.Viewer, counterpartID primitive.ObjectID) (chatpolicy.DirectFacts, error) {
	d := chatpolicy.DirectFacts{CounterpartID: counterpartID}

	other, err := h.Users.GetByID(ctx, counterpartID)
	if err == nil {
		d.CounterpartKnown = true
		d.CounterpartRole = other.Role
	}

	matches, err := h.Matches.ListByOrg(ctx, viewer.OrgID)
	if err != nil {
		return d, err
	}
	for _, m := range matches {
		if m.Status == models.MatchActive && m.Pairs(viewer.ID, counterpartID) {
			d.ActiveMatch = true
			break
		}
	}

	partners, err := h.Consent.Partners(ctx, viewer.ID, viewer.OrgID)
	if err != nil {
		return d, err
	}
	for _, id := range partners {
		if id == counterpartID {
			d.ConsentApproved = true
			break
		}
	}
	return d, nil
}

// ListRequests handles GET /chat/requests: every private-message request the
// viewer is party to, newest first, both directions and all statuses.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.viewerUser(ctx, r)
	if err != nil {
		h.writeViewerErr(w, err)
		return
	}
	list, err := h.Requests.ListInvolving(ctx, user.ID, user.OrgID())
	if err != nil {
		apierrors.FromStore(w, err)
		return
	}
	if list == nil {
		list = []models.PrivateMessageRequest{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

type createRequestBody struct {
	RecipientID string `json:"recipient_id"`
}

// CreateRequest handles POST /chat/requests.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.viewerUser(ctx, r)
	if err != nil {
		h.writeViewerErr(w, err)
		return
	}
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.Invalid(w, "request body must be JSON")
		return
	}
	recipientID, err := primitive.ObjectIDFromHex(body.RecipientID)
	if err != nil {
		apierrors.Invalid(w, "recipient_id must be a valid id")
		return
	}

	req, err := h.Consent.Request(ctx, user.ID, user.FullName, user.OrgID(), recipientID)
	if err != nil {
		h.writeConsentErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(req)
}

type respondBody struct {
	Approve bool `json:"approve"`
}

// RespondRequest handles POST /chat/requests/{id}/respond.
func (h *Handler) RespondRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.viewerUser(ctx, r)
	if err != nil {
		h.writeViewerErr(w, err)
		return
	}
	requestID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Invalid(w, "invalid request id")
		return
	}
	var body respondBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.Invalid(w, "request body must be JSON")
		return
	}

	req, err := h.Consent.Respond(ctx, user.ID, requestID, body.Approve)
	if err != nil {
		h.writeConsentErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(req)
}

func (h *Handler) writeConsentErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consent.ErrSelfRequest):
		apierrors.Invalid(w, "you cannot request a conversation with yourself")
	case errors.Is(err, consent.ErrNotRecipient):
		apierrors.Forbidden(w, "only the recipient can respond to a request")
	default:
		apierrors.FromStore(w, err)
	}
}

// ListNotifications handles GET /chat/notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	_, _, id, ok := authz.UserCtx(r)
	if !ok {
		apierrors.Unauthorized(w, "sign in to use chat")
		return
	}
	list, err := h.Notifications.ListUnread(ctx, id)
	if err != nil {
		apierrors.FromStore(w, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

// ReadNotification handles POST /chat/notifications/{id}/read.
func (h *Handler) ReadNotification(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		apierrors.Unauthorized(w, "sign in to use chat")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.Invalid(w, "invalid notification id")
		return
	}
	if err := h.Notifications.MarkRead(ctx, id, userID); err != nil {
		apierrors.FromStore(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

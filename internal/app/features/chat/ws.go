// internal/app/features/chat/ws.go
package chat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/mentorhub/internal/app/chat/consent"
	"github.com/dalemusser/mentorhub/internal/app/chat/directory"
	"github.com/dalemusser/mentorhub/internal/app/chat/session"
	"github.com/dalemusser/mentorhub/internal/app/chat/stream"
	"github.com/dalemusser/mentorhub/internal/app/chat/unread"
	apierrors "github.com/dalemusser/mentorhub/internal/app/features/errors"
	messagestore "github.com/dalemusser/mentorhub/internal/app/store/messages"
	"github.com/dalemusser/mentorhub/internal/app/system/sanitize"
	"github.com/dalemusser/mentorhub/internal/app/system/timeouts"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	maxFrameLen = int64(sanitize.MaxMessageLen) + 1024

	// sendBuffer is how many outbound frames may queue before the client is
	// considered too slow and the connection is dropped.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Server-to-client frame.
type frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Client-to-server command. One envelope for all command types; unused
// fields stay empty.
type command struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Body           string `json:"body,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	Emoji          string `json:"emoji,omitempty"`
	RecipientID    string `json:"recipient_id,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	Approve        bool   `json:"approve,omitempty"`
	Mood           string `json:"mood,omitempty"`
	Pinned         bool   `json:"pinned,omitempty"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type unreadPayload struct {
	ConversationID string `json:"conversation_id"`
	Unread         int    `json:"unread"`
	Mood           string `json:"mood"`
}

// Socket handles GET /chat/ws. It upgrades the connection, spins up the
// viewer's session loop, and bridges frames in both directions until either
// side goes away.
func (h *Handler) Socket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	user, err := h.viewerUser(ctx, r)
	cancel()
	if err != nil {
		h.writeViewerErr(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.Log.Debug("chat: websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan frame, sendBuffer),
		log:  h.Log.With(zap.String("user_id", user.ID.Hex())),
	}
	c.sess = session.New(user, session.Deps{
		Users:    h.Users,
		Groups:   h.Groups,
		Matches:  h.Matches,
		Requests: h.Requests,
		Messages: h.Messages,
		Consent:  h.Consent,
		Sink:     c,
		Log:      c.log,
	})

	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.sess.Run(runCtx)
	}()

	go c.writePump(runCtx, stop)
	c.readPump(runCtx)

	stop()
	<-done
	_ = conn.Close()
}

// wsClient is one websocket connection. It implements session.Sink; sink
// calls arrive on the session loop and are queued for the write pump.
type wsClient struct {
	conn *websocket.Conn
	send chan frame
	sess *session.Session
	log  *zap.Logger
}

func (c *wsClient) Conversations(list []directory.Conversation) {
	c.enqueue(frame{Type: "conversations", Payload: list})
}

func (c *wsClient) Messages(res stream.Result) {
	c.enqueue(frame{Type: "messages", Payload: struct {
		ConversationID string               `json:"conversation_id"`
		Messages       []models.ChatMessage `json:"messages"`
	}{res.ConversationID, res.Messages}})
}

func (c *wsClient) Unread(conversationID string, st unread.State) {
	c.enqueue(frame{Type: "unread", Payload: unreadPayload{
		ConversationID: conversationID,
		Unread:         st.Unread,
		Mood:           st.Mood,
	}})
}

func (c *wsClient) Requests(pending []models.PrivateMessageRequest) {
	c.enqueue(frame{Type: "requests", Payload: pending})
}

// enqueue drops the frame when the send buffer is full. A reader that far
// behind gets a stale view either way; the next snapshot catches it up.
func (c *wsClient) enqueue(f frame) {
	select {
	case c.send <- f:
	default:
		c.log.Warn("chat: dropping frame for slow websocket reader",
			zap.String("frame_type", f.Type))
	}
}

func (c *wsClient) writePump(ctx context.Context, stop context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer stop()
	// Closing the connection unblocks the read pump too.
	defer c.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxFrameLen)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("chat: websocket read ended", zap.Error(err))
			}
			return
		}
		c.dispatch(ctx, cmd)
	}
}

func (c *wsClient) dispatch(ctx context.Context, cmd command) {
	switch cmd.Type {
	case "select":
		c.reply(cmd, nil, c.sess.SelectConversation(cmd.ConversationID))
	case "send":
		msg, err := c.sess.SendMessage(ctx, cmd.Body)
		c.reply(cmd, msg, err)
	case "react":
		id, err := primitive.ObjectIDFromHex(cmd.MessageID)
		if err != nil {
			c.sendError(apierrors.CodeInvalid, "message_id must be a valid id")
			return
		}
		c.reply(cmd, nil, c.sess.ToggleReaction(ctx, id, cmd.Emoji))
	case "request":
		id, err := primitive.ObjectIDFromHex(cmd.RecipientID)
		if err != nil {
			c.sendError(apierrors.CodeInvalid, "recipient_id must be a valid id")
			return
		}
		req, err := c.sess.RequestPrivateMessage(ctx, id)
		c.reply(cmd, req, err)
	case "respond":
		id, err := primitive.ObjectIDFromHex(cmd.RequestID)
		if err != nil {
			c.sendError(apierrors.CodeInvalid, "request_id must be a valid id")
			return
		}
		req, err := c.sess.RespondToRequest(ctx, id, cmd.Approve)
		c.reply(cmd, req, err)
	case "mood":
		c.reply(cmd, nil, c.sess.SetMood(cmd.Mood))
	case "pin":
		c.reply(cmd, nil, c.sess.PinConversation(cmd.ConversationID, cmd.Pinned))
	default:
		c.sendError(apierrors.CodeInvalid, "unknown command type")
	}
}

// reply acknowledges a command: ok frames echo the command type, error
// frames carry the mapped code.
func (c *wsClient) reply(cmd command, payload interface{}, err error) {
	if err != nil {
		code, msg := mapSessionErr(err)
		c.sendError(code, msg)
		return
	}
	ack := frame{Type: cmd.Type + "_ok"}
	if payload != nil {
		ack.Payload = payload
	}
	c.enqueue(ack)
}

func (c *wsClient) sendError(code, msg string) {
	c.enqueue(frame{Type: "error", Payload: wsError{Code: code, Message: msg}})
}

func mapSessionErr(err error) (code, msg string) {
	switch {
	case errors.Is(err, session.ErrUnknownConversation),
		errors.Is(err, session.ErrNoActiveConversation),
		errors.Is(err, session.ErrEmptyMessage),
		errors.Is(err, session.ErrMessageTooLong):
		return apierrors.CodeInvalid, err.Error()
	case errors.Is(err, consent.ErrSelfRequest),
		errors.Is(err, messagestore.ErrInvalidEmoji):
		return apierrors.CodeInvalid, err.Error()
	case errors.Is(err, consent.ErrNotRecipient):
		return apierrors.CodeForbidden, err.Error()
	case errors.Is(err, session.ErrSessionClosed):
		return apierrors.CodeUnavailable, err.Error()
	default:
		return apierrors.CodeInternal, "something went wrong"
	}
}

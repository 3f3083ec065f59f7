package chat

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/subhive/subhive/backend/pkg/models"
	"github.com/subhive/subhive/backend/internal/storage"
)

// Router decides what happens to every inbound frame and drives all
// server-initiated delivery through the hub. A connection moves from
// unauthenticated to authenticated exactly once; the only way back is
// disconnecting.
type Router struct {
	hub   *Hub
	store storage.Store
}

func NewRouter(hub *Hub, store storage.Store) *Router {
	return &Router{hub: hub, store: store}
}

// HandleFrame processes one inbound frame. Malformed frames are logged
// and dropped; the connection stays open.
func (r *Router) HandleFrame(c *Client, raw []byte) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil || f.Type == "" {
		log.Printf("[router] dropping malformed frame: %v", err)
		return
	}

	switch f.Type {
	case FramePing:
		c.enqueue(FramePong, PongPayload{Timestamp: time.Now().UnixMilli()})

	case FrameAuth:
		var p AuthPayload
		if err := json.Unmarshal(f.Data, &p); err != nil || p.UserID == "" {
			log.Printf("[router] dropping auth frame with bad payload: %v", err)
			return
		}
		r.handleAuth(c, p.UserID)

	case FrameTyping:
		var p TypingPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			log.Printf("[router] dropping typing frame with bad payload: %v", err)
			return
		}
		r.handleTyping(c, p)

	default:
		log.Printf("[router] dropping frame of unknown type %q", f.Type)
	}
}

func (r *Router) handleAuth(c *Client, userID string) {
	r.hub.Bind(c, userID)
	c.enqueue(FrameAuthSuccess, AuthSuccessPayload{
		UserID:    userID,
		Timestamp: time.Now().UnixMilli(),
	})

	// Flush the unread backlog off the read path. A failed fetch only
	// costs this flush, never the auth itself.
	go r.flushPending(c, userID)
}

func (r *Router) flushPending(c *Client, userID string) {
	pending, err := r.store.PendingNotifications(context.Background(), userID)
	if err != nil {
		log.Printf("[router] pending notification fetch for %s failed: %v", userID, err)
		return
	}
	if len(pending) == 0 {
		return
	}
	// one batched frame, not one frame per notification
	c.enqueue(FramePendingNotifications, pending)
}

func (r *Router) handleTyping(c *Client, p TypingPayload) {
	sender, ok := r.hub.UserID(c)
	if !ok {
		// unauthenticated typing is silently dropped, no error frame
		return
	}
	if p.RecipientID == "" {
		return
	}

	conv, err := r.store.GetOrCreateConversation(context.Background(), []string{sender, p.RecipientID})
	if err != nil {
		log.Printf("[router] conversation lookup for typing failed: %v", err)
		return
	}

	payload := UserTypingPayload{
		ConversationID: conv.ID,
		UserID:         sender,
		IsTyping:       p.IsTyping,
		Timestamp:      time.Now().UnixMilli(),
	}
	for _, uid := range conv.Participants {
		if uid == sender {
			continue
		}
		r.hub.PushToUser(uid, FrameUserTyping, payload)
	}
}

// NotifyNotification pushes a freshly created notification to the
// recipient's live connections. Offline recipients simply pick it up in
// their next pending_notifications flush.
func (r *Router) NotifyNotification(n *models.Notification) {
	r.hub.PushToUser(n.Recipient, FrameNewNotification, n)
}

// NotifyMessage pushes a freshly persisted message to the recipient and
// acks the sender's other connections. Self-messages get a single
// new_message and no ack.
func (r *Router) NotifyMessage(m *models.Message) {
	r.hub.PushToUser(m.Recipient, FrameNewMessage, m)
	if m.Sender != m.Recipient {
		r.hub.PushToUser(m.Sender, FrameMessageSent, m)
	}
}

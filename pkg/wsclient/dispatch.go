package wsclient

import (
	"encoding/json"
	"log"

	"github.com/subhive/subhive/backend/pkg/models"
)

// Frame types mirrored from the server protocol.
const (
	framePing = "ping"
	frameAuth = "auth"

	FrameTyping                = "typing"
	FrameConnectionEstablished = "connection_established"
	FramePong                  = "pong"
	FrameAuthSuccess           = "auth_success"
	FramePendingNotifications  = "pending_notifications"
	FrameNewNotification       = "new_notification"
	FrameNewMessage            = "new_message"
	FrameMessageSent           = "message_sent"
	FrameUserTyping            = "user_typing"
)

type authPayload struct {
	UserID string `json:"userId"`
}

// TypingEvent is one remote user's typing state change.
type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
	Timestamp      int64  `json:"timestamp"`
}

type (
	NotificationHandler func(models.Notification)
	MessageHandler      func(models.Message)
	TypingHandler       func(TypingEvent)
)

// SendTyping reports the local user's typing state for a conversation.
func (c *Client) SendTyping(conversationID, recipientID string, isTyping bool) {
	c.Send(FrameTyping, map[string]any{
		"conversationId": conversationID,
		"recipientId":    recipientID,
		"isTyping":       isTyping,
	})
}

// OnNotification subscribes to live and backlog notifications; backlog
// batches are delivered one notification at a time. Returns the
// unsubscribe function.
func (c *Client) OnNotification(fn NotificationHandler) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.notifHandlers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.notifHandlers, id)
		c.mu.Unlock()
	}
}

// OnMessage subscribes to incoming direct messages.
func (c *Client) OnMessage(fn MessageHandler) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.messageHandlers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.messageHandlers, id)
		c.mu.Unlock()
	}
}

// OnTyping subscribes to remote typing indicator changes.
func (c *Client) OnTyping(fn TypingHandler) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.typingHandlers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.typingHandlers, id)
		c.mu.Unlock()
	}
}

// AddFrameListener subscribes to every inbound frame, before typed
// dispatch runs.
func (c *Client) AddFrameListener(fn func(Frame)) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.frameListeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.frameListeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) dispatch(raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		log.Printf("[wsclient] dropping malformed frame: %v", err)
		return
	}

	for _, fn := range c.snapshotFrameListeners() {
		fn := fn
		safeCall("frame", func() { fn(f) })
	}

	switch f.Type {
	case FrameNewNotification:
		var n models.Notification
		if err := json.Unmarshal(f.Data, &n); err != nil {
			log.Printf("[wsclient] bad new_notification payload: %v", err)
			return
		}
		c.fanOutNotification(n)

	case FramePendingNotifications:
		var batch []models.Notification
		if err := json.Unmarshal(f.Data, &batch); err != nil {
			log.Printf("[wsclient] bad pending_notifications payload: %v", err)
			return
		}
		for _, n := range batch {
			c.fanOutNotification(n)
		}

	case FrameNewMessage:
		var m models.Message
		if err := json.Unmarshal(f.Data, &m); err != nil {
			log.Printf("[wsclient] bad new_message payload: %v", err)
			return
		}
		for _, fn := range c.snapshotMessageHandlers() {
			fn := fn
			safeCall("message", func() { fn(m) })
		}

	case FrameUserTyping:
		var ev TypingEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			log.Printf("[wsclient] bad user_typing payload: %v", err)
			return
		}
		for _, fn := range c.snapshotTypingHandlers() {
			fn := fn
			safeCall("typing", func() { fn(ev) })
		}
	}
}

func (c *Client) fanOutNotification(n models.Notification) {
	for _, fn := range c.snapshotNotifHandlers() {
		fn := fn
		safeCall("notification", func() { fn(n) })
	}
}

func (c *Client) snapshotFrameListeners() []func(Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(Frame), 0, len(c.frameListeners))
	for _, fn := range c.frameListeners {
		out = append(out, fn)
	}
	return out
}

func (c *Client) snapshotNotifHandlers() []NotificationHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]NotificationHandler, 0, len(c.notifHandlers))
	for _, fn := range c.notifHandlers {
		out = append(out, fn)
	}
	return out
}

func (c *Client) snapshotMessageHandlers() []MessageHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MessageHandler, 0, len(c.messageHandlers))
	for _, fn := range c.messageHandlers {
		out = append(out, fn)
	}
	return out
}

func (c *Client) snapshotTypingHandlers() []TypingHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TypingHandler, 0, len(c.typingHandlers))
	for _, fn := range c.typingHandlers {
		out = append(out, fn)
	}
	return out
}

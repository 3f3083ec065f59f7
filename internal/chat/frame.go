package chat

import "encoding/json"

// Every frame in both directions is a single JSON text payload of the
// form {"type": "<string>", "data": <any>}.
const (
	// client -> server
	FramePing   = "ping"
	FrameAuth   = "auth"
	FrameTyping = "typing"

	// server -> client
	FrameConnectionEstablished = "connection_established"
	FramePong                  = "pong"
	FrameAuthSuccess           = "auth_success"
	FramePendingNotifications  = "pending_notifications"
	FrameNewNotification       = "new_notification"
	FrameNewMessage            = "new_message"
	FrameMessageSent           = "message_sent"
	FrameUserTyping            = "user_typing"
)

type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// inboundFrame defers payload decoding until the type is known.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type AuthPayload struct {
	UserID string `json:"userId"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	RecipientID    string `json:"recipientId"`
	IsTyping       bool   `json:"isTyping"`
}

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type AuthSuccessPayload struct {
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

type EstablishedPayload struct {
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

type UserTypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
	Timestamp      int64  `json:"timestamp"`
}

func encodeFrame(frameType string, data any) ([]byte, error) {
	return json.Marshal(Frame{Type: frameType, Data: data})
}

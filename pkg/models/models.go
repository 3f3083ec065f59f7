package models

import (
	"sort"
	"strings"
)

// Notification types mirror the events the content service emits.
const (
	NotifPostLike     = "post_like"
	NotifPostComment  = "post_comment"
	NotifCommentLike  = "comment_like"
	NotifCommentReply = "comment_reply"
	NotifMention      = "mention"
	NotifFollow       = "follow"
	NotifSystem       = "system"
)

// Message content types.
const (
	MessageText  = "text"
	MessageMedia = "media"
	MessageLink  = "link"
)

// Notification is immutable once created except for the read flag,
// which only ever flips false -> true.
type Notification struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	Recipient        string `json:"recipient"`
	Sender           string `json:"sender,omitempty"`
	Content          string `json:"content"`
	RelatedPostID    string `json:"relatedPostId,omitempty"`
	RelatedCommentID string `json:"relatedCommentId,omitempty"`
	CreatedAt        int64  `json:"createdAt"` // epoch-ms
	Read             bool   `json:"read"`
}

// Message always belongs to exactly one conversation.
type Message struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversationId"`
	Sender         string   `json:"sender"`
	Recipient      string   `json:"recipient"`
	Type           string   `json:"type"`
	Content        string   `json:"content"`
	Media          []string `json:"media,omitempty"`
	CreatedAt      int64    `json:"createdAt"` // epoch-ms
	Read           bool     `json:"read"`
}

// Conversation identity is derived from its sorted participant set;
// the participant set is fixed at creation.
type Conversation struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
	LastMessage  *Message `json:"lastMessage"`
	UpdatedAt    int64    `json:"updatedAt"` // epoch-ms
	UnreadCount  int      `json:"unreadCount"`
}

// ParticipantKey derives the stable lookup key for a participant set.
// Requesting a conversation for the same set, in any order, yields the
// same key.
func ParticipantKey(userIDs []string) string {
	ids := make([]string, len(userIDs))
	copy(ids, userIDs)
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

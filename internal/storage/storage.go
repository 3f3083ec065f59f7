package storage

import (
	"context"
	"errors"

	"github.com/subhive/subhive/backend/pkg/models"
)

var ErrNotFound = errors.New("storage: not found")

// Store is the persistence facade for notifications, messages and
// conversations. The websocket router and the REST handlers only ever
// reach this state through it.
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	NotificationsForUser(ctx context.Context, userID string) ([]models.Notification, error)
	// PendingNotifications returns the unread backlog flushed on auth.
	PendingNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error

	// CreateMessage records the message and, in the same transaction,
	// bumps the conversation's last message, updated_at and unread count.
	CreateMessage(ctx context.Context, m *models.Message) error
	MessagesForConversation(ctx context.Context, conversationID string) ([]models.Message, error)

	// GetOrCreateConversation resolves the conversation for a participant
	// set, creating it on first use. The set is order-insensitive.
	GetOrCreateConversation(ctx context.Context, userIDs []string) (*models.Conversation, error)
	ConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	// MarkConversationRead zeroes the unread count and flips read on all
	// messages addressed to userID in the conversation.
	MarkConversationRead(ctx context.Context, conversationID, userID string) error

	Ping(ctx context.Context) error
	Close() error
}

// Package memory holds the whole facade state in process. It backs unit
// tests and the DB_DRIVER=memory development mode; nothing survives a
// restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/subhive/subhive/backend/pkg/models"
	"github.com/subhive/subhive/backend/internal/storage"
)

type Memory struct {
	mu            sync.Mutex
	notifications map[string]*models.Notification
	notifOrder    []string
	conversations map[string]*models.Conversation // by id
	byKey         map[string]string               // participant key -> conversation id
	messages      map[string][]*models.Message    // conversation id -> ordered
}

func New() *Memory {
	return &Memory{
		notifications: map[string]*models.Notification{},
		conversations: map[string]*models.Conversation{},
		byKey:         map[string]string{},
		messages:      map[string][]*models.Message{},
	}
}

func (s *Memory) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications[n.ID] = &cp
	s.notifOrder = append(s.notifOrder, n.ID)
	return nil
}

func (s *Memory) NotificationsForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for i := len(s.notifOrder) - 1; i >= 0; i-- {
		if n := s.notifications[s.notifOrder[i]]; n.Recipient == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *Memory) PendingNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, id := range s.notifOrder {
		if n := s.notifications[id]; n.Recipient == userID && !n.Read {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *Memory) MarkNotificationRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.Read = true
	return nil
}

func (s *Memory) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.Recipient == userID {
			n.Read = true
		}
	}
	return nil
}

func (s *Memory) CreateMessage(ctx context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[m.ConversationID]
	if !ok {
		return storage.ErrNotFound
	}
	cp := *m
	s.messages[conv.ID] = append(s.messages[conv.ID], &cp)
	conv.LastMessage = &cp
	conv.UpdatedAt = m.CreatedAt
	if m.Recipient != m.Sender {
		conv.UnreadCount++
	}
	return nil
}

func (s *Memory) MessagesForConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out, nil
}

func (s *Memory) GetOrCreateConversation(ctx context.Context, userIDs []string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.ParticipantKey(userIDs)
	if id, ok := s.byKey[key]; ok {
		return s.snapshot(s.conversations[id]), nil
	}
	ids := make([]string, len(userIDs))
	copy(ids, userIDs)
	sort.Strings(ids)
	conv := &models.Conversation{
		ID:           uuid.NewString(),
		Participants: ids,
	}
	s.conversations[conv.ID] = conv
	s.byKey[key] = conv.ID
	return s.snapshot(conv), nil
}

func (s *Memory) ConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversation
	for _, conv := range s.conversations {
		for _, p := range conv.Participants {
			if p == userID {
				out = append(out, *s.snapshot(conv))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out, nil
}

func (s *Memory) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return storage.ErrNotFound
	}
	for _, m := range s.messages[conversationID] {
		if m.Recipient == userID {
			m.Read = true
		}
	}
	conv.UnreadCount = 0
	return nil
}

func (s *Memory) Ping(ctx context.Context) error { return nil }
func (s *Memory) Close() error                   { return nil }

func (s *Memory) snapshot(conv *models.Conversation) *models.Conversation {
	cp := *conv
	cp.Participants = append([]string(nil), conv.Participants...)
	if conv.LastMessage != nil {
		lm := *conv.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}

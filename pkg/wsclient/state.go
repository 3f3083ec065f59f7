package wsclient

import (
	"sort"
	"sync"
	"time"

	"github.com/subhive/subhive/backend/pkg/models"
)

const typingExpiry = 3 * time.Second

// NotificationFeed is the derived view the notification dropdown reads:
// the known notifications plus an unread counter. Duplicates by id are
// ignored, so a backlog replay after reconnect never double counts.
type NotificationFeed struct {
	mu     sync.Mutex
	seen   map[string]bool
	read   map[string]bool
	items  []models.Notification
	unread int
}

// NewNotificationFeed seeds the feed from the initial REST fetch.
func NewNotificationFeed(initial []models.Notification) *NotificationFeed {
	f := &NotificationFeed{seen: map[string]bool{}, read: map[string]bool{}}
	for _, n := range initial {
		f.Add(n)
	}
	return f
}

// Add inserts a notification unless its id is already known. Reports
// whether the notification was new.
func (f *NotificationFeed) Add(n models.Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[n.ID] {
		return false
	}
	f.seen[n.ID] = true
	f.items = append(f.items, n)
	if n.Read {
		f.read[n.ID] = true
	} else {
		f.unread++
	}
	return true
}

func (f *NotificationFeed) MarkRead(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.seen[id] || f.read[id] {
		return
	}
	f.read[id] = true
	if f.unread > 0 {
		f.unread--
	}
}

func (f *NotificationFeed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.seen {
		f.read[id] = true
	}
	f.unread = 0
}

func (f *NotificationFeed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// Notifications returns the feed newest-first.
func (f *NotificationFeed) Notifications() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Notification, len(f.items))
	copy(out, f.items)
	for i := range out {
		out[i].Read = f.read[out[i].ID]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

// TypingSet tracks which remote users are typing in one conversation.
// Entries self-expire after 3 seconds even when the stop signal is
// lost; a repeated start re-arms the timer.
type TypingSet struct {
	mu     sync.Mutex
	expiry time.Duration
	timers map[string]*time.Timer
	users  map[string]bool
}

func NewTypingSet() *TypingSet {
	return &TypingSet{
		expiry: typingExpiry,
		timers: map[string]*time.Timer{},
		users:  map[string]bool{},
	}
}

func (t *TypingSet) Set(userID string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[userID]; ok {
		timer.Stop()
		delete(t.timers, userID)
	}
	if !isTyping {
		delete(t.users, userID)
		return
	}
	t.users[userID] = true
	var timer *time.Timer
	timer = time.AfterFunc(t.expiry, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		// a timer that lost a Stop race must not expire a re-armed entry
		if t.timers[userID] != timer {
			return
		}
		delete(t.users, userID)
		delete(t.timers, userID)
	})
	t.timers[userID] = timer
}

func (t *TypingSet) Users() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.users))
	for uid := range t.users {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

// Stop cancels all pending expiry timers.
func (t *TypingSet) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for uid, timer := range t.timers {
		timer.Stop()
		delete(t.timers, uid)
	}
}

// ConversationView is the message list for one open conversation.
// Inbound messages addressed to the local user trigger the markRead
// side effect immediately, since the user is looking at them.
type ConversationView struct {
	mu             sync.Mutex
	conversationID string
	selfID         string
	seen           map[string]bool
	messages       []models.Message
	markRead       func(conversationID string)
}

func NewConversationView(conversationID, selfID string, initial []models.Message, markRead func(conversationID string)) *ConversationView {
	v := &ConversationView{
		conversationID: conversationID,
		selfID:         selfID,
		seen:           map[string]bool{},
		markRead:       markRead,
	}
	for _, m := range initial {
		v.append(m)
	}
	return v
}

// Apply folds one live message into the view. Messages for other
// conversations and duplicates are ignored.
func (v *ConversationView) Apply(m models.Message) {
	if m.ConversationID != v.conversationID {
		return
	}
	if !v.append(m) {
		return
	}
	if m.Recipient == v.selfID && v.markRead != nil {
		v.markRead(v.conversationID)
	}
}

func (v *ConversationView) append(m models.Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen[m.ID] {
		return false
	}
	v.seen[m.ID] = true
	v.messages = append(v.messages, m)
	return true
}

func (v *ConversationView) Messages() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

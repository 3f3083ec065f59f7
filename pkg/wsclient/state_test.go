package wsclient

import (
	"testing"
	"time"

	"github.com/subhive/subhive/backend/pkg/models"
)

func TestNotificationFeedDedupesAndCounts(t *testing.T) {
	f := NewNotificationFeed([]models.Notification{
		{ID: "n1", CreatedAt: 100},
		{ID: "n2", CreatedAt: 200, Read: true},
	})
	if got := f.Unread(); got != 1 {
		t.Fatalf("seed unread = %d", got)
	}

	if !f.Add(models.Notification{ID: "n3", CreatedAt: 300}) {
		t.Fatal("fresh notification rejected")
	}
	if f.Add(models.Notification{ID: "n1", CreatedAt: 100}) {
		t.Fatal("duplicate accepted")
	}
	if got := f.Unread(); got != 2 {
		t.Fatalf("unread after dedupe = %d", got)
	}

	list := f.Notifications()
	if len(list) != 3 {
		t.Fatalf("want 3 items, got %d", len(list))
	}
	if list[0].ID != "n3" || list[2].ID != "n1" {
		t.Fatalf("not newest-first: %v", []string{list[0].ID, list[1].ID, list[2].ID})
	}
}

func TestNotificationFeedMarkRead(t *testing.T) {
	f := NewNotificationFeed(nil)
	f.Add(models.Notification{ID: "n1"})

	f.MarkRead("n1")
	if got := f.Unread(); got != 0 {
		t.Fatalf("unread after MarkRead = %d", got)
	}
	// repeat and unknown ids never push the counter below zero
	f.MarkRead("n1")
	f.MarkRead("ghost")
	if got := f.Unread(); got != 0 {
		t.Fatalf("unread went negative: %d", got)
	}

	f.Add(models.Notification{ID: "n2"})
	f.Add(models.Notification{ID: "n3"})
	f.MarkAllRead()
	if got := f.Unread(); got != 0 {
		t.Fatalf("unread after MarkAllRead = %d", got)
	}
	for _, n := range f.Notifications() {
		if !n.Read {
			t.Fatalf("notification %s still unread in snapshot", n.ID)
		}
	}
}

func TestTypingSetAutoExpires(t *testing.T) {
	ts := NewTypingSet()
	ts.expiry = 40 * time.Millisecond
	defer ts.Stop()

	ts.Set("bob", true)
	if got := ts.Users(); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("users = %v", got)
	}

	time.Sleep(100 * time.Millisecond)
	if got := ts.Users(); len(got) != 0 {
		t.Fatalf("entry survived expiry: %v", got)
	}
}

func TestTypingSetReArmsOnRepeatedStart(t *testing.T) {
	ts := NewTypingSet()
	ts.expiry = 60 * time.Millisecond
	defer ts.Stop()

	ts.Set("bob", true)
	time.Sleep(40 * time.Millisecond)
	ts.Set("bob", true)
	time.Sleep(40 * time.Millisecond)
	// 80ms after the first start but only 40ms after the re-arm
	if got := ts.Users(); len(got) != 1 {
		t.Fatalf("re-armed entry expired early: %v", got)
	}
	time.Sleep(60 * time.Millisecond)
	if got := ts.Users(); len(got) != 0 {
		t.Fatalf("entry never expired: %v", got)
	}
}

func TestTypingSetReArmOnExpiryBoundary(t *testing.T) {
	ts := NewTypingSet()
	ts.expiry = 2 * time.Millisecond
	defer ts.Stop()

	// landing re-arms right on the expiry boundary: the fresh entry must
	// survive a stale timer callback firing around the same instant
	for i := 0; i < 200; i++ {
		ts.Set("bob", true)
		time.Sleep(ts.expiry)
		ts.Set("bob", true)
		if got := ts.Users(); len(got) != 1 {
			t.Fatalf("freshly re-armed entry missing on iteration %d: %v", i, got)
		}
	}
}

func TestTypingSetExplicitStopWins(t *testing.T) {
	ts := NewTypingSet()
	defer ts.Stop()

	ts.Set("bob", true)
	ts.Set("carol", true)
	ts.Set("bob", false)
	if got := ts.Users(); len(got) != 1 || got[0] != "carol" {
		t.Fatalf("users = %v", got)
	}
}

func TestConversationViewAppliesAndMarksRead(t *testing.T) {
	var marked []string
	v := NewConversationView("c1", "alice",
		[]models.Message{{ID: "m1", ConversationID: "c1", Sender: "bob", Recipient: "alice"}},
		func(id string) { marked = append(marked, id) })

	// inbound message for the open conversation is read immediately
	v.Apply(models.Message{ID: "m2", ConversationID: "c1", Sender: "bob", Recipient: "alice"})
	if len(marked) != 1 || marked[0] != "c1" {
		t.Fatalf("markRead calls = %v", marked)
	}

	// own outbound message never marks read
	v.Apply(models.Message{ID: "m3", ConversationID: "c1", Sender: "alice", Recipient: "bob"})
	// duplicates are ignored entirely
	v.Apply(models.Message{ID: "m2", ConversationID: "c1", Sender: "bob", Recipient: "alice"})
	// other conversations pass through untouched
	v.Apply(models.Message{ID: "m4", ConversationID: "c2", Sender: "bob", Recipient: "alice"})

	if len(marked) != 1 {
		t.Fatalf("markRead calls = %v", marked)
	}
	msgs := v.Messages()
	if len(msgs) != 3 {
		t.Fatalf("want 3 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" || msgs[2].ID != "m3" {
		t.Fatalf("order = %v", []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	}
}

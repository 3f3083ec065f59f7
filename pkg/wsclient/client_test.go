package wsclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/subhive/subhive/backend/pkg/models"
)

// echoServer accepts websocket connections and exposes what the client
// sends, so tests can assert on the outbound protocol without a real
// backend.
type echoServer struct {
	srv    *httptest.Server
	conns  chan *websocket.Conn
	frames chan Frame
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()
	es := &echoServer{
		conns:  make(chan *websocket.Conn, 8),
		frames: make(chan Frame, 32),
	}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	es.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		es.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f Frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue
			}
			es.frames <- f
		}
	}))
	t.Cleanup(es.srv.Close)
	return es
}

func (es *echoServer) wsURL() string {
	return "ws" + strings.TrimPrefix(es.srv.URL, "http")
}

func (es *echoServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-es.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection arrived")
		return nil
	}
}

func (es *echoServer) nextFrame(t *testing.T) Frame {
	t.Helper()
	select {
	case f := <-es.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame arrived")
		return Frame{}
	}
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c := New(url)
	c.reconnectDelay = 25 * time.Millisecond
	t.Cleanup(c.Disconnect)
	return c
}

func TestStatusListenerSeesInitialStateSynchronously(t *testing.T) {
	es := newEchoServer(t)
	c := newTestClient(t, es.wsURL())

	states := make(chan bool, 8)
	c.AddStatusListener(func(connected bool) { states <- connected })

	select {
	case got := <-states:
		if got {
			t.Fatal("initial state reported connected before Connect")
		}
	default:
		t.Fatal("listener not invoked synchronously on subscribe")
	}

	c.Connect()
	select {
	case got := <-states:
		if !got {
			t.Fatal("expected connected transition")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no connected transition")
	}
	if !c.Connected() {
		t.Fatal("Connected() disagrees with listener")
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	es := newEchoServer(t)
	c := newTestClient(t, es.wsURL())

	c.Connect()
	c.Connect()
	es.nextConn(t)

	select {
	case <-es.conns:
		t.Fatal("second Connect opened a second socket")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAuthenticateReplayedAfterReconnect(t *testing.T) {
	es := newEchoServer(t)
	c := newTestClient(t, es.wsURL())

	c.Authenticate("alice")

	first := es.nextConn(t)
	f := es.nextFrame(t)
	if f.Type != frameAuth {
		t.Fatalf("want auth frame, got %q", f.Type)
	}

	// server-side drop; the client must come back and re-assert identity
	first.Close()
	es.nextConn(t)
	f = es.nextFrame(t)
	if f.Type != frameAuth {
		t.Fatalf("want replayed auth frame, got %q", f.Type)
	}
	var p authPayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.UserID != "alice" {
		t.Fatalf("replayed identity %q", p.UserID)
	}
}

func TestDisconnectStopsReconnecting(t *testing.T) {
	es := newEchoServer(t)
	c := newTestClient(t, es.wsURL())

	c.Connect()
	es.nextConn(t)
	c.Disconnect()

	select {
	case <-es.conns:
		t.Fatal("client reconnected after Disconnect")
	case <-time.After(150 * time.Millisecond):
	}
	if c.Connected() {
		t.Fatal("still connected after Disconnect")
	}
}

func TestSendWhileDisconnectedIsDropped(t *testing.T) {
	c := New("ws://127.0.0.1:0/ws")
	// must not panic or block
	c.Send(FrameTyping, map[string]any{"recipientId": "bob"})
	c.Ping()
	if c.Connected() {
		t.Fatal("never connected")
	}
}

func TestTypedDispatch(t *testing.T) {
	es := newEchoServer(t)
	c := newTestClient(t, es.wsURL())

	notifs := make(chan models.Notification, 8)
	msgs := make(chan models.Message, 8)
	typing := make(chan TypingEvent, 8)
	raw := make(chan Frame, 8)
	c.OnNotification(func(n models.Notification) { notifs <- n })
	c.OnMessage(func(m models.Message) { msgs <- m })
	c.OnTyping(func(ev TypingEvent) { typing <- ev })
	c.AddFrameListener(func(f Frame) { raw <- f })

	c.Connect()
	conn := es.nextConn(t)

	push := func(frameType string, data any) {
		t.Helper()
		b, err := json.Marshal(map[string]any{"type": frameType, "data": data})
		if err != nil {
			t.Fatal(err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			t.Fatal(err)
		}
	}

	push(FrameNewNotification, models.Notification{ID: "n1", Type: models.NotifFollow, Recipient: "alice"})
	select {
	case n := <-notifs:
		if n.ID != "n1" {
			t.Fatalf("wrong notification %q", n.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification handler not invoked")
	}

	push(FramePendingNotifications, []models.Notification{{ID: "n2"}, {ID: "n3"}})
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case n := <-notifs:
			seen[n.ID] = true
		case <-time.After(2 * time.Second):
			t.Fatal("backlog not fanned out per notification")
		}
	}
	if !seen["n2"] || !seen["n3"] {
		t.Fatalf("backlog ids %v", seen)
	}

	push(FrameNewMessage, models.Message{ID: "m1", ConversationID: "c1", Sender: "bob", Recipient: "alice"})
	select {
	case m := <-msgs:
		if m.ID != "m1" {
			t.Fatalf("wrong message %q", m.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message handler not invoked")
	}

	push(FrameUserTyping, TypingEvent{ConversationID: "c1", UserID: "bob", IsTyping: true})
	select {
	case ev := <-typing:
		if ev.UserID != "bob" || !ev.IsTyping {
			t.Fatalf("wrong typing event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("typing handler not invoked")
	}

	// every push above also reaches the generic frame listener
	types := map[string]bool{}
	for i := 0; i < 4; i++ {
		select {
		case f := <-raw:
			types[f.Type] = true
		case <-time.After(2 * time.Second):
			t.Fatal("frame listener missed a frame")
		}
	}
	for _, want := range []string{FrameNewNotification, FramePendingNotifications, FrameNewMessage, FrameUserTyping} {
		if !types[want] {
			t.Fatalf("frame listener never saw %s", want)
		}
	}
}

func TestRemovedHandlerStopsReceiving(t *testing.T) {
	es := newEchoServer(t)
	c := newTestClient(t, es.wsURL())

	got := make(chan models.Notification, 8)
	remove := c.OnNotification(func(n models.Notification) { got <- n })
	remove()

	c.Connect()
	conn := es.nextConn(t)
	b, _ := json.Marshal(map[string]any{"type": FrameNewNotification, "data": models.Notification{ID: "n1"}})
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatal(err)
	}

	select {
	case <-got:
		t.Fatal("removed handler still invoked")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPanickingListenerDoesNotBreakDispatch(t *testing.T) {
	es := newEchoServer(t)
	c := newTestClient(t, es.wsURL())

	got := make(chan models.Notification, 8)
	c.OnNotification(func(models.Notification) { panic("boom") })
	c.OnNotification(func(n models.Notification) { got <- n })

	c.Connect()
	conn := es.nextConn(t)
	b, _ := json.Marshal(map[string]any{"type": FrameNewNotification, "data": models.Notification{ID: "n1"}})
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatal(err)
	}

	select {
	case n := <-got:
		if n.ID != "n1" {
			t.Fatalf("wrong notification %q", n.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("surviving handler not invoked")
	}
}

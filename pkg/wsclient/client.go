// Package wsclient is the realtime client library: one long-lived
// connection per Client, automatic reconnection with identity replay,
// and typed subscriptions over the frame protocol.
package wsclient

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultReconnectDelay = 5 * time.Second

type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client owns at most one active socket. Construct it at the
// composition root and share the instance; there is no package-level
// singleton.
type Client struct {
	url    string
	dialer *websocket.Dialer

	mu             sync.Mutex
	conn           *websocket.Conn
	connecting     bool
	stopped        bool
	reconnectTimer *time.Timer
	reconnectDelay time.Duration
	userID         string

	nextID          int
	statusListeners map[int]func(connected bool)
	frameListeners  map[int]func(Frame)
	notifHandlers   map[int]NotificationHandler
	messageHandlers map[int]MessageHandler
	typingHandlers  map[int]TypingHandler
}

func New(url string) *Client {
	return &Client{
		url:             url,
		dialer:          websocket.DefaultDialer,
		reconnectDelay:  defaultReconnectDelay,
		statusListeners: map[int]func(bool){},
		frameListeners:  map[int]func(Frame){},
		notifHandlers:   map[int]NotificationHandler{},
		messageHandlers: map[int]MessageHandler{},
		typingHandlers:  map[int]TypingHandler{},
	}
}

// Connect opens the socket if no attempt or open connection exists.
// It returns immediately; completion is observed via status listeners.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.conn != nil || c.connecting {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.stopped = false
	c.mu.Unlock()

	go c.dial()
}

func (c *Client) dial() {
	conn, _, err := c.dialer.Dial(c.url, nil)

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		log.Printf("[wsclient] connect to %s failed: %v", c.url, err)
		if !c.stopped {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
		return
	}
	if c.stopped {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	userID := c.userID
	c.mu.Unlock()

	c.notifyStatus(true)

	// re-assert identity after every (re)connect
	if userID != "" {
		c.Send(frameAuth, authPayload{UserID: userID})
	}

	go c.readLoop(conn)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		c.dispatch(data)
	}

	c.mu.Lock()
	if c.conn != conn {
		// already replaced or torn down elsewhere
		c.mu.Unlock()
		return
	}
	c.conn = nil
	stopped := c.stopped
	if !stopped {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	c.notifyStatus(false)
}

// Disconnect closes the socket and cancels any pending reconnect. It is
// the only way to stop the retry loop.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.stopped = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
		c.notifyStatus(false)
	}
}

// Authenticate records the identity for this client and asserts it on
// the server: immediately when the socket is open, otherwise after the
// next successful connect. The identity is replayed automatically after
// every reconnect.
func (c *Client) Authenticate(userID string) {
	c.mu.Lock()
	c.userID = userID
	open := c.conn != nil
	c.mu.Unlock()

	if open {
		c.Send(frameAuth, authPayload{UserID: userID})
		return
	}
	c.Connect()
}

// Send writes one frame if the socket is currently open. There is no
// outbound queue: frames sent while closed are dropped with a warning.
func (c *Client) Send(frameType string, data any) {
	payload, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{frameType, data})
	if err != nil {
		log.Printf("[wsclient] cannot marshal %s frame: %v", frameType, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		log.Printf("[wsclient] cannot send %s frame: not connected", frameType)
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("[wsclient] write of %s frame failed: %v", frameType, err)
	}
}

// Ping asks the server for a pong; liveness probing only.
func (c *Client) Ping() {
	c.Send(framePing, struct{}{})
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// AddStatusListener subscribes to connect/disconnect transitions. The
// listener is told the current state synchronously before this returns.
func (c *Client) AddStatusListener(fn func(connected bool)) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.statusListeners[id] = fn
	connected := c.conn != nil
	c.mu.Unlock()

	safeCall("status", func() { fn(connected) })

	return func() {
		c.mu.Lock()
		delete(c.statusListeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) notifyStatus(connected bool) {
	c.mu.Lock()
	listeners := make([]func(bool), 0, len(c.statusListeners))
	for _, fn := range c.statusListeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn := fn
		safeCall("status", func() { fn(connected) })
	}
}

func (c *Client) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		c.mu.Unlock()
		c.Connect()
	})
}

// safeCall keeps one panicking listener from taking down dispatch for
// the rest.
func safeCall(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[wsclient] %s listener panicked: %v", kind, r)
		}
	}()
	fn()
}

package chat

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The client connects same-origin; allow all for demo setups.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterWS mounts GET /ws. Connections come up anonymous; identity is
// asserted later with an auth frame.
func RegisterWS(rg *gin.RouterGroup, hub *Hub, router *Router) {
	rg.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		client := &Client{
			Hub:    hub,
			Router: router,
			Conn:   conn,
			Send:   make(chan []byte, 256),
		}
		hub.Track(client)

		go client.writePump()
		go client.readPump()

		client.enqueue(FrameConnectionEstablished, EstablishedPayload{
			Timestamp: time.Now().UnixMilli(),
			Message:   "connected to realtime server",
		})
	})
}

package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vudinhan2525/CamQuizz-sub002/internal/identity"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// Client is one websocket connection with its resolved identity. Outbound
// traffic goes through the buffered send channel so fan-out never blocks on a
// slow socket; the write pump owns the actual network writes.
type Client struct {
	gateway *Gateway
	conn    *websocket.Conn

	connID string
	who    identity.Identity

	send      chan []byte
	closeOnce sync.Once
}

func newClient(gateway *Gateway, conn *websocket.Conn, connID string, who identity.Identity) *Client {
	return &Client{
		gateway: gateway,
		conn:    conn,
		connID:  connID,
		who:     who,
		send:    make(chan []byte, sendBuffer),
	}
}

// enqueue hands a message to the write pump. Messages to a client that cannot
// keep up are dropped rather than stalling the room.
func (c *Client) enqueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ws: marshal %s for conn %s: %v", msg.Type, c.connID, err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("ws: conn %s too slow, dropping %s", c.connID, msg.Type)
	}
}

func (c *Client) sendError(command, message string) {
	c.enqueue(Message{Type: MessageError, Payload: ErrorPayload{Command: command, Message: message}})
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) readPump() {
	defer func() {
		c.gateway.dropClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read conn %s: %v", c.connID, err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.sendError("", "invalid command format")
			continue
		}
		c.gateway.handleCommand(c, cmd)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

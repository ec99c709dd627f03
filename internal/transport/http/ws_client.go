package http

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"trivia-live-service/internal/domain"
)

const sendBufferSize = 32

// wsClient adapts one websocket connection to the engine's Sender. A
// single writer goroutine owns the connection for writes. Send never
// blocks the room lane: a slow client drops broadcasts and resyncs from
// the next full-state snapshot.
type wsClient struct {
	conn *websocket.Conn
	log  *logrus.Logger
	send chan domain.Event
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newWSClient(conn *websocket.Conn, log *logrus.Logger) *wsClient {
	c := &wsClient{
		conn: conn,
		log:  log,
		send: make(chan domain.Event, sendBufferSize),
		done: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// Send implements game.Sender.
func (c *wsClient) Send(event domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.send <- event:
	default:
		c.log.WithField("event", event.Type).Debug("send buffer full, dropping event")
	}
	return nil
}

func (c *wsClient) writeLoop() {
	defer close(c.done)
	for event := range c.send {
		if err := c.conn.WriteJSON(event); err != nil {
			c.log.WithError(err).Debug("ws write failed")
			return
		}
	}
}

// close stops accepting events and waits for the writer to flush what is
// already buffered before closing the connection, so a final error event
// reaches the peer instead of being cut off by the close.
func (c *wsClient) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	<-c.done
	_ = c.conn.Close()
}

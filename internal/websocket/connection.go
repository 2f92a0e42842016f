package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"classpulse/pkg/types"
)

const writeTimeout = 5 * time.Second

// Connection wraps a WebSocket connection behind types.EventSender. All
// writes funnel through a single goroutine so events leave the socket
// in the order they were queued.
type Connection struct {
	conn      *websocket.Conn
	sendCh    chan *types.Event
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps the socket and starts its write loop. queueSize
// bounds how many events may be pending before sends start failing.
func NewConnection(conn *websocket.Conn, queueSize int) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:   conn,
		sendCh: make(chan *types.Event, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	go c.writeLoop()

	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case ev := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// SendEvent queues the event without blocking. A full queue means the
// client is not keeping up; the event is the caller's to drop.
func (c *Connection) SendEvent(ev *types.Event) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.sendCh <- ev:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendQueueFull
	}
}

// Close stops the write loop and closes the socket. Idempotent.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

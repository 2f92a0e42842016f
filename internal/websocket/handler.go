package websocket

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"classpulse/internal/hub"
	"classpulse/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is a deployment concern; the hub validates
		// every message anyway.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

const (
	defaultPongWait     = 60 * time.Second
	defaultPingInterval = 30 * time.Second
)

// Handler upgrades HTTP requests to WebSocket connections and feeds
// inbound messages into the hub. Identity is established by the first
// join message on the socket, not by query parameters.
type Handler struct {
	hub             *hub.Hub
	queueSize       int
	maxMessageBytes int64
	pongWait        time.Duration
	pingInterval    time.Duration
}

// NewHandler creates a handler. maxMessageBytes must be large enough
// for an encoded camera frame.
func NewHandler(h *hub.Hub, queueSize int, maxMessageBytes int64) *Handler {
	return &Handler{
		hub:             h,
		queueSize:       queueSize,
		maxMessageBytes: maxMessageBytes,
		pongWait:        defaultPongWait,
		pingInterval:    defaultPingInterval,
	}
}

// inboundMessage is the envelope of every client-to-server message.
type inboundMessage struct {
	Type         string `json:"type"`
	StudentID    string `json:"studentId"`
	ObserverID   string `json:"observerId"`
	Channel      string `json:"channel"`
	StudentName  string `json:"studentName"`
	ObserverName string `json:"observerName"`
	ImagePayload string `json:"imagePayload"`
}

// HandleWebSocket upgrades the request and runs the read loop until the
// socket dies or the client leaves.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, h.queueSize)
	go h.readLoop(conn, wsConn)
}

// readLoop owns the socket's read side. The read deadline is refreshed
// on every pong; a peer that stops answering pings times out here, so
// half-open connections reach the disconnect path instead of blocking
// the read forever. On exit the connection is dropped from the hub; a
// handle already replaced by a reconnect is a no-op there.
func (h *Handler) readLoop(raw *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.DropConnection(conn)
		_ = conn.Close()
	}()

	raw.SetReadLimit(h.maxMessageBytes)
	if err := raw.SetReadDeadline(time.Now().Add(h.pongWait)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	go h.pingLoop(raw, conn)

	for {
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		if done := h.dispatch(conn, msg); done {
			return
		}
	}
}

// pingLoop sends control pings until the connection closes. Control
// frames are safe to write concurrently with the connection's writer
// goroutine.
func (h *Handler) pingLoop(raw *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := raw.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-conn.ctx.Done():
			return
		}
	}
}

// dispatch routes one inbound message. Returns true when the client
// asked to leave and the read loop should end.
func (h *Handler) dispatch(conn *Connection, msg inboundMessage) bool {
	ctx := context.Background()

	switch msg.Type {
	case types.MessageStudentJoin:
		if err := h.hub.JoinStudent(ctx, msg.StudentID, msg.Channel, msg.StudentName, conn); err != nil {
			h.sendError(conn, err)
		}

	case types.MessageObserverJoin:
		if err := h.hub.JoinObserver(ctx, msg.ObserverID, msg.Channel, msg.ObserverName, conn); err != nil {
			h.sendError(conn, err)
		}

	case types.MessageSampleSubmit:
		if err := h.hub.SubmitSample(ctx, msg.StudentID, msg.ImagePayload); err != nil {
			h.sendError(conn, err)
		}

	case types.MessageStudentLeave:
		h.hub.Leave(msg.StudentID)
		return true

	case types.MessageObserverLeave:
		h.hub.Leave(msg.ObserverID)
		return true

	default:
		h.sendErrorMessage(conn, "unknown message type: "+msg.Type)
	}

	return false
}

// sendError reports a per-message failure to the sender. The connection
// stays open; an error never mutates state.
func (h *Handler) sendError(conn *Connection, err error) {
	h.sendErrorMessage(conn, err.Error())
}

func (h *Handler) sendErrorMessage(conn *Connection, message string) {
	if err := conn.SendEvent(types.NewErrorEvent(message)); err != nil {
		log.Printf("Failed to deliver error event: %v", err)
	}
}

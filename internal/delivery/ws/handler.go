// Package ws exposes the broadcaster over WebSocket. Each connection is one
// broadcast session; clients join and leave topics with control frames and
// receive Change Events as they are published.
package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/egannguyen/go-food-ordering/internal/broadcast"
	"github.com/egannguyen/go-food-ordering/internal/entity"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Hub is the part of the broadcaster a connection needs.
type Hub interface {
	Join(s broadcast.Session, topic string) error
	Leave(s broadcast.Session, topic string)
	LeaveAll(s broadcast.Session)
}

type Handler struct {
	hub          Hub
	upgrader     websocket.Upgrader
	log          *slog.Logger
	pingInterval time.Duration
	pongWait     time.Duration
}

func NewHandler(hub Hub, logger *slog.Logger, pingInterval, pongWait time.Duration) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:          logger.With("component", "ws"),
		pingInterval: pingInterval,
		pongWait:     pongWait,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.ServeWS)
}

// ServeWS upgrades the request and serves the connection until it closes.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	c := &conn{
		id:   uuid.NewString(),
		ws:   wsConn,
		send: make(chan entity.Frame, sendBuffer),
		done: make(chan struct{}),
		log:  h.log,
	}
	h.log.Info("🔌 Client connected", "session", c.id, "remote", r.RemoteAddr)

	go c.writePump(h.pingInterval)
	c.readPump(h.hub, h.pongWait)

	h.hub.LeaveAll(c)
	c.close()
	h.log.Info("Client disconnected", "session", c.id)
}

// conn is one client connection. It implements broadcast.Session.
type conn struct {
	id   string
	ws   *websocket.Conn
	send chan entity.Frame
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

func (c *conn) ID() string { return c.id }

// Deliver queues ev for the client. A client that cannot keep up loses the
// event rather than stalling the publisher.
func (c *conn) Deliver(topic string, ev entity.ChangeEvent) {
	if !c.enqueue(entity.Frame{Type: entity.FrameEvent, Topic: topic, Event: &ev}) {
		c.log.Warn("Dropping event for slow client", "session", c.id, "topic", topic, "kind", ev.Kind)
	}
}

func (c *conn) enqueue(f entity.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *conn) readPump(hub Hub, pongWait time.Duration) {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f entity.Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Read failed", "session", c.id, "err", err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		switch f.Type {
		case entity.FrameJoin:
			if err := hub.Join(c, f.Topic); err != nil {
				c.enqueue(entity.Frame{Type: entity.FrameError, Topic: f.Topic, Message: err.Error()})
				continue
			}
			c.enqueue(entity.Frame{Type: entity.FrameJoined, Topic: f.Topic})
		case entity.FrameLeave:
			hub.Leave(c, f.Topic)
			c.enqueue(entity.Frame{Type: entity.FrameLeft, Topic: f.Topic})
		default:
			c.enqueue(entity.Frame{Type: entity.FrameError, Message: "unsupported frame type " + string(f.Type)})
		}
	}
}

func (c *conn) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case f := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(f); err != nil {
				c.log.Warn("Write failed", "session", c.id, "err", err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

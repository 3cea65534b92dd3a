package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/egannguyen/go-food-ordering/internal/entity"
)

const writeWait = 10 * time.Second

// WebSocketDialer connects to the server's /ws endpoint. The server pings
// periodically; a connection that sees no ping within PongWait is treated
// as dropped.
type WebSocketDialer struct {
	URL      string
	Header   http.Header
	PongWait time.Duration
	Dialer   *websocket.Dialer
}

func (d WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	pongWait := d.PongWait
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}

	ws, _, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return nil, &entity.TransientError{Op: "dial " + d.URL, Err: err}
	}

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPingHandler(func(data string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	return &wsConn{ws: ws, pongWait: pongWait}, nil
}

type wsConn struct {
	ws       *websocket.Conn
	pongWait time.Duration
	writeMu  sync.Mutex
}

func (c *wsConn) Send(f entity.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(f)
}

func (c *wsConn) Receive() (entity.Frame, error) {
	var f entity.Frame
	if err := c.ws.ReadJSON(&f); err != nil {
		return entity.Frame{}, err
	}
	c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	return f, nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

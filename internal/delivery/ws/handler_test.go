package ws

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-food-ordering/internal/broadcast"
	"github.com/egannguyen/go-food-ordering/internal/entity"
)

func newTestServer(t *testing.T) (*broadcast.Broadcaster, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := broadcast.New(logger)
	t.Cleanup(func() { b.Close() })

	mux := http.NewServeMux()
	NewHandler(b, logger, time.Second, 5*time.Second).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func next(t *testing.T, c *websocket.Conn) entity.Frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f entity.Frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func send(t *testing.T, c *websocket.Conn, f entity.Frame) {
	t.Helper()
	require.NoError(t, c.WriteJSON(f))
}

func TestJoinThenReceiveEvents(t *testing.T) {
	b, url := newTestServer(t)
	c := dial(t, url)

	send(t, c, entity.Frame{Type: entity.FrameJoin, Topic: entity.TopicProducts})
	joined := next(t, c)
	assert.Equal(t, entity.FrameJoined, joined.Type)
	assert.Equal(t, entity.TopicProducts, joined.Topic)

	p := entity.Product{ID: 7, Name: "Tiramisu", Revision: 1}
	require.NoError(t, b.Publish(context.Background(), entity.TopicProducts, entity.NewProductCreated(p)))

	f := next(t, c)
	require.Equal(t, entity.FrameEvent, f.Type)
	assert.Equal(t, entity.TopicProducts, f.Topic)
	require.NotNil(t, f.Event)
	assert.Equal(t, entity.ProductCreated, f.Event.Kind)
	assert.Equal(t, "Tiramisu", f.Event.Product.Name)
}

func TestLeaveStopsDelivery(t *testing.T) {
	b, url := newTestServer(t)
	c := dial(t, url)
	ctx := context.Background()

	send(t, c, entity.Frame{Type: entity.FrameJoin, Topic: entity.TopicProducts})
	require.Equal(t, entity.FrameJoined, next(t, c).Type)
	send(t, c, entity.Frame{Type: entity.FrameLeave, Topic: entity.TopicProducts})
	require.Equal(t, entity.FrameLeft, next(t, c).Type)

	send(t, c, entity.Frame{Type: entity.FrameJoin, Topic: entity.TopicAdmin})
	require.Equal(t, entity.FrameJoined, next(t, c).Type)

	require.NoError(t, b.Publish(ctx, entity.TopicProducts, entity.NewProductDeleted(7, 2)))
	order := entity.Order{ID: "o-1", Status: entity.StatusPending, Revision: 1}
	require.NoError(t, b.Publish(ctx, entity.TopicAdmin, entity.NewOrderCreated(order)))

	f := next(t, c)
	require.NotNil(t, f.Event)
	assert.Equal(t, entity.OrderCreated, f.Event.Kind, "products event must not reach a session that left")
}

func TestInvalidFramesReportErrors(t *testing.T) {
	_, url := newTestServer(t)
	c := dial(t, url)

	send(t, c, entity.Frame{Type: entity.FrameJoin})
	f := next(t, c)
	assert.Equal(t, entity.FrameError, f.Type)
	assert.Equal(t, entity.ErrEmptyTopic.Error(), f.Message)

	send(t, c, entity.Frame{Type: "subscribe", Topic: "products"})
	assert.Equal(t, entity.FrameError, next(t, c).Type)
}

func TestDisconnectLeavesAllTopics(t *testing.T) {
	b, url := newTestServer(t)
	c := dial(t, url)

	send(t, c, entity.Frame{Type: entity.FrameJoin, Topic: entity.OrderTopic("o-1")})
	require.Equal(t, entity.FrameJoined, next(t, c).Type)
	require.NoError(t, c.Close())

	// Publishing after the connection dropped must neither block nor fail.
	assert.Eventually(t, func() bool {
		return b.Publish(context.Background(), entity.OrderTopic("o-1"),
			entity.NewOrderUpdated(entity.Order{ID: "o-1", Revision: 2})) == nil
	}, 2*time.Second, 50*time.Millisecond)
}

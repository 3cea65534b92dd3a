package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-food-ordering/internal/entity"
)

// loopbackBroker hands every published payload to the consuming handler,
// standing in for one Kafka topic.
type loopbackBroker struct {
	mu       sync.Mutex
	keys     []string
	payloads [][]byte
}

func (l *loopbackBroker) PublishEvent(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	l.payloads = append(l.payloads, payload)
	return nil
}

func (l *loopbackBroker) Consume(ctx context.Context, topic, groupID string, handler func(ctx context.Context, payload []byte) error) {
	l.mu.Lock()
	payloads := l.payloads
	l.payloads = nil
	l.mu.Unlock()
	for _, p := range payloads {
		_ = handler(ctx, p)
	}
}

func TestRelayRepublishesIntoLocalBroadcaster(t *testing.T) {
	b := newTestBroadcaster(t)
	s := newRecordingSession("s")
	require.NoError(t, b.Join(s, entity.TopicAdmin))

	broker := &loopbackBroker{}
	relay := NewRelay(broker, broker, b, "foodsync.changes", "instance-a", discardLogger())

	order := entity.Order{ID: "o-9", Status: entity.StatusPending, Revision: 1}
	require.NoError(t, relay.Publish(context.Background(), entity.TopicAdmin, entity.NewOrderCreated(order)))
	assert.Empty(t, s.received(entity.TopicAdmin), "relay must not deliver before the broker round trip")
	assert.Equal(t, []string{"order:o-9"}, broker.keys)

	relay.Run(context.Background())

	got := s.received(entity.TopicAdmin)
	require.Len(t, got, 1)
	assert.Equal(t, entity.OrderCreated, got[0].Kind)
	assert.Equal(t, "o-9", got[0].Order.ID)
}

func TestRelayRejectsTopiclessMessage(t *testing.T) {
	relay := NewRelay(&loopbackBroker{}, &loopbackBroker{}, newTestBroadcaster(t), "t", "g", discardLogger())
	payload, err := json.Marshal(relayMessage{Event: entity.NewProductDeleted(1, 1)})
	require.NoError(t, err)
	assert.Error(t, relay.handle(context.Background(), payload))
}

package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/egannguyen/go-food-ordering/internal/entity"
	"github.com/egannguyen/go-food-ordering/internal/messaging"
)

// relayMessage carries a Change Event and its broadcast topic over Kafka.
type relayMessage struct {
	Topic string             `json:"topic"`
	Event entity.ChangeEvent `json:"event"`
}

// Relay spreads Change Events across server instances. Writes go to one
// Kafka topic; every instance consumes it under its own consumer group and
// republishes into its local Broadcaster.
type Relay struct {
	pub     messaging.Publisher
	sub     messaging.Subscriber
	local   Publisher
	topic   string
	groupID string
	log     *slog.Logger
}

var _ Publisher = (*Relay)(nil)

func NewRelay(pub messaging.Publisher, sub messaging.Subscriber, local Publisher, topic, groupID string, logger *slog.Logger) *Relay {
	return &Relay{
		pub:     pub,
		sub:     sub,
		local:   local,
		topic:   topic,
		groupID: groupID,
		log:     logger.With("component", "relay"),
	}
}

// Publish sends ev to the shared Kafka topic. Events of one entity share a
// key so they keep their order through the partition.
func (r *Relay) Publish(ctx context.Context, topic string, ev entity.ChangeEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("failed to relay event: %w", err)
	}
	return r.pub.PublishEvent(ctx, r.topic, entityKey(ev), relayMessage{Topic: topic, Event: ev})
}

// Run consumes the shared topic until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	r.log.Info("Relay consuming", "topic", r.topic, "group", r.groupID)
	r.sub.Consume(ctx, r.topic, r.groupID, r.handle)
}

func (r *Relay) handle(ctx context.Context, payload []byte) error {
	var m relayMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("failed to unmarshal relayed event: %w", err)
	}
	if m.Topic == "" {
		return fmt.Errorf("relayed event %s without topic", m.Event.Kind)
	}
	return r.local.Publish(ctx, m.Topic, m.Event)
}

func entityKey(ev entity.ChangeEvent) string {
	switch {
	case ev.Product != nil:
		return "product:" + strconv.FormatInt(ev.Product.ID, 10)
	case ev.Order != nil:
		return "order:" + ev.Order.ID
	default:
		return "product:" + strconv.FormatInt(ev.ProductID, 10)
	}
}

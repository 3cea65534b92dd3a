// Package broadcast fans Change Events out to the sessions joined to a topic.
// Delivery is best effort: nothing is persisted or replayed, so a session that
// is not joined when an event is published never sees it.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/egannguyen/go-food-ordering/internal/entity"
)

// Session is a subscriber endpoint, typically one WebSocket connection.
// Deliver must not block.
type Session interface {
	ID() string
	Deliver(topic string, ev entity.ChangeEvent)
}

// Publisher is implemented by anything Change Events can be published to.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev entity.ChangeEvent) error
}

var ErrClosed = errors.New("broadcaster closed")

// membership is one session's subscription to one topic. The underlying
// subscriber is removed asynchronously, so active gates delivery after Leave.
type membership struct {
	cancel context.CancelFunc
	active atomic.Bool
}

func (m *membership) stop() {
	m.active.Store(false)
	m.cancel()
}

// Broadcaster owns the named topics. It holds no entity state.
type Broadcaster struct {
	pubsub *gochannel.GoChannel
	log    *slog.Logger

	mu      sync.Mutex
	members map[string]map[string]*membership // session id -> topic
	wg      sync.WaitGroup
	closed  bool
}

func New(logger *slog.Logger) *Broadcaster {
	logger = logger.With("component", "broadcaster")
	return &Broadcaster{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: true,
		}, watermill.NewSlogLogger(logger)),
		log:     logger,
		members: make(map[string]map[string]*membership),
	}
}

// Join subscribes s to topic. Joining a topic twice is a no-op.
func (b *Broadcaster) Join(s Session, topic string) error {
	if topic == "" {
		return entity.ErrEmptyTopic
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	topics, ok := b.members[s.ID()]
	if !ok {
		topics = make(map[string]*membership)
		b.members[s.ID()] = topics
	}
	if _, joined := topics[topic]; joined {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	m := &membership{cancel: cancel}
	m.active.Store(true)
	topics[topic] = m

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.forward(s, topic, m, msgs)
	}()

	b.log.Debug("Session joined topic", "session", s.ID(), "topic", topic)
	return nil
}

// Leave unsubscribes s from topic. Leaving a topic not joined is a no-op.
func (b *Broadcaster) Leave(s Session, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	topics := b.members[s.ID()]
	if m, ok := topics[topic]; ok {
		m.stop()
		delete(topics, topic)
		b.log.Debug("Session left topic", "session", s.ID(), "topic", topic)
	}
	if len(topics) == 0 {
		delete(b.members, s.ID())
	}
}

// LeaveAll drops every membership of s, used when its connection closes.
func (b *Broadcaster) LeaveAll(s Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, m := range b.members[s.ID()] {
		m.stop()
	}
	delete(b.members, s.ID())
}

// Topics lists the topics s is joined to, sorted.
func (b *Broadcaster) Topics(s Session) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	topics := make([]string, 0, len(b.members[s.ID()]))
	for topic := range b.members[s.ID()] {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Publish delivers ev to every session currently joined to topic. It returns
// once every subscriber has taken the event.
func (b *Broadcaster) Publish(ctx context.Context, topic string, ev entity.ChangeEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("kind", string(ev.Kind))
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (b *Broadcaster) forward(s Session, topic string, m *membership, msgs <-chan *message.Message) {
	for msg := range msgs {
		if !m.active.Load() {
			msg.Ack()
			continue
		}
		var ev entity.ChangeEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			b.log.Error("Dropping undecodable event", "topic", topic, "err", err)
			msg.Ack()
			continue
		}
		s.Deliver(topic, ev)
		msg.Ack()
	}
}

// Close drops every membership and shuts the underlying pub/sub down.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for id, topics := range b.members {
		for _, m := range topics {
			m.stop()
		}
		delete(b.members, id)
	}
	b.mu.Unlock()

	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}

// Package session manages the client's single logical connection to the
// broadcaster. It remembers joined topics across reconnects and retries with
// capped exponential backoff when the transport drops.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/egannguyen/go-food-ordering/internal/entity"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Status is reported to listeners on every transition. Err is set only on
// the single notification that reports exhausted retries.
type Status struct {
	State State
	Err   error
}

// Healthy reports whether live events are flowing.
func (s Status) Healthy() bool { return s.State == Connected }

// Conn is one transport connection. Send must be safe for concurrent use.
type Conn interface {
	Send(f entity.Frame) error
	Receive() (entity.Frame, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// EventHandler receives every Change Event delivered on a joined topic. It
// runs on the session goroutine, so events arrive in delivery order.
type EventHandler func(topic string, ev entity.ChangeEvent)

type Config struct {
	MaxAttempts         int
	InitialDelay        time.Duration
	Multiplier          float64
	MaxDelay            time.Duration
	RandomizationFactor float64
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
	}
}

var ErrClosed = errors.New("session closed")

type Session struct {
	dialer Dialer
	cfg    Config
	log    *slog.Logger

	mu        sync.Mutex
	state     State
	conn      Conn
	topics    map[string]bool // topic -> acknowledged on the current connection
	handlers  []EventHandler
	listeners []func(Status)
	lastErr   error
	started   bool
	closed    bool

	reconnectCh chan struct{}
	cancel      context.CancelFunc
	done        chan struct{}
}

func New(dialer Dialer, cfg Config, logger *slog.Logger) *Session {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig().InitialDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = DefaultConfig().Multiplier
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = max(cfg.InitialDelay, DefaultConfig().MaxDelay)
	}
	return &Session{
		dialer:      dialer,
		cfg:         cfg,
		log:         logger.With("component", "session"),
		topics:      make(map[string]bool),
		reconnectCh: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// OnEvent registers a handler for incoming Change Events. Register handlers
// before Start.
func (s *Session) OnEvent(h EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// OnStatus registers a listener for state transitions.
func (s *Session) OnStatus(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start connects in the background. It returns immediately; progress is
// reported through OnStatus.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return nil
}

// Join adds topic to the session. The topic is joined on the current
// connection, if any, and rejoined after every reconnect.
func (s *Session) Join(topic string) error {
	if topic == "" {
		return entity.ErrEmptyTopic
	}
	s.mu.Lock()
	if _, ok := s.topics[topic]; ok {
		s.mu.Unlock()
		return nil
	}
	s.topics[topic] = false
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Send(entity.Frame{Type: entity.FrameJoin, Topic: topic}); err != nil {
			s.log.Warn("Join not sent, will retry after reconnect", "topic", topic, "err", err)
		}
	}
	return nil
}

// Leave removes topic from the session.
func (s *Session) Leave(topic string) {
	s.mu.Lock()
	if _, ok := s.topics[topic]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.topics, topic)
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Send(entity.Frame{Type: entity.FrameLeave, Topic: topic}); err != nil {
			s.log.Warn("Leave not sent", "topic", topic, "err", err)
		}
	}
}

// Topics lists the topics the session holds, sorted.
func (s *Session) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Joined reports whether the server acknowledged topic on the current connection.
func (s *Session) Joined(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topics[topic]
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Healthy() bool {
	return s.State() == Connected
}

// Err returns the terminal error after retries were exhausted. It clears
// once a connection succeeds.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Reconnect resets the attempt counter and dials again right away. It is
// the only way out of the terminal state.
func (s *Session) Reconnect() {
	select {
	case s.reconnectCh <- struct{}{}:
	default:
	}
}

// Close tears the session down and cancels any pending reconnect.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()

	if !started {
		return nil
	}
	cancel()
	<-s.done
	return nil
}

func (s *Session) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.InitialDelay
	bo.Multiplier = s.cfg.Multiplier
	bo.MaxInterval = s.cfg.MaxDelay
	bo.RandomizationFactor = s.cfg.RandomizationFactor
	bo.Reset()
	return bo
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(Disconnected, nil)

	bo := s.newBackOff()
	attempts := 0
	var delay time.Duration

	for {
		if delay > 0 {
			s.log.Info("Reconnecting", "in", delay, "attempt", attempts+1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			case <-s.reconnectCh:
				attempts = 0
				bo.Reset()
			}
		}

		s.setState(Connecting, nil)
		conn, err := s.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempts++
			s.log.Warn("Connection attempt failed", "attempt", attempts, "err", err)

			if attempts < s.cfg.MaxAttempts {
				s.setState(Disconnected, nil)
				delay = bo.NextBackOff()
				continue
			}

			terminal := fmt.Errorf("failed to connect after %d attempts: %w", attempts, err)
			s.log.Error("❌ Giving up on broadcaster", "err", terminal)
			s.setState(Disconnected, terminal)

			select {
			case <-ctx.Done():
				return
			case <-s.reconnectCh:
			}
			attempts = 0
			bo.Reset()
			delay = 0
			continue
		}

		attempts = 0
		bo.Reset()
		s.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		delay = bo.NextBackOff()
	}
}

// serve rejoins every held topic and dispatches frames until conn drops.
func (s *Session) serve(ctx context.Context, conn Conn) {
	// A Reconnect issued while healthy has nothing to do.
	select {
	case <-s.reconnectCh:
	default:
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	s.mu.Lock()
	s.conn = conn
	s.lastErr = nil
	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		s.topics[t] = false
		topics = append(topics, t)
	}
	handlers := s.handlers
	s.mu.Unlock()
	sort.Strings(topics)

	s.log.Info("🔌 Connected", "topics", topics)
	s.setState(Connected, nil)

	for _, t := range topics {
		if err := conn.Send(entity.Frame{Type: entity.FrameJoin, Topic: t}); err != nil {
			s.log.Warn("Rejoin failed", "topic", t, "err", err)
			break
		}
	}

	for {
		f, err := conn.Receive()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("Connection lost", "err", err)
			}
			break
		}
		switch f.Type {
		case entity.FrameJoined:
			s.mu.Lock()
			if _, ok := s.topics[f.Topic]; ok {
				s.topics[f.Topic] = true
			}
			s.mu.Unlock()
		case entity.FrameEvent:
			if f.Event == nil {
				continue
			}
			for _, h := range handlers {
				h(f.Topic, *f.Event)
			}
		case entity.FrameError:
			s.log.Warn("Server reported error", "topic", f.Topic, "message", f.Message)
		}
	}

	s.mu.Lock()
	s.conn = nil
	for t := range s.topics {
		s.topics[t] = false
	}
	s.mu.Unlock()
	conn.Close()
	s.setState(Disconnected, nil)
}

func (s *Session) setState(state State, err error) {
	s.mu.Lock()
	if s.state == state && err == nil {
		s.mu.Unlock()
		return
	}
	s.state = state
	if err != nil {
		s.lastErr = err
	}
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(Status{State: state, Err: err})
	}
}

package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ChannelBus is an in-process event bus backed by Go channels. Each
// subscriber gets its own buffered channel and goroutine; a slow
// subscriber drops messages instead of blocking publishers.
type ChannelBus struct {
	mu          sync.RWMutex
	subscribers map[string][]*channelSubscription
	bufferSize  int
	closed      bool
}

type channelSubscription struct {
	bus     *ChannelBus
	topic   string
	ch      chan *domain.Message
	handler domain.MessageHandler
	done    chan struct{}
}

// NewChannelBus creates an in-process bus.
func NewChannelBus(cfg domain.EventBusConfig) *ChannelBus {
	size := cfg.ChannelBufferSize
	if size <= 0 {
		size = 64
	}
	return &ChannelBus{
		subscribers: make(map[string][]*channelSubscription),
		bufferSize:  size,
	}
}

// Publish delivers the payload to all current subscribers of the topic.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}

	msg := &domain.Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("bus is closed")
	}

	for _, sub := range b.subscribers[topic] {
		select {
		case sub.ch <- msg:
		default:
			// Subscriber buffer full; drop rather than block.
		}
	}
	return nil
}

// Subscribe registers a handler for a topic.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	sub := &channelSubscription{
		bus:     b,
		topic:   topic,
		ch:      make(chan *domain.Message, b.bufferSize),
		handler: handler,
		done:    make(chan struct{}),
	}
	b.subscribers[topic] = append(b.subscribers[topic], sub)

	go sub.run()

	return sub, nil
}

func (s *channelSubscription) run() {
	for {
		select {
		case msg := <-s.ch:
			if msg == nil {
				return
			}
			// Handler errors are the subscriber's concern.
			_ = s.handler(context.Background(), msg)
		case <-s.done:
			return
		}
	}
}

func (s *channelSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.subscribers[s.topic]
	for i, sub := range subs {
		if sub == s {
			s.bus.subscribers[s.topic] = append(subs[:i], subs[i+1:]...)
			close(s.done)
			return nil
		}
	}
	return nil
}

func (s *channelSubscription) Topic() string {
	return s.topic
}

// Ping always succeeds for an in-process bus.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close stops all subscriptions.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub.done)
		}
	}
	b.subscribers = make(map[string][]*channelSubscription)
	return nil
}

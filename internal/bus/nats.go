package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// NATSBus is an event bus backed by a NATS server, for deployments
// where alert consumers run out of process.
type NATSBus struct {
	conn *nats.Conn
}

// NewNATSBus connects to the configured NATS server.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		return nil, fmt.Errorf("nats url is required")
	}

	opts := []nats.Option{
		nats.Name("kestrel"),
		nats.MaxReconnects(cfg.NATSMaxReconnects),
	}
	if cfg.NATSReconnectWait > 0 {
		opts = append(opts, nats.ReconnectWait(time.Duration(cfg.NATSReconnectWait)*time.Second))
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	conn, err := nats.Connect(cfg.NATSUrl, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &NATSBus{conn: conn}, nil
}

// Publish sends the payload to a NATS subject.
func (b *NATSBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	return b.conn.Publish(topic, payload)
}

// Subscribe registers a handler for a NATS subject.
func (b *NATSBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	sub, err := b.conn.Subscribe(topic, func(msg *nats.Msg) {
		_ = handler(context.Background(), &domain.Message{
			Topic:     msg.Subject,
			Payload:   msg.Data,
			Timestamp: time.Now().UnixMilli(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	return &natsSubscription{sub: sub, topic: topic}, nil
}

type natsSubscription struct {
	sub   *nats.Subscription
	topic string
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

func (s *natsSubscription) Topic() string {
	return s.topic
}

// Ping checks the connection state.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats connection lost")
	}
	return nil
}

// Close drains and closes the connection.
func (b *NATSBus) Close() error {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}

package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestBus(t *testing.T) *ChannelBus {
	t.Helper()
	b := NewChannelBus(domain.EventBusConfig{ChannelBufferSize: 16})
	t.Cleanup(func() { b.Close() })
	return b
}

func TestChannelBusPublishSubscribe(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	received := make(chan *domain.Message, 1)
	_, err := b.Subscribe(ctx, domain.TopicFraudAssessed, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	if err := b.Publish(ctx, domain.TopicFraudAssessed, []byte(`{"id":"a1"}`)); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg.Payload) != `{"id":"a1"}` {
			t.Errorf("unexpected payload: %s", msg.Payload)
		}
		if msg.Topic != domain.TopicFraudAssessed {
			t.Errorf("unexpected topic: %s", msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestChannelBusMultipleSubscribers(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		once := sync.Once{}
		_, err := b.Subscribe(ctx, domain.TopicFraudAlert, func(ctx context.Context, msg *domain.Message) error {
			once.Do(wg.Done)
			return nil
		})
		if err != nil {
			t.Fatalf("failed to subscribe: %v", err)
		}
	}

	if err := b.Publish(ctx, domain.TopicFraudAlert, []byte("alert")); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the message")
	}
}

func TestChannelBusUnsubscribe(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	received := make(chan struct{}, 8)
	sub, err := b.Subscribe(ctx, "test.topic", func(ctx context.Context, msg *domain.Message) error {
		received <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("failed to unsubscribe: %v", err)
	}

	if err := b.Publish(ctx, "test.topic", []byte("x")); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	select {
	case <-received:
		t.Error("received message after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChannelBusTopicIsolation(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	received := make(chan struct{}, 8)
	_, err := b.Subscribe(ctx, "topic.a", func(ctx context.Context, msg *domain.Message) error {
		received <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	if err := b.Publish(ctx, "topic.b", []byte("x")); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	select {
	case <-received:
		t.Error("received message from unrelated topic")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChannelBusClose(t *testing.T) {
	b := NewChannelBus(domain.EventBusConfig{})
	ctx := context.Background()

	if err := b.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	if err := b.Publish(ctx, "topic", []byte("x")); err == nil {
		t.Error("expected error publishing to closed bus")
	}
	if _, err := b.Subscribe(ctx, "topic", func(context.Context, *domain.Message) error { return nil }); err == nil {
		t.Error("expected error subscribing to closed bus")
	}
	if err := b.Ping(ctx); err == nil {
		t.Error("expected ping failure on closed bus")
	}
}

func TestChannelBusRequiresTopic(t *testing.T) {
	b := newTestBus(t)

	if err := b.Publish(context.Background(), "", []byte("x")); err == nil {
		t.Error("expected error for empty topic")
	}
	if _, err := b.Subscribe(context.Background(), "", func(context.Context, *domain.Message) error { return nil }); err == nil {
		t.Error("expected error for empty topic")
	}
}

func TestNewBus(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel"})
	if err != nil {
		t.Fatalf("failed to create channel bus: %v", err)
	}
	b.Close()

	if _, err := New(domain.EventBusConfig{Type: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unsupported bus type")
	}
}

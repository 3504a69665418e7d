package events

import (
	"context"
	"testing"
	"time"
)

// TestEvent implements the TypedEvent interface for testing purposes.
type TestEvent struct {
	Type    string
	Payload string
}

func (e TestEvent) EventType() string {
	return e.Type
}

func TestBus_PublishSubscribe(t *testing.T) {
	b := New()
	ch, cancel, err := b.Subscribe("topic")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	ctx, cancelCtx := context.WithTimeout(context.Background(), time.Second)
	defer cancelCtx()
	b.Publish(ctx, "topic", TestEvent{Type: "test", Payload: "hello"})

	select {
	case v := <-ch:
		typedV, ok := v.(TestEvent)
		if !ok {
			t.Fatalf("expected TestEvent, got %T", v)
		}
		if typedV.Payload != "hello" {
			t.Fatalf("unexpected payload: %v", typedV.Payload)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_CancelUnsubscribe(t *testing.T) {
	b := New()
	ch, cancel, err := b.Subscribe("topic")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestBus_TopicIsolation(t *testing.T) {
	b := New()
	ch, cancel, err := b.Subscribe("a")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	b.Publish(context.Background(), "b", TestEvent{Type: "test", Payload: "elsewhere"})
	select {
	case v := <-ch:
		t.Fatalf("unexpected event on topic a: %v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	b := New()
	ch, _, err := b.Subscribe("topic")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	b.Close()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after bus close")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for channel close")
	}

	// Subscribing after close yields an already-closed channel.
	ch2, cancel2, err := b.Subscribe("topic")
	if err != nil {
		t.Fatalf("subscribe after close: %v", err)
	}
	defer cancel2()
	if _, ok := <-ch2; ok {
		t.Fatal("expected closed channel from subscribe after close")
	}
}

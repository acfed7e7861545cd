package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishEventReachesSubscriber(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe := mb.SubscribeEvents(ctx, 1)
	defer unsubscribe()

	if !mb.PublishEvent(ctx, Event{Type: EventReplySent, ChatID: "c1"}) {
		t.Fatal("PublishEvent returned false on open bus")
	}

	select {
	case event := <-events:
		if event.Type != EventReplySent {
			t.Fatalf("event type = %q, want %q", event.Type, EventReplySent)
		}
		if event.ChatID != "c1" {
			t.Fatalf("event chat_id = %q, want %q", event.ChatID, "c1")
		}
		if event.At.IsZero() {
			t.Fatal("expected publish to stamp event time")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishEventDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	ctx := context.Background()
	events, unsubscribe := mb.SubscribeEvents(ctx, 1)
	defer unsubscribe()

	mb.PublishEvent(ctx, Event{Type: EventMessageReceived, ChatID: "keep"})
	mb.PublishEvent(ctx, Event{Type: EventMessageReceived, ChatID: "drop"})

	event := <-events
	if event.ChatID != "keep" {
		t.Fatalf("event chat_id = %q, want %q", event.ChatID, "keep")
	}

	select {
	case extra := <-events:
		t.Fatalf("expected overflow event to be dropped, got %q", extra.ChatID)
	default:
	}
}

func TestPublishEventAfterClose(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	mb.Close()

	if mb.PublishEvent(context.Background(), Event{Type: EventDispatchFailed}) {
		t.Fatal("PublishEvent returned true on closed bus")
	}
}

func TestCloseClosesSubscriberChannels(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	events, _ := mb.SubscribeEvents(context.Background(), 1)

	mb.Close()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed channel after bus close")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	_, unsubscribe := mb.SubscribeEvents(context.Background(), 1)
	unsubscribe()
	unsubscribe()
}

// ABOUTME: Tests for the conversation event broadcaster
// ABOUTME: Covers fan-out, isolation between conversations, and subscription cleanup

package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/senpai-gateway/internal/store"
)

func TestBroadcaster_PublishReachesSubscriber(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), "c1")

	msg := &store.Message{ID: "m1", Sender: store.SenderUser, Text: "hello"}
	b.Publish(&Event{Type: EventMessage, ConversationID: "c1", Message: msg})

	select {
	case ev := <-ch:
		assert.Equal(t, EventMessage, ev.Type)
		assert.Equal(t, "c1", ev.ConversationID)
		require.NotNil(t, ev.Message)
		assert.Equal(t, "hello", ev.Message.Text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_ConversationsAreIsolated(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(context.Background(), "c1")
	ch2, _ := b.Subscribe(context.Background(), "c2")

	b.Publish(&Event{Type: EventRenamed, ConversationID: "c1", Title: "new title"})

	select {
	case ev := <-ch1:
		assert.Equal(t, "new title", ev.Title)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case ev := <-ch2:
		t.Fatalf("unexpected event on other conversation: %+v", ev)
	default:
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(context.Background(), "c1")
	ch2, _ := b.Subscribe(context.Background(), "c1")

	b.Publish(&Event{Type: EventMessage, ConversationID: "c1", Message: &store.Message{ID: "m1"}})

	for _, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, "m1", ev.Message.ID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(context.Background(), "c1")
	b.Unsubscribe("c1", subID)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after removal must not panic or deliver.
	b.Publish(&Event{Type: EventMessage, ConversationID: "c1"})
}

func TestBroadcaster_ContextCancelCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "c1")
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	// Never drained; fill past the buffer.
	b.Subscribe(context.Background(), "c1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize+10; i++ {
			b.Publish(&Event{Type: EventMessage, ConversationID: "c1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBroadcaster_CloseClosesAllChannels(t *testing.T) {
	b := NewBroadcaster(nil)

	ch1, _ := b.Subscribe(context.Background(), "c1")
	ch2, _ := b.Subscribe(context.Background(), "c2")
	b.Close()

	_, open := <-ch1
	assert.False(t, open)
	_, open = <-ch2
	assert.False(t, open)
}

func TestBroadcaster_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	const rounds = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < rounds; i++ {
			_, subID := b.Subscribe(context.Background(), "c1")
			b.Unsubscribe("c1", subID)
		}
	}()

	// A send racing a close would panic and fail the test.
	for i := 0; i < rounds; i++ {
		b.Publish(&Event{Type: EventRenamed, ConversationID: "c1", Title: "t"})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscribe/unsubscribe loop did not finish")
	}
}

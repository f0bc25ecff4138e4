package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveEnvelope(t *testing.T, msgs <-chan *message.Message) Envelope {
	t.Helper()
	select {
	case msg := <-msgs:
		var env Envelope
		require.NoError(t, json.Unmarshal(msg.Payload, &env))
		msg.Ack()
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return Envelope{}
	}
}

func TestBus_PublishReachesSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	bus.Publish(InvoiceUpdated, map[string]any{"invoice_id": "inv-1"})

	env := receiveEnvelope(t, msgs)
	assert.Equal(t, InvoiceUpdated, env.Event)
	assert.False(t, env.Timestamp.IsZero())

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "inv-1", data["invoice_id"])
}

func TestBus_PublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			bus.Publish(InvoiceCreated, map[string]any{"n": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}

func TestBus_StalledSubscriberDoesNotBlockPublish(t *testing.T) {
	// GIVEN: A subscriber that never reads its channel
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	// WHEN: Publishing far past the subscriber's delivery buffer
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.Publish(InvoiceUpdated, map[string]any{"n": i})
		}
		close(done)
	}()

	// THEN: Every Publish returns promptly; overflow is dropped, not queued
	// against the caller
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked behind a stalled subscriber")
	}
}

func TestBus_PublishAfterCloseIsSafe(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Close())

	bus.Publish(InvoiceUpdated, map[string]any{"invoice_id": "inv-1"})
}

func TestBus_FanOutToMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	bus.Publish(LockAcquired, map[string]any{"entity_id": "inv-1"})

	assert.Equal(t, LockAcquired, receiveEnvelope(t, a).Event)
	assert.Equal(t, LockAcquired, receiveEnvelope(t, b).Event)
}

func TestNop_Publish(t *testing.T) {
	// The nil-bus fallback must be safe to call.
	Nop{}.Publish(InvoiceCreated, map[string]any{"invoice_id": "inv-1"})
}

/*
Package events is the change notification fan-out.

PURPOSE:
  After a successful mutation the engine publishes a change event so every
  connected browser session can invalidate its cache. The channel is
  push-only and fire-and-forget: publishing never blocks the caller and a
  publish failure never fails or rolls back the underlying mutation -
  clients treat events as invalidation hints, and a full re-fetch remains
  correct.

IMPLEMENTATION:
  In-process pub/sub over watermill's gochannel. Subscribers (the SSE
  stream handler) receive JSON envelopes:

    {"event": "invoice.updated", "data": {...}, "timestamp": "..."}

USAGE:
  bus := events.NewBus()
  defer bus.Close()
  bus.Publish(events.InvoiceUpdated, map[string]any{"invoice_id": id})

  msgs, _ := bus.Subscribe(ctx)
  for msg := range msgs { ... ; msg.Ack() }
*/
package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicChanges is the single topic all change events flow through.
const TopicChanges = "changes"

// Event names published by the engine and the lock endpoints.
const (
	InvoiceCreated = "invoice.created"
	InvoiceUpdated = "invoice.updated"
	InvoiceSplit   = "invoice.split"
	InvoiceUnsplit = "invoice.unsplit"
	InvoiceUndone  = "invoice.undone"
	LockAcquired   = "lock.acquired"
	LockReleased   = "lock.released"
)

// Envelope is the wire shape delivered to clients.
type Envelope struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is the capability the engine depends on. Publish never returns
// an error: delivery problems are the bus's concern, not the mutation's.
type Publisher interface {
	Publish(event string, data any)
}

// Nop drops events. Used in tests and as the nil-bus fallback.
type Nop struct{}

func (Nop) Publish(string, any) {}

// Bus is the in-process fan-out. Publish hands the envelope to a delivery
// goroutine through a bounded intake queue: a stalled subscriber can only
// stall delivery, never the mutation that published.
type Bus struct {
	pubsub *gochannel.GoChannel
	queue  chan *message.Message
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewBus creates the in-process pub/sub and starts the delivery worker.
func NewBus() *Bus {
	b := &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
			},
			watermill.NewStdLogger(false, false),
		),
		queue: make(chan *message.Message, 256),
		done:  make(chan struct{}),
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.done:
				return
			case msg := <-b.queue:
				if err := b.pubsub.Publish(TopicChanges, msg); err != nil {
					log.Printf("events: publish failed: %v", err)
				}
			}
		}
	}()
	return b
}

// Publish queues a change envelope for all subscribers. Never blocks: when
// the intake queue is full the event is dropped and logged. Clients treat
// events as invalidation hints, so a dropped event degrades freshness, not
// correctness.
func (b *Bus) Publish(event string, data any) {
	payload, err := json.Marshal(Envelope{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("events: dropping %s: %v", event, err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	select {
	case <-b.done:
	case b.queue <- msg:
	default:
		log.Printf("events: queue full, dropping %s", event)
	}
}

// Subscribe returns a channel of raw envelope messages. The channel closes
// when ctx is cancelled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicChanges)
}

// Close stops the delivery worker, shuts the bus down, and closes all
// subscriber channels. Closing the pubsub first unblocks a worker stuck
// delivering to a stalled subscriber.
func (b *Bus) Close() error {
	var err error
	b.once.Do(func() {
		close(b.done)
		err = b.pubsub.Close()
		b.wg.Wait()
	})
	return err
}

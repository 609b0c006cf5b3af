package bus

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope delivered to subscribers. ID is unique per publish;
// Seq increases monotonically within a topic so consumers can de-duplicate
// under at-least-once delivery. WorkflowID threads the owning workflow
// instance through the pipeline.
type Event struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Seq        uint64    `json:"seq"`
	WorkflowID string    `json:"workflow_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Handler consumes one event. A returned error is logged and isolated to
// this subscriber; it never blocks other subscribers of the topic.
type Handler func(ctx context.Context, evt Event) error

// ErrClosed is returned by Publish after Close
var ErrClosed = errors.New("event bus closed")

// Bus is an in-process publish/subscribe channel. Delivery is at-least-once
// and ordered per topic: each subscriber consumes from its own FIFO queue
// on a dedicated goroutine, so ordering holds per topic per subscriber but
// not across topics.
type Bus struct {
	mu     sync.Mutex
	topics map[string]*topicState
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	pubs   sync.WaitGroup
	closed bool
	buffer int
}

type topicState struct {
	seq  uint64
	subs []*subscriber
}

type subscriber struct {
	name    string
	queue   chan Event
	handler Handler
}

// New creates a bus whose subscriber queues hold up to buffer events before
// Publish blocks (backpressure)
func New(buffer int) *Bus {
	if buffer < 1 {
		buffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		topics: make(map[string]*topicState),
		ctx:    ctx,
		cancel: cancel,
		buffer: buffer,
	}
}

// Subscribe registers a handler for a topic. The name identifies the
// subscriber in logs. Delivery starts with the next published event.
// Subscribing after Close is a no-op.
func (b *Bus) Subscribe(topic, name string, handler Handler) {
	sub := &subscriber{
		name:    name,
		queue:   make(chan Event, b.buffer),
		handler: handler,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	ts := b.topics[topic]
	if ts == nil {
		ts = &topicState{}
		b.topics[topic] = ts
	}
	ts.subs = append(ts.subs, sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(topic, sub)
}

// run drains one subscriber's queue. Panics and errors from the handler are
// logged and swallowed so one bad consumer cannot stall the topic.
func (b *Bus) run(topic string, sub *subscriber) {
	defer b.wg.Done()

	for evt := range sub.queue {
		b.deliver(topic, sub, evt)
	}
}

func (b *Bus) deliver(topic string, sub *subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("subscriber panicked",
				"topic", topic,
				"subscriber", sub.name,
				"event_id", evt.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := sub.handler(b.ctx, evt); err != nil {
		slog.Error("subscriber failed",
			"topic", topic,
			"subscriber", sub.name,
			"event_id", evt.ID,
			"seq", evt.Seq,
			"error", err,
		)
	}
}

// Publish assigns the event id and per-topic sequence number and enqueues
// the event for every current subscriber of the topic
func (b *Bus) Publish(topic string, evt Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	// Registered under the mutex so Close cannot observe zero in-flight
	// publishes and close the queues while this one is still enqueueing
	b.pubs.Add(1)
	defer b.pubs.Done()

	ts := b.topics[topic]
	if ts == nil {
		ts = &topicState{}
		b.topics[topic] = ts
	}
	ts.seq++

	evt.Topic = topic
	evt.Seq = ts.seq
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}

	subs := make([]*subscriber, len(ts.subs))
	copy(subs, ts.subs)
	b.mu.Unlock()

	slog.Debug("event published",
		"topic", topic,
		"event_id", evt.ID,
		"seq", evt.Seq,
		"workflow_id", evt.WorkflowID,
	)

	for _, sub := range subs {
		sub.queue <- evt
	}
	return nil
}

// Close stops delivery and waits for in-flight handlers to finish. New
// publishes are refused immediately; publishes already past the closed
// check finish enqueueing before any queue is closed, including ones
// blocked on a full queue, since the drain goroutines keep consuming
// until their queues close.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.pubs.Wait()

	b.mu.Lock()
	for _, ts := range b.topics {
		for _, sub := range ts.subs {
			close(sub.queue)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.cancel()
}

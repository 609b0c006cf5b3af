package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New(16)
	defer b.Close()

	received := make(chan Event, 4)
	b.Subscribe("test.topic", "listener", func(_ context.Context, evt Event) error {
		received <- evt
		return nil
	})

	if err := b.Publish("test.topic", Event{WorkflowID: "wf-1", Payload: "hello"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case evt := <-received:
		if evt.Payload != "hello" {
			t.Errorf("Expected hello, got %v", evt.Payload)
		}
		if evt.ID == "" {
			t.Error("Expected event id to be assigned")
		}
		if evt.Seq != 1 {
			t.Errorf("Expected seq 1, got %d", evt.Seq)
		}
		if evt.WorkflowID != "wf-1" {
			t.Errorf("Expected workflow id wf-1, got %s", evt.WorkflowID)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestPerTopicOrdering(t *testing.T) {
	b := New(64)
	defer b.Close()

	var mu sync.Mutex
	var seqs []uint64
	done := make(chan struct{})

	const total = 20
	b.Subscribe("ordered", "listener", func(_ context.Context, evt Event) error {
		mu.Lock()
		seqs = append(seqs, evt.Seq)
		if len(seqs) == total {
			close(done)
		}
		mu.Unlock()
		return nil
	})

	for i := 0; i < total; i++ {
		b.Publish("ordered", Event{Payload: i})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Fatalf("Expected seq %d at position %d, got %d", i+1, i, seq)
		}
	}
}

func TestSubscriberIsolation(t *testing.T) {
	b := New(16)
	defer b.Close()

	received := make(chan Event, 4)
	b.Subscribe("iso", "panicky", func(_ context.Context, evt Event) error {
		panic("boom")
	})
	b.Subscribe("iso", "failing", func(_ context.Context, evt Event) error {
		return errors.New("handler error")
	})
	b.Subscribe("iso", "healthy", func(_ context.Context, evt Event) error {
		received <- evt
		return nil
	})

	b.Publish("iso", Event{Payload: 1})
	b.Publish("iso", Event{Payload: 2})

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatalf("Healthy subscriber missed event %d", i+1)
		}
	}
}

func TestSequencesIndependentAcrossTopics(t *testing.T) {
	b := New(16)
	defer b.Close()

	got := make(chan Event, 4)
	b.Subscribe("topic.b", "listener", func(_ context.Context, evt Event) error {
		got <- evt
		return nil
	})

	b.Publish("topic.a", Event{})
	b.Publish("topic.a", Event{})
	b.Publish("topic.b", Event{})

	select {
	case evt := <-got:
		if evt.Seq != 1 {
			t.Errorf("Expected topic.b seq to start at 1, got %d", evt.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New(16)
	b.Close()

	if err := b.Publish("any", Event{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestCloseWhilePublishBlocked(t *testing.T) {
	b := New(1)

	release := make(chan struct{})
	b.Subscribe("slow", "blocked-consumer", func(_ context.Context, _ Event) error {
		<-release
		return nil
	})

	// First event occupies the handler, second fills the 1-slot queue,
	// third blocks inside Publish's channel send
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			errs <- b.Publish("slow", Event{})
		}()
	}

	// Let the third publish reach its blocked send before closing
	time.Sleep(50 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		b.Close()
		close(closed)
	}()

	// Close must wait for the blocked publish rather than closing its
	// queue underneath it
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not finish with a blocked publish in flight")
	}

	for i := 0; i < 3; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Expected in-flight publish to succeed, got %v", err)
		}
	}

	if err := b.Publish("slow", Event{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

func TestDedup(t *testing.T) {
	d := NewDedup(8)

	if d.Seen("evt-1") {
		t.Error("First delivery must not be seen")
	}
	if !d.Seen("evt-1") {
		t.Error("Second delivery must be seen")
	}
	if d.Seen("evt-2") {
		t.Error("Different id must not be seen")
	}
}

func TestDedupWindowEviction(t *testing.T) {
	d := NewDedup(2)

	d.Seen("a")
	d.Seen("b")
	d.Seen("c") // evicts a

	if d.Seen("a") {
		t.Error("Evicted id should read as unseen again")
	}
	if !d.Seen("c") {
		t.Error("Recent id should still be seen")
	}
}

func TestIdempotentConsumer(t *testing.T) {
	b := New(16)
	defer b.Close()

	dedup := NewDedup(64)
	var mu sync.Mutex
	applied := 0
	done := make(chan struct{}, 4)

	b.Subscribe("dup", "consumer", func(_ context.Context, evt Event) error {
		defer func() { done <- struct{}{} }()
		if dedup.Seen(evt.ID) {
			return nil
		}
		mu.Lock()
		applied++
		mu.Unlock()
		return nil
	})

	// Simulate at-least-once redelivery of the same event id
	evt := Event{ID: "fixed-id", Payload: "x"}
	b.Publish("dup", evt)
	b.Publish("dup", evt)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for deliveries")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if applied != 1 {
		t.Errorf("Expected side effect applied once, got %d", applied)
	}
}

package events

import (
	"testing"
)

func TestPublishFIFOPerTopic(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("session:abc")
	defer cancel()

	for i := 0; i < 10; i++ {
		bus.Publish("session:abc", EventCycleComplete, map[string]interface{}{"cycle": i})
	}

	for i := 0; i < 10; i++ {
		evt := <-ch
		if got := evt.Data["cycle"].(int); got != i {
			t.Fatalf("out of order: expected cycle %d, got %d", i, got)
		}
	}
}

func TestTopicIsolation(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe("session:a")
	defer cancelA()
	b, cancelB := bus.Subscribe("session:b")
	defer cancelB()

	bus.Publish("session:a", EventSupportUpdated, nil)

	if len(b) != 0 {
		t.Error("event leaked across topics")
	}
	evt := <-a
	if evt.Topic != "session:a" || evt.Type != EventSupportUpdated {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe("sessions")
	defer cancel()

	// Overfill the buffer without draining. Publish must not block.
	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Publish("sessions", EventCycleComplete, map[string]interface{}{"i": i})
	}

	if got := bus.Dropped(); got != 5 {
		t.Errorf("expected 5 drops, got %d", got)
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("sessions")

	if got := bus.SubscriberCount("sessions"); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}
	cancel()
	if got := bus.SubscriberCount("sessions"); got != 0 {
		t.Errorf("expected 0 subscribers after cancel, got %d", got)
	}

	// The channel closes on cancel.
	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}

	// Publishing to a topic with no subscribers is a no-op.
	bus.Publish("sessions", EventSessionStarted, nil)
}

func TestIndependentSubscriberBuffers(t *testing.T) {
	bus := NewBus()
	fast, cancelFast := bus.Subscribe("sessions")
	defer cancelFast()
	_, cancelSlow := bus.Subscribe("sessions")
	defer cancelSlow()

	for i := 0; i < subscriberBuffer+1; i++ {
		bus.Publish("sessions", EventCycleComplete, map[string]interface{}{"i": i})
		// Drain the fast subscriber as we go.
		<-fast
	}

	// Only the slow subscriber dropped.
	if got := bus.Dropped(); got != 1 {
		t.Errorf("expected 1 drop, got %d", got)
	}
}

func TestSessionTopicName(t *testing.T) {
	if got := SessionTopic("xyz"); got != "session:xyz" {
		t.Errorf("unexpected topic name %q", got)
	}
}

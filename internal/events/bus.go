// Package events implements the topic-scoped publish/subscribe bus used by
// the UI and other observers. Delivery is FIFO per topic; a slow subscriber
// drops messages rather than blocking the runner.
package events

import (
	"sync"
	"time"

	"agora/internal/logging"
)

// Topic names.
const (
	// TopicSessions is the global topic carrying lifecycle events for all
	// sessions.
	TopicSessions = "sessions"
)

// SessionTopic returns the per-session topic name.
func SessionTopic(sessionID string) string {
	return "session:" + sessionID
}

// Event is one published message.
type Event struct {
	Topic     string                 `json:"topic"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Event type names produced by the engine.
const (
	EventSessionStarted   = "session_started"
	EventSessionPaused    = "session_paused"
	EventSessionResumed   = "session_resumed"
	EventSessionStopped   = "session_stopped"
	EventSessionCompleted = "session_completed"
	EventCycleStarted     = "cycle_started"
	EventCycleComplete    = "cycle_complete"
	EventBlackboardUpdate = "blackboard_updated"
	EventClaimUpdated     = "claim_updated"
	EventSupportUpdated   = "support_updated"
	EventClaimDied        = "claim_died"
	EventClaimGraduated   = "claim_graduated"
)

const subscriberBuffer = 64

type subscriber struct {
	id int64
	ch chan Event
}

// Bus is an explicit topic -> subscribers table.
type Bus struct {
	mu     sync.Mutex
	topics map[string][]*subscriber
	nextID int64
	drops  int64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[string][]*subscriber)}
}

// Subscribe registers a buffered subscriber on a topic. The returned cancel
// function removes the subscription and closes the channel.
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscriber{id: b.nextID, ch: make(chan Event, subscriberBuffer)}
	b.topics[topic] = append(b.topics[topic], sub)

	id := sub.id
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.topics[topic]
		for i, s := range subs {
			if s.id == id {
				b.topics[topic] = append(subs[:i], subs[i+1:]...)
				close(s.ch)
				break
			}
		}
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
	}
	return sub.ch, cancel
}

// Publish delivers an event to every subscriber of the topic. Sends happen
// under the bus lock, which keeps per-topic ordering FIFO. A full subscriber
// buffer drops the event for that subscriber only.
func (b *Bus) Publish(topic, eventType string, data map[string]interface{}) {
	evt := Event{
		Topic:     topic,
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.topics[topic] {
		select {
		case sub.ch <- evt:
		default:
			b.drops++
			logging.Get(logging.CategoryEvents).Warn("dropping %s on %s: subscriber buffer full", eventType, topic)
		}
	}
}

// Dropped returns how many events were dropped on full subscriber buffers.
func (b *Bus) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drops
}

// SubscriberCount returns the number of subscribers on a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

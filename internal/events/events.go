package events

import (
	"sync"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
)

// Event represents a generic event structure
type Event struct {
	Type      string
	Timestamp time.Time
	Data      interface{}
}

// RoundCompletedEvent is published after a round has been committed
type RoundCompletedEvent struct {
	RunId  string
	Record model.RoundRecord
}

// FlFinishedEvent represents the event structure for finishing FL
type FlFinishedEvent struct {
	RunId       string
	ExitCode    int32
	ExitMessage string
	Rounds      int
}

// EventBus represents the event bus that handles event subscription and dispatching.
// It is safe for concurrent use.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan<- Event
}

// NewEventBus creates a new instance of the event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan<- Event),
	}
}

// Subscribe adds a new subscriber for a given event type
func (eb *EventBus) Subscribe(eventType string, subscriber chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// Unsubscribe removes a subscriber for a given event type
func (eb *EventBus) Unsubscribe(eventType string, subscriber chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subscribers := eb.subscribers[eventType]
	for i, s := range subscribers {
		if s == subscriber {
			eb.subscribers[eventType] = append(subscribers[:i:i], subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers of a given event type. Subscribers
// whose channel is full miss the event; Publish returns how many received it.
func (eb *EventBus) Publish(event Event) int {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	delivered := 0
	for _, subscriber := range eb.subscribers[event.Type] {
		select {
		case subscriber <- event:
			delivered++
		default:
		}
	}
	return delivered
}

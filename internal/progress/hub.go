// Package progress broadcasts batch-parse progress events to in-process
// subscribers. Publishing never blocks the parse: slow subscribers drop
// events, except terminal events which get a short delivery grace.
package progress

import (
	"log"
	"sync"
	"time"
)

// EventType represents the kind of progress event.
type EventType string

const (
	EventTypeFileStarted EventType = "fileStarted"
	EventTypeFileParsed  EventType = "fileParsed"
	EventTypeFileFailed  EventType = "fileFailed"
	EventTypeComplete    EventType = "complete"
)

// Event is one progress notification.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filePath,omitempty"`
	ParserID  string    `json:"parserId,omitempty"`
	Staged    int       `json:"staged,omitempty"`
	Err       string    `json:"error,omitempty"`
}

// terminal reports whether the event ends the batch; terminal events get
// extra delivery effort since subscribers key their shutdown on them.
func (e Event) terminal() bool {
	return e.Type == EventTypeComplete
}

// Subscriber receives events from a hub.
type Subscriber struct {
	Events chan Event
}

// NewSubscriber creates a subscriber with a small buffer.
func NewSubscriber() *Subscriber {
	return &Subscriber{Events: make(chan Event, 16)}
}

// Hub fans events out to subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]bool
	closed      bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[*Subscriber]bool)}
}

// Subscribe registers and returns a new subscriber.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := NewSubscriber()
	if h.closed {
		close(sub.Events)
		return sub
	}
	h.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.Events)
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish fans the event out. Non-terminal events are dropped for any
// subscriber whose buffer is full; terminal events wait briefly.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	for sub := range h.subscribers {
		if event.terminal() {
			select {
			case sub.Events <- event:
			case <-time.After(50 * time.Millisecond):
				log.Printf("WARN: subscriber too slow for terminal event, dropping")
			}
			continue
		}

		select {
		case sub.Events <- event:
		default:
			log.Printf("WARN: subscriber buffer full, dropping event type %s", event.Type)
		}
	}
}

// Close shuts the hub down and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subscribers {
		close(sub.Events)
		delete(h.subscribers, sub)
	}
}

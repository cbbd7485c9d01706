// Package events keeps a bounded in-memory log of notable dashboard
// happenings: room switches, mode changes, alerts and broker
// connectivity. The log exists for operators; losing it on restart is
// fine.
package events

import (
	"sync"
	"time"
)

// EventType classifies a dashboard event.
type EventType string

const (
	EventRoomSwitch EventType = "room_switch"
	EventModeChange EventType = "mode_change"
	EventAlert      EventType = "alert"
	EventBrokerUp   EventType = "broker_up"
	EventBrokerDown EventType = "broker_down"
)

// Event is one entry in the dashboard log.
type Event struct {
	ID        int64     `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// Store holds events in memory with a fixed capacity (ring buffer)
type Store struct {
	mu      sync.RWMutex
	events  []Event
	maxSize int
	nextID  int64
}

// NewStore creates a new event store with specified max capacity
func NewStore(maxSize int) *Store {
	return &Store{
		events:  make([]Event, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add adds a new event to the store
func (s *Store) Add(eventType EventType, details string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	event := Event{
		ID:        s.nextID,
		Type:      eventType,
		Timestamp: time.Now(),
		Details:   details,
	}

	// Ring buffer: remove oldest if at max capacity
	if len(s.events) >= s.maxSize {
		s.events = s.events[1:]
	}
	s.events = append(s.events, event)
}

// GetLast returns the last N events (newest first)
func (s *Store) GetLast(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.events) {
		n = len(s.events)
	}

	result := make([]Event, n)
	for i := 0; i < n; i++ {
		result[i] = s.events[len(s.events)-1-i]
	}
	return result
}

// GetSince returns events newer than the given ID (newest first)
func (s *Store) GetSince(lastID int64) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].ID > lastID {
			result = append(result, s.events[i])
		} else {
			break
		}
	}
	return result
}

// Count returns the number of retained events
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// LastID returns the ID of the most recent event
func (s *Store) LastID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

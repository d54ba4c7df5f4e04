// Package storage keeps the most recently received unknown queue events in
// memory for the receiver's recent listing.
package storage

import (
	"sync"
	"time"

	"github.com/bean-lens/beanlens/internal/queue"
)

// Received is an event accepted by the receiver
type Received struct {
	ID         int64     `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	queue.Event
}

// RecentStore is a fixed-capacity ring; the oldest entry is dropped when full.
type RecentStore struct {
	mu       sync.RWMutex
	entries  []Received
	next     int
	size     int
	lastID   int64
	capacity int
}

// New returns a store holding at most capacity events
func New(capacity int) *RecentStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &RecentStore{
		entries:  make([]Received, capacity),
		capacity: capacity,
	}
}

// Add stores event and returns it with its assigned id
func (s *RecentStore) Add(event queue.Event, receivedAt time.Time) Received {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	r := Received{ID: s.lastID, ReceivedAt: receivedAt, Event: event}
	s.entries[s.next] = r
	s.next = (s.next + 1) % s.capacity
	if s.size < s.capacity {
		s.size++
	}
	return r
}

// Recent returns up to limit events, newest first
func (s *RecentStore) Recent(limit int) []Received {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > s.size {
		limit = s.size
	}
	result := make([]Received, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (s.next - 1 - i + s.capacity) % s.capacity
		result = append(result, s.entries[idx])
	}
	return result
}

// Get returns the event with id if it is still held
func (s *RecentStore) Get(id int64) (Received, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	oldest := s.lastID - int64(s.size) + 1
	if id < oldest || id > s.lastID {
		return Received{}, false
	}
	back := int(s.lastID - id)
	idx := (s.next - 1 - back + s.capacity) % s.capacity
	return s.entries[idx], true
}

// Len returns the number of held events
func (s *RecentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Capacity returns the maximum number of held events
func (s *RecentStore) Capacity() int {
	return s.capacity
}

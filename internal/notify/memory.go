package notify

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 256

// MemorySink keeps each user's notifications in process memory, bounded per
// user. The oldest entries are dropped once the bound is reached. Suitable
// for single-process deployments and tests.
type MemorySink struct {
	mu       sync.RWMutex
	byUser   map[string][]Notification
	capacity int
}

// NewMemorySink constructs an in-process sink holding at most capacity
// notifications per user.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemorySink{
		byUser:   make(map[string][]Notification),
		capacity: capacity,
	}
}

// Send implements Sink.
func (s *MemorySink) Send(_ context.Context, userID string, notification Notification) error {
	if userID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := append(s.byUser[userID], notification)
	if len(feed) > s.capacity {
		feed = feed[len(feed)-s.capacity:]
	}
	s.byUser[userID] = feed
	return nil
}

// List implements Sink.
func (s *MemorySink) List(_ context.Context, userID string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	feed := s.byUser[userID]
	copied := make([]Notification, len(feed))
	copy(copied, feed)
	return copied, nil
}

// MarkRead implements Sink.
func (s *MemorySink) MarkRead(_ context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := s.byUser[userID]
	for i := range feed {
		if notificationID == "" || feed[i].ID == notificationID {
			feed[i].Read = true
			if notificationID != "" {
				break
			}
		}
	}
	return nil
}

// Package notify delivers best-effort user notifications for event
// mutations. A Sink stores and serves per-user notifications; the Dispatcher
// turns mutation notices into phrased notifications after the owning
// transaction has committed.
package notify

import (
	"context"
	"time"
)

// Notification is one entry in a user's notification feed.
type Notification struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EventID    string    `json:"event_id"`
	EventTitle string    `json:"event_title"`
	ActorID    string    `json:"actor_id,omitempty"`
	Role       string    `json:"role,omitempty"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// Sink is the storage capability behind the notification feed. Two variants
// exist: a bounded in-process store and a Redis-backed store. The variant is
// chosen once at process start and passed by reference wherever needed.
type Sink interface {
	// Send appends a notification to the user's feed.
	Send(ctx context.Context, userID string, notification Notification) error
	// List returns the user's notifications, oldest first.
	List(ctx context.Context, userID string) ([]Notification, error)
	// MarkRead marks one notification as read, or every notification when
	// notificationID is empty.
	MarkRead(ctx context.Context, userID, notificationID string) error
}

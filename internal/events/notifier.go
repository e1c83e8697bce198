package events

import "context"

// NoticeKind enumerates the mutation notices emitted by the service.
type NoticeKind string

const (
	NoticeEventCreated      NoticeKind = "event_created"
	NoticeEventUpdated      NoticeKind = "event_updated"
	NoticeEventDeleted      NoticeKind = "event_deleted"
	NoticePermissionChanged NoticeKind = "permission_changed"
)

// Notice describes one mutation for asynchronous delivery. AffectedUserIDs
// holds every permission holder at emission time; SubjectUserID and Role are
// populated for permission changes only.
type Notice struct {
	Kind            NoticeKind
	EventID         string
	EventTitle      string
	ActorID         string
	AffectedUserIDs []string
	SubjectUserID   string
	Role            Role
}

// Notifier receives fire-and-forget notices strictly after the owning
// transaction commits. Implementations must never fail the originating
// request.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// NopNotifier discards all notices.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Notice) {}

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slated-app/slated/backend/internal/events"
)

const defaultQueueSize = 64

// DispatcherConfig carries the dependencies of the Dispatcher.
type DispatcherConfig struct {
	Sink      Sink
	Logger    *zap.Logger
	Clock     func() time.Time
	QueueSize int
}

// Dispatcher consumes mutation notices and fans them out as phrased
// notifications through the configured Sink. Delivery is asynchronous and
// best-effort: a full queue drops the notice, and sink failures are logged
// but never surfaced to the originating request. A single worker preserves
// emission order.
type Dispatcher struct {
	sink   Sink
	logger *zap.Logger
	clock  func() time.Time
	queue  chan events.Notice
	done   chan struct{}
	once   sync.Once
}

// NewDispatcher constructs a Dispatcher and starts its delivery worker.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Sink == nil {
		return nil, fmt.Errorf("notify: sink is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	dispatcher := &Dispatcher{
		sink:   cfg.Sink,
		logger: logger,
		clock:  clock,
		queue:  make(chan events.Notice, queueSize),
		done:   make(chan struct{}),
	}
	go dispatcher.run()
	return dispatcher, nil
}

// Notify implements events.Notifier. It never blocks the caller.
func (d *Dispatcher) Notify(_ context.Context, notice events.Notice) {
	select {
	case d.queue <- notice:
	default:
		d.logger.Warn("notification queue full, dropping notice",
			zap.String("kind", string(notice.Kind)),
			zap.String("event_id", notice.EventID))
	}
}

// Close stops accepting notices and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for notice := range d.queue {
		d.deliver(notice)
	}
}

func (d *Dispatcher) deliver(notice events.Notice) {
	ctx := context.Background()
	for _, delivery := range d.fanOut(notice) {
		if err := d.sink.Send(ctx, delivery.userID, delivery.notification); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("kind", string(notice.Kind)),
				zap.String("event_id", notice.EventID),
				zap.String("user_id", delivery.userID),
				zap.Error(err))
		}
	}
}

type delivery struct {
	userID       string
	notification Notification
}

// fanOut expands one notice into per-recipient notifications, phrasing the
// actor's copy differently from everyone else's.
func (d *Dispatcher) fanOut(notice events.Notice) []delivery {
	var deliveries []delivery
	add := func(userID, message string) {
		deliveries = append(deliveries, delivery{
			userID:       userID,
			notification: d.build(notice, message),
		})
	}

	switch notice.Kind {
	case events.NoticeEventCreated:
		add(notice.ActorID, fmt.Sprintf("You created a new event: %s", notice.EventTitle))

	case events.NoticeEventUpdated:
		for _, userID := range notice.AffectedUserIDs {
			if userID == notice.ActorID {
				continue
			}
			add(userID, fmt.Sprintf("Event '%s' was updated by another user", notice.EventTitle))
		}
		add(notice.ActorID, fmt.Sprintf("You updated the event: %s", notice.EventTitle))

	case events.NoticeEventDeleted:
		for _, userID := range notice.AffectedUserIDs {
			if userID == notice.ActorID {
				continue
			}
			add(userID, fmt.Sprintf("Event '%s' was deleted by another user", notice.EventTitle))
		}
		add(notice.ActorID, fmt.Sprintf("You deleted the event: %s", notice.EventTitle))

	case events.NoticePermissionChanged:
		add(notice.SubjectUserID, fmt.Sprintf("Your permission for event '%s' was changed to %s", notice.EventTitle, notice.Role))
		if notice.SubjectUserID != notice.ActorID {
			add(notice.ActorID, fmt.Sprintf("You changed permission for event '%s'", notice.EventTitle))
		}
	}

	return deliveries
}

func (d *Dispatcher) build(notice events.Notice, message string) Notification {
	return Notification{
		ID:         d.newID(),
		Type:       string(notice.Kind),
		EventID:    notice.EventID,
		EventTitle: notice.EventTitle,
		ActorID:    notice.ActorID,
		Role:       notice.Role.String(),
		Message:    message,
		Timestamp:  d.clock().UTC(),
		Read:       false,
	}
}

func (d *Dispatcher) newID() string {
	value, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("n-%d", d.clock().UnixNano())
	}
	return value.String()
}

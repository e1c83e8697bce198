package events

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidEventID indicates that an event identifier is empty or exceeds storage bounds.
	ErrInvalidEventID = errors.New("events: invalid event id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("events: invalid user id")
)

// EventID represents a validated event identifier.
type EventID string

// NewEventID validates raw input and returns an EventID.
func NewEventID(rawInput string) (EventID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidEventID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidEventID, maxIdentifierLength)
	}
	return EventID(trimmed), nil
}

// String returns the underlying string identifier.
func (id EventID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Event models the current state of a calendar event. Field values always
// mirror the most recent EventVersion row; only the mutation service writes
// this table.
type Event struct {
	ID             string    `gorm:"column:id;primaryKey;size:190;not null"`
	Title          string    `gorm:"column:title;size:255;not null"`
	Description    *string   `gorm:"column:description;type:text"`
	StartTime      time.Time `gorm:"column:start_time;not null;index:idx_events_window,priority:1"`
	EndTime        time.Time `gorm:"column:end_time;not null;index:idx_events_window,priority:2"`
	Location       *string   `gorm:"column:location;size:255"`
	IsRecurring    bool      `gorm:"column:is_recurring;not null;default:false"`
	RecurrenceJSON *string   `gorm:"column:recurrence_pattern;type:text"`
	CreatedBy      string    `gorm:"column:created_by;size:190;not null;index"`
	CurrentVersion int64     `gorm:"column:current_version;not null;default:1"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Event) TableName() string {
	return "events"
}

// Snapshot extracts the versioned field set from the live event row.
func (e *Event) Snapshot() (Snapshot, error) {
	pattern, err := decodeRecurrence(e.RecurrenceJSON)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Title:       e.Title,
		Description: e.Description,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Location:    e.Location,
		IsRecurring: e.IsRecurring,
		Recurrence:  pattern,
	}, nil
}

// EventPermission grants one user one role on one event. The composite
// primary key enforces at most one row per (event_id, user_id) pair.
type EventPermission struct {
	EventID   string    `gorm:"column:event_id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null;index"`
	Role      Role      `gorm:"column:role;size:16;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (EventPermission) TableName() string {
	return "event_permissions"
}

// EventVersion is an immutable snapshot of an event's field values. Rows are
// append-only; the composite primary key enforces (event_id, version_number)
// uniqueness.
type EventVersion struct {
	EventID        string    `gorm:"column:event_id;primaryKey;size:190;not null"`
	VersionNumber  int64     `gorm:"column:version_number;primaryKey;not null"`
	Title          string    `gorm:"column:title;size:255;not null"`
	Description    *string   `gorm:"column:description;type:text"`
	StartTime      time.Time `gorm:"column:start_time;not null"`
	EndTime        time.Time `gorm:"column:end_time;not null"`
	Location       *string   `gorm:"column:location;size:255"`
	IsRecurring    bool      `gorm:"column:is_recurring;not null;default:false"`
	RecurrenceJSON *string   `gorm:"column:recurrence_pattern;type:text"`
	ChangedBy      string    `gorm:"column:changed_by;size:190;not null"`
	ChangedAt      time.Time `gorm:"column:changed_at;not null"`
	ChangeComment  *string   `gorm:"column:change_comment;type:text"`
}

// TableName provides the explicit table binding for GORM.
func (EventVersion) TableName() string {
	return "event_versions"
}

// Snapshot extracts the versioned field set from the stored version row.
func (v *EventVersion) Snapshot() (Snapshot, error) {
	pattern, err := decodeRecurrence(v.RecurrenceJSON)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Title:       v.Title,
		Description: v.Description,
		StartTime:   v.StartTime,
		EndTime:     v.EndTime,
		Location:    v.Location,
		IsRecurring: v.IsRecurring,
		Recurrence:  pattern,
	}, nil
}

// Snapshot is the set of versioned event fields carried between the live row
// and its version history.
type Snapshot struct {
	Title       string
	Description *string
	StartTime   time.Time
	EndTime     time.Time
	Location    *string
	IsRecurring bool
	Recurrence  *RecurrencePattern
}

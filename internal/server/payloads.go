package server

import (
	"time"

	"github.com/slated-app/slated/backend/internal/events"
)

type eventResponsePayload struct {
	ID             string                    `json:"id"`
	Title          string                    `json:"title"`
	Description    *string                   `json:"description,omitempty"`
	StartTime      time.Time                 `json:"start_time"`
	EndTime        time.Time                 `json:"end_time"`
	Location       *string                   `json:"location,omitempty"`
	IsRecurring    bool                      `json:"is_recurring"`
	Recurrence     *events.RecurrencePattern `json:"recurrence_pattern,omitempty"`
	CreatedBy      string                    `json:"created_by"`
	CurrentVersion int64                     `json:"current_version"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

func renderEvent(event *events.Event) (eventResponsePayload, error) {
	snap, err := event.Snapshot()
	if err != nil {
		return eventResponsePayload{}, err
	}
	return eventResponsePayload{
		ID:             event.ID,
		Title:          event.Title,
		Description:    event.Description,
		StartTime:      event.StartTime,
		EndTime:        event.EndTime,
		Location:       event.Location,
		IsRecurring:    event.IsRecurring,
		Recurrence:     snap.Recurrence,
		CreatedBy:      event.CreatedBy,
		CurrentVersion: event.CurrentVersion,
		CreatedAt:      event.CreatedAt,
		UpdatedAt:      event.UpdatedAt,
	}, nil
}

func renderEvents(list []events.Event) ([]eventResponsePayload, error) {
	rendered := make([]eventResponsePayload, 0, len(list))
	for i := range list {
		payload, err := renderEvent(&list[i])
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, payload)
	}
	return rendered, nil
}

type versionResponsePayload struct {
	EventID       string                    `json:"event_id"`
	VersionNumber int64                     `json:"version_number"`
	Title         string                    `json:"title"`
	Description   *string                   `json:"description,omitempty"`
	StartTime     time.Time                 `json:"start_time"`
	EndTime       time.Time                 `json:"end_time"`
	Location      *string                   `json:"location,omitempty"`
	IsRecurring   bool                      `json:"is_recurring"`
	Recurrence    *events.RecurrencePattern `json:"recurrence_pattern,omitempty"`
	ChangedBy     string                    `json:"changed_by"`
	ChangedAt     time.Time                 `json:"changed_at"`
	ChangeComment *string                   `json:"change_comment,omitempty"`
}

func renderVersion(version *events.EventVersion) (versionResponsePayload, error) {
	snap, err := version.Snapshot()
	if err != nil {
		return versionResponsePayload{}, err
	}
	return versionResponsePayload{
		EventID:       version.EventID,
		VersionNumber: version.VersionNumber,
		Title:         version.Title,
		Description:   version.Description,
		StartTime:     version.StartTime,
		EndTime:       version.EndTime,
		Location:      version.Location,
		IsRecurring:   version.IsRecurring,
		Recurrence:    snap.Recurrence,
		ChangedBy:     version.ChangedBy,
		ChangedAt:     version.ChangedAt,
		ChangeComment: version.ChangeComment,
	}, nil
}

type permissionResponsePayload struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
}

func renderPermissions(permissions []events.EventPermission) []permissionResponsePayload {
	rendered := make([]permissionResponsePayload, 0, len(permissions))
	for _, permission := range permissions {
		rendered = append(rendered, permissionResponsePayload{
			EventID: permission.EventID,
			UserID:  permission.UserID,
			Role:    permission.Role.String(),
		})
	}
	return rendered
}

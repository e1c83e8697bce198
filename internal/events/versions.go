package events

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// appendVersion inserts a new immutable version row. The caller is
// responsible for serializing version numbers; the service always holds a
// row lock on the parent event while computing current_version+1.
func appendVersion(tx *gorm.DB, eventID string, number int64, snap Snapshot, changedBy string, comment *string, changedAt time.Time) (*EventVersion, error) {
	recurrenceJSON, err := encodeRecurrence(snap.Recurrence)
	if err != nil {
		return nil, err
	}

	version := EventVersion{
		EventID:        eventID,
		VersionNumber:  number,
		Title:          snap.Title,
		Description:    snap.Description,
		StartTime:      snap.StartTime,
		EndTime:        snap.EndTime,
		Location:       snap.Location,
		IsRecurring:    snap.IsRecurring,
		RecurrenceJSON: recurrenceJSON,
		ChangedBy:      changedBy,
		ChangedAt:      changedAt,
		ChangeComment:  comment,
	}
	if err := tx.Create(&version).Error; err != nil {
		return nil, err
	}
	return &version, nil
}

// getVersion loads one version by number, or nil when absent.
func getVersion(tx *gorm.DB, eventID string, number int64) (*EventVersion, error) {
	var version EventVersion
	err := tx.Where("event_id = ? AND version_number = ?", eventID, number).Take(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// listVersions returns the full history ordered by ascending version number.
func listVersions(tx *gorm.DB, eventID string) ([]EventVersion, error) {
	var versions []EventVersion
	if err := tx.Where("event_id = ?", eventID).
		Order("version_number ASC").
		Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

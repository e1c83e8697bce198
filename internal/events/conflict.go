package events

import (
	"time"

	"gorm.io/gorm"
)

// Overlaps reports whether the candidate interval [candStart, candEnd)
// conflicts with the requested interval [start, end). An event ending exactly
// when another starts does not conflict; full containment is checked with
// inclusive bounds.
func Overlaps(candStart, candEnd, start, end time.Time) bool {
	// Candidate is running when the new interval starts.
	if !candStart.After(start) && candEnd.After(start) {
		return true
	}
	// Candidate is running when the new interval ends.
	if candStart.Before(end) && !candEnd.Before(end) {
		return true
	}
	// New interval fully contains the candidate.
	if !candStart.Before(start) && !candEnd.After(end) {
		return true
	}
	return false
}

// findConflicts returns every event visible to the user whose interval
// overlaps [start, end). Conflicts are a personal-calendar concept: only
// events the user holds any permission on are candidates. excludeEventID, if
// non-empty, removes the event being updated from consideration.
func findConflicts(tx *gorm.DB, userID string, start, end time.Time, excludeEventID string) ([]Event, error) {
	query := tx.Model(&Event{}).
		Joins("JOIN event_permissions ON event_permissions.event_id = events.id AND event_permissions.user_id = ?", userID).
		Where(
			tx.Where("events.start_time <= ? AND events.end_time > ?", start, start).
				Or("events.start_time < ? AND events.end_time >= ?", end, end).
				Or("events.start_time >= ? AND events.end_time <= ?", start, end),
		)
	if excludeEventID != "" {
		query = query.Where("events.id <> ?", excludeEventID)
	}

	var candidates []Event
	if err := query.Order("events.start_time ASC").Find(&candidates).Error; err != nil {
		return nil, err
	}
	// The SQL clauses mirror Overlaps; the predicate makes the final call.
	conflicts := candidates[:0]
	for _, candidate := range candidates {
		if Overlaps(candidate.StartTime, candidate.EndTime, start, end) {
			conflicts = append(conflicts, candidate)
		}
	}
	return conflicts, nil
}

package events

import "time"

// Versioned field names in their fixed diff order.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStartTime   = "start_time"
	FieldEndTime     = "end_time"
	FieldLocation    = "location"
	FieldIsRecurring = "is_recurring"
	FieldRecurrence  = "recurrence_pattern"
)

// FieldChange is one field-level difference between two versions.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// ChangelogEntry groups the non-empty diff of one version against its
// predecessor, tagged with that version's authorship metadata.
type ChangelogEntry struct {
	VersionNumber int64         `json:"version_number"`
	ChangedBy     string        `json:"changed_by"`
	ChangedAt     time.Time     `json:"changed_at"`
	ChangeComment *string       `json:"change_comment,omitempty"`
	Changes       []FieldChange `json:"changes"`
}

// Diff compares two snapshots field by field, emitting an entry per
// differing field in the fixed field order. The recurrence pattern is
// compared structurally.
func Diff(previous, current Snapshot) []FieldChange {
	var changes []FieldChange

	if previous.Title != current.Title {
		changes = append(changes, FieldChange{Field: FieldTitle, OldValue: previous.Title, NewValue: current.Title})
	}
	if !equalStringPtr(previous.Description, current.Description) {
		changes = append(changes, FieldChange{Field: FieldDescription, OldValue: deref(previous.Description), NewValue: deref(current.Description)})
	}
	if !previous.StartTime.Equal(current.StartTime) {
		changes = append(changes, FieldChange{Field: FieldStartTime, OldValue: previous.StartTime, NewValue: current.StartTime})
	}
	if !previous.EndTime.Equal(current.EndTime) {
		changes = append(changes, FieldChange{Field: FieldEndTime, OldValue: previous.EndTime, NewValue: current.EndTime})
	}
	if !equalStringPtr(previous.Location, current.Location) {
		changes = append(changes, FieldChange{Field: FieldLocation, OldValue: deref(previous.Location), NewValue: deref(current.Location)})
	}
	if previous.IsRecurring != current.IsRecurring {
		changes = append(changes, FieldChange{Field: FieldIsRecurring, OldValue: previous.IsRecurring, NewValue: current.IsRecurring})
	}
	if !previous.Recurrence.Equal(current.Recurrence) {
		changes = append(changes, FieldChange{Field: FieldRecurrence, OldValue: previous.Recurrence, NewValue: current.Recurrence})
	}

	return changes
}

// BuildChangelog walks consecutive version pairs and collects each non-empty
// diff. The first version has no predecessor and produces no entry.
func BuildChangelog(versions []EventVersion) ([]ChangelogEntry, error) {
	var entries []ChangelogEntry
	for i := 1; i < len(versions); i++ {
		previous, err := versions[i-1].Snapshot()
		if err != nil {
			return nil, err
		}
		current, err := versions[i].Snapshot()
		if err != nil {
			return nil, err
		}
		changes := Diff(previous, current)
		if len(changes) == 0 {
			continue
		}
		entries = append(entries, ChangelogEntry{
			VersionNumber: versions[i].VersionNumber,
			ChangedBy:     versions[i].ChangedBy,
			ChangedAt:     versions[i].ChangedAt,
			ChangeComment: versions[i].ChangeComment,
			Changes:       changes,
		})
	}
	return entries, nil
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

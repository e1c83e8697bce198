package events

import (
	"testing"
	"time"
)

func baseSnapshot() Snapshot {
	description := "planning session"
	location := "room 1"
	return Snapshot{
		Title:       "Planning",
		Description: &description,
		StartTime:   time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC),
		Location:    &location,
	}
}

func TestDiffEmitsChangesInFixedFieldOrder(t *testing.T) {
	previous := baseSnapshot()
	current := previous
	current.Title = "Planning v2"
	newLocation := "room 2"
	current.Location = &newLocation
	current.EndTime = current.EndTime.Add(30 * time.Minute)
	current.IsRecurring = true
	current.Recurrence = &RecurrencePattern{Frequency: FrequencyWeekly, Interval: 1}

	changes := Diff(previous, current)
	expected := []string{FieldTitle, FieldEndTime, FieldLocation, FieldIsRecurring, FieldRecurrence}
	if len(changes) != len(expected) {
		t.Fatalf("expected %d changes, got %d: %#v", len(expected), len(changes), changes)
	}
	for i, field := range expected {
		if changes[i].Field != field {
			t.Fatalf("change %d: expected field %q, got %q", i, field, changes[i].Field)
		}
	}
	if changes[0].OldValue != "Planning" || changes[0].NewValue != "Planning v2" {
		t.Fatalf("unexpected title change values: %#v", changes[0])
	}
}

func TestDiffIdenticalSnapshotsIsEmpty(t *testing.T) {
	snap := baseSnapshot()
	if changes := Diff(snap, snap); len(changes) != 0 {
		t.Fatalf("expected no changes, got %#v", changes)
	}
}

func TestDiffTreatsNilAndValuePointersAsDifferent(t *testing.T) {
	previous := baseSnapshot()
	current := previous
	current.Description = nil

	changes := Diff(previous, current)
	if len(changes) != 1 || changes[0].Field != FieldDescription {
		t.Fatalf("expected a single description change, got %#v", changes)
	}
	if changes[0].NewValue != nil {
		t.Fatalf("expected cleared description to render as nil, got %#v", changes[0].NewValue)
	}
}

func TestDiffComparesRecurrenceStructurally(t *testing.T) {
	previous := baseSnapshot()
	previous.Recurrence = &RecurrencePattern{Frequency: FrequencyDaily, Interval: 1, ByDay: []string{"MO", "WE"}}
	current := previous
	current.Recurrence = &RecurrencePattern{Frequency: FrequencyDaily, Interval: 1, ByDay: []string{"MO", "WE"}}

	if changes := Diff(previous, current); len(changes) != 0 {
		t.Fatalf("structurally equal patterns must not differ, got %#v", changes)
	}

	current.Recurrence = &RecurrencePattern{Frequency: FrequencyDaily, Interval: 2, ByDay: []string{"MO", "WE"}}
	changes := Diff(previous, current)
	if len(changes) != 1 || changes[0].Field != FieldRecurrence {
		t.Fatalf("expected a recurrence change, got %#v", changes)
	}
}

func TestBuildChangelogSkipsFirstVersionAndNoopVersions(t *testing.T) {
	comment1 := "Initial creation"
	comment3 := "renamed"
	versions := []EventVersion{
		{
			EventID: "event-1", VersionNumber: 1, Title: "Planning",
			StartTime: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC),
			ChangedBy: "user-1", ChangeComment: &comment1,
		},
		{
			EventID: "event-1", VersionNumber: 2, Title: "Planning",
			StartTime: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC),
			ChangedBy: "user-1",
		},
		{
			EventID: "event-1", VersionNumber: 3, Title: "Planning v2",
			StartTime: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC),
			ChangedBy: "user-2", ChangeComment: &comment3,
		},
	}

	entries, err := BuildChangelog(versions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d: %#v", len(entries), entries)
	}
	entry := entries[0]
	if entry.VersionNumber != 3 {
		t.Fatalf("expected entry for version 3, got %d", entry.VersionNumber)
	}
	if entry.ChangedBy != "user-2" {
		t.Fatalf("expected entry attributed to user-2, got %q", entry.ChangedBy)
	}
	if entry.ChangeComment == nil || *entry.ChangeComment != "renamed" {
		t.Fatalf("expected comment to carry over, got %v", entry.ChangeComment)
	}
	if len(entry.Changes) != 1 || entry.Changes[0].Field != FieldTitle {
		t.Fatalf("expected a single title change, got %#v", entry.Changes)
	}
}

func TestBuildChangelogSingleVersionHasNoEntries(t *testing.T) {
	versions := []EventVersion{{EventID: "event-1", VersionNumber: 1, Title: "Solo"}}
	entries, err := BuildChangelog(versions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("the first version has no predecessor, got %#v", entries)
	}
}

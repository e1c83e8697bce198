package events

import (
	"errors"
	"testing"
	"time"
)

func TestRecurrenceValidateRejectsMalformedPatterns(t *testing.T) {
	count := 0
	tests := []struct {
		name    string
		pattern RecurrencePattern
	}{
		{"unknown frequency", RecurrencePattern{Frequency: "fortnightly", Interval: 1}},
		{"zero interval", RecurrencePattern{Frequency: FrequencyDaily, Interval: 0}},
		{"zero count", RecurrencePattern{Frequency: FrequencyDaily, Interval: 1, Count: &count}},
		{"bad weekday", RecurrencePattern{Frequency: FrequencyWeekly, Interval: 1, ByDay: []string{"XX"}}},
		{"month day out of range", RecurrencePattern{Frequency: FrequencyMonthly, Interval: 1, ByMonthDay: []int{32}}},
		{"month out of range", RecurrencePattern{Frequency: FrequencyYearly, Interval: 1, ByMonth: []int{13}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.pattern.Validate()
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRecurrenceValidateAcceptsCommonPatterns(t *testing.T) {
	count := 10
	until := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	patterns := []RecurrencePattern{
		{Frequency: FrequencyDaily, Interval: 1},
		{Frequency: FrequencyWeekly, Interval: 2, ByDay: []string{"MO", "WE", "FR"}},
		{Frequency: FrequencyMonthly, Interval: 1, ByMonthDay: []int{1, 15}, Count: &count},
		{Frequency: FrequencyYearly, Interval: 1, ByMonth: []int{6}, Until: &until},
	}
	for _, pattern := range patterns {
		if err := pattern.Validate(); err != nil {
			t.Fatalf("expected %v to validate, got %v", pattern, err)
		}
	}
}

func TestRecurrenceOccurrencesExpandsDailyRule(t *testing.T) {
	count := 5
	pattern := RecurrencePattern{Frequency: FrequencyDaily, Interval: 1, Count: &count}
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	until := start.AddDate(0, 0, 30)

	occurrences, err := pattern.Occurrences(start, until, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 5 {
		t.Fatalf("expected 5 occurrences, got %d", len(occurrences))
	}
	if !occurrences[0].Equal(start) {
		t.Fatalf("expected the event start to be included, got %v", occurrences[0])
	}
	if !occurrences[4].Equal(start.AddDate(0, 0, 4)) {
		t.Fatalf("expected daily spacing, got %v", occurrences[4])
	}
}

func TestRecurrenceOccurrencesHonorsMaxCap(t *testing.T) {
	pattern := RecurrencePattern{Frequency: FrequencyDaily, Interval: 1}
	start := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	until := start.AddDate(0, 0, 30)

	occurrences, err := pattern.Occurrences(start, until, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occurrences) != 3 {
		t.Fatalf("expected cap of 3 occurrences, got %d", len(occurrences))
	}
}

func TestRecurrenceEqualComparesAllFields(t *testing.T) {
	countA := 3
	countB := 3
	a := &RecurrencePattern{Frequency: FrequencyWeekly, Interval: 1, Count: &countA, ByDay: []string{"MO"}}
	b := &RecurrencePattern{Frequency: FrequencyWeekly, Interval: 1, Count: &countB, ByDay: []string{"MO"}}
	if !a.Equal(b) {
		t.Fatalf("structurally identical patterns must compare equal")
	}

	b.ByDay = []string{"TU"}
	if a.Equal(b) {
		t.Fatalf("differing weekdays must not compare equal")
	}

	var null *RecurrencePattern
	if a.Equal(null) {
		t.Fatalf("a pattern never equals nil")
	}
	if !null.Equal(nil) {
		t.Fatalf("two nil patterns compare equal")
	}
}

func TestRecurrenceRoundTripsThroughJSONColumn(t *testing.T) {
	until := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	pattern := &RecurrencePattern{Frequency: FrequencyWeekly, Interval: 2, Until: &until, ByDay: []string{"MO", "FR"}}

	encoded, err := encodeRecurrence(pattern)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	decoded, err := decodeRecurrence(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if !pattern.Equal(decoded) {
		t.Fatalf("expected pattern to survive the round trip, got %#v", decoded)
	}

	if empty, err := decodeRecurrence(nil); err != nil || empty != nil {
		t.Fatalf("nil column must decode to nil, got %#v (%v)", empty, err)
	}
}

func TestRecurrenceValidateIgnoresWallClock(t *testing.T) {
	until := time.Date(2001, 6, 1, 0, 0, 0, 0, time.UTC)
	pattern := &RecurrencePattern{Frequency: FrequencyDaily, Interval: 1, Until: &until}
	if err := pattern.Validate(); err != nil {
		t.Fatalf("pattern with a long-past until bound must still validate, got %v", err)
	}
}

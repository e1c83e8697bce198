package events

import (
	"encoding/json"
	"time"
)

// Optional is a tri-state field value: unset (field absent), set to null, or
// set to a concrete value. Partial updates use it to distinguish "not
// provided" from "explicitly cleared".
type Optional[T any] struct {
	set   bool
	valid bool
	value T
}

// Some returns an Optional holding a concrete value.
func Some[T any](value T) Optional[T] {
	return Optional[T]{set: true, valid: true, value: value}
}

// Null returns an Optional explicitly set to null.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true}
}

// IsSet reports whether the field was provided at all.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// IsNull reports whether the field was explicitly set to null.
func (o Optional[T]) IsNull() bool {
	return o.set && !o.valid
}

// Get returns the concrete value and whether one is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set && o.valid
}

// UnmarshalJSON marks the field as set; a JSON null yields the null state.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if string(data) == "null" {
		o.valid = false
		var zero T
		o.value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.value); err != nil {
		return err
	}
	o.valid = true
	return nil
}

// MarshalJSON renders the concrete value, or null when unset or cleared.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set || !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// Patch describes a partial event update. Only fields that are set replace
// the current values; all others are retained.
type Patch struct {
	Title       Optional[string]            `json:"title"`
	Description Optional[string]            `json:"description"`
	StartTime   Optional[time.Time]         `json:"start_time"`
	EndTime     Optional[time.Time]         `json:"end_time"`
	Location    Optional[string]            `json:"location"`
	IsRecurring Optional[bool]              `json:"is_recurring"`
	Recurrence  Optional[RecurrencePattern] `json:"recurrence_pattern"`
}

// IsEmpty reports whether the patch carries no field at all.
func (p Patch) IsEmpty() bool {
	return !p.Title.IsSet() && !p.Description.IsSet() && !p.StartTime.IsSet() &&
		!p.EndTime.IsSet() && !p.Location.IsSet() && !p.IsRecurring.IsSet() &&
		!p.Recurrence.IsSet()
}

// TouchesInterval reports whether the patch changes the event's time range.
func (p Patch) TouchesInterval() bool {
	return p.StartTime.IsSet() || p.EndTime.IsSet()
}

// Apply merges the patch over the current snapshot and returns the new field
// set. Clearing a non-nullable field is a validation error.
func (p Patch) Apply(current Snapshot) (Snapshot, error) {
	merged := current

	if p.Title.IsSet() {
		title, ok := p.Title.Get()
		if !ok {
			return Snapshot{}, &ValidationError{Reason: "title cannot be cleared"}
		}
		merged.Title = title
	}
	if p.Description.IsSet() {
		if value, ok := p.Description.Get(); ok {
			merged.Description = &value
		} else {
			merged.Description = nil
		}
	}
	if p.StartTime.IsSet() {
		start, ok := p.StartTime.Get()
		if !ok {
			return Snapshot{}, &ValidationError{Reason: "start_time cannot be cleared"}
		}
		merged.StartTime = start
	}
	if p.EndTime.IsSet() {
		end, ok := p.EndTime.Get()
		if !ok {
			return Snapshot{}, &ValidationError{Reason: "end_time cannot be cleared"}
		}
		merged.EndTime = end
	}
	if p.Location.IsSet() {
		if value, ok := p.Location.Get(); ok {
			merged.Location = &value
		} else {
			merged.Location = nil
		}
	}
	if p.IsRecurring.IsSet() {
		recurring, ok := p.IsRecurring.Get()
		if !ok {
			return Snapshot{}, &ValidationError{Reason: "is_recurring cannot be cleared"}
		}
		merged.IsRecurring = recurring
	}
	if p.Recurrence.IsSet() {
		if value, ok := p.Recurrence.Get(); ok {
			merged.Recurrence = &value
		} else {
			merged.Recurrence = nil
		}
	}

	if err := validateSnapshot(merged); err != nil {
		return Snapshot{}, err
	}
	return merged, nil
}

func validateSnapshot(snap Snapshot) error {
	if snap.Title == "" {
		return &ValidationError{Reason: "title is required"}
	}
	if snap.EndTime.Before(snap.StartTime) {
		return &ValidationError{Reason: "end_time must not be before start_time"}
	}
	if snap.Recurrence != nil {
		if err := snap.Recurrence.Validate(); err != nil {
			return err
		}
	}
	return nil
}

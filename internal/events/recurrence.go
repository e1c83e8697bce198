package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency enumerates the supported recurrence frequencies.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

var frequencyToRRule = map[Frequency]rrule.Frequency{
	FrequencyDaily:   rrule.DAILY,
	FrequencyWeekly:  rrule.WEEKLY,
	FrequencyMonthly: rrule.MONTHLY,
	FrequencyYearly:  rrule.YEARLY,
}

var weekdayToRRule = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

// RecurrencePattern is the structured recurrence rule attached to a
// recurring event. It is persisted as a JSON column and compared
// structurally when diffing versions.
type RecurrencePattern struct {
	Frequency  Frequency  `json:"frequency"`
	Interval   int        `json:"interval"`
	Until      *time.Time `json:"until,omitempty"`
	Count      *int       `json:"count,omitempty"`
	ByDay      []string   `json:"by_day,omitempty"`
	ByMonthDay []int      `json:"by_month_day,omitempty"`
	ByMonth    []int      `json:"by_month,omitempty"`
}

// validationAnchor is the fixed start time for the throwaway rule built
// during Validate. Acceptance of a pattern never depends on the anchor.
var validationAnchor = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Validate checks the pattern's fields and confirms it converts to a valid
// recurrence rule.
func (p *RecurrencePattern) Validate() error {
	if _, ok := frequencyToRRule[Frequency(strings.ToLower(string(p.Frequency)))]; !ok {
		return &ValidationError{Reason: fmt.Sprintf("frequency must be one of daily, weekly, monthly, yearly, got %q", p.Frequency)}
	}
	if p.Interval < 1 {
		return &ValidationError{Reason: "recurrence interval must be at least 1"}
	}
	if p.Count != nil && *p.Count < 1 {
		return &ValidationError{Reason: "recurrence count must be at least 1"}
	}
	for _, day := range p.ByDay {
		if _, ok := weekdayToRRule[day]; !ok {
			return &ValidationError{Reason: fmt.Sprintf("by_day entries must be one of MO, TU, WE, TH, FR, SA, SU, got %q", day)}
		}
	}
	for _, monthDay := range p.ByMonthDay {
		if monthDay < 1 || monthDay > 31 {
			return &ValidationError{Reason: fmt.Sprintf("by_month_day entries must be between 1 and 31, got %d", monthDay)}
		}
	}
	for _, month := range p.ByMonth {
		if month < 1 || month > 12 {
			return &ValidationError{Reason: fmt.Sprintf("by_month entries must be between 1 and 12, got %d", month)}
		}
	}
	if _, err := p.Rule(validationAnchor); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("recurrence pattern does not form a valid rule: %v", err)}
	}
	return nil
}

// Rule converts the pattern into an rrule anchored at the given start time.
func (p *RecurrencePattern) Rule(dtstart time.Time) (*rrule.RRule, error) {
	freq, ok := frequencyToRRule[Frequency(strings.ToLower(string(p.Frequency)))]
	if !ok {
		return nil, fmt.Errorf("unknown frequency %q", p.Frequency)
	}

	option := rrule.ROption{
		Freq:     freq,
		Interval: p.Interval,
		Dtstart:  dtstart,
	}
	if option.Interval < 1 {
		option.Interval = 1
	}
	if p.Until != nil {
		option.Until = *p.Until
	}
	if p.Count != nil {
		option.Count = *p.Count
	}
	for _, day := range p.ByDay {
		weekday, ok := weekdayToRRule[day]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", day)
		}
		option.Byweekday = append(option.Byweekday, weekday)
	}
	option.Bymonthday = append(option.Bymonthday, p.ByMonthDay...)
	option.Bymonth = append(option.Bymonth, p.ByMonth...)

	return rrule.NewRRule(option)
}

// Occurrences expands the pattern between start and windowEnd, capped at max
// entries. The event's own start is included.
func (p *RecurrencePattern) Occurrences(start, windowEnd time.Time, max int) ([]time.Time, error) {
	rule, err := p.Rule(start)
	if err != nil {
		return nil, err
	}
	occurrences := rule.Between(start, windowEnd, true)
	if max > 0 && len(occurrences) > max {
		occurrences = occurrences[:max]
	}
	return occurrences, nil
}

// Equal compares two patterns structurally.
func (p *RecurrencePattern) Equal(other *RecurrencePattern) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.Frequency != other.Frequency || p.Interval != other.Interval {
		return false
	}
	if (p.Until == nil) != (other.Until == nil) {
		return false
	}
	if p.Until != nil && !p.Until.Equal(*other.Until) {
		return false
	}
	if (p.Count == nil) != (other.Count == nil) {
		return false
	}
	if p.Count != nil && *p.Count != *other.Count {
		return false
	}
	return equalSlices(p.ByDay, other.ByDay) &&
		equalSlices(p.ByMonthDay, other.ByMonthDay) &&
		equalSlices(p.ByMonth, other.ByMonth)
}

func equalSlices[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func encodeRecurrence(pattern *RecurrencePattern) (*string, error) {
	if pattern == nil {
		return nil, nil
	}
	raw, err := json.Marshal(pattern)
	if err != nil {
		return nil, err
	}
	encoded := string(raw)
	return &encoded, nil
}

func decodeRecurrence(raw *string) (*RecurrencePattern, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	var pattern RecurrencePattern
	if err := json.Unmarshal([]byte(*raw), &pattern); err != nil {
		return nil, err
	}
	return &pattern, nil
}

package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultRadiusMiles is the search radius used before the user adjusts it.
const DefaultRadiusMiles = 0.5

// Day is a weekday filter: DayAll or an English weekday name.
type Day string

// DayAll disables the weekday filter.
const DayAll Day = "all"

var weekdays = []Day{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Weekdays returns the selectable weekday names in calendar order.
func Weekdays() []Day {
	out := make([]Day, len(weekdays))
	copy(out, weekdays)
	return out
}

// ParseDay accepts "all" or a weekday name in any case. Empty input means all.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(DayAll)) {
		return DayAll, nil
	}
	for _, d := range weekdays {
		if strings.EqualFold(s, string(d)) {
			return d, nil
		}
	}
	return "", &ValidationError{Field: "day", Reason: fmt.Sprintf("unknown weekday %q", s)}
}

// IsAll reports whether the filter is disabled.
func (d Day) IsAll() bool { return d == "" || strings.EqualFold(string(d), string(DayAll)) }

// Label renders the day for summaries: "all days" or the weekday name.
func (d Day) Label() string {
	if d.IsAll() {
		return "all days"
	}
	return string(d)
}

// Hour is an hour-of-day filter: HourAll or 0-23.
type Hour int

// HourAll disables the hour filter.
const HourAll Hour = -1

// ParseHour accepts "all" or an integer hour 0-23. Empty input means all.
func ParseHour(s string) (Hour, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return HourAll, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 23 {
		return HourAll, &ValidationError{Field: "hour", Reason: fmt.Sprintf("invalid hour %q", s)}
	}
	return Hour(n), nil
}

// IsAll reports whether the filter is disabled.
func (h Hour) IsAll() bool { return h < 0 || h > 23 }

// String returns the wire form: "all" or the decimal hour.
func (h Hour) String() string {
	if h.IsAll() {
		return "all"
	}
	return strconv.Itoa(int(h))
}

// Clock renders the hour zero-padded, e.g. "07:00".
func (h Hour) Clock() string {
	return fmt.Sprintf("%02d:00", int(h))
}

// Label renders the hour for nearest summaries: "all hours" or "07:00".
func (h Hour) Label() string {
	if h.IsAll() {
		return "all hours"
	}
	return h.Clock()
}

// Phrase renders the hour for heatmap messages: "across all hours" or "at 07:00".
func (h Hour) Phrase() string {
	if h.IsAll() {
		return "across all hours"
	}
	return "at " + h.Clock()
}

// MarshalJSON encodes all as "all" and concrete hours as numbers.
func (h Hour) MarshalJSON() ([]byte, error) {
	if h.IsAll() {
		return []byte(`"all"`), nil
	}
	return []byte(strconv.Itoa(int(h))), nil
}

// UnmarshalJSON accepts "all", a numeric string, or a number.
func (h *Hour) UnmarshalJSON(b []byte) error {
	var v FlexString
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseHour(string(v))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// QueryFilters is the user's current time window and search radius.
type QueryFilters struct {
	Day         Day     `json:"day"`
	Hour        Hour    `json:"hour"`
	RadiusMiles float64 `json:"radius"`
}

// DefaultFilters returns {all, all, 0.5}.
func DefaultFilters() QueryFilters {
	return QueryFilters{Day: DayAll, Hour: HourAll, RadiusMiles: DefaultRadiusMiles}
}

// FlexString decodes a JSON string, number, or boolean into its textual form.
// The analytics service echoes filters back either as strings or numbers.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var raw json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if string(raw) == "null" {
		*f = ""
		return nil
	}
	*f = FlexString(strings.TrimSpace(string(raw)))
	return nil
}

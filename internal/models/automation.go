package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is a lowercase three-letter day key (mon..sun)
type Weekday string

const (
	Sunday    Weekday = "sun"
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
)

// AllWeekdays in time.Weekday order
var AllWeekdays = []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// WeekdayOf maps a time.Weekday to its day key
func WeekdayOf(d time.Weekday) Weekday {
	return AllWeekdays[d]
}

// Valid reports whether w is one of the seven day keys
func (w Weekday) Valid() bool {
	for _, d := range AllWeekdays {
		if d == w {
			return true
		}
	}
	return false
}

// DaySet is the set of weekdays on which automated sends are allowed
type DaySet []Weekday

// Contains reports whether the set includes the given weekday
func (s DaySet) Contains(d time.Weekday) bool {
	key := WeekdayOf(d)
	for _, w := range s {
		if w == key {
			return true
		}
	}
	return false
}

// Clock is a time of day in minutes since midnight
type Clock int

// ParseClock parses "HH:MM" (24h)
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock(hh*60 + mm), nil
}

// MustClock is ParseClock for constants; it panics on malformed input
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the time of day of t in t's location
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// Hour returns the hour component
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On returns the instant at this time of day on the calendar date of day, in loc
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, loc)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AutomationConfig holds a user's automated broadcast settings and rotation state
type AutomationConfig struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	IsActive           bool       `json:"is_active"`
	Days               DaySet     `json:"days"`
	StartHour          Clock      `json:"start_hour"`
	EndHour            Clock      `json:"end_hour"`
	IntervalMinutes    int        `json:"interval_minutes"`
	ShuffledProductIDs []string   `json:"shuffled_product_ids"`
	LastShuffleIndex   int        `json:"last_shuffle_index"`
	LastSentAt         *time.Time `json:"last_sent_at,omitempty"`
	Version            int64      `json:"version"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Default automation values, applied when a user has no stored config
const (
	DefaultStartHour       Clock = 8 * 60
	DefaultEndHour         Clock = 23 * 60
	DefaultIntervalMinutes       = 30
)

// DefaultAutomationConfig returns the config a user gets before saving any settings
func DefaultAutomationConfig(userID string) *AutomationConfig {
	days := make(DaySet, len(AllWeekdays))
	copy(days, AllWeekdays)
	return &AutomationConfig{
		UserID:          userID,
		IsActive:        false,
		Days:            days,
		StartHour:       DefaultStartHour,
		EndHour:         DefaultEndHour,
		IntervalMinutes: DefaultIntervalMinutes,
	}
}

// Interval returns the minimum spacing between automated sends
func (c *AutomationConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Rotation returns the persisted shuffle order and cursor
func (c *AutomationConfig) Rotation() RotationState {
	ids := make([]string, len(c.ShuffledProductIDs))
	copy(ids, c.ShuffledProductIDs)
	return RotationState{ShuffledProductIDs: ids, Cursor: c.LastShuffleIndex}
}

// ApplyRotation stores a rotation state back into the config
func (c *AutomationConfig) ApplyRotation(s RotationState) {
	c.ShuffledProductIDs = s.ShuffledProductIDs
	c.LastShuffleIndex = s.Cursor
}

// Validate checks the user-editable fields
func (c *AutomationConfig) Validate() error {
	if c.IntervalMinutes <= 0 {
		return fmt.Errorf("interval_minutes must be positive")
	}
	for _, d := range c.Days {
		if !d.Valid() {
			return fmt.Errorf("unknown weekday %q", d)
		}
	}
	if c.StartHour < 0 || c.StartHour >= 24*60 || c.EndHour < 0 || c.EndHour >= 24*60 {
		return fmt.Errorf("start_hour and end_hour must be within a day")
	}
	return nil
}

// RotationState is the persisted shuffle order plus the cursor into it.
// Invariant: 0 <= Cursor <= len(ShuffledProductIDs).
type RotationState struct {
	ShuffledProductIDs []string `json:"shuffled_product_ids"`
	Cursor             int      `json:"cursor"`
}

// Exhausted reports whether the order must be regenerated before the next read
func (s RotationState) Exhausted() bool {
	return len(s.ShuffledProductIDs) == 0 || s.Cursor >= len(s.ShuffledProductIDs)
}

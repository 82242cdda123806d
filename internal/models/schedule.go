package models

import "time"

// Schedule restricts when a campaign may act. The zero value allows every hour of every day.
type Schedule struct {
	Weekdays  []time.Weekday `json:"weekdays,omitempty"`
	StartHour int            `json:"start_hour"`
	EndHour   int            `json:"end_hour"` // exclusive; StartHour > EndHour wraps midnight
	Timezone  string         `json:"timezone,omitempty"`
}

// IsZero reports whether the schedule places no restriction at all.
func (s Schedule) IsZero() bool {
	return len(s.Weekdays) == 0 && s.StartHour == 0 && s.EndHour == 0 && s.Timezone == ""
}

func (s Schedule) location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s Schedule) allowsDay(d time.Weekday) bool {
	if len(s.Weekdays) == 0 {
		return true
	}
	for _, w := range s.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// InHourWindow reports whether hour lies in [start, end), wrapping when start > end.
// Equal bounds mean the whole day.
func InHourWindow(hour, start, end int) bool {
	switch {
	case start == end:
		return true
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}

// Allows reports whether the schedule permits acting at t.
func (s Schedule) Allows(t time.Time) bool {
	local := t.In(s.location())
	if !InHourWindow(local.Hour(), s.StartHour, s.EndHour) {
		return false
	}
	// A window that wraps midnight belongs to the day it opened on.
	day := local.Weekday()
	if s.StartHour > s.EndHour && local.Hour() < s.EndHour {
		day = local.AddDate(0, 0, -1).Weekday()
	}
	return s.allowsDay(day)
}

// NextOpen returns the earliest instant at or after t that the schedule allows.
func (s Schedule) NextOpen(t time.Time) time.Time {
	if s.Allows(t) {
		return t
	}
	loc := s.location()
	local := t.In(loc)
	cursor := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
	// Hour steps over eight days always reach an allowed slot if one exists.
	for i := 0; i < 24*8; i++ {
		cursor = cursor.Add(time.Hour)
		if s.Allows(cursor) {
			return cursor
		}
	}
	return t
}

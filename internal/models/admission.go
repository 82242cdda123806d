package models

import "time"

// AdmissionRecord holds the per user+platform counters owned by the admission controller.
type AdmissionRecord struct {
	UserID        string         `json:"user_id"`
	Platform      string         `json:"platform"`
	DailyCounts   map[string]int `json:"daily_counts"`
	HourlyCounts  map[string]int `json:"hourly_counts"`
	Day           string         `json:"day"`  // YYYY-MM-DD in the controller's zone
	Hour          string         `json:"hour"` // YYYY-MM-DDTHH in the controller's zone
	InCooldown    bool           `json:"in_cooldown"`
	CooldownUntil *time.Time     `json:"cooldown_until,omitempty"`
	LastActionAt  *time.Time     `json:"last_action_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func NewAdmissionRecord(userID, platform string, now time.Time) *AdmissionRecord {
	return &AdmissionRecord{
		UserID:       userID,
		Platform:     platform,
		DailyCounts:  map[string]int{},
		HourlyCounts: map[string]int{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HourlyTotal sums the hourly counts across all action kinds.
func (r *AdmissionRecord) HourlyTotal() int {
	total := 0
	for _, n := range r.HourlyCounts {
		total += n
	}
	return total
}

// ActionHistoryEntry is an immutable log line appended for every recorded action.
type ActionHistoryEntry struct {
	UserID     string         `json:"user_id"`
	Platform   string         `json:"platform"`
	ActionKind string         `json:"action_kind"`
	Target     string         `json:"target"`
	Success    bool           `json:"success"`
	Details    map[string]any `json:"details,omitempty"`
	At         time.Time      `json:"at"`
}

// DelayRange is a pacing window in seconds.
type DelayRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// PlatformProfile is the configured limit profile for one platform.
type PlatformProfile struct {
	DailyLimits     map[string]int        `json:"daily_limits" yaml:"daily_limits"`
	HourlyBurst     int                   `json:"hourly_burst" yaml:"hourly_burst"`
	Delays          map[string]DelayRange `json:"delays,omitempty" yaml:"delays,omitempty"`
	DefaultDelay    DelayRange            `json:"default_delay" yaml:"default_delay"`
	CooldownSeconds int                   `json:"cooldown_seconds" yaml:"cooldown_seconds"`
	ActiveStartHour int                   `json:"active_start_hour" yaml:"active_start_hour"`
	ActiveEndHour   int                   `json:"active_end_hour" yaml:"active_end_hour"`
}

// DelayFor returns the delay window for an action kind.
func (p PlatformProfile) DelayFor(kind string) DelayRange {
	if d, ok := p.Delays[kind]; ok && d.Max > 0 {
		return d
	}
	return p.DefaultDelay
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 9, cfg.ActiveStartHour)
	assert.Equal(t, 18, cfg.ActiveEndHour)
	assert.Equal(t, 120*time.Second, cfg.ActionTimeout)
	assert.Equal(t, "open", cfg.UnknownCondition)
	assert.Equal(t, time.UTC, cfg.Location())

	sched := cfg.DefaultSchedule()
	assert.Equal(t, 9, sched.StartHour)
	assert.Equal(t, 18, sched.EndHour)
	assert.Len(t, sched.Weekdays, 5)
	assert.False(t, sched.Allows(time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)), "saturday")
	assert.True(t, sched.Allows(time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)))
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("WORKFLOW_ACTIVE_HOURS_START", "08:30")
	t.Setenv("WORKFLOW_ACTIVE_HOURS_END", "20")
	t.Setenv("APPROVER_USER_IDS", " alice, ,bob ")
	t.Setenv("ADMIN_USER_IDS", "root")
	t.Setenv("ACTION_MAX_RETRIES", "not-a-number")
	t.Setenv("FAILURE_RATE_THRESHOLD", "0.25")
	t.Setenv("DRY_RUN_MODE", "true")
	t.Setenv("WORKFLOW_TIMEZONE", "Mars/Olympus")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 8, cfg.ActiveStartHour)
	assert.Equal(t, 20, cfg.ActiveEndHour)
	assert.Equal(t, []string{"alice", "bob"}, cfg.ApproverUserIDs)
	assert.Equal(t, 2, cfg.ActionMaxRetries)
	assert.Equal(t, 0.25, cfg.FailureRateThreshold)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, time.UTC, cfg.Location())

	assert.True(t, cfg.IsApprover("bob"))
	assert.True(t, cfg.IsApprover("root"), "admins may approve")
	assert.False(t, cfg.IsAdmin("bob"))
}

func TestParseHour(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"09:00", 9},
		{"7", 7},
		{" 23:59 ", 23},
		{"24", 24},
		{"25", 5},
		{"-1", 5},
		{"noon", 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseHour(tt.in, 5), tt.in)
	}
}

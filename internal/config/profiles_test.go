package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/outreach-hub/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLimits(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testBase() ProfileSet {
	return DefaultProfiles(&Config{
		LinkedInConnectionsPerDay: 20,
		LinkedInMessagesPerDay:    50,
		TwitterFollowsPerDay:      50,
		TwitterDMsPerDay:          50,
		InstagramFollowsPerDay:    30,
		InstagramDMsPerDay:        30,
		DailyEmailLimit:           100,
	})
}

func TestDefaultProfiles(t *testing.T) {
	set := testBase()

	type shape struct {
		burst, cooldown, start, end int
		delay                       models.DelayRange
	}
	want := map[string]shape{
		models.PlatformLinkedIn:  {10, 1800, 8, 20, models.DelayRange{Min: 120, Max: 600}},
		models.PlatformTwitter:   {15, 1200, 7, 23, models.DelayRange{Min: 60, Max: 300}},
		models.PlatformInstagram: {8, 2400, 9, 21, models.DelayRange{Min: 90, Max: 400}},
		models.PlatformEmail:     {15, 900, 6, 22, models.DelayRange{Min: 60, Max: 180}},
	}
	require.Len(t, set.Platforms, len(want))
	for name, w := range want {
		p := set.Platforms[name]
		got := shape{p.HourlyBurst, p.CooldownSeconds, p.ActiveStartHour, p.ActiveEndHour, p.DefaultDelay}
		assert.Equal(t, w, got, name)
	}

	assert.Equal(t, map[string]int{"connect": 20, "message": 50, "view_profile": 100, "like": 50, "comment": 20},
		set.Platforms[models.PlatformLinkedIn].DailyLimits)
	assert.Equal(t, map[string]int{"follow": 50, "dm": 50, "tweet": 20, "like": 100, "retweet": 50},
		set.Platforms[models.PlatformTwitter].DailyLimits)
	assert.Equal(t, map[string]int{"follow": 30, "dm": 30, "like": 100, "comment": 30},
		set.Platforms[models.PlatformInstagram].DailyLimits)
	assert.Equal(t, map[string]int{"send_email": 100}, set.Platforms[models.PlatformEmail].DailyLimits)

	custom := DefaultProfiles(&Config{LinkedInConnectionsPerDay: 5})
	assert.Equal(t, 5, custom.Platforms[models.PlatformLinkedIn].DailyLimits[models.ActionConnect])
}

func TestLoadProfiles_MissingFileKeepsBase(t *testing.T) {
	base := testBase()

	set, err := LoadProfiles(filepath.Join(t.TempDir(), "nope.yaml"), base)
	require.NoError(t, err)
	assert.Equal(t, base, set)
}

func TestLoadProfiles_MergesOverBase(t *testing.T) {
	path := writeLimits(t, t.TempDir(), `
platforms:
  linkedin:
    daily_limits:
      connect: 10
    hourly_burst: 5
  mastodon:
    daily_limits:
      follow: 40
    active_start_hour: 8
    active_end_hour: 20
users:
  vip:
    linkedin:
      daily_limits:
        connect: 60
`)

	set, err := LoadProfiles(path, testBase())
	require.NoError(t, err)

	li := set.Platforms[models.PlatformLinkedIn]
	assert.Equal(t, 10, li.DailyLimits[models.ActionConnect])
	assert.Equal(t, 50, li.DailyLimits[models.ActionMessage], "unset kinds keep the base ceiling")
	assert.Equal(t, 5, li.HourlyBurst)
	assert.Equal(t, 1800, li.CooldownSeconds)
	assert.Equal(t, models.DelayRange{Min: 120, Max: 600}, li.DefaultDelay)
	assert.Equal(t, 8, li.ActiveStartHour)

	assert.Equal(t, 40, set.Platforms["mastodon"].DailyLimits[models.ActionFollow])
	assert.Contains(t, set.Platforms, models.PlatformEmail)

	profiles := NewProfiles(set)
	vip, ok := profiles.Lookup("vip", models.PlatformLinkedIn)
	require.True(t, ok)
	assert.Equal(t, 60, vip.DailyLimits[models.ActionConnect])
	assert.Equal(t, 5, vip.HourlyBurst)

	other, ok := profiles.Lookup("someone", models.PlatformLinkedIn)
	require.True(t, ok)
	assert.Equal(t, 10, other.DailyLimits[models.ActionConnect])

	_, ok = profiles.Lookup("vip", "myspace")
	assert.False(t, ok)

	assert.Equal(t, []string{"email", "instagram", "linkedin", "mastodon", "twitter"}, profiles.Platforms())
}

func TestLoadProfiles_InvalidYAML(t *testing.T) {
	base := testBase()
	path := writeLimits(t, t.TempDir(), "platforms: [not, a, map")

	set, err := LoadProfiles(path, base)
	require.Error(t, err)
	assert.Equal(t, base, set)
}

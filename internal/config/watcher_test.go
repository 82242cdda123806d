package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/outreach-hub/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestProfileWatcher_ReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := writeLimits(t, t.TempDir(), `
platforms:
  linkedin:
    daily_limits:
      connect: 10
`)
	base := testBase()
	set, err := LoadProfiles(path, base)
	require.NoError(t, err)
	profiles := NewProfiles(set)

	w := NewProfileWatcher(path, base, profiles, zap.NewNop())
	w.debounce = 20 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	writeLimits(t, filepath.Dir(path), `
platforms:
  linkedin:
    daily_limits:
      connect: 3
`)

	assert.Eventually(t, func() bool {
		p, _ := profiles.Lookup("", models.PlatformLinkedIn)
		return p.DailyLimits[models.ActionConnect] == 3
	}, 3*time.Second, 20*time.Millisecond)
}

func TestProfileWatcher_KeepsProfilesOnBadFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := writeLimits(t, dir, "platforms: {}\n")
	base := testBase()
	profiles := NewProfiles(base)

	w := NewProfileWatcher(path, base, profiles, zap.NewNop())
	w.debounce = 10 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))

	writeLimits(t, dir, "platforms: [broken")
	time.Sleep(200 * time.Millisecond)
	w.Stop()
	w.Stop()

	p, ok := profiles.Lookup("", models.PlatformLinkedIn)
	require.True(t, ok)
	assert.Equal(t, 20, p.DailyLimits[models.ActionConnect])
}

package admission

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PlatformStats is a user's current standing on one platform.
type PlatformStats struct {
	DailyCounts   map[string]int `json:"daily_counts"`
	HourlyCounts  map[string]int `json:"hourly_counts"`
	InCooldown    bool           `json:"in_cooldown"`
	CooldownUntil *time.Time     `json:"cooldown_until,omitempty"`
	LastActionAt  *time.Time     `json:"last_action_at,omitempty"`
}

// UserStats returns the counters of every platform the user has acted on, keyed by platform.
// Counters are rolled over to the current day and hour before they are reported.
func (c *Controller) UserStats(ctx context.Context, userID string) (map[string]PlatformStats, error) {
	records, err := c.store.ListRecords(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	out := make(map[string]PlatformStats, len(records))
	for i := range records {
		rec := &records[i]
		if rec.DailyCounts == nil {
			rec.DailyCounts = map[string]int{}
		}
		if rec.HourlyCounts == nil {
			rec.HourlyCounts = map[string]int{}
		}
		c.rollover(rec, now)
		out[rec.Platform] = PlatformStats{
			DailyCounts:   rec.DailyCounts,
			HourlyCounts:  rec.HourlyCounts,
			InCooldown:    rec.InCooldown,
			CooldownUntil: rec.CooldownUntil,
			LastActionAt:  rec.LastActionAt,
		}
	}
	return out, nil
}

// ResetUserStats clears a user's counters and cooldown on one platform, or on all of them when
// platform is empty. The action history is kept.
func (c *Controller) ResetUserStats(ctx context.Context, userID, platform string) error {
	platforms := []string{platform}
	if platform == "" {
		records, err := c.store.ListRecords(ctx, userID)
		if err != nil {
			return err
		}
		platforms = platforms[:0]
		for _, rec := range records {
			platforms = append(platforms, rec.Platform)
		}
	}

	for _, p := range platforms {
		if err := c.resetPlatform(ctx, userID, p); err != nil {
			return err
		}
	}
	c.log.Info("admission stats reset",
		zap.String("user_id", userID),
		zap.Strings("platforms", platforms),
	)
	return nil
}

func (c *Controller) resetPlatform(ctx context.Context, userID, platform string) error {
	unlock, err := c.locks.Lock(ctx, recordKey(userID, platform))
	if err != nil {
		return err
	}
	defer unlock()
	return c.store.DeleteRecord(ctx, userID, platform)
}

// Package admission decides whether an outreach action may run now and paces the ones that may.
//
// Two layers compose here. CanProceed is a hard gate over per user+platform counters
// (cooldown, active hours, daily ceiling per action kind, hourly burst across kinds).
// CalculateDelay is advisory pacing that spreads admitted actions out like a person would.
package admission

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/outreach-hub/backend/internal/lock"
	"github.com/outreach-hub/backend/internal/models"
	"go.uber.org/zap"
)

// Denial reasons
const (
	ReasonCooldown     = "cooldown active"
	ReasonOutsideHours = "outside active hours"
	ReasonDailyLimit   = "daily limit reached"
	ReasonHourlyLimit  = "hourly limit reached, cooldown started"
)

// DefaultHistoryLimit bounds the per user+platform action history.
const DefaultHistoryLimit = 1000

// Decision is the outcome of an admission check. A denial is not an error.
type Decision struct {
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason,omitempty"`
	WaitSeconds int    `json:"wait_seconds"`
}

// Store persists admission records and action history.
// GetRecord returns a nil record and nil error when none exists yet.
type Store interface {
	GetRecord(ctx context.Context, userID, platform string) (*models.AdmissionRecord, error)
	SaveRecord(ctx context.Context, rec *models.AdmissionRecord) error
	AppendHistory(ctx context.Context, entry models.ActionHistoryEntry, keep int) error
	History(ctx context.Context, userID, platform string, limit int) ([]models.ActionHistoryEntry, error)
	ListRecords(ctx context.Context, userID string) ([]models.AdmissionRecord, error)
	DeleteRecord(ctx context.Context, userID, platform string) error
}

// ProfileSource resolves the effective limit profile for a user on a platform.
type ProfileSource interface {
	Lookup(userID, platform string) (models.PlatformProfile, bool)
}

type Controller struct {
	store        Store
	profiles     ProfileSource
	locks        lock.Locker
	loc          *time.Location
	now          func() time.Time
	historyLimit int
	defaultDelay models.DelayRange
	log          *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(c *Controller) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

func WithLocker(l lock.Locker) Option {
	return func(c *Controller) { c.locks = l }
}

func WithHistoryLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithDefaultDelay sets the pacing window used for platforms without a profile.
func WithDefaultDelay(d models.DelayRange) Option {
	return func(c *Controller) { c.defaultDelay = d }
}

func NewController(store Store, profiles ProfileSource, log *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:        store,
		profiles:     profiles,
		locks:        lock.NewKeyedMutex(),
		loc:          time.UTC,
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
		defaultDelay: models.DelayRange{Min: 120, Max: 600},
		log:          log,
		rng:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func recordKey(userID, platform string) string {
	return "admission:" + userID + ":" + platform
}

// CanProceed checks, in order: cooldown, active hours, the kind's daily ceiling and the hourly
// burst ceiling across all kinds. Tripping the burst ceiling starts a cooldown that blocks every
// kind on the platform for the user.
func (c *Controller) CanProceed(ctx context.Context, userID, platform, kind string) (Decision, error) {
	profile, ok := c.profiles.Lookup(userID, platform)
	if !ok {
		return Decision{Allowed: true}, nil
	}

	unlock, err := c.locks.Lock(ctx, recordKey(userID, platform))
	if err != nil {
		return Decision{}, err
	}
	defer unlock()

	now := c.now()
	rec, dirty, err := c.load(ctx, userID, platform, now)
	if err != nil {
		return Decision{}, err
	}

	decision := c.evaluate(rec, profile, kind, now)
	if decision.Reason == ReasonHourlyLimit {
		dirty = true
	}
	if dirty {
		rec.UpdatedAt = now
		if err := c.store.SaveRecord(ctx, rec); err != nil {
			return Decision{}, err
		}
	}

	if !decision.Allowed {
		c.log.Debug("admission denied",
			zap.String("user_id", userID),
			zap.String("platform", platform),
			zap.String("kind", kind),
			zap.String("reason", decision.Reason),
			zap.Int("wait_seconds", decision.WaitSeconds),
		)
	}
	return decision, nil
}

func (c *Controller) evaluate(rec *models.AdmissionRecord, profile models.PlatformProfile, kind string, now time.Time) Decision {
	if rec.InCooldown && rec.CooldownUntil != nil && now.Before(*rec.CooldownUntil) {
		return Decision{Reason: ReasonCooldown, WaitSeconds: ceilSeconds(rec.CooldownUntil.Sub(now))}
	}

	local := now.In(c.loc)
	if !models.InHourWindow(local.Hour(), profile.ActiveStartHour, profile.ActiveEndHour) {
		return Decision{Reason: ReasonOutsideHours, WaitSeconds: secondsUntilHour(local, profile.ActiveStartHour)}
	}

	if limit, ok := profile.DailyLimits[kind]; ok && rec.DailyCounts[kind] >= limit {
		return Decision{Reason: ReasonDailyLimit, WaitSeconds: secondsUntilMidnight(local)}
	}

	if profile.HourlyBurst > 0 && rec.HourlyTotal() >= profile.HourlyBurst {
		c.startCooldown(rec, profile, now)
		return Decision{Reason: ReasonHourlyLimit, WaitSeconds: profile.CooldownSeconds}
	}

	return Decision{Allowed: true}
}

func (c *Controller) startCooldown(rec *models.AdmissionRecord, profile models.PlatformProfile, now time.Time) {
	until := now.Add(time.Duration(profile.CooldownSeconds) * time.Second)
	rec.InCooldown = true
	rec.CooldownUntil = &until
	c.log.Info("admission cooldown started",
		zap.String("user_id", rec.UserID),
		zap.String("platform", rec.Platform),
		zap.Time("until", until),
	)
}

// RecordAction counts an attempted dispatch, successful or not, and appends it to the history.
func (c *Controller) RecordAction(ctx context.Context, userID, platform, kind, target string, success bool, details map[string]any) error {
	unlock, err := c.locks.Lock(ctx, recordKey(userID, platform))
	if err != nil {
		return err
	}
	defer unlock()

	now := c.now()
	rec, _, err := c.load(ctx, userID, platform, now)
	if err != nil {
		return err
	}

	rec.DailyCounts[kind]++
	rec.HourlyCounts[kind]++
	rec.LastActionAt = &now
	rec.UpdatedAt = now

	if profile, ok := c.profiles.Lookup(userID, platform); ok && profile.HourlyBurst > 0 {
		if !rec.InCooldown && rec.HourlyTotal() >= profile.HourlyBurst {
			c.startCooldown(rec, profile, now)
		}
	}

	if err := c.store.SaveRecord(ctx, rec); err != nil {
		return err
	}

	return c.store.AppendHistory(ctx, models.ActionHistoryEntry{
		UserID:     userID,
		Platform:   platform,
		ActionKind: kind,
		Target:     target,
		Success:    success,
		Details:    details,
		At:         now,
	}, c.historyLimit)
}

// RemainingLimits returns ceiling minus today's count per kind, floored at zero.
// It does not take the record lock, so the answer may be slightly stale.
func (c *Controller) RemainingLimits(ctx context.Context, userID, platform string) (map[string]int, error) {
	profile, ok := c.profiles.Lookup(userID, platform)
	if !ok {
		return map[string]int{}, nil
	}

	rec, _, err := c.load(ctx, userID, platform, c.now())
	if err != nil {
		return nil, err
	}

	remaining := make(map[string]int, len(profile.DailyLimits))
	for kind, limit := range profile.DailyLimits {
		left := limit - rec.DailyCounts[kind]
		if left < 0 {
			left = 0
		}
		remaining[kind] = left
	}
	return remaining, nil
}

// History returns the newest entries first.
func (c *Controller) History(ctx context.Context, userID, platform string, limit int) ([]models.ActionHistoryEntry, error) {
	if limit <= 0 || limit > c.historyLimit {
		limit = c.historyLimit
	}
	return c.store.History(ctx, userID, platform, limit)
}

// load fetches the record (creating it on first use) and applies day/hour/cooldown rollover.
// dirty reports whether the record differs from what is stored.
func (c *Controller) load(ctx context.Context, userID, platform string, now time.Time) (*models.AdmissionRecord, bool, error) {
	rec, err := c.store.GetRecord(ctx, userID, platform)
	if err != nil {
		return nil, false, err
	}
	dirty := false
	if rec == nil {
		rec = models.NewAdmissionRecord(userID, platform, now)
		dirty = true
	}
	if rec.DailyCounts == nil {
		rec.DailyCounts = map[string]int{}
	}
	if rec.HourlyCounts == nil {
		rec.HourlyCounts = map[string]int{}
	}
	if c.rollover(rec, now) {
		dirty = true
	}
	return rec, dirty, nil
}

func (c *Controller) rollover(rec *models.AdmissionRecord, now time.Time) bool {
	local := now.In(c.loc)
	day := local.Format("2006-01-02")
	hour := local.Format("2006-01-02T15")
	changed := false

	if rec.Day != day {
		rec.Day = day
		rec.DailyCounts = map[string]int{}
		changed = true
	}
	if rec.Hour != hour {
		rec.Hour = hour
		rec.HourlyCounts = map[string]int{}
		changed = true
	}
	// An expired cooldown opens a fresh burst window.
	if rec.InCooldown && (rec.CooldownUntil == nil || !now.Before(*rec.CooldownUntil)) {
		rec.InCooldown = false
		rec.CooldownUntil = nil
		rec.HourlyCounts = map[string]int{}
		changed = true
	}
	return changed
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func secondsUntilMidnight(local time.Time) int {
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, local.Location())
	return ceilSeconds(next.Sub(local))
}

// secondsUntilHour returns the wait until the next time the local clock reads hour:00.
func secondsUntilHour(local time.Time, hour int) int {
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, local.Location())
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, local.Location())
	}
	return ceilSeconds(next.Sub(local))
}

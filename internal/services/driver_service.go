package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/outreach-hub/backend/internal/admission"
	"github.com/outreach-hub/backend/internal/dispatch"
	"github.com/outreach-hub/backend/internal/events"
	"github.com/outreach-hub/backend/internal/lock"
	"github.com/outreach-hub/backend/internal/models"
	"github.com/outreach-hub/backend/internal/repositories"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Gate is the admission surface a driver needs.
type Gate interface {
	CanProceed(ctx context.Context, userID, platform, kind string) (admission.Decision, error)
	RecordAction(ctx context.Context, userID, platform, kind, target string, success bool, details map[string]any) error
	CalculateDelay(platform, kind string) int
	CalculateDelayRange(minSec, maxSec int) int
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) dispatch.Result
}

type DriverOptions struct {
	Concurrency          int
	Idle                 time.Duration // wait when a campaign has nothing to hand out
	FailureRateThreshold float64
	FailureMinSample     int
	StorageRetries       int
	StorageBackoff       time.Duration
	Now                  func() time.Time
}

// DriverService is the loop that moves running campaigns forward: next action, admission,
// dispatch, result. All waiting happens here, between state machine calls.
type DriverService struct {
	campaigns  *CampaignService
	gate       Gate
	dispatcher Dispatcher
	locks      lock.Locker
	publisher  events.Publisher
	opts       DriverOptions
	log        *zap.Logger

	mu      sync.Mutex
	nextRun map[uuid.UUID]time.Time
}

func NewDriverService(
	campaigns *CampaignService,
	gate Gate,
	dispatcher Dispatcher,
	locks lock.Locker,
	publisher events.Publisher,
	opts DriverOptions,
	log *zap.Logger,
) *DriverService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Idle <= 0 {
		opts.Idle = 30 * time.Second
	}
	if opts.StorageRetries <= 0 {
		opts.StorageRetries = 3
	}
	if opts.StorageBackoff <= 0 {
		opts.StorageBackoff = 200 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &DriverService{
		campaigns:  campaigns,
		gate:       gate,
		dispatcher: dispatcher,
		locks:      locks,
		publisher:  publisher,
		opts:       opts,
		log:        log,
		nextRun:    make(map[uuid.UUID]time.Time),
	}
}

func driverLeaseKey(id uuid.UUID) string {
	return "driver:" + id.String()
}

// admissionSlotKey serializes check-dispatch-record for one user on one platform, so two
// campaigns of the same user cannot both pass the gate on the last unit of a ceiling.
func admissionSlotKey(userID, platform string) string {
	return "admission-slot:" + userID + ":" + platform
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return time.Second
	}
	return time.Duration(n) * time.Second
}

// Step performs at most one action for the campaign and returns how long to wait before the
// next step. A campaign leased by another driver is left alone.
func (d *DriverService) Step(ctx context.Context, id uuid.UUID) (time.Duration, error) {
	release, err := d.locks.TryLock(ctx, driverLeaseKey(id))
	if errors.Is(err, lock.ErrNotAcquired) {
		return d.opts.Idle, nil
	}
	if err != nil {
		return 0, err
	}
	defer release()

	c, err := d.campaigns.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if c.Status != models.CampaignStatusRunning {
		return 0, ErrCampaignNotRunning
	}

	now := d.opts.Now()
	if !c.Schedule.Allows(now) {
		wait := c.Schedule.NextOpen(now).Sub(now)
		d.log.Debug("campaign outside schedule",
			zap.String("campaign_id", id.String()), zap.Duration("wait", wait))
		return wait, nil
	}

	action, err := d.campaigns.GetNextAction(ctx, id)
	if err != nil {
		return 0, err
	}
	if action == nil {
		return d.opts.Idle, nil
	}

	releaseSlot, err := d.locks.Lock(ctx, admissionSlotKey(c.CreatedBy, action.Platform))
	if err != nil {
		return 0, err
	}
	defer releaseSlot()

	decision, err := d.gate.CanProceed(ctx, c.CreatedBy, action.Platform, action.Kind)
	if err != nil {
		return 0, err
	}
	if !decision.Allowed {
		d.publish(ctx, events.Event{Type: events.EventAdmissionDenied, Payload: map[string]any{
			"campaign_id":  id.String(),
			"user_id":      c.CreatedBy,
			"platform":     action.Platform,
			"kind":         action.Kind,
			"reason":       decision.Reason,
			"wait_seconds": decision.WaitSeconds,
		}})
		return seconds(decision.WaitSeconds), nil
	}

	if _, err := d.campaigns.MarkActionStarted(ctx, id, action.ID); err != nil {
		return 0, err
	}

	req := dispatch.Request{
		ActionID:   action.ID.String(),
		CampaignID: id.String(),
		UserID:     c.CreatedBy,
		Kind:       action.Kind,
		Platform:   action.Platform,
		TargetID:   action.TargetID,
		TargetRef:  action.TargetRef,
		Message:    action.Message,
	}
	if t := c.FindTarget(action.TargetID); t != nil {
		req.TargetName = t.Name
	}
	res := d.dispatcher.Dispatch(ctx, req)

	// The attempt happened; bookkeeping must finish even if the caller is shutting down.
	ctx = context.WithoutCancel(ctx)

	targetRef := action.TargetRef
	if targetRef == "" {
		targetRef = action.TargetID
	}
	details := map[string]any{"campaign_id": id.String(), "action_id": action.ID.String()}
	if res.Error != "" {
		details["error"] = res.Error
	}
	admissionErr := d.withBackoff(ctx, "admission record", action.ID, anyError, func() error {
		return d.gate.RecordAction(ctx, c.CreatedBy, action.Platform, action.Kind, targetRef, res.Success, details)
	})
	releaseSlot()
	if admissionErr != nil {
		d.log.Error("failed to record admission action", zap.String("action_id", action.ID.String()), zap.Error(admissionErr))
	}

	recorded, err := d.recordResult(ctx, id, action.ID, res)
	if err != nil {
		return 0, err
	}
	if admissionErr != nil {
		return 0, fmt.Errorf("record admission for action %s: %w", action.ID, admissionErr)
	}

	if !res.Success {
		d.log.Warn("action failed",
			zap.String("campaign_id", id.String()),
			zap.String("action_id", action.ID.String()),
			zap.String("error", res.Error),
		)
		if paused := d.checkFailureRate(ctx, id, action.PhaseIndex); paused {
			return d.opts.Idle, nil
		}
		if recorded.CanRetry() {
			if _, err := d.campaigns.RequeueAction(ctx, id, action.ID); err != nil {
				d.log.Warn("requeue failed", zap.String("action_id", action.ID.String()), zap.Error(err))
			}
		}
	}

	phase := c.Phases[action.PhaseIndex]
	if phase.DelayMaxSeconds > 0 {
		return seconds(d.gate.CalculateDelayRange(phase.DelayMinSeconds, phase.DelayMaxSeconds)), nil
	}
	return seconds(d.gate.CalculateDelay(action.Platform, action.Kind)), nil
}

// recordResult retries storage failures with doubling backoff. Invariant violations are
// returned immediately.
func (d *DriverService) recordResult(ctx context.Context, campaignID, actionID uuid.UUID, res dispatch.Result) (*models.Action, error) {
	var a *models.Action
	err := d.withBackoff(ctx, "action result", actionID, isStorageError, func() error {
		var err error
		a, err = d.campaigns.RecordActionResult(ctx, campaignID, actionID, res.Success, res.Data, res.Error)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func isStorageError(err error) bool { return errors.Is(err, ErrStorage) }

func anyError(error) bool { return true }

// withBackoff runs fn up to StorageRetries+1 times, doubling the pause between attempts, for as
// long as retryable accepts the error.
func (d *DriverService) withBackoff(ctx context.Context, what string, actionID uuid.UUID, retryable func(error) bool, fn func() error) error {
	backoff := d.opts.StorageBackoff
	var lastErr error
	for attempt := 0; attempt <= d.opts.StorageRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		d.log.Warn("retrying write",
			zap.String("write", what),
			zap.String("action_id", actionID.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if attempt == d.opts.StorageRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

// checkFailureRate pauses the campaign when the phase fails too often.
func (d *DriverService) checkFailureRate(ctx context.Context, id uuid.UUID, phase int) bool {
	if d.opts.FailureRateThreshold <= 0 {
		return false
	}
	rate, sample, err := d.campaigns.FailureRate(ctx, id, phase)
	if err != nil || sample < d.opts.FailureMinSample || rate <= d.opts.FailureRateThreshold {
		return false
	}
	if _, err := d.campaigns.Pause(ctx, id); err != nil {
		d.log.Error("failed to pause campaign over failure rate", zap.String("campaign_id", id.String()), zap.Error(err))
		return false
	}
	d.log.Warn("campaign paused: phase failure rate over threshold",
		zap.String("campaign_id", id.String()),
		zap.Int("phase", phase),
		zap.Float64("rate", rate),
		zap.Int("sample", sample),
	)
	return true
}

func (d *DriverService) publish(ctx context.Context, ev events.Event) {
	if err := d.publisher.Publish(ctx, events.StreamCampaign, ev); err != nil {
		d.log.Warn("failed to publish event", zap.String("type", ev.Type), zap.Error(err))
	}
}

func (d *DriverService) campaignsWithStatus(ctx context.Context, status string) ([]models.Campaign, error) {
	var all []models.Campaign
	for offset := 0; ; offset += 100 {
		page, err := d.campaigns.List(ctx, repositories.CampaignFilter{Status: &status, Limit: 100, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < 100 {
			return all, nil
		}
	}
}

// Tick steps every running campaign that is due, in parallel up to the configured concurrency.
func (d *DriverService) Tick(ctx context.Context) error {
	running, err := d.campaignsWithStatus(ctx, models.CampaignStatusRunning)
	if err != nil {
		return err
	}

	now := d.opts.Now()
	live := make(map[uuid.UUID]bool, len(running))
	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)

	for _, c := range running {
		id := c.ID
		live[id] = true
		if !d.due(id, now) {
			continue
		}
		g.Go(func() error {
			wait, err := d.Step(ctx, id)
			if err != nil {
				if IsInvariantViolation(err) {
					d.log.Debug("campaign skipped", zap.String("campaign_id", id.String()), zap.Error(err))
				} else {
					d.log.Error("campaign step failed", zap.String("campaign_id", id.String()), zap.Error(err))
				}
				wait = d.opts.Idle
			}
			d.schedule(id, d.opts.Now().Add(wait))
			return nil
		})
	}
	_ = g.Wait()

	d.mu.Lock()
	for id := range d.nextRun {
		if !live[id] {
			delete(d.nextRun, id)
		}
	}
	d.mu.Unlock()
	return nil
}

// Scheduled returns how many running campaigns the driver is tracking.
func (d *DriverService) Scheduled() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.nextRun)
}

func (d *DriverService) due(id uuid.UUID, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	next, ok := d.nextRun[id]
	return !ok || !now.Before(next)
}

func (d *DriverService) schedule(id uuid.UUID, at time.Time) {
	d.mu.Lock()
	d.nextRun[id] = at
	d.mu.Unlock()
}

// Watchdog force-fails in-flight actions older than maxAge on running and paused campaigns.
func (d *DriverService) Watchdog(ctx context.Context, maxAge time.Duration) (int, error) {
	total := 0
	for _, status := range []string{models.CampaignStatusRunning, models.CampaignStatusPaused} {
		campaigns, err := d.campaignsWithStatus(ctx, status)
		if err != nil {
			return total, err
		}
		for _, c := range campaigns {
			n, err := d.campaigns.ReapStaleActions(ctx, c.ID, maxAge)
			if err != nil {
				d.log.Error("stale action sweep failed", zap.String("campaign_id", c.ID.String()), zap.Error(err))
				continue
			}
			total += n
		}
	}
	return total, nil
}

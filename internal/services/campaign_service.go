package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/outreach-hub/backend/internal/events"
	"github.com/outreach-hub/backend/internal/lock"
	"github.com/outreach-hub/backend/internal/models"
	"github.com/outreach-hub/backend/internal/repositories"
	"github.com/outreach-hub/backend/internal/requestid"
	"go.uber.org/zap"
)

// CampaignStore is the durable campaign record. Update must be atomic per campaign and reject
// stale versions.
type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	List(ctx context.Context, f repositories.CampaignFilter) ([]models.Campaign, error)
}

// Discoverer fills in targets for campaigns submitted with only a discovery query.
type Discoverer interface {
	Discover(ctx context.Context, d models.Discovery) ([]models.Target, error)
}

// Identities that may never approve a campaign.
var automaticActors = map[string]bool{
	"":          true,
	"system":    true,
	"auto":      true,
	"automatic": true,
	"driver":    true,
	"worker":    true,
}

type CampaignOptions struct {
	MaxRetries      int
	ConditionPolicy string
	Discoverer      Discoverer
	Renderer        Renderer
	DefaultSchedule models.Schedule // applied to campaigns created without one
	Now             func() time.Time
}

// CampaignService owns the campaign lifecycle and the phase/target/action state machine.
// Every mutating call loads the campaign under its lock, applies the change and persists it
// before returning; a failed write leaves the stored campaign untouched.
type CampaignService struct {
	store      CampaignStore
	locks      lock.Locker
	publisher  events.Publisher
	discoverer Discoverer
	renderer   Renderer
	schedule   models.Schedule
	policy     string
	maxRetries int
	now        func() time.Time
	log        *zap.Logger
}

func NewCampaignService(
	store CampaignStore,
	locks lock.Locker,
	publisher events.Publisher,
	opts CampaignOptions,
	log *zap.Logger,
) *CampaignService {
	s := &CampaignService{
		store:      store,
		locks:      locks,
		publisher:  publisher,
		discoverer: opts.Discoverer,
		renderer:   opts.Renderer,
		schedule:   opts.DefaultSchedule,
		policy:     opts.ConditionPolicy,
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
		log:        log,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.renderer == nil {
		s.renderer = PlaceholderRenderer{}
	}
	if s.policy != ConditionPolicyClosed {
		s.policy = ConditionPolicyOpen
	}
	if s.maxRetries < 0 {
		s.maxRetries = 0
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// mutation collects what one locked change did so it can be persisted and announced.
type mutation struct {
	now    time.Time
	dirty  bool
	events []events.Event
	reqID  zap.Field
}

func (m *mutation) touch() { m.dirty = true }

func (m *mutation) emit(eventType string, payload map[string]any) {
	m.events = append(m.events, events.Event{Type: eventType, Payload: payload})
}

func campaignLockKey(id uuid.UUID) string {
	return "campaign:" + id.String()
}

func (s *CampaignService) load(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load campaign %s: %w", ErrStorage, id, err)
	}
	return c, nil
}

// mutate runs fn against the freshly loaded campaign while holding its lock and persists the
// result if fn changed anything.
func (s *CampaignService) mutate(ctx context.Context, id uuid.UUID, fn func(c *models.Campaign, m *mutation) error) (*models.Campaign, error) {
	unlock, err := s.locks.Lock(ctx, campaignLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	m := &mutation{now: s.now(), reqID: requestid.Field(ctx)}
	if err := fn(c, m); err != nil {
		return nil, err
	}
	if !m.dirty {
		return c, nil
	}

	c.UpdatedAt = m.now
	if err := s.store.Update(ctx, c); err != nil {
		s.log.Error("campaign write failed", zap.String("campaign_id", id.String()), m.reqID, zap.Error(err))
		return nil, fmt.Errorf("%w: save campaign %s: %w", ErrStorage, id, err)
	}

	for _, ev := range m.events {
		if err := s.publisher.Publish(ctx, events.StreamCampaign, ev); err != nil {
			s.log.Warn("failed to publish campaign event", zap.String("type", ev.Type), zap.Error(err))
		}
	}
	return c, nil
}

// transition moves c to status `to` if the lifecycle graph allows it.
func (s *CampaignService) transition(c *models.Campaign, m *mutation, to string) error {
	if !models.IsValidCampaignTransition(c.Status, to) {
		if models.IsTerminalCampaignStatus(c.Status) {
			return fmt.Errorf("%w: %s is %s", ErrCampaignTerminal, c.ID, c.Status)
		}
		return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, c.Status, to)
	}

	old := c.Status
	c.Status = to
	m.touch()
	m.emit(events.EventCampaignStatusChanged, map[string]any{
		"campaign_id": c.ID.String(),
		"user_id":     c.CreatedBy,
		"old_status":  old,
		"new_status":  to,
	})
	s.log.Info("campaign status changed",
		zap.String("campaign_id", c.ID.String()),
		zap.String("old_status", old),
		zap.String("new_status", to),
		m.reqID,
	)
	return nil
}

func (s *CampaignService) validate(c *models.Campaign) error {
	for i, p := range c.Phases {
		if p.Platform == "" || p.ActionKind == "" {
			return fmt.Errorf("%w: phase %d needs a platform and an action kind", ErrValidation, i)
		}
		if p.DelayMinSeconds < 0 || p.DelayMaxSeconds < 0 || p.DelayMinSeconds > p.DelayMaxSeconds {
			return fmt.Errorf("%w: phase %d has an invalid delay range", ErrValidation, i)
		}
		if !KnownCondition(p.Condition) {
			if s.policy == ConditionPolicyClosed {
				return fmt.Errorf("%w: phase %d has unknown condition %q", ErrValidation, i, p.Condition)
			}
			s.log.Warn("unknown phase condition will match every target",
				zap.Int("phase", i), zap.String("condition", p.Condition))
		}
	}
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate target id %q", ErrValidation, t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

func normalizeTargets(targets []models.Target, max int) []models.Target {
	if max > 0 && len(targets) > max {
		targets = targets[:max]
	}
	for i := range targets {
		if targets[i].ID == "" {
			targets[i].ID = uuid.NewString()
		}
		targets[i].Status = models.TargetStatusPending
		targets[i].CurrentPhase = 0
	}
	return targets
}

// Create stores a new draft campaign owned by userID.
func (s *CampaignService) Create(ctx context.Context, userID string, c *models.Campaign) error {
	c.Targets = normalizeTargets(c.Targets, c.Discovery.MaxTargets)
	if err := s.validate(c); err != nil {
		return err
	}

	now := s.now()
	c.ID = uuid.New()
	c.CreatedBy = userID
	c.Status = models.CampaignStatusDraft
	c.Stats = models.Stats{TargetsTotal: len(c.Targets)}
	if c.Schedule.IsZero() {
		c.Schedule = s.schedule
		c.Schedule.Weekdays = append([]time.Weekday(nil), s.schedule.Weekdays...)
	}
	for i := range c.Phases {
		p := &c.Phases[i]
		p.Status = models.PhaseStatusPending
		p.ActionsGenerated = false
		p.Actions = nil
		p.Stats = models.Stats{}
		p.StartedAt, p.CompletedAt = nil, nil
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.store.Create(ctx, c); err != nil {
		return fmt.Errorf("%w: create campaign: %w", ErrStorage, err)
	}
	s.log.Info("campaign created",
		zap.String("campaign_id", c.ID.String()),
		zap.String("user_id", userID),
		zap.Int("phases", len(c.Phases)),
		zap.Int("targets", len(c.Targets)),
		requestid.Field(ctx),
	)
	return nil
}

func (s *CampaignService) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.load(ctx, id)
}

func (s *CampaignService) List(ctx context.Context, f repositories.CampaignFilter) ([]models.Campaign, error) {
	campaigns, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: list campaigns: %w", ErrStorage, err)
	}
	return campaigns, nil
}

// Submit sends a draft for approval. It needs at least one phase and either targets or a
// discovery query plus a configured discoverer to run it.
func (s *CampaignService) Submit(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.mutate(ctx, id, func(c *models.Campaign, m *mutation) error {
		if len(c.Phases) == 0 {
			return fmt.Errorf("%w: campaign has no phases", ErrValidation)
		}
		if len(c.Targets) == 0 {
			if c.Discovery.Query == "" {
				return fmt.Errorf("%w: campaign has no targets and no discovery query", ErrValidation)
			}
			if s.discoverer == nil {
				return fmt.Errorf("%w: campaign has no targets and no discoverer is configured", ErrValidation)
			}
		}
		if err := s.transition(c, m, models.CampaignStatusPendingApproval); err != nil {
			return err
		}
		c.SubmittedAt = &m.now
		return nil
	})
}

// Approve records an explicit human approval.
func (s *CampaignService) Approve(ctx context.Context, id uuid.UUID, approverID string) (*models.Campaign, error) {
	if automaticActors[approverID] {
		return nil, fmt.Errorf("%w: approval needs a human approver", ErrValidation)
	}
	return s.mutate(ctx, id, func(c *models.Campaign, m *mutation) error {
		if err := s.transition(c, m, models.CampaignStatusApproved); err != nil {
			return err
		}
		c.ApprovedBy = approverID
		c.ApprovedAt = &m.now
		return nil
	})
}

// Start enters running from approved. Targets are discovered first when none were supplied,
// and the first phase's actions are generated.
func (s *CampaignService) Start(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var discovered []models.Target
	if len(current.Targets) == 0 && current.Status == models.CampaignStatusApproved {
		if s.discoverer == nil {
			return nil, fmt.Errorf("%w: campaign has no targets and no discoverer is configured", ErrValidation)
		}
		discovered, err = s.discoverer.Discover(ctx, current.Discovery)
		if err != nil {
			return nil, fmt.Errorf("discover targets: %w", err)
		}
		if len(discovered) == 0 {
			return nil, fmt.Errorf("%w: discovery returned no targets", ErrValidation)
		}
	}

	return s.mutate(ctx, id, func(c *models.Campaign, m *mutation) error {
		if c.Status != models.CampaignStatusApproved {
			if models.IsTerminalCampaignStatus(c.Status) {
				return fmt.Errorf("%w: %s is %s", ErrCampaignTerminal, c.ID, c.Status)
			}
			return fmt.Errorf("%w: start from %s", ErrInvalidTransition, c.Status)
		}
		if len(c.Targets) == 0 {
			c.Targets = normalizeTargets(discovered, c.Discovery.MaxTargets)
			c.Stats.TargetsTotal = len(c.Targets)
		}
		if err := s.transition(c, m, models.CampaignStatusRunning); err != nil {
			return err
		}
		c.StartedAt = &m.now
		if len(c.Phases) > 0 {
			s.activatePhase(c, 0, m)
		}
		return nil
	})
}

// Pause freezes a running campaign without touching phase or action state.
func (s *CampaignService) Pause(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.mutate(ctx, id, func(c *models.Campaign, m *mutation) error {
		if c.Status != models.CampaignStatusRunning {
			return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, c.Status)
		}
		if err := s.transition(c, m, models.CampaignStatusPaused); err != nil {
			return err
		}
		c.PausedAt = &m.now
		return nil
	})
}

// Resume continues a paused campaign exactly where the scan left off.
func (s *CampaignService) Resume(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.mutate(ctx, id, func(c *models.Campaign, m *mutation) error {
		if c.Status != models.CampaignStatusPaused {
			if models.IsTerminalCampaignStatus(c.Status) {
				return fmt.Errorf("%w: %s is %s", ErrCampaignTerminal, c.ID, c.Status)
			}
			return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, c.Status)
		}
		if err := s.transition(c, m, models.CampaignStatusRunning); err != nil {
			return err
		}
		c.PausedAt = nil
		return nil
	})
}

// Cancel stops a running or paused campaign. Pending actions are skipped; an action already
// handed to an adapter may still report its result.
func (s *CampaignService) Cancel(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.mutate(ctx, id, func(c *models.Campaign, m *mutation) error {
		if err := s.transition(c, m, models.CampaignStatusCancelled); err != nil {
			return err
		}
		for i := range c.Phases {
			p := &c.Phases[i]
			for j := range p.Actions {
				if p.Actions[j].Status == models.ActionStatusPending {
					p.Actions[j].Status = models.ActionStatusSkipped
					p.Actions[j].CompletedAt = &m.now
				}
			}
		}
		c.CompletedAt = &m.now
		return nil
	})
}

// Fail marks the campaign as unrecoverably broken.
func (s *CampaignService) Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Campaign, error) {
	return s.mutate(ctx, id, func(c *models.Campaign, m *mutation) error {
		if err := s.transition(c, m, models.CampaignStatusFailed); err != nil {
			return err
		}
		c.FailureReason = reason
		c.CompletedAt = &m.now
		return nil
	})
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/outreach-hub/backend/internal/events"
	"github.com/outreach-hub/backend/internal/models"
	"go.uber.org/zap"
)

// GetNextAction scans phases in order and returns the first pending action of the first open
// phase, or nil when there is nothing to hand out right now. Phases whose actions are all
// terminal are closed along the way; when every phase is closed the campaign completes.
// A phase whose remaining actions are all in flight holds the scan until their results land.
func (s *CampaignService) GetNextAction(ctx context.Context, id uuid.UUID) (*models.Action, error) {
	var next *models.Action
	_, err := s.mutate(ctx, id, func(c *models.Campaign, m *mutation) error {
		if c.Status != models.CampaignStatusRunning {
			return fmt.Errorf("%w: campaign %s is %s", ErrCampaignNotRunning, c.ID, c.Status)
		}

		for i := range c.Phases {
			p := &c.Phases[i]
			if p.Status == models.PhaseStatusCompleted || p.Status == models.PhaseStatusSkipped || p.Status == models.PhaseStatusFailed {
				continue
			}
			s.activatePhase(c, i, m)

			for j := range p.Actions {
				if p.Actions[j].Status == models.ActionStatusPending {
					a := p.Actions[j]
					next = &a
					return nil
				}
			}
			if p.HasNonTerminalActions() {
				return nil
			}
			s.completePhase(c, i, m)
		}

		s.finalizeTargets(c)
		c.CompletedAt = &m.now
		return s.transition(c, m, models.CampaignStatusCompleted)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// activatePhase marks phase i in progress on first visit and generates its actions once.
func (s *CampaignService) activatePhase(c *models.Campaign, i int, m *mutation) {
	p := &c.Phases[i]
	if p.Status == models.PhaseStatusPending {
		p.Status = models.PhaseStatusInProgress
		p.StartedAt = &m.now
		m.touch()
	}
	if !p.ActionsGenerated {
		s.generate(c, i, m)
	}
}

func (s *CampaignService) eligible(c *models.Campaign, i int, t *models.Target) bool {
	cond, ok := conditions[c.Phases[i].Condition]
	if !ok {
		return s.policy == ConditionPolicyOpen
	}
	return cond(c, i, t)
}

// generate creates one action per eligible target for phase i.
func (s *CampaignService) generate(c *models.Campaign, i int, m *mutation) {
	p := &c.Phases[i]
	for ti := range c.Targets {
		t := &c.Targets[ti]
		if p.ActionFor(t.ID) != nil || !s.eligible(c, i, t) {
			continue
		}

		ref, _ := t.Handle(p.Platform)
		a := models.Action{
			ID:          uuid.New(),
			PhaseIndex:  i,
			Kind:        p.ActionKind,
			Platform:    p.Platform,
			TargetID:    t.ID,
			TargetRef:   ref,
			Status:      models.ActionStatusPending,
			MaxRetries:  s.maxRetries,
			ScheduledAt: m.now,
		}
		msg, err := s.renderer.Render(p.Template, p.Platform, t)
		if err != nil {
			a.Status = models.ActionStatusSkipped
			a.Error = "render message: " + err.Error()
			a.CompletedAt = &m.now
		}
		a.Message = msg

		p.Actions = append(p.Actions, a)
		p.Stats.ActionsTotal++
		c.Stats.ActionsTotal++

		t.CurrentPhase = i
		if t.Status == models.TargetStatusPending {
			t.Status = models.TargetStatusInProgress
		}
	}
	p.ActionsGenerated = true
	m.touch()

	s.log.Info("phase actions generated",
		zap.String("campaign_id", c.ID.String()),
		zap.Int("phase", i),
		zap.String("platform", p.Platform),
		zap.String("kind", p.ActionKind),
		zap.Int("actions", len(p.Actions)),
	)
}

func (s *CampaignService) completePhase(c *models.Campaign, i int, m *mutation) {
	p := &c.Phases[i]
	p.Status = models.PhaseStatusCompleted
	p.CompletedAt = &m.now
	m.touch()
	m.emit(events.EventPhaseCompleted, map[string]any{
		"campaign_id":     c.ID.String(),
		"user_id":         c.CreatedBy,
		"phase":           i,
		"actions_total":   p.Stats.ActionsTotal,
		"actions_success": p.Stats.ActionsCompleted,
		"actions_failed":  p.Stats.ActionsFailed,
	})
}

// finalizeTargets settles every target: failed if any of its actions ended failed.
func (s *CampaignService) finalizeTargets(c *models.Campaign) {
	failed := make(map[string]bool)
	for i := range c.Phases {
		for _, a := range c.Phases[i].Actions {
			if a.Status == models.ActionStatusFailed {
				failed[a.TargetID] = true
			}
		}
	}

	c.Stats.TargetsCompleted, c.Stats.TargetsFailed = 0, 0
	for i := range c.Targets {
		t := &c.Targets[i]
		if failed[t.ID] {
			t.Status = models.TargetStatusFailed
			c.Stats.TargetsFailed++
		} else {
			t.Status = models.TargetStatusCompleted
			c.Stats.TargetsCompleted++
		}
	}
}

// MarkActionStarted moves a pending action in flight. Drivers call it right before dispatch.
func (s *CampaignService) MarkActionStarted(ctx context.Context, campaignID, actionID uuid.UUID) (*models.Action, error) {
	var started *models.Action
	_, err := s.mutate(ctx, campaignID, func(c *models.Campaign, m *mutation) error {
		if c.Status != models.CampaignStatusRunning {
			return fmt.Errorf("%w: campaign %s is %s", ErrCampaignNotRunning, c.ID, c.Status)
		}
		_, a := c.FindAction(actionID)
		if a == nil {
			return fmt.Errorf("%w: %s", ErrActionNotFound, actionID)
		}
		if a.Status != models.ActionStatusPending {
			return fmt.Errorf("%w: action %s is %s", ErrInvalidTransition, actionID, a.Status)
		}
		a.Status = models.ActionStatusInProgress
		a.StartedAt = &m.now
		m.touch()

		cp := *a
		started = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return started, nil
}

// RecordActionResult stores an adapter outcome on the action and bumps the phase and campaign
// counters. Results for actions that were in flight when the campaign was paused or cancelled
// are still accepted.
func (s *CampaignService) RecordActionResult(
	ctx context.Context,
	campaignID, actionID uuid.UUID,
	success bool,
	result map[string]any,
	errMsg string,
) (*models.Action, error) {
	var recorded *models.Action
	_, err := s.mutate(ctx, campaignID, func(c *models.Campaign, m *mutation) error {
		switch c.Status {
		case models.CampaignStatusRunning, models.CampaignStatusPaused, models.CampaignStatusCancelled:
		case models.CampaignStatusCompleted, models.CampaignStatusFailed:
			return fmt.Errorf("%w: %s is %s", ErrCampaignTerminal, c.ID, c.Status)
		default:
			return fmt.Errorf("%w: campaign %s is %s", ErrCampaignNotRunning, c.ID, c.Status)
		}

		p, a := c.FindAction(actionID)
		if a == nil {
			return fmt.Errorf("%w: %s", ErrActionNotFound, actionID)
		}
		if models.IsTerminalActionStatus(a.Status) {
			return fmt.Errorf("%w: action %s already %s", ErrInvalidTransition, actionID, a.Status)
		}

		s.settle(c, p, a, success, result, errMsg, m)
		m.emit(events.EventActionRecorded, map[string]any{
			"campaign_id": c.ID.String(),
			"user_id":     c.CreatedBy,
			"action_id":   a.ID.String(),
			"phase":       a.PhaseIndex,
			"target_id":   a.TargetID,
			"success":     success,
			"error":       errMsg,
		})

		cp := *a
		recorded = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

func (s *CampaignService) settle(c *models.Campaign, p *models.Phase, a *models.Action, success bool, result map[string]any, errMsg string, m *mutation) {
	if a.StartedAt == nil {
		a.StartedAt = &m.now
	}
	a.CompletedAt = &m.now
	a.Result = result
	a.Error = errMsg
	if success {
		a.Status = models.ActionStatusCompleted
		p.Stats.ActionsCompleted++
		c.Stats.ActionsCompleted++
	} else {
		a.Status = models.ActionStatusFailed
		p.Stats.ActionsFailed++
		c.Stats.ActionsFailed++
	}
	m.touch()
}

// RequeueAction puts a failed action back to pending while it has retries left. The retry must
// go through admission again like any fresh action.
func (s *CampaignService) RequeueAction(ctx context.Context, campaignID, actionID uuid.UUID) (*models.Action, error) {
	var requeued *models.Action
	_, err := s.mutate(ctx, campaignID, func(c *models.Campaign, m *mutation) error {
		if c.Status != models.CampaignStatusRunning && c.Status != models.CampaignStatusPaused {
			return fmt.Errorf("%w: campaign %s is %s", ErrCampaignNotRunning, c.ID, c.Status)
		}
		p, a := c.FindAction(actionID)
		if a == nil {
			return fmt.Errorf("%w: %s", ErrActionNotFound, actionID)
		}
		if a.Status != models.ActionStatusFailed {
			return fmt.Errorf("%w: action %s is %s", ErrInvalidTransition, actionID, a.Status)
		}
		if p.Status == models.PhaseStatusCompleted {
			return fmt.Errorf("%w: phase %d", ErrPhaseClosed, a.PhaseIndex)
		}
		if !a.CanRetry() {
			return fmt.Errorf("%w: %d of %d retries used", ErrRetryExhausted, a.RetryCount, a.MaxRetries)
		}

		a.Status = models.ActionStatusPending
		a.RetryCount++
		a.ScheduledAt = m.now
		a.StartedAt = nil
		a.CompletedAt = nil
		p.Stats.ActionsFailed--
		c.Stats.ActionsFailed--
		m.touch()

		cp := *a
		requeued = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requeued, nil
}

// ReapStaleActions force-fails actions that have been in flight longer than maxAge so a lost
// adapter result cannot stall the phase forever.
func (s *CampaignService) ReapStaleActions(ctx context.Context, campaignID uuid.UUID, maxAge time.Duration) (int, error) {
	reaped := 0
	_, err := s.mutate(ctx, campaignID, func(c *models.Campaign, m *mutation) error {
		switch c.Status {
		case models.CampaignStatusRunning, models.CampaignStatusPaused, models.CampaignStatusCancelled:
		default:
			return nil
		}
		cutoff := m.now.Add(-maxAge)
		for i := range c.Phases {
			p := &c.Phases[i]
			for j := range p.Actions {
				a := &p.Actions[j]
				if a.Status != models.ActionStatusInProgress || a.StartedAt == nil || a.StartedAt.After(cutoff) {
					continue
				}
				errMsg := fmt.Sprintf("no result after %s", maxAge)
				s.settle(c, p, a, false, nil, errMsg, m)
				m.emit(events.EventActionRecorded, map[string]any{
					"campaign_id": c.ID.String(),
					"user_id":     c.CreatedBy,
					"action_id":   a.ID.String(),
					"phase":       a.PhaseIndex,
					"target_id":   a.TargetID,
					"success":     false,
					"error":       errMsg,
				})
				reaped++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if reaped > 0 {
		s.log.Warn("stale actions force-failed",
			zap.String("campaign_id", campaignID.String()),
			zap.Int("count", reaped),
			zap.Duration("max_age", maxAge),
		)
	}
	return reaped, nil
}

// FailureRate returns the failed share of recorded results for a phase and the sample size.
func (s *CampaignService) FailureRate(ctx context.Context, campaignID uuid.UUID, phase int) (float64, int, error) {
	c, err := s.load(ctx, campaignID)
	if err != nil {
		return 0, 0, err
	}
	if phase < 0 || phase >= len(c.Phases) {
		return 0, 0, fmt.Errorf("%w: phase %d out of range", ErrValidation, phase)
	}
	rate, sample := c.Phases[phase].FailureRate()
	return rate, sample, nil
}

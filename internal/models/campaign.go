package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign statuses
const (
	CampaignStatusDraft           = "draft"
	CampaignStatusPendingApproval = "pending_approval"
	CampaignStatusApproved        = "approved"
	CampaignStatusRunning         = "running"
	CampaignStatusPaused          = "paused"
	CampaignStatusCompleted       = "completed"
	CampaignStatusCancelled       = "cancelled"
	CampaignStatusFailed          = "failed"
)

// Valid state transitions: from -> []to
var ValidCampaignTransitions = map[string][]string{
	CampaignStatusDraft:           {CampaignStatusPendingApproval, CampaignStatusFailed},
	CampaignStatusPendingApproval: {CampaignStatusApproved, CampaignStatusFailed},
	CampaignStatusApproved:        {CampaignStatusRunning, CampaignStatusFailed},
	CampaignStatusRunning:         {CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled, CampaignStatusFailed},
	CampaignStatusPaused:          {CampaignStatusRunning, CampaignStatusCancelled, CampaignStatusFailed},
	CampaignStatusCompleted:       {},
	CampaignStatusCancelled:       {},
	CampaignStatusFailed:          {},
}

func IsValidCampaignTransition(from, to string) bool {
	allowed, ok := ValidCampaignTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalCampaignStatus reports whether no transition leaves status.
func IsTerminalCampaignStatus(status string) bool {
	allowed, ok := ValidCampaignTransitions[status]
	return ok && len(allowed) == 0
}

// Phase statuses
const (
	PhaseStatusPending    = "pending"
	PhaseStatusInProgress = "in_progress"
	PhaseStatusCompleted  = "completed"
	PhaseStatusSkipped    = "skipped"
	PhaseStatusFailed     = "failed"
)

// Target statuses
const (
	TargetStatusPending    = "pending"
	TargetStatusInProgress = "in_progress"
	TargetStatusCompleted  = "completed"
	TargetStatusFailed     = "failed"
)

// Action statuses
const (
	ActionStatusPending    = "pending"
	ActionStatusInProgress = "in_progress"
	ActionStatusCompleted  = "completed"
	ActionStatusFailed     = "failed"
	ActionStatusSkipped    = "skipped"
)

// IsTerminalActionStatus reports whether an action no longer needs work.
func IsTerminalActionStatus(status string) bool {
	switch status {
	case ActionStatusCompleted, ActionStatusFailed, ActionStatusSkipped:
		return true
	}
	return false
}

// Platforms
const (
	PlatformLinkedIn  = "linkedin"
	PlatformTwitter   = "twitter"
	PlatformInstagram = "instagram"
	PlatformEmail     = "email"
)

// Action kinds
const (
	ActionViewProfile = "view_profile"
	ActionConnect     = "connect"
	ActionMessage     = "message"
	ActionFollow      = "follow"
	ActionLike        = "like"
	ActionDM          = "dm"
	ActionComment     = "comment"
	ActionTweet       = "tweet"
	ActionRetweet     = "retweet"
	ActionSendEmail   = "send_email"
)

type Campaign struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	CreatedBy     string     `json:"created_by"`
	Status        string     `json:"status"`
	Discovery     Discovery  `json:"discovery"`
	Phases        []Phase    `json:"phases"`
	Targets       []Target   `json:"targets"`
	Schedule      Schedule   `json:"schedule"`
	Stats         Stats      `json:"stats"`
	Version       int64      `json:"version"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ApprovedBy    string     `json:"approved_by,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	PausedAt      *time.Time `json:"paused_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Discovery describes where targets come from when they were not supplied up front.
type Discovery struct {
	Query      string `json:"query,omitempty"`
	Source     string `json:"source,omitempty"`
	MaxTargets int    `json:"max_targets,omitempty"`
}

type Stats struct {
	TargetsTotal     int `json:"targets_total"`
	TargetsCompleted int `json:"targets_completed"`
	TargetsFailed    int `json:"targets_failed"`
	ActionsTotal     int `json:"actions_total"`
	ActionsCompleted int `json:"actions_completed"`
	ActionsFailed    int `json:"actions_failed"`
}

type Phase struct {
	Name             string     `json:"name"`
	Platform         string     `json:"platform"`
	ActionKind       string     `json:"action_kind"`
	Template         string     `json:"template,omitempty"`
	Condition        string     `json:"condition,omitempty"`
	DelayMinSeconds  int        `json:"delay_min_seconds,omitempty"`
	DelayMaxSeconds  int        `json:"delay_max_seconds,omitempty"`
	Status           string     `json:"status"`
	ActionsGenerated bool       `json:"actions_generated"`
	Actions          []Action   `json:"actions,omitempty"`
	Stats            Stats      `json:"stats"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// HasNonTerminalActions reports whether any generated action still needs a result.
func (p *Phase) HasNonTerminalActions() bool {
	for i := range p.Actions {
		if !IsTerminalActionStatus(p.Actions[i].Status) {
			return true
		}
	}
	return false
}

// FailureRate returns failed/recorded over the phase's actions and the recorded count.
func (p *Phase) FailureRate() (float64, int) {
	recorded := p.Stats.ActionsCompleted + p.Stats.ActionsFailed
	if recorded == 0 {
		return 0, 0
	}
	return float64(p.Stats.ActionsFailed) / float64(recorded), recorded
}

// ActionFor returns the phase's action for a target, or nil.
func (p *Phase) ActionFor(targetID string) *Action {
	for i := range p.Actions {
		if p.Actions[i].TargetID == targetID {
			return &p.Actions[i]
		}
	}
	return nil
}

// Target attributes with a fixed meaning.
const (
	AttrTitle    = "title"
	AttrCompany  = "company"
	AttrLocation = "location"

	// AttrHasRecentPosts is "true" or "false"; a target without it is assumed active.
	AttrHasRecentPosts = "has_recent_posts"
)

type Target struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Handles      map[string]string `json:"handles,omitempty"` // platform -> handle or profile URL
	Attributes   map[string]string `json:"attributes,omitempty"`
	CurrentPhase int               `json:"current_phase"`
	Status       string            `json:"status"`
}

// Handle returns the target's identifier on platform.
func (t *Target) Handle(platform string) (string, bool) {
	h, ok := t.Handles[platform]
	if !ok || h == "" {
		return "", false
	}
	return h, true
}

type Action struct {
	ID          uuid.UUID      `json:"id"`
	PhaseIndex  int            `json:"phase_index"`
	Kind        string         `json:"kind"`
	Platform    string         `json:"platform"`
	TargetID    string         `json:"target_id"`
	TargetRef   string         `json:"target_ref,omitempty"`
	Message     string         `json:"message,omitempty"`
	Status      string         `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	RetryCount  int            `json:"retry_count"`
	MaxRetries  int            `json:"max_retries"`
	ScheduledAt time.Time      `json:"scheduled_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// CanRetry reports whether a failed action may be re-queued by the caller.
func (a *Action) CanRetry() bool {
	return a.Status == ActionStatusFailed && a.RetryCount < a.MaxRetries
}

// FindAction locates an action by id across all phases.
func (c *Campaign) FindAction(id uuid.UUID) (*Phase, *Action) {
	for i := range c.Phases {
		p := &c.Phases[i]
		for j := range p.Actions {
			if p.Actions[j].ID == id {
				return p, &p.Actions[j]
			}
		}
	}
	return nil, nil
}

// FindTarget returns the target with id, or nil.
func (c *Campaign) FindTarget(id string) *Target {
	for i := range c.Targets {
		if c.Targets[i].ID == id {
			return &c.Targets[i]
		}
	}
	return nil
}

package services

import (
	"sort"

	"github.com/outreach-hub/backend/internal/models"
)

// Unknown condition policies
const (
	ConditionPolicyOpen   = "open"   // unknown names match every target
	ConditionPolicyClosed = "closed" // unknown names match no target and are rejected on create
)

// Eligibility conditions. The vocabulary is closed; anything else is handled by the policy.
const (
	CondAlways               = "always"
	CondHasHandle            = "has_handle"
	CondHasLinkedIn          = "has_linkedin"
	CondHasTwitter           = "has_twitter"
	CondHasInstagram         = "has_instagram"
	CondHasEmail             = "has_email"
	CondPreviousSucceeded    = "previous_succeeded"
	CondPreviousFailed       = "previous_failed"
	CondPreviousNotAttempted = "previous_not_attempted"
	CondAllPreviousSucceeded = "all_previous_succeeded"
	CondConnectionAccepted   = "connection_accepted"
	CondHasRecentPosts       = "has_recent_posts"
)

type condition func(c *models.Campaign, phaseIndex int, t *models.Target) bool

func hasHandleOn(platform string) condition {
	return func(_ *models.Campaign, _ int, t *models.Target) bool {
		_, ok := t.Handle(platform)
		return ok
	}
}

func previousStatus(c *models.Campaign, phaseIndex int, t *models.Target) (string, bool) {
	if phaseIndex == 0 {
		return "", false
	}
	a := c.Phases[phaseIndex-1].ActionFor(t.ID)
	if a == nil {
		return "", false
	}
	return a.Status, true
}

var conditions = map[string]condition{
	"":         func(*models.Campaign, int, *models.Target) bool { return true },
	CondAlways: func(*models.Campaign, int, *models.Target) bool { return true },
	CondHasHandle: func(c *models.Campaign, i int, t *models.Target) bool {
		_, ok := t.Handle(c.Phases[i].Platform)
		return ok
	},
	CondHasLinkedIn:  hasHandleOn(models.PlatformLinkedIn),
	CondHasTwitter:   hasHandleOn(models.PlatformTwitter),
	CondHasInstagram: hasHandleOn(models.PlatformInstagram),
	CondHasEmail:     hasHandleOn(models.PlatformEmail),
	CondPreviousSucceeded: func(c *models.Campaign, i int, t *models.Target) bool {
		status, ok := previousStatus(c, i, t)
		return ok && status == models.ActionStatusCompleted
	},
	CondPreviousFailed: func(c *models.Campaign, i int, t *models.Target) bool {
		status, ok := previousStatus(c, i, t)
		return ok && status == models.ActionStatusFailed
	},
	CondPreviousNotAttempted: func(c *models.Campaign, i int, t *models.Target) bool {
		status, ok := previousStatus(c, i, t)
		return !ok || status == models.ActionStatusSkipped
	},
	CondAllPreviousSucceeded: func(c *models.Campaign, i int, t *models.Target) bool {
		for j := 0; j < i; j++ {
			if a := c.Phases[j].ActionFor(t.ID); a != nil && a.Status != models.ActionStatusCompleted {
				return false
			}
		}
		return true
	},
	// A connect action on the target completed in an earlier phase.
	CondConnectionAccepted: func(c *models.Campaign, i int, t *models.Target) bool {
		for j := 0; j < i; j++ {
			if c.Phases[j].ActionKind != models.ActionConnect {
				continue
			}
			if a := c.Phases[j].ActionFor(t.ID); a != nil && a.Status == models.ActionStatusCompleted {
				return true
			}
		}
		return false
	},
	CondHasRecentPosts: func(_ *models.Campaign, _ int, t *models.Target) bool {
		v, ok := t.Attributes[models.AttrHasRecentPosts]
		return !ok || v != "false"
	},
}

// KnownCondition reports whether name is in the vocabulary.
func KnownCondition(name string) bool {
	_, ok := conditions[name]
	return ok
}

// ConditionNames lists the vocabulary, sorted.
func ConditionNames() []string {
	names := make([]string, 0, len(conditions))
	for name := range conditions {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

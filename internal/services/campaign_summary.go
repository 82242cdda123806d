package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/outreach-hub/backend/internal/models"
)

const summarySampleSize = 5

// CampaignSummary is the condensed view shown to an approver.
type CampaignSummary struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name"`
	Description       string           `json:"description,omitempty"`
	Status            string           `json:"status"`
	Discovery         models.Discovery `json:"discovery"`
	Targets           TargetsSummary   `json:"targets"`
	Phases            []PhaseSummary   `json:"phases"`
	Schedule          ScheduleSummary  `json:"schedule"`
	Stats             models.Stats     `json:"stats"`
	EstimatedDuration string           `json:"estimated_duration"`
}

type TargetsSummary struct {
	Total  int             `json:"total"`
	Sample []TargetPreview `json:"sample"`
}

type TargetPreview struct {
	Name      string   `json:"name"`
	Platforms []string `json:"platforms"`
}

type PhaseSummary struct {
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Action   string `json:"action"`
	Delay    string `json:"delay"`
}

type ScheduleSummary struct {
	Days     []string `json:"days"`
	Hours    string   `json:"hours"`
	Timezone string   `json:"timezone"`
}

// Summary loads a campaign and condenses it for review.
func (s *CampaignService) Summary(ctx context.Context, id uuid.UUID) (*CampaignSummary, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := Summarize(c)
	return &summary, nil
}

// Summarize condenses c: the first few targets with the platforms they can be reached on, each
// phase's delay window in minutes and a rough duration estimate.
func Summarize(c *models.Campaign) CampaignSummary {
	out := CampaignSummary{
		ID:                c.ID,
		Name:              c.Name,
		Description:       c.Description,
		Status:            c.Status,
		Discovery:         c.Discovery,
		Targets:           TargetsSummary{Total: len(c.Targets), Sample: []TargetPreview{}},
		Phases:            make([]PhaseSummary, 0, len(c.Phases)),
		Schedule:          summarizeSchedule(c.Schedule),
		Stats:             c.Stats,
		EstimatedDuration: EstimateDuration(c),
	}

	for i := range c.Targets {
		if i == summarySampleSize {
			break
		}
		t := &c.Targets[i]
		platforms := make([]string, 0, len(t.Handles))
		for p, handle := range t.Handles {
			if handle != "" {
				platforms = append(platforms, p)
			}
		}
		sort.Strings(platforms)
		out.Targets.Sample = append(out.Targets.Sample, TargetPreview{Name: t.Name, Platforms: platforms})
	}

	for _, p := range c.Phases {
		out.Phases = append(out.Phases, PhaseSummary{
			Name:     p.Name,
			Platform: p.Platform,
			Action:   p.ActionKind,
			Delay:    fmt.Sprintf("%d-%d minutes", p.DelayMinSeconds/60, p.DelayMaxSeconds/60),
		})
	}
	return out
}

func summarizeSchedule(s models.Schedule) ScheduleSummary {
	days := make([]string, 0, len(s.Weekdays))
	for _, d := range s.Weekdays {
		days = append(days, strings.ToLower(d.String()))
	}
	tz := s.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return ScheduleSummary{
		Days:     days,
		Hours:    fmt.Sprintf("%02d:00 - %02d:00", s.StartHour, s.EndHour),
		Timezone: tz,
	}
}

// EstimateDuration guesses how long a campaign runs: one action per target per phase, each
// followed by the midpoint of the average phase delay window. Admission pauses are not counted.
func EstimateDuration(c *models.Campaign) string {
	if len(c.Phases) == 0 {
		return "~0 minutes"
	}

	var delaySum float64
	for _, p := range c.Phases {
		delaySum += float64(p.DelayMinSeconds+p.DelayMaxSeconds) / 2
	}
	avgDelay := delaySum / float64(len(c.Phases))
	total := time.Duration(float64(len(c.Targets)*len(c.Phases))*avgDelay) * time.Second

	hours := int(total / time.Hour)
	minutes := int((total % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("~%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("~%d minutes", minutes)
}

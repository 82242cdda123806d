package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/outreach-hub/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// Defaults applied to campaign definition files.
const (
	DefaultDiscoverySource = "exa"
	DefaultDiscoveryLimit  = 10
	defaultDelayAfter      = "2-5 minutes"
)

var delayPattern = regexp.MustCompile(`(?i)^\s*(\d+)(?:\s*-\s*(\d+))?\s*(second|minute|hour)s?`)

var delayUnits = map[string]int{"second": 1, "minute": 60, "hour": 3600}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

type definitionFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Discovery   struct {
		Query      string `yaml:"query"`
		Source     string `yaml:"source"`
		MaxResults int    `yaml:"max_results"`
	} `yaml:"discovery"`
	Schedule *struct {
		Days  []string `yaml:"days"`
		Hours struct {
			Start string `yaml:"start"`
			End   string `yaml:"end"`
		} `yaml:"hours"`
		Timezone string `yaml:"timezone"`
	} `yaml:"schedule"`
	Phases []struct {
		Name       string    `yaml:"name"`
		Platform   string    `yaml:"platform"`
		Action     string    `yaml:"action"`
		Template   string    `yaml:"template"`
		DelayAfter yaml.Node `yaml:"delay_after"`
		Condition  string    `yaml:"condition"`
	} `yaml:"phases"`
	Targets []struct {
		ID         string            `yaml:"id"`
		Name       string            `yaml:"name"`
		Handles    map[string]string `yaml:"handles"`
		Attributes map[string]string `yaml:"attributes"`
	} `yaml:"targets"`
}

// ParseCampaignDefinition builds a draft campaign from a YAML definition file.
//
// Missing fields fall back to: name "Unnamed Campaign", discovery source "exa" (10 results when
// a query is given), phase name "Phase N", platform linkedin, action view_profile and a 2-5
// minute delay. A file without a schedule block leaves the schedule empty so the service
// default applies; a partial block fills in Monday to Friday, 09:00-17:00, UTC.
func ParseCampaignDefinition(data []byte) (*models.Campaign, error) {
	var def definitionFile
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: parse campaign definition: %v", ErrValidation, err)
	}

	c := &models.Campaign{
		Name:        def.Name,
		Description: def.Description,
		Discovery: models.Discovery{
			Query:      def.Discovery.Query,
			Source:     def.Discovery.Source,
			MaxTargets: def.Discovery.MaxResults,
		},
	}
	if c.Name == "" {
		c.Name = "Unnamed Campaign"
	}
	if c.Discovery.Source == "" {
		c.Discovery.Source = DefaultDiscoverySource
	}
	// The limit also caps listed targets, so it only defaults for discovery runs.
	if c.Discovery.MaxTargets <= 0 && c.Discovery.Query != "" {
		c.Discovery.MaxTargets = DefaultDiscoveryLimit
	}

	if s := def.Schedule; s != nil {
		sched, err := parseSchedule(s.Days, s.Hours.Start, s.Hours.End, s.Timezone)
		if err != nil {
			return nil, err
		}
		c.Schedule = sched
	}

	for i, p := range def.Phases {
		phase := models.Phase{
			Name:       p.Name,
			Platform:   p.Platform,
			ActionKind: p.Action,
			Template:   p.Template,
			Condition:  p.Condition,
		}
		if phase.Name == "" {
			phase.Name = fmt.Sprintf("Phase %d", i+1)
		}
		if phase.Platform == "" {
			phase.Platform = models.PlatformLinkedIn
		}
		if phase.ActionKind == "" {
			phase.ActionKind = models.ActionViewProfile
		}
		lo, hi, err := delayAfter(p.DelayAfter)
		if err != nil {
			return nil, fmt.Errorf("%w: phase %d: %v", ErrValidation, i, err)
		}
		phase.DelayMinSeconds, phase.DelayMaxSeconds = lo, hi
		c.Phases = append(c.Phases, phase)
	}

	for _, t := range def.Targets {
		c.Targets = append(c.Targets, models.Target{
			ID:         t.ID,
			Name:       t.Name,
			Handles:    t.Handles,
			Attributes: t.Attributes,
		})
	}
	return c, nil
}

// delayAfter reads a phase's delay_after, which is either a number of seconds or a phrase.
func delayAfter(node yaml.Node) (int, int, error) {
	if node.Kind == 0 {
		lo, hi := ParseDelay(defaultDelayAfter)
		return lo, hi, nil
	}
	if node.Kind != yaml.ScalarNode {
		return 0, 0, errors.New(`delay_after must be a number or a phrase like "2-5 minutes"`)
	}
	if n, err := strconv.Atoi(node.Value); err == nil {
		if n < 0 {
			return 0, 0, errors.New("delay_after must not be negative")
		}
		return n, n, nil
	}
	lo, hi := ParseDelay(node.Value)
	return lo, hi, nil
}

// ParseDelay turns phrases like "30 seconds", "2-5 minutes" or "1-3 hours" into a window in
// seconds. Text it cannot read yields 120-300.
func ParseDelay(s string) (int, int) {
	m := delayPattern.FindStringSubmatch(s)
	if m == nil {
		return 120, 300
	}
	lo, _ := strconv.Atoi(m[1])
	hi := lo
	if m[2] != "" {
		hi, _ = strconv.Atoi(m[2])
	}
	unit := delayUnits[strings.ToLower(m[3])]
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo * unit, hi * unit
}

func parseSchedule(days []string, start, end, tz string) (models.Schedule, error) {
	if len(days) == 0 {
		days = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	}
	if start == "" {
		start = "09:00"
	}
	if end == "" {
		end = "17:00"
	}
	if tz == "" {
		tz = "UTC"
	}

	var sched models.Schedule
	for _, d := range days {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(d))]
		if !ok {
			return sched, fmt.Errorf("%w: unknown schedule day %q", ErrValidation, d)
		}
		sched.Weekdays = append(sched.Weekdays, wd)
	}

	var err error
	if sched.StartHour, err = clockHour(start); err != nil {
		return sched, err
	}
	if sched.EndHour, err = clockHour(end); err != nil {
		return sched, err
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return sched, fmt.Errorf("%w: unknown schedule timezone %q", ErrValidation, tz)
	}
	sched.Timezone = tz
	return sched, nil
}

// clockHour reads the hour out of "HH:MM" or "HH".
func clockHour(v string) (int, error) {
	h, _, _ := strings.Cut(strings.TrimSpace(v), ":")
	n, err := strconv.Atoi(h)
	if err != nil || n < 0 || n > 23 {
		return 0, fmt.Errorf("%w: schedule hour %q must be HH:MM within 00-23", ErrValidation, v)
	}
	return n, nil
}

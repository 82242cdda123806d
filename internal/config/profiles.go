package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/outreach-hub/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// ProfileSet is the on-disk shape of the limits file.
type ProfileSet struct {
	Platforms map[string]models.PlatformProfile            `yaml:"platforms"`
	Users     map[string]map[string]models.PlatformProfile `yaml:"users,omitempty"` // user -> platform -> override
}

// DefaultProfiles builds the built-in platform profiles. The env-level ceilings override the
// connect, message, follow, dm and email limits; everything else is fixed until limits.yaml
// says otherwise.
func DefaultProfiles(cfg *Config) ProfileSet {
	return ProfileSet{
		Platforms: map[string]models.PlatformProfile{
			models.PlatformLinkedIn: {
				DailyLimits: map[string]int{
					models.ActionConnect:     cfg.LinkedInConnectionsPerDay,
					models.ActionMessage:     cfg.LinkedInMessagesPerDay,
					models.ActionViewProfile: 100,
					models.ActionLike:        50,
					models.ActionComment:     20,
				},
				HourlyBurst:     10,
				DefaultDelay:    models.DelayRange{Min: 120, Max: 600},
				CooldownSeconds: 1800,
				ActiveStartHour: 8,
				ActiveEndHour:   20,
			},
			models.PlatformTwitter: {
				DailyLimits: map[string]int{
					models.ActionFollow:  cfg.TwitterFollowsPerDay,
					models.ActionDM:      cfg.TwitterDMsPerDay,
					models.ActionTweet:   20,
					models.ActionLike:    100,
					models.ActionRetweet: 50,
				},
				HourlyBurst:     15,
				DefaultDelay:    models.DelayRange{Min: 60, Max: 300},
				CooldownSeconds: 1200,
				ActiveStartHour: 7,
				ActiveEndHour:   23,
			},
			models.PlatformInstagram: {
				DailyLimits: map[string]int{
					models.ActionFollow:  cfg.InstagramFollowsPerDay,
					models.ActionDM:      cfg.InstagramDMsPerDay,
					models.ActionLike:    100,
					models.ActionComment: 30,
				},
				HourlyBurst:     8,
				DefaultDelay:    models.DelayRange{Min: 90, Max: 400},
				CooldownSeconds: 2400,
				ActiveStartHour: 9,
				ActiveEndHour:   21,
			},
			models.PlatformEmail: {
				DailyLimits: map[string]int{
					models.ActionSendEmail: cfg.DailyEmailLimit,
				},
				HourlyBurst:     15,
				DefaultDelay:    models.DelayRange{Min: 60, Max: 180},
				CooldownSeconds: 900,
				ActiveStartHour: 6,
				ActiveEndHour:   22,
			},
		},
	}
}

// LoadProfiles reads path and layers it over base. A missing file yields base unchanged.
func LoadProfiles(path string, base ProfileSet) (ProfileSet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, err
	}

	var file ProfileSet
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("parse %s: %w", path, err)
	}

	out := ProfileSet{
		Platforms: make(map[string]models.PlatformProfile, len(base.Platforms)),
		Users:     make(map[string]map[string]models.PlatformProfile),
	}
	for name, p := range base.Platforms {
		out.Platforms[name] = p
	}
	for name, p := range file.Platforms {
		if existing, ok := out.Platforms[name]; ok {
			out.Platforms[name] = mergeProfile(existing, p)
		} else {
			out.Platforms[name] = p
		}
	}
	for user, platforms := range base.Users {
		out.Users[user] = platforms
	}
	for user, platforms := range file.Users {
		out.Users[user] = platforms
	}
	return out, nil
}

// mergeProfile applies the non-zero fields of override on top of base.
func mergeProfile(base, override models.PlatformProfile) models.PlatformProfile {
	merged := base
	merged.DailyLimits = make(map[string]int, len(base.DailyLimits))
	for k, v := range base.DailyLimits {
		merged.DailyLimits[k] = v
	}
	for k, v := range override.DailyLimits {
		merged.DailyLimits[k] = v
	}
	merged.Delays = make(map[string]models.DelayRange, len(base.Delays))
	for k, v := range base.Delays {
		merged.Delays[k] = v
	}
	for k, v := range override.Delays {
		merged.Delays[k] = v
	}
	if override.HourlyBurst > 0 {
		merged.HourlyBurst = override.HourlyBurst
	}
	if override.DefaultDelay.Max > 0 {
		merged.DefaultDelay = override.DefaultDelay
	}
	if override.CooldownSeconds > 0 {
		merged.CooldownSeconds = override.CooldownSeconds
	}
	if override.ActiveStartHour != 0 || override.ActiveEndHour != 0 {
		merged.ActiveStartHour = override.ActiveStartHour
		merged.ActiveEndHour = override.ActiveEndHour
	}
	return merged
}

// Profiles is the live, swappable set of limit profiles.
type Profiles struct {
	mu  sync.RWMutex
	set ProfileSet
}

func NewProfiles(set ProfileSet) *Profiles {
	return &Profiles{set: set}
}

// Lookup returns the effective profile for a user on a platform. Per-user overrides win.
func (p *Profiles) Lookup(userID, platform string) (models.PlatformProfile, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	base, ok := p.set.Platforms[platform]
	if !ok {
		return models.PlatformProfile{}, false
	}
	if override, ok := p.set.Users[userID][platform]; ok {
		return mergeProfile(base, override), true
	}
	return base, true
}

func (p *Profiles) Replace(set ProfileSet) {
	p.mu.Lock()
	p.set = set
	p.mu.Unlock()
}

// Platforms lists the configured platform names.
func (p *Profiles) Platforms() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.set.Platforms))
	for name := range p.set.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package handlers

import (
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/outreach-hub/backend/internal/config"
	"github.com/outreach-hub/backend/internal/http/dto"
	"github.com/outreach-hub/backend/internal/models"
	"github.com/outreach-hub/backend/internal/services"
)

// MetaHandler serves the vocabularies a campaign editor needs.
type MetaHandler struct {
	profiles *config.Profiles
}

func NewMetaHandler(profiles *config.Profiles) *MetaHandler {
	return &MetaHandler{profiles: profiles}
}

type MetaPlatform struct {
	ID              string                       `json:"id"`
	ActionKinds     []string                     `json:"action_kinds"`
	DailyLimits     map[string]int               `json:"daily_limits"`
	HourlyBurst     int                          `json:"hourly_burst"`
	Delays          map[string]models.DelayRange `json:"delays,omitempty"`
	ActiveStartHour int                          `json:"active_start_hour"`
	ActiveEndHour   int                          `json:"active_end_hour"`
}

func (h *MetaHandler) GetPlatforms(c *fiber.Ctx) error {
	var out []MetaPlatform
	for _, name := range h.profiles.Platforms() {
		p, ok := h.profiles.Lookup("", name)
		if !ok {
			continue
		}
		kinds := make([]string, 0, len(p.DailyLimits))
		for k := range p.DailyLimits {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		out = append(out, MetaPlatform{
			ID:              name,
			ActionKinds:     kinds,
			DailyLimits:     p.DailyLimits,
			HourlyBurst:     p.HourlyBurst,
			Delays:          p.Delays,
			ActiveStartHour: p.ActiveStartHour,
			ActiveEndHour:   p.ActiveEndHour,
		})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *MetaHandler) GetConditions(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: services.ConditionNames()})
}

package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/outreach-hub/backend/internal/config"
	"github.com/outreach-hub/backend/internal/http/dto"
	"github.com/outreach-hub/backend/internal/middleware"
	"github.com/outreach-hub/backend/internal/models"
	"github.com/outreach-hub/backend/internal/rbac"
	"github.com/outreach-hub/backend/internal/repositories"
	"github.com/outreach-hub/backend/internal/services"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	cfg             *config.Config
	log             *zap.Logger
}

func NewCampaignHandler(campaignService *services.CampaignService, cfg *config.Config, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService, cfg: cfg, log: log}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	campaign := &models.Campaign{
		Name:        req.Name,
		Description: req.Description,
		Discovery: models.Discovery{
			Query:      req.Discovery.Query,
			Source:     req.Discovery.Source,
			MaxTargets: req.Discovery.MaxTargets,
		},
	}
	for _, p := range req.Phases {
		campaign.Phases = append(campaign.Phases, models.Phase{
			Name:            p.Name,
			Platform:        p.Platform,
			ActionKind:      p.ActionKind,
			Template:        p.Template,
			Condition:       p.Condition,
			DelayMinSeconds: p.DelayMinSeconds,
			DelayMaxSeconds: p.DelayMaxSeconds,
		})
	}
	for _, t := range req.Targets {
		campaign.Targets = append(campaign.Targets, models.Target{
			ID:         t.ID,
			Name:       t.Name,
			Handles:    t.Handles,
			Attributes: t.Attributes,
		})
	}
	if s := req.Schedule; s != nil {
		if s.StartHour < 0 || s.StartHour > 23 || s.EndHour < 0 || s.EndHour > 23 {
			return badRequest(c, "schedule hours must be within 0-23")
		}
		if s.Timezone != "" {
			if _, err := time.LoadLocation(s.Timezone); err != nil {
				return badRequest(c, "unknown schedule timezone")
			}
		}
		campaign.Schedule = models.Schedule{StartHour: s.StartHour, EndHour: s.EndHour, Timezone: s.Timezone}
		for _, d := range s.Weekdays {
			if d < 0 || d > 6 {
				return badRequest(c, "weekdays must be within 0-6")
			}
			campaign.Schedule.Weekdays = append(campaign.Schedule.Weekdays, time.Weekday(d))
		}
	}

	userID := middleware.GetUserID(c)
	if err := h.campaignService.Create(c.UserContext(), userID, campaign); err != nil {
		return writeError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

// ImportCampaign creates a draft campaign from a YAML definition sent as the request body.
func (h *CampaignHandler) ImportCampaign(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return badRequest(c, "campaign definition is required")
	}

	campaign, err := services.ParseCampaignDefinition(body)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if err := h.campaignService.Create(c.UserContext(), middleware.GetUserID(c), campaign); err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: services.Summarize(campaign)})
}

// owned loads the campaign and checks the caller may act on it.
func (h *CampaignHandler) owned(c *fiber.Ctx) (*models.Campaign, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, badRequest(c, "invalid campaign id")
	}
	campaign, err := h.campaignService.Get(c.UserContext(), id)
	if err != nil {
		return nil, writeError(c, h.log, err)
	}
	if campaign.CreatedBy != middleware.GetUserID(c) &&
		!middleware.Can(c, h.cfg, rbac.PermManageAny) &&
		!middleware.Can(c, h.cfg, rbac.PermApproveCampaign) {
		return nil, c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
	}
	return campaign, nil
}

// mutable is owned plus the rule that only the creator or an admin drives a campaign.
func (h *CampaignHandler) mutable(c *fiber.Ctx) (*models.Campaign, error) {
	campaign, err := h.owned(c)
	if campaign == nil {
		return nil, err
	}
	if campaign.CreatedBy != middleware.GetUserID(c) && !middleware.Can(c, h.cfg, rbac.PermManageAny) {
		return nil, forbidden(c)
	}
	return campaign, nil
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	campaign, err := h.owned(c)
	if campaign == nil {
		return err
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetCampaignSummary(c *fiber.Ctx) error {
	campaign, err := h.owned(c)
	if campaign == nil {
		return err
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: services.Summarize(campaign)})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	filter := repositories.CampaignFilter{
		Limit:  20,
		Offset: 0,
	}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if !middleware.Can(c, h.cfg, rbac.PermManageAny) && !middleware.Can(c, h.cfg, rbac.PermApproveCampaign) {
		userID := middleware.GetUserID(c)
		filter.CreatedBy = &userID
	}

	campaigns, err := h.campaignService.List(c.UserContext(), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

type lifecycleOp func(h *CampaignHandler, c *fiber.Ctx, id uuid.UUID) (*models.Campaign, error)

// lifecycle wraps a creator-driven lifecycle call.
func (h *CampaignHandler) lifecycle(op lifecycleOp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		campaign, err := h.mutable(c)
		if campaign == nil {
			return err
		}
		updated, err := op(h, c, campaign.ID)
		if err != nil {
			return writeError(c, h.log, err)
		}
		return c.JSON(dto.SuccessResponse{OK: true, Data: updated})
	}
}

func (h *CampaignHandler) SubmitCampaign() fiber.Handler {
	return h.lifecycle(func(h *CampaignHandler, c *fiber.Ctx, id uuid.UUID) (*models.Campaign, error) {
		return h.campaignService.Submit(c.UserContext(), id)
	})
}

func (h *CampaignHandler) StartCampaign() fiber.Handler {
	return h.lifecycle(func(h *CampaignHandler, c *fiber.Ctx, id uuid.UUID) (*models.Campaign, error) {
		return h.campaignService.Start(c.UserContext(), id)
	})
}

func (h *CampaignHandler) PauseCampaign() fiber.Handler {
	return h.lifecycle(func(h *CampaignHandler, c *fiber.Ctx, id uuid.UUID) (*models.Campaign, error) {
		return h.campaignService.Pause(c.UserContext(), id)
	})
}

func (h *CampaignHandler) ResumeCampaign() fiber.Handler {
	return h.lifecycle(func(h *CampaignHandler, c *fiber.Ctx, id uuid.UUID) (*models.Campaign, error) {
		return h.campaignService.Resume(c.UserContext(), id)
	})
}

func (h *CampaignHandler) CancelCampaign() fiber.Handler {
	return h.lifecycle(func(h *CampaignHandler, c *fiber.Ctx, id uuid.UUID) (*models.Campaign, error) {
		return h.campaignService.Cancel(c.UserContext(), id)
	})
}

func (h *CampaignHandler) ApproveCampaign(c *fiber.Ctx) error {
	if !middleware.Can(c, h.cfg, rbac.PermApproveCampaign) {
		return forbidden(c)
	}
	campaign, err := h.owned(c)
	if campaign == nil {
		return err
	}

	updated, err := h.campaignService.Approve(c.UserContext(), campaign.ID, middleware.GetUserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: updated})
}

// FailCampaign is the admin escape hatch for a campaign whose state cannot be recovered.
func (h *CampaignHandler) FailCampaign(c *fiber.Ctx) error {
	var req dto.FailCampaignRequest
	if err := c.BodyParser(&req); err != nil || req.Reason == "" {
		return badRequest(c, "reason is required")
	}
	campaign, err := h.owned(c)
	if campaign == nil {
		return err
	}

	updated, err := h.campaignService.Fail(c.UserContext(), campaign.ID, req.Reason)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: updated})
}

// NextAction lets an external driver pull work. The action is not marked started.
func (h *CampaignHandler) NextAction(c *fiber.Ctx) error {
	campaign, err := h.mutable(c)
	if campaign == nil {
		return err
	}

	action, err := h.campaignService.GetNextAction(c.UserContext(), campaign.ID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	resp := dto.NextActionResponse{Idle: action == nil, Status: campaign.Status}
	if action != nil {
		resp.Action = action
	} else if current, err := h.campaignService.Get(c.UserContext(), campaign.ID); err == nil {
		resp.Status = current.Status
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: resp})
}

func (h *CampaignHandler) actionID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("actionId"))
	return id, err == nil
}

func (h *CampaignHandler) StartAction(c *fiber.Ctx) error {
	campaign, err := h.mutable(c)
	if campaign == nil {
		return err
	}
	actionID, ok := h.actionID(c)
	if !ok {
		return badRequest(c, "invalid action id")
	}

	action, err := h.campaignService.MarkActionStarted(c.UserContext(), campaign.ID, actionID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: action})
}

func (h *CampaignHandler) RecordActionResult(c *fiber.Ctx) error {
	var req dto.ActionResultRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	campaign, err := h.mutable(c)
	if campaign == nil {
		return err
	}
	actionID, ok := h.actionID(c)
	if !ok {
		return badRequest(c, "invalid action id")
	}

	action, err := h.campaignService.RecordActionResult(c.UserContext(), campaign.ID, actionID, req.Success, req.Data, req.Error)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: action})
}

func (h *CampaignHandler) RequeueAction(c *fiber.Ctx) error {
	campaign, err := h.mutable(c)
	if campaign == nil {
		return err
	}
	actionID, ok := h.actionID(c)
	if !ok {
		return badRequest(c, "invalid action id")
	}

	action, err := h.campaignService.RequeueAction(c.UserContext(), campaign.ID, actionID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: action})
}

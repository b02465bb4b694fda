package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/app/models/dto"
	"github.com/yigit/schoolhealth/internal/app/services"
	"github.com/yigit/schoolhealth/internal/middleware"
	"github.com/yigit/schoolhealth/internal/pkg/helpers"
)

// CampaignController handles campaign registry endpoints
type CampaignController struct {
	campaignService services.CampaignService
}

// NewCampaignController creates a new CampaignController
func NewCampaignController(campaignService services.CampaignService) *CampaignController {
	return &CampaignController{
		campaignService: campaignService,
	}
}

// CreateCampaign handles campaign creation
// @Summary Create a campaign
// @Description Creates a health checkup or vaccination campaign in the planned status
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateCampaignRequest true "Campaign information"
// @Success 201 {object} dto.APIResponse{data=dto.CampaignResponse} "Campaign created"
// @Failure 400 {object} dto.ErrorResponse "Missing or malformed field"
// @Failure 401 {object} dto.ErrorResponse "Missing or invalid token"
// @Failure 403 {object} dto.ErrorResponse "Only staff can create campaigns"
// @Router /campaigns [post]
func (c *CampaignController) CreateCampaign(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	var req dto.CreateCampaignRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	draft, err := req.ToDraft()
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	campaign, err := c.campaignService.CreateCampaign(ctx.Request.Context(), actor, draft)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.NewCampaignResponse(campaign), "Campaign created"))
}

// GetCampaign retrieves a campaign by ID
// @Summary Get campaign by ID
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 400 {object} dto.ErrorResponse "Invalid campaign ID"
// @Failure 404 {object} dto.ErrorResponse "Campaign not found"
// @Router /campaigns/{id} [get]
func (c *CampaignController) GetCampaign(ctx *gin.Context) {
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	campaign, err := c.campaignService.GetCampaign(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewCampaignResponse(campaign), ""))
}

// UpdateCampaign applies a partial update
// @Summary Update a campaign
// @Description Edits descriptive fields and moves the status along planned, in_progress, completed or cancelled. Status changes are staff-only.
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param request body dto.UpdateCampaignRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 400 {object} dto.ErrorResponse "Malformed patch"
// @Failure 403 {object} dto.ErrorResponse "Status change by non-staff"
// @Failure 404 {object} dto.ErrorResponse "Campaign not found"
// @Failure 409 {object} dto.ErrorResponse "Illegal status transition"
// @Router /campaigns/{id} [patch]
func (c *CampaignController) UpdateCampaign(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	var req dto.UpdateCampaignRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	campaign, err := c.campaignService.UpdateCampaign(ctx.Request.Context(), actor, id, patch)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewCampaignResponse(campaign), "Campaign updated"))
}

// ListCampaigns lists campaigns
// @Summary List campaigns
// @Description status=active lists campaigns that are neither completed nor cancelled
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param family query string false "health_checkup or vaccination"
// @Param status query string false "planned, in_progress, completed, cancelled or active"
// @Success 200 {object} dto.APIResponse{data=[]dto.CampaignResponse}
// @Failure 400 {object} dto.ErrorResponse "Unknown family or status"
// @Router /campaigns [get]
func (c *CampaignController) ListCampaigns(ctx *gin.Context) {
	family, err := helpers.ParseFamilyQuery(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	var campaigns []*models.Campaign
	switch status := ctx.Query("status"); status {
	case "active":
		campaigns, err = c.campaignService.ListActiveCampaigns(ctx.Request.Context(), family)
	case "":
		campaigns, err = c.campaignService.ListCampaigns(ctx.Request.Context(), models.CampaignFilter{Family: family})
	default:
		parsed, perr := models.ParseCampaignStatus(status)
		if perr != nil {
			middleware.HandleAPIError(ctx, perr)
			return
		}
		campaigns, err = c.campaignService.ListCampaigns(ctx.Request.Context(), models.CampaignFilter{Family: family, Status: parsed})
	}
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewCampaignListResponse(campaigns), ""))
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/schoolhealth/internal/app/models/dto"
	"github.com/yigit/schoolhealth/internal/app/services"
	"github.com/yigit/schoolhealth/internal/middleware"
	"github.com/yigit/schoolhealth/internal/app/auth"
	"github.com/yigit/schoolhealth/internal/pkg/helpers"
)

// AggregationController exposes on-demand counter repair
type AggregationController struct {
	aggregator services.AggregatorService
}

// NewAggregationController creates a new AggregationController
func NewAggregationController(aggregator services.AggregatorService) *AggregationController {
	return &AggregationController{aggregator: aggregator}
}

// Recompute rebuilds one campaign's counters
// @Summary Recompute campaign counters
// @Tags aggregation
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignResponse}
// @Failure 403 {object} dto.ErrorResponse "Staff only"
// @Failure 404 {object} dto.ErrorResponse "Campaign not found"
// @Failure 503 {object} dto.ErrorResponse "Backend unavailable, retry"
// @Router /campaigns/{id}/recompute [post]
func (c *AggregationController) Recompute(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	if err := auth.RequireStaff(actor, "recompute campaign counters"); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	campaign, err := c.aggregator.Recompute(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewCampaignResponse(campaign), "Counters recomputed"))
}

// Reconcile repairs stale campaign counters
// @Summary Reconcile campaign counters
// @Description Recomputes every campaign flagged stale, or every campaign with all=true
// @Tags aggregation
// @Produce json
// @Security BearerAuth
// @Param all query bool false "Recompute every campaign"
// @Success 200 {object} dto.APIResponse{data=services.ReconcileReport}
// @Failure 403 {object} dto.ErrorResponse "Staff only"
// @Router /campaigns/reconcile [post]
func (c *AggregationController) Reconcile(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	report, err := c.aggregator.Reconcile(ctx.Request.Context(), actor, helpers.ParseBoolQuery(ctx, "all"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(report, "Reconciliation finished"))
}

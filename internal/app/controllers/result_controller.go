package controllers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/app/models/dto"
	"github.com/yigit/schoolhealth/internal/app/services"
	"github.com/yigit/schoolhealth/internal/middleware"
	"github.com/yigit/schoolhealth/internal/pkg/export"
	"github.com/yigit/schoolhealth/internal/pkg/helpers"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ResultController handles result store endpoints
type ResultController struct {
	resultService   services.ResultService
	campaignService services.CampaignService
	logger          zerolog.Logger
}

// NewResultController creates a new ResultController
func NewResultController(resultService services.ResultService, campaignService services.CampaignService, logger zerolog.Logger) *ResultController {
	return &ResultController{
		resultService:   resultService,
		campaignService: campaignService,
		logger:          logger,
	}
}

// SubmitResult records a student's result
// @Summary Submit a result
// @Description Records checkup metrics or vaccination details. A second submission for the same student answers 409 RESULT_DUPLICATE, which a retrying client may treat as success.
// @Tags results
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param request body dto.SubmitResultRequest true "Result metrics"
// @Success 201 {object} dto.APIResponse{data=dto.ResultResponse}
// @Failure 400 {object} dto.ErrorResponse "Missing required metrics"
// @Failure 404 {object} dto.ErrorResponse "Campaign not found"
// @Failure 409 {object} dto.ErrorResponse "Duplicate result or campaign closed"
// @Router /campaigns/{id}/results [post]
func (c *ResultController) SubmitResult(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	campaignID, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	var req dto.SubmitResultRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	metrics, err := req.ToMetrics()
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	record, err := c.resultService.SubmitResult(ctx.Request.Context(), actor, campaignID, req.StudentID, metrics)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.NewResultResponse(record), "Result recorded"))
}

// UpdateResult edits a result
// @Summary Update a result
// @Tags results
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Result ID"
// @Param request body dto.UpdateResultRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.ResultResponse}
// @Failure 404 {object} dto.ErrorResponse "Result not found"
// @Failure 409 {object} dto.ErrorResponse "Campaign completed"
// @Router /results/{id} [patch]
func (c *ResultController) UpdateResult(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	var req dto.UpdateResultRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	record, err := c.resultService.UpdateResult(ctx.Request.Context(), actor, id, patch)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewResultResponse(record), "Result updated"))
}

// DeleteResult removes a result
// @Summary Delete a result
// @Tags results
// @Produce json
// @Security BearerAuth
// @Param id path int true "Result ID"
// @Success 200 {object} dto.APIResponse
// @Failure 403 {object} dto.ErrorResponse "Staff only"
// @Failure 404 {object} dto.ErrorResponse "Result not found"
// @Router /results/{id} [delete]
func (c *ResultController) DeleteResult(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	if err := c.resultService.DeleteResult(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Result deleted"))
}

// GetResult retrieves one result
// @Summary Get result by ID
// @Tags results
// @Produce json
// @Security BearerAuth
// @Param id path int true "Result ID"
// @Success 200 {object} dto.APIResponse{data=dto.ResultResponse}
// @Failure 404 {object} dto.ErrorResponse "Result not found"
// @Router /results/{id} [get]
func (c *ResultController) GetResult(ctx *gin.Context) {
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	record, err := c.resultService.GetResult(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewResultResponse(record), ""))
}

// ListCampaignResults lists the results of a campaign
// @Summary List a campaign's results
// @Tags results
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.ResultResponse}
// @Failure 404 {object} dto.ErrorResponse "Campaign not found"
// @Router /campaigns/{id}/results [get]
func (c *ResultController) ListCampaignResults(ctx *gin.Context) {
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	records, err := c.resultService.ListByCampaign(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewResultListResponse(records), ""))
}

// ExportCampaignResults downloads the campaign results as a spreadsheet
// @Summary Export a campaign's results
// @Tags results
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param locale query string false "en or vi"
// @Success 200 {file} file
// @Failure 403 {object} dto.ErrorResponse "Staff only"
// @Failure 404 {object} dto.ErrorResponse "Campaign not found"
// @Router /campaigns/{id}/results/export [get]
func (c *ResultController) ExportCampaignResults(ctx *gin.Context) {
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
	records, err := c.resultService.ListByCampaign(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteResults(&buf, campaign, records, models.ParseLocale(ctx.Query("locale"))); err != nil {
		c.logger.Error().Err(err).Int64("campaignID", id).Msg("Failed to render results export")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", `attachment; filename="`+export.FileName(campaign, time.Now())+`"`)
	ctx.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

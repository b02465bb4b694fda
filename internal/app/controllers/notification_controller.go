package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/app/models/dto"
	"github.com/yigit/schoolhealth/internal/app/services"
	"github.com/yigit/schoolhealth/internal/middleware"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
	"github.com/yigit/schoolhealth/internal/pkg/helpers"
)

// NotificationController serves the guardian feed and the label table
type NotificationController struct {
	notificationService services.NotificationService
}

// NewNotificationController creates a new NotificationController
func NewNotificationController(notificationService services.NotificationService) *NotificationController {
	return &NotificationController{notificationService: notificationService}
}

// GetGuardianFeed builds a guardian's notification feed
// @Summary Guardian notification feed
// @Description Consent records of every student under the guardian, newest campaign first, with examination and vaccination tabs
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Guardian ID"
// @Param family query string false "Keep one family only"
// @Param status query string false "pending, approved or completed"
// @Success 200 {object} dto.APIResponse{data=dto.NotificationFeedResponse}
// @Failure 403 {object} dto.ErrorResponse "Another guardian's feed"
// @Router /guardians/{id}/notifications [get]
func (c *NotificationController) GetGuardianFeed(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	guardianID, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	family, err := helpers.ParseFamilyQuery(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	items, err := c.notificationService.BuildFeed(ctx.Request.Context(), actor, guardianID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	if raw := ctx.Query("status"); raw != "" {
		status := models.FeedStatus(strings.ToLower(strings.TrimSpace(raw)))
		switch status {
		case models.FeedPending, models.FeedApproved, models.FeedCompleted:
			items = services.FilterByStatus(items, status)
		default:
			middleware.HandleAPIError(ctx, apperrors.NewValidationError("status", "unknown feed status "+raw))
			return
		}
	}

	feed := services.PartitionByFamily(items)
	switch family {
	case models.FamilyHealthCheckup:
		items = feed.Examinations
	case models.FamilyVaccination:
		items = feed.Vaccinations
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NotificationFeedResponse{
		Items:        items,
		Examinations: feed.Examinations,
		Vaccinations: feed.Vaccinations,
	}, ""))
}

// GetLabels returns the display labels of every status vocabulary
// @Summary Display labels
// @Tags notifications
// @Produce json
// @Param locale query string false "en or vi"
// @Success 200 {object} dto.APIResponse{data=dto.LabelTableResponse}
// @Router /labels [get]
func (c *NotificationController) GetLabels(ctx *gin.Context) {
	locale := models.ParseLocale(ctx.Query("locale"))
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.LabelTableResponse{
		Locale: locale,
		Labels: models.LabelTable(locale),
	}, ""))
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/schoolhealth/internal/app/models/dto"
	"github.com/yigit/schoolhealth/internal/app/services"
	"github.com/yigit/schoolhealth/internal/middleware"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
	"github.com/yigit/schoolhealth/internal/pkg/helpers"
)

// ConsentController handles consent ledger endpoints
type ConsentController struct {
	consentService services.ConsentService
}

// NewConsentController creates a new ConsentController
func NewConsentController(consentService services.ConsentService) *ConsentController {
	return &ConsentController{
		consentService: consentService,
	}
}

// IssueConsent offers a campaign to one student, or to the whole roster of its target grades
// @Summary Issue consent requests
// @Description Idempotent: an existing record for the (campaign, student) pair is returned unchanged
// @Tags consents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param request body dto.IssueConsentRequest true "Student, or allRoster"
// @Success 201 {object} dto.APIResponse{data=models.ConsentRecord} "Single student"
// @Success 200 {object} dto.APIResponse{data=dto.IssueConsentsResponse} "Whole roster"
// @Failure 400 {object} dto.ErrorResponse "Missing student ID"
// @Failure 404 {object} dto.ErrorResponse "Campaign not found"
// @Failure 409 {object} dto.ErrorResponse "Campaign closed"
// @Router /campaigns/{id}/consents [post]
func (c *ConsentController) IssueConsent(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	campaignID, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	var req dto.IssueConsentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	if req.AllRoster {
		records, err := c.consentService.IssueForRoster(ctx.Request.Context(), actor, campaignID)
		if err != nil {
			middleware.HandleAPIError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.IssueConsentsResponse{Issued: len(records), Consents: records}, "Consents issued"))
		return
	}
	if req.StudentID <= 0 {
		middleware.HandleAPIError(ctx, apperrors.NewValidationError("studentId", "studentId is required unless allRoster is set"))
		return
	}

	record, err := c.consentService.IssueConsent(ctx.Request.Context(), actor, campaignID, req.StudentID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(record, "Consent issued"))
}

// DecideConsent records a guardian decision
// @Summary Decide a consent
// @Tags consents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Consent ID"
// @Param request body dto.DecideConsentRequest true "Decision"
// @Success 200 {object} dto.APIResponse{data=models.ConsentRecord}
// @Failure 400 {object} dto.ErrorResponse "Missing decision or signature"
// @Failure 403 {object} dto.ErrorResponse "Not the student's guardian"
// @Failure 404 {object} dto.ErrorResponse "Consent not found"
// @Failure 409 {object} dto.ErrorResponse "Already finalized or campaign closed"
// @Router /consents/{id} [patch]
func (c *ConsentController) DecideConsent(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	var req dto.DecideConsentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	record, err := c.consentService.DecideConsent(ctx.Request.Context(), actor, id, services.ConsentDecision{
		ConsentGiven:    *req.ConsentGiven,
		ParentSignature: req.ParentSignature,
		Note:            req.Note,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(record, "Consent recorded"))
}

// GetConsent retrieves one consent record
// @Summary Get consent by ID
// @Tags consents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Consent ID"
// @Success 200 {object} dto.APIResponse{data=models.ConsentRecord}
// @Failure 403 {object} dto.ErrorResponse "Not the student's guardian"
// @Failure 404 {object} dto.ErrorResponse "Consent not found"
// @Router /consents/{id} [get]
func (c *ConsentController) GetConsent(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	record, err := c.consentService.ViewConsent(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(record, ""))
}

// ListStudentConsents lists the consent records of a student
// @Summary List a student's consents
// @Tags consents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=[]models.ConsentRecord}
// @Failure 403 {object} dto.ErrorResponse "Not the student's guardian"
// @Router /students/{id}/consents [get]
func (c *ConsentController) ListStudentConsents(ctx *gin.Context) {
	actor, ok := actorOrAbort(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	records, err := c.consentService.ListByStudent(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(records, ""))
}

// ListCampaignConsents lists the consent records of a campaign
// @Summary List a campaign's consents
// @Tags consents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=[]models.ConsentRecord}
// @Failure 404 {object} dto.ErrorResponse "Campaign not found"
// @Router /campaigns/{id}/consents [get]
func (c *ConsentController) ListCampaignConsents(ctx *gin.Context) {
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	records, err := c.consentService.ListByCampaign(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(records, ""))
}

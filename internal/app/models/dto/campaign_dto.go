package dto

import (
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/pkg/helpers"
)

// CreateCampaignRequest represents campaign creation data
type CreateCampaignRequest struct {
	Family        string `json:"family" binding:"required,family" example:"health_checkup"`
	Name          string `json:"name" binding:"required,campaign_name" example:"Spring checkup 2025"`
	Description   string `json:"description" example:"Annual physical examination"`
	ScheduledDate string `json:"scheduledDate" binding:"required" example:"2025-04-15"`
	TargetGrades  string `json:"targetGrades" binding:"required" example:"Grade 1, Grade 2"`
	CheckupTypes  string `json:"checkupTypes" example:"height, weight, vision"`
	VaccineType   string `json:"vaccineType" example:"MMR"`
	// TotalStudents is the known roster size; leave empty to derive it.
	TotalStudents *int `json:"totalStudents" binding:"omitempty,gte=0" example:"100"`
}

// ToDraft converts the request into a registry draft
func (r CreateCampaignRequest) ToDraft() (models.CampaignDraft, error) {
	family, err := models.ParseFamily(r.Family)
	if err != nil {
		return models.CampaignDraft{}, err
	}
	date, err := helpers.ParseDate("scheduledDate", r.ScheduledDate)
	if err != nil {
		return models.CampaignDraft{}, err
	}
	return models.CampaignDraft{
		Family:        family,
		Name:          r.Name,
		Description:   r.Description,
		ScheduledDate: date,
		TargetGrades:  r.TargetGrades,
		CheckupTypes:  r.CheckupTypes,
		VaccineType:   r.VaccineType,
		TotalStudents: r.TotalStudents,
	}, nil
}

// UpdateCampaignRequest represents a partial campaign update. Counters are not accepted.
type UpdateCampaignRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	ScheduledDate *string `json:"scheduledDate" example:"2025-04-20"`
	TargetGrades  *string `json:"targetGrades"`
	CheckupTypes  *string `json:"checkupTypes"`
	VaccineType   *string `json:"vaccineType"`
	Status        *string `json:"status" binding:"omitempty,campaign_status" example:"in_progress"`
}

// ToPatch converts the request into a typed patch
func (r UpdateCampaignRequest) ToPatch() (models.CampaignPatch, error) {
	patch := models.CampaignPatch{
		Name:         r.Name,
		Description:  r.Description,
		TargetGrades: r.TargetGrades,
		CheckupTypes: r.CheckupTypes,
		VaccineType:  r.VaccineType,
	}
	if r.ScheduledDate != nil {
		date, err := helpers.ParseDate("scheduledDate", *r.ScheduledDate)
		if err != nil {
			return patch, err
		}
		patch.ScheduledDate = &date
	}
	if r.Status != nil {
		status, err := models.ParseCampaignStatus(*r.Status)
		if err != nil {
			return patch, err
		}
		patch.Status = &status
	}
	return patch, nil
}

// CampaignResponse is a campaign with its read-time rates
type CampaignResponse struct {
	*models.Campaign
	ConsentRate    float64 `json:"consentRate" example:"42.5"`
	CompletionRate float64 `json:"completionRate" example:"12.25"`
}

// NewCampaignResponse wraps a campaign with its rates
func NewCampaignResponse(c *models.Campaign) CampaignResponse {
	return CampaignResponse{
		Campaign:       c,
		ConsentRate:    c.ConsentRate(),
		CompletionRate: c.CompletionRate(),
	}
}

// NewCampaignListResponse wraps every campaign of a listing
func NewCampaignListResponse(campaigns []*models.Campaign) []CampaignResponse {
	out := make([]CampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, NewCampaignResponse(c))
	}
	return out
}

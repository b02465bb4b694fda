package dto

import (
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/pkg/helpers"
)

// SubmitResultRequest carries the measured metrics for either family
type SubmitResultRequest struct {
	StudentID int64 `json:"studentId" binding:"required,gt=0" example:"9"`

	Height           *float64 `json:"height" binding:"omitempty,gte=0" example:"140"`
	Weight           *float64 `json:"weight" binding:"omitempty,gte=0" example:"35"`
	BloodPressure    string   `json:"bloodPressure" example:"110/70"`
	VisionTest       string   `json:"visionTest" example:"10/10"`
	HearingTest      string   `json:"hearingTest" example:"normal"`
	GeneralHealth    string   `json:"generalHealth" example:"good"`
	Recommendations  string   `json:"recommendations"`
	CheckupDate      *string  `json:"checkupDate" example:"2025-04-15"`
	RequiresFollowup bool     `json:"requiresFollowup"`

	VaccineType     string  `json:"vaccineType" example:"MMR"`
	BatchNumber     string  `json:"batchNumber" example:"B-2025-001"`
	SideEffects     string  `json:"sideEffects"`
	Outcome         string  `json:"outcome" example:"administered"`
	VaccinationDate *string `json:"vaccinationDate" example:"2025-04-15"`
}

// ToMetrics converts the request into result metrics
func (r SubmitResultRequest) ToMetrics() (models.ResultMetrics, error) {
	checkupDate, err := helpers.ParseOptionalDate("checkupDate", r.CheckupDate)
	if err != nil {
		return models.ResultMetrics{}, err
	}
	vaccinationDate, err := helpers.ParseOptionalDate("vaccinationDate", r.VaccinationDate)
	if err != nil {
		return models.ResultMetrics{}, err
	}
	return models.ResultMetrics{
		CheckupMetrics: models.CheckupMetrics{
			Height:          r.Height,
			Weight:          r.Weight,
			BloodPressure:   r.BloodPressure,
			VisionTest:      r.VisionTest,
			HearingTest:     r.HearingTest,
			GeneralHealth:   r.GeneralHealth,
			Recommendations: r.Recommendations,
			CheckupDate:     checkupDate,
		},
		VaccinationDetails: models.VaccinationDetails{
			VaccineType:     r.VaccineType,
			BatchNumber:     r.BatchNumber,
			SideEffects:     r.SideEffects,
			Outcome:         r.Outcome,
			VaccinationDate: vaccinationDate,
		},
		RequiresFollowup: r.RequiresFollowup,
	}, nil
}

// UpdateResultRequest is a partial result edit
type UpdateResultRequest struct {
	Height           *float64 `json:"height" binding:"omitempty,gte=0"`
	Weight           *float64 `json:"weight" binding:"omitempty,gte=0"`
	BloodPressure    *string  `json:"bloodPressure"`
	VisionTest       *string  `json:"visionTest"`
	HearingTest      *string  `json:"hearingTest"`
	GeneralHealth    *string  `json:"generalHealth"`
	Recommendations  *string  `json:"recommendations"`
	CheckupDate      *string  `json:"checkupDate"`
	RequiresFollowup *bool    `json:"requiresFollowup"`
	VaccineType      *string  `json:"vaccineType"`
	BatchNumber      *string  `json:"batchNumber"`
	SideEffects      *string  `json:"sideEffects"`
	Outcome          *string  `json:"outcome"`
	VaccinationDate  *string  `json:"vaccinationDate"`
}

// ToPatch converts the request into a typed patch
func (r UpdateResultRequest) ToPatch() (models.ResultPatch, error) {
	checkupDate, err := helpers.ParseOptionalDate("checkupDate", r.CheckupDate)
	if err != nil {
		return models.ResultPatch{}, err
	}
	vaccinationDate, err := helpers.ParseOptionalDate("vaccinationDate", r.VaccinationDate)
	if err != nil {
		return models.ResultPatch{}, err
	}
	return models.ResultPatch{
		Height:           r.Height,
		Weight:           r.Weight,
		BloodPressure:    r.BloodPressure,
		VisionTest:       r.VisionTest,
		HearingTest:      r.HearingTest,
		GeneralHealth:    r.GeneralHealth,
		Recommendations:  r.Recommendations,
		CheckupDate:      checkupDate,
		RequiresFollowup: r.RequiresFollowup,
		VaccineType:      r.VaccineType,
		BatchNumber:      r.BatchNumber,
		SideEffects:      r.SideEffects,
		Outcome:          r.Outcome,
		VaccinationDate:  vaccinationDate,
	}, nil
}

// ResultResponse adds the display identity of the follow-up flag
type ResultResponse struct {
	*models.ResultRecord
	Followup models.FollowupFlag `json:"followup" example:"not_required"`
}

// NewResultResponse wraps a result record
func NewResultResponse(r *models.ResultRecord) ResultResponse {
	return ResultResponse{ResultRecord: r, Followup: models.FollowupFlagOf(r.RequiresFollowup)}
}

// NewResultListResponse wraps every result of a listing
func NewResultListResponse(records []*models.ResultRecord) []ResultResponse {
	out := make([]ResultResponse, 0, len(records))
	for _, r := range records {
		out = append(out, NewResultResponse(r))
	}
	return out
}

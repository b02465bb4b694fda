package models

import (
	"strings"
	"time"
)

// CheckupMetrics are recorded for the health checkup family.
type CheckupMetrics struct {
	Height          *float64   `db:"height" json:"height,omitempty"` // cm
	Weight          *float64   `db:"weight" json:"weight,omitempty"` // kg
	BloodPressure   string     `db:"blood_pressure" json:"bloodPressure,omitempty"`
	VisionTest      string     `db:"vision_test" json:"visionTest,omitempty"`
	HearingTest     string     `db:"hearing_test" json:"hearingTest,omitempty"`
	GeneralHealth   string     `db:"general_health" json:"generalHealth,omitempty"`
	Recommendations string     `db:"recommendations" json:"recommendations,omitempty"`
	CheckupDate     *time.Time `db:"checkup_date" json:"checkupDate,omitempty"`
}

// VaccinationDetails are recorded for the vaccination family.
type VaccinationDetails struct {
	VaccineType     string     `db:"vaccine_type" json:"vaccineType,omitempty"`
	BatchNumber     string     `db:"batch_number" json:"batchNumber,omitempty"`
	SideEffects     string     `db:"side_effects" json:"sideEffects,omitempty"`
	Outcome         string     `db:"outcome" json:"outcome,omitempty"`
	VaccinationDate *time.Time `db:"vaccination_date" json:"vaccinationDate,omitempty"`
}

// ResultRecord is the recorded outcome of one student's participation in a campaign.
type ResultRecord struct {
	ID         int64  `db:"id" json:"id"`
	CampaignID int64  `db:"campaign_id" json:"campaignId"`
	StudentID  int64  `db:"student_id" json:"studentId"`
	NurseID    int64  `db:"nurse_id" json:"nurseId"`
	Family     Family `db:"family" json:"family"`
	CheckupMetrics
	VaccinationDetails
	// BMI is nil unless both height and weight are positive.
	BMI              *float64  `db:"bmi" json:"bmi,omitempty"`
	RequiresFollowup bool      `db:"requires_followup" json:"requiresFollowup"`
	Version          int64     `db:"version" json:"version"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// BMI computes weight / (height/100)^2 for height in cm and weight in kg.
// ok is false when either input is not positive.
func BMI(heightCm, weightKg float64) (bmi float64, ok bool) {
	if heightCm <= 0 || weightKg <= 0 {
		return 0, false
	}
	m := heightCm / 100
	return weightKg / (m * m), true
}

// RefreshBMI recomputes the derived BMI from the current height and weight.
func (r *ResultRecord) RefreshBMI() {
	r.BMI = nil
	if r.Height == nil || r.Weight == nil {
		return
	}
	if v, ok := BMI(*r.Height, *r.Weight); ok {
		r.BMI = &v
	}
}

// ResultMetrics is the nurse's submission payload for either family.
type ResultMetrics struct {
	CheckupMetrics
	VaccinationDetails
	RequiresFollowup bool
}

// MissingFields lists required metrics absent for the given family.
func (m ResultMetrics) MissingFields(family Family) []string {
	var missing []string
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }
	switch family {
	case FamilyHealthCheckup:
		if m.Height == nil {
			missing = append(missing, "height")
		}
		if m.Weight == nil {
			missing = append(missing, "weight")
		}
		if blank(m.BloodPressure) {
			missing = append(missing, "bloodPressure")
		}
		if blank(m.VisionTest) {
			missing = append(missing, "visionTest")
		}
		if blank(m.HearingTest) {
			missing = append(missing, "hearingTest")
		}
		if blank(m.GeneralHealth) {
			missing = append(missing, "generalHealth")
		}
	case FamilyVaccination:
		if blank(m.VaccineType) {
			missing = append(missing, "vaccineType")
		}
		if blank(m.BatchNumber) {
			missing = append(missing, "batchNumber")
		}
		if blank(m.Outcome) {
			missing = append(missing, "outcome")
		}
	}
	return missing
}

// ResultPatch lists every editable result field. Nil fields are left untouched.
type ResultPatch struct {
	Height           *float64
	Weight           *float64
	BloodPressure    *string
	VisionTest       *string
	HearingTest      *string
	GeneralHealth    *string
	Recommendations  *string
	CheckupDate      *time.Time
	RequiresFollowup *bool
	VaccineType      *string
	BatchNumber      *string
	SideEffects      *string
	Outcome          *string
	VaccinationDate  *time.Time
}

// Apply writes the patch onto r and refreshes BMI when height or weight changed.
func (p ResultPatch) Apply(r *ResultRecord) {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	if p.Height != nil {
		h := *p.Height
		r.Height = &h
	}
	if p.Weight != nil {
		w := *p.Weight
		r.Weight = &w
	}
	setStr(&r.BloodPressure, p.BloodPressure)
	setStr(&r.VisionTest, p.VisionTest)
	setStr(&r.HearingTest, p.HearingTest)
	setStr(&r.GeneralHealth, p.GeneralHealth)
	setStr(&r.Recommendations, p.Recommendations)
	if p.CheckupDate != nil {
		d := *p.CheckupDate
		r.CheckupDate = &d
	}
	if p.RequiresFollowup != nil {
		r.RequiresFollowup = *p.RequiresFollowup
	}
	setStr(&r.VaccineType, p.VaccineType)
	setStr(&r.BatchNumber, p.BatchNumber)
	setStr(&r.SideEffects, p.SideEffects)
	setStr(&r.Outcome, p.Outcome)
	if p.VaccinationDate != nil {
		d := *p.VaccinationDate
		r.VaccinationDate = &d
	}
	if r.Family == FamilyVaccination {
		r.RequiresFollowup = false
	}
	if p.Height != nil || p.Weight != nil {
		r.RefreshBMI()
	}
}

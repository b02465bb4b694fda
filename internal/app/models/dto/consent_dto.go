package dto

import "github.com/yigit/schoolhealth/internal/app/models"

// IssueConsentRequest asks for one student's consent, or for every roster student of the target grades
type IssueConsentRequest struct {
	StudentID int64 `json:"studentId" binding:"omitempty,gt=0" example:"9"`
	AllRoster bool  `json:"allRoster" example:"false"`
}

// DecideConsentRequest is a guardian's decision
type DecideConsentRequest struct {
	ConsentGiven    *bool  `json:"consentGiven" binding:"required" example:"true"`
	ParentSignature string `json:"parentSignature" example:"Nguyen Van A"`
	Note            string `json:"note" example:"Allergic to penicillin"`
}

// IssueConsentsResponse reports a bulk issue
type IssueConsentsResponse struct {
	Issued   int                     `json:"issued"`
	Consents []*models.ConsentRecord `json:"consents"`
}

package models

import "time"

// ConsentRecord is a guardian's decision for one student in one campaign.
type ConsentRecord struct {
	ID              int64         `db:"id" json:"id"`
	CampaignID      int64         `db:"campaign_id" json:"campaignId"`
	StudentID       int64         `db:"student_id" json:"studentId"`
	ConsentType     Family        `db:"consent_type" json:"consentType"`
	Status          ConsentStatus `db:"status" json:"status"`
	ConsentGiven    bool          `db:"consent_given" json:"consentGiven"`
	ParentSignature string        `db:"parent_signature" json:"parentSignature,omitempty"`
	Note            string        `db:"note" json:"note,omitempty"`
	ConsentDate     *time.Time    `db:"consent_date" json:"consentDate,omitempty"`
	DecidedBy       *int64        `db:"decided_by" json:"decidedBy,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updatedAt"`
}

// ConsentTransition is applied by a conditional status update.
// Decision fields are only written when Decision is true.
type ConsentTransition struct {
	To              ConsentStatus
	Decision        bool
	ConsentGiven    bool
	ParentSignature string
	Note            string
	ConsentDate     time.Time
	DecidedBy       int64
	At              time.Time
}

// Apply writes the transition onto rec.
func (t ConsentTransition) Apply(rec *ConsentRecord) {
	rec.Status = t.To
	if t.Decision {
		rec.ConsentGiven = t.ConsentGiven
		rec.ParentSignature = t.ParentSignature
		rec.Note = t.Note
		date := t.ConsentDate
		rec.ConsentDate = &date
		decidedBy := t.DecidedBy
		rec.DecidedBy = &decidedBy
	}
	rec.UpdatedAt = t.At
}

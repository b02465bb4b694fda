package models

import "time"

// NotificationItem is the guardian-facing projection of one consent record. It is never stored.
type NotificationItem struct {
	ID              int64      `json:"id"`
	Family          Family     `json:"family"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Date            time.Time  `json:"date"`
	Status          FeedStatus `json:"status"`
	Participants    int        `json:"participants"`
	MaxParticipants int        `json:"maxParticipants"`
	Requirements    []string   `json:"requirements"`
	CampaignID      int64      `json:"campaignId"`
	ConsentRecordID int64      `json:"consentRecordId"`
	StudentID       int64      `json:"studentId"`
}

// RosterEntry is one student as reported by the roster collaborator.
type RosterEntry struct {
	StudentID  int64  `db:"id" json:"studentId"`
	GuardianID int64  `db:"guardian_id" json:"guardianId"`
	Grade      string `db:"grade" json:"grade"`
	FullName   string `db:"full_name" json:"fullName,omitempty"`
}

// Actor is the authenticated caller as supplied by the identity collaborator.
type Actor struct {
	ID   int64
	Role Role
}

// IsStaff reports whether the actor may run staff-only operations.
func (a Actor) IsStaff() bool {
	return a.ID > 0 && a.Role == RoleStaff
}

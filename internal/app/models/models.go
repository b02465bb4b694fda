package models

import (
	"fmt"
	"strings"

	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

// Family identifies the two campaign kinds. Consent records mirror it as ConsentType.
type Family string

const (
	FamilyHealthCheckup Family = "health_checkup"
	FamilyVaccination   Family = "vaccination"
)

// Families lists every campaign family in display order.
var Families = []Family{FamilyHealthCheckup, FamilyVaccination}

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignPlanned    CampaignStatus = "planned"
	CampaignInProgress CampaignStatus = "in_progress"
	CampaignCompleted  CampaignStatus = "completed"
	CampaignCancelled  CampaignStatus = "cancelled"
)

// CampaignStatuses lists every campaign status in lifecycle order.
var CampaignStatuses = []CampaignStatus{CampaignPlanned, CampaignInProgress, CampaignCompleted, CampaignCancelled}

// ConsentStatus is the state of a guardian's consent record.
type ConsentStatus string

const (
	ConsentPending   ConsentStatus = "pending"
	ConsentApproved  ConsentStatus = "approved"
	ConsentRejected  ConsentStatus = "rejected"
	ConsentCompleted ConsentStatus = "completed"
)

// ConsentStatuses lists every consent status.
var ConsentStatuses = []ConsentStatus{ConsentPending, ConsentApproved, ConsentRejected, ConsentCompleted}

// FollowupFlag is the display identity of ResultRecord.RequiresFollowup.
type FollowupFlag string

const (
	FollowupRequired    FollowupFlag = "required"
	FollowupNotRequired FollowupFlag = "not_required"
)

// FeedStatus is the status shown on a notification item.
type FeedStatus string

const (
	FeedPending   FeedStatus = "pending"
	FeedApproved  FeedStatus = "approved"
	FeedCompleted FeedStatus = "completed"
)

// Role is the actor role supplied by the identity collaborator.
type Role string

const (
	RoleParent Role = "parent"
	RoleNurse  Role = "nurse"
	RoleStaff  Role = "staff"
)

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	return f == FamilyHealthCheckup || f == FamilyVaccination
}

// Valid reports whether s is a known campaign status.
func (s CampaignStatus) Valid() bool {
	for _, v := range CampaignStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status transition is accepted from s.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignCompleted || s == CampaignCancelled
}

// Active reports whether a campaign in status s is listed as active.
func (s CampaignStatus) Active() bool {
	return s.Valid() && !s.Terminal()
}

// CanTransitionTo reports whether the campaign state machine allows s -> next.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	switch s {
	case CampaignPlanned:
		return next == CampaignInProgress || next == CampaignCancelled
	case CampaignInProgress:
		return next == CampaignCompleted || next == CampaignCancelled
	default:
		return false
	}
}

// Valid reports whether s is a known consent status.
func (s ConsentStatus) Valid() bool {
	for _, v := range ConsentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Decidable reports whether a guardian may still record a decision.
func (s ConsentStatus) Decidable() bool {
	return s == ConsentPending || s == ConsentRejected
}

// Counted reports whether a consent in status s counts towards consentReceived.
func (s ConsentStatus) Counted() bool {
	return s == ConsentApproved || s == ConsentCompleted
}

// FeedStatus projects a consent status onto the notification feed vocabulary.
func (s ConsentStatus) FeedStatus() FeedStatus {
	switch s {
	case ConsentApproved:
		return FeedApproved
	case ConsentCompleted:
		return FeedCompleted
	default:
		return FeedPending
	}
}

// FollowupFlagOf converts the stored boolean into its vocabulary identity.
func FollowupFlagOf(requiresFollowup bool) FollowupFlag {
	if requiresFollowup {
		return FollowupRequired
	}
	return FollowupNotRequired
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleNurse || r == RoleStaff
}

func normalize(raw string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
}

// ParseFamily parses a wire value into a Family.
func ParseFamily(raw string) (Family, error) {
	f := Family(normalize(raw))
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown campaign family %q", apperrors.ErrValidation, raw)
	}
	return f, nil
}

// ParseCampaignStatus parses a wire value into a CampaignStatus.
func ParseCampaignStatus(raw string) (CampaignStatus, error) {
	s := CampaignStatus(normalize(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown campaign status %q", apperrors.ErrValidation, raw)
	}
	return s, nil
}

// ParseConsentStatus parses a wire value into a ConsentStatus.
func ParseConsentStatus(raw string) (ConsentStatus, error) {
	s := ConsentStatus(normalize(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown consent status %q", apperrors.ErrValidation, raw)
	}
	return s, nil
}

// ParseRole parses a role claim.
func ParseRole(raw string) (Role, error) {
	r := Role(normalize(raw))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", apperrors.ErrValidation, raw)
	}
	return r, nil
}

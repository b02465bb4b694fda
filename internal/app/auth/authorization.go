package auth

import (
	"context"
	"fmt"

	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/app/repositories"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
	"github.com/yigit/schoolhealth/internal/pkg/logger"
)

// RequireActor fails when no authenticated actor was supplied
func RequireActor(actor models.Actor) error {
	if actor.ID <= 0 || !actor.Role.Valid() {
		return fmt.Errorf("%w: no authenticated actor", apperrors.ErrUnauthorized)
	}
	return nil
}

// RequireStaff fails unless actor is staff. action names the attempted operation in the error.
func RequireStaff(actor models.Actor, action string) error {
	if err := RequireActor(actor); err != nil {
		return err
	}
	if !actor.IsStaff() {
		return fmt.Errorf("%w: only staff can %s", apperrors.ErrUnauthorized, action)
	}
	return nil
}

// RequireMedical fails unless actor is a nurse or staff
func RequireMedical(actor models.Actor, action string) error {
	if err := RequireActor(actor); err != nil {
		return err
	}
	if actor.Role != models.RoleNurse && actor.Role != models.RoleStaff {
		return fmt.Errorf("%w: only medical staff can %s", apperrors.ErrUnauthorized, action)
	}
	return nil
}

// AuthorizationService answers ownership questions that need the roster
type AuthorizationService struct {
	roster repositories.RosterService
}

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(roster repositories.RosterService) *AuthorizationService {
	return &AuthorizationService{roster: roster}
}

// IsGuardianOf checks whether guardianID is listed as the guardian of studentID
func (s *AuthorizationService) IsGuardianOf(ctx context.Context, guardianID, studentID int64) (bool, error) {
	students, err := s.roster.StudentsOfGuardian(ctx, guardianID)
	if err != nil {
		logger.Error().Err(err).Int64("guardianID", guardianID).Msg("Error getting students of guardian")
		return false, err
	}
	for _, st := range students {
		if st.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

// ValidateConsentDecision lets staff and nurses record any decision, and parents only their own children's
func (s *AuthorizationService) ValidateConsentDecision(ctx context.Context, actor models.Actor, studentID int64) error {
	if err := RequireActor(actor); err != nil {
		return err
	}
	if actor.Role != models.RoleParent {
		return nil
	}
	ok, err := s.IsGuardianOf(ctx, actor.ID, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: guardian %d is not responsible for student %d", apperrors.ErrUnauthorized, actor.ID, studentID)
	}
	return nil
}

// ValidateFeedAccess lets a parent read only their own feed. Staff and nurses may read any.
func (s *AuthorizationService) ValidateFeedAccess(actor models.Actor, guardianID int64) error {
	if err := RequireActor(actor); err != nil {
		return err
	}
	if actor.Role == models.RoleParent && actor.ID != guardianID {
		return fmt.Errorf("%w: cannot read another guardian's notifications", apperrors.ErrUnauthorized)
	}
	return nil
}

// ValidateStudentAccess applies the same rule to a student's consent list
func (s *AuthorizationService) ValidateStudentAccess(ctx context.Context, actor models.Actor, studentID int64) error {
	return s.ValidateConsentDecision(ctx, actor, studentID)
}

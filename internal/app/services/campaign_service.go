package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yigit/schoolhealth/internal/app/auth"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/app/repositories"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

// updateAttempts bounds the read-patch-write loop of UpdateCampaign under concurrent staff edits
const updateAttempts = 5

// CampaignService defines the interface for campaign registry operations
type CampaignService interface {
	CreateCampaign(ctx context.Context, actor models.Actor, draft models.CampaignDraft) (*models.Campaign, error)
	GetCampaign(ctx context.Context, id int64) (*models.Campaign, error)
	UpdateCampaign(ctx context.Context, actor models.Actor, id int64, patch models.CampaignPatch) (*models.Campaign, error)
	ListActiveCampaigns(ctx context.Context, family models.Family) ([]*models.Campaign, error)
	ListCampaigns(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, error)
}

// campaignServiceImpl implements CampaignService
type campaignServiceImpl struct {
	campaigns  repositories.CampaignStore
	aggregator AggregatorService
	logger     zerolog.Logger
}

// NewCampaignService creates a new CampaignService. The aggregator refreshes the roster-derived
// total when an edit retargets grades.
func NewCampaignService(campaigns repositories.CampaignStore, aggregator AggregatorService, logger zerolog.Logger) CampaignService {
	return &campaignServiceImpl{
		campaigns:  campaigns,
		aggregator: aggregator,
		logger:     logger,
	}
}

// validateDraft validates campaign data before any backend call
func validateDraft(draft models.CampaignDraft) error {
	if !draft.Family.Valid() {
		return apperrors.NewValidationError("family", "family must be health_checkup or vaccination")
	}
	if strings.TrimSpace(draft.Name) == "" {
		return apperrors.NewValidationError("name", "name is required")
	}
	if draft.ScheduledDate.IsZero() {
		return apperrors.NewValidationError("scheduledDate", "scheduled date is required")
	}
	if strings.TrimSpace(draft.TargetGrades) == "" {
		return apperrors.NewValidationError("targetGrades", "target grades are required")
	}
	if draft.TotalStudents != nil && *draft.TotalStudents < 0 {
		return apperrors.NewValidationError("totalStudents", "total students cannot be negative")
	}
	return nil
}

func (s *campaignServiceImpl) CreateCampaign(ctx context.Context, actor models.Actor, draft models.CampaignDraft) (*models.Campaign, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	if err := auth.RequireStaff(actor, "create campaigns"); err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		Family:        draft.Family,
		Name:          strings.TrimSpace(draft.Name),
		Description:   strings.TrimSpace(draft.Description),
		ScheduledDate: draft.ScheduledDate,
		TargetGrades:  strings.TrimSpace(draft.TargetGrades),
		CheckupTypes:  strings.TrimSpace(draft.CheckupTypes),
		VaccineType:   strings.TrimSpace(draft.VaccineType),
		Status:        models.CampaignPlanned,
		CreatedBy:     actor.ID,
	}
	if draft.TotalStudents != nil {
		total := *draft.TotalStudents
		campaign.DeclaredTotal = &total
		campaign.TotalStudents = total
	}

	created, err := s.campaigns.CreateCampaign(ctx, campaign)
	if err != nil {
		s.logger.Error().Err(err).Str("name", campaign.Name).Msg("Failed to create campaign")
		return nil, err
	}

	s.logger.Info().
		Int64("campaignID", created.ID).
		Str("family", string(created.Family)).
		Int64("createdBy", actor.ID).
		Msg("Campaign created")
	return created, nil
}

func (s *campaignServiceImpl) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	if id <= 0 {
		return nil, apperrors.NewValidationError("id", "campaign ID must be positive")
	}
	return s.campaigns.GetCampaign(ctx, id)
}

func validatePatch(patch models.CampaignPatch) error {
	if patch.Empty() {
		return apperrors.NewValidationError("patch", "no fields to update")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return apperrors.NewValidationError("name", "name cannot be empty")
	}
	if patch.TargetGrades != nil && strings.TrimSpace(*patch.TargetGrades) == "" {
		return apperrors.NewValidationError("targetGrades", "target grades cannot be empty")
	}
	if patch.ScheduledDate != nil && patch.ScheduledDate.IsZero() {
		return apperrors.NewValidationError("scheduledDate", "scheduled date cannot be empty")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return apperrors.NewValidationError("status", "unknown campaign status")
	}
	return nil
}

// applyPatch writes patch onto c and reports whether anything changed
func applyPatch(c *models.Campaign, patch models.CampaignPatch) (bool, error) {
	changed := false
	setStr := func(dst *string, src *string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if *dst != v {
			*dst = v
			changed = true
		}
	}

	if patch.Status != nil && *patch.Status != c.Status {
		if !c.Status.CanTransitionTo(*patch.Status) {
			return false, fmt.Errorf("%w: campaign %d cannot move from %s to %s",
				apperrors.ErrInvalidTransition, c.ID, c.Status, *patch.Status)
		}
		c.Status = *patch.Status
		changed = true
	}
	setStr(&c.Name, patch.Name)
	setStr(&c.Description, patch.Description)
	setStr(&c.TargetGrades, patch.TargetGrades)
	setStr(&c.CheckupTypes, patch.CheckupTypes)
	setStr(&c.VaccineType, patch.VaccineType)
	if patch.ScheduledDate != nil && !patch.ScheduledDate.Equal(c.ScheduledDate) {
		c.ScheduledDate = *patch.ScheduledDate
		changed = true
	}
	return changed, nil
}

func (s *campaignServiceImpl) UpdateCampaign(ctx context.Context, actor models.Actor, id int64, patch models.CampaignPatch) (*models.Campaign, error) {
	if id <= 0 {
		return nil, apperrors.NewValidationError("id", "campaign ID must be positive")
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	if patch.Status != nil {
		if err := auth.RequireStaff(actor, "change campaign status"); err != nil {
			return nil, err
		}
	} else if err := auth.RequireMedical(actor, "edit campaigns"); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= updateAttempts; attempt++ {
		current, err := s.campaigns.GetCampaign(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := current.Version
		grades := current.TargetGrades

		changed, err := applyPatch(current, patch)
		if err != nil {
			s.logger.Warn().Err(err).Int64("campaignID", id).Int64("actorID", actor.ID).Msg("Rejected campaign status change")
			return nil, err
		}
		if !changed {
			return current, nil
		}

		updated, err := s.campaigns.UpdateCampaign(ctx, current, expected)
		if errors.Is(err, apperrors.ErrVersionConflict) {
			s.logger.Debug().Int64("campaignID", id).Int("attempt", attempt).Msg("Concurrent campaign edit, re-applying patch")
			continue
		}
		if err != nil {
			s.logger.Error().Err(err).Int64("campaignID", id).Msg("Failed to update campaign")
			return nil, err
		}

		s.logger.Info().Int64("campaignID", id).Str("status", string(updated.Status)).Int64("actorID", actor.ID).Msg("Campaign updated")
		if updated.TargetGrades != grades && updated.DeclaredTotal == nil {
			s.aggregator.Schedule(ctx, id)
			if refreshed, err := s.campaigns.GetCampaign(ctx, id); err == nil {
				return refreshed, nil
			}
		}
		return updated, nil
	}

	return nil, fmt.Errorf("%w: campaign %d edited concurrently, retry the update", apperrors.ErrTransientIO, id)
}

func (s *campaignServiceImpl) ListActiveCampaigns(ctx context.Context, family models.Family) ([]*models.Campaign, error) {
	if family != "" && !family.Valid() {
		return nil, apperrors.NewValidationError("family", "unknown campaign family")
	}
	return s.campaigns.ListCampaigns(ctx, models.CampaignFilter{Family: family, ActiveOnly: true})
}

func (s *campaignServiceImpl) ListCampaigns(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, error) {
	if filter.Family != "" && !filter.Family.Valid() {
		return nil, apperrors.NewValidationError("family", "unknown campaign family")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError("status", "unknown campaign status")
	}
	return s.campaigns.ListCampaigns(ctx, filter)
}

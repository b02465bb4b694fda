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

// ResultService defines the interface for result store operations
type ResultService interface {
	SubmitResult(ctx context.Context, actor models.Actor, campaignID, studentID int64, metrics models.ResultMetrics) (*models.ResultRecord, error)
	UpdateResult(ctx context.Context, actor models.Actor, resultID int64, patch models.ResultPatch) (*models.ResultRecord, error)
	DeleteResult(ctx context.Context, actor models.Actor, resultID int64) error
	GetResult(ctx context.Context, id int64) (*models.ResultRecord, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]*models.ResultRecord, error)
}

// resultServiceImpl implements ResultService
type resultServiceImpl struct {
	campaigns  repositories.CampaignStore
	consents   repositories.ConsentStore
	results    repositories.ResultStore
	ledger     ConsentService
	aggregator AggregatorService
	logger     zerolog.Logger
}

// NewResultService creates a new ResultService
func NewResultService(
	repos *repositories.Repositories,
	ledger ConsentService,
	aggregator AggregatorService,
	logger zerolog.Logger,
) ResultService {
	return &resultServiceImpl{
		campaigns:  repos.Campaigns,
		consents:   repos.Consents,
		results:    repos.Results,
		ledger:     ledger,
		aggregator: aggregator,
		logger:     logger,
	}
}

func validateMeasurements(height, weight *float64) error {
	if height != nil && *height < 0 {
		return apperrors.NewValidationError("height", "height cannot be negative")
	}
	if weight != nil && *weight < 0 {
		return apperrors.NewValidationError("weight", "weight cannot be negative")
	}
	return nil
}

func (s *resultServiceImpl) SubmitResult(ctx context.Context, actor models.Actor, campaignID, studentID int64, metrics models.ResultMetrics) (*models.ResultRecord, error) {
	if campaignID <= 0 {
		return nil, apperrors.NewValidationError("campaignId", "campaign ID must be positive")
	}
	if studentID <= 0 {
		return nil, apperrors.NewValidationError("studentId", "student ID must be positive")
	}
	if err := validateMeasurements(metrics.Height, metrics.Weight); err != nil {
		return nil, err
	}
	if err := auth.RequireMedical(actor, "record results"); err != nil {
		return nil, err
	}

	campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status.Terminal() {
		return nil, fmt.Errorf("%w: campaign %d is %s", apperrors.ErrCampaignClosed, campaignID, campaign.Status)
	}
	if campaign.Family == models.FamilyVaccination && strings.TrimSpace(metrics.VaccineType) == "" {
		metrics.VaccineType = campaign.VaccineType
	}
	if missing := metrics.MissingFields(campaign.Family); len(missing) > 0 {
		return nil, apperrors.NewCustomError(apperrors.ErrValidation,
			fmt.Sprintf("missing required %s metrics: %s", campaign.Family, strings.Join(missing, ", "))).
			WithDetails(map[string]interface{}{"fields": missing})
	}

	rec := &models.ResultRecord{
		CampaignID:       campaignID,
		StudentID:        studentID,
		NurseID:          actor.ID,
		Family:           campaign.Family,
		RequiresFollowup: metrics.RequiresFollowup && campaign.Family == models.FamilyHealthCheckup,
	}
	switch campaign.Family {
	case models.FamilyHealthCheckup:
		rec.CheckupMetrics = metrics.CheckupMetrics
	case models.FamilyVaccination:
		rec.VaccinationDetails = metrics.VaccinationDetails
	}
	rec.RefreshBMI()

	stored, err := s.results.CreateResult(ctx, rec)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateResult) {
			s.logger.Info().Int64("campaignID", campaignID).Int64("studentID", studentID).Msg("Duplicate result submission rejected")
		} else {
			s.logger.Error().Err(err).Int64("campaignID", campaignID).Int64("studentID", studentID).Msg("Failed to store result")
		}
		return nil, err
	}
	s.logger.Info().
		Int64("resultID", stored.ID).
		Int64("campaignID", campaignID).
		Int64("studentID", studentID).
		Int64("nurseID", actor.ID).
		Msg("Result recorded")

	// the result write stands whatever happens below
	if s.completeConsent(ctx, campaignID, studentID) {
		return stored, nil
	}
	s.aggregator.Schedule(ctx, campaignID)
	return stored, nil
}

// completeConsent moves an approved consent of the pair to completed. It reports whether the
// ledger already scheduled the recompute.
func (s *resultServiceImpl) completeConsent(ctx context.Context, campaignID, studentID int64) bool {
	consent, err := s.consents.GetConsentByPair(ctx, campaignID, studentID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error().Err(err).Int64("campaignID", campaignID).Int64("studentID", studentID).Msg("Failed to look up consent for result")
		}
		return false
	}
	if consent.Status != models.ConsentApproved {
		s.logger.Debug().Int64("consentID", consent.ID).Str("status", string(consent.Status)).Msg("Consent not approved, left as is")
		return false
	}
	if _, err := s.ledger.MarkCompleted(ctx, consent.ID); err != nil {
		if errors.Is(err, apperrors.ErrInvalidTransition) {
			// already completed by the approval that raced this submission
			s.logger.Debug().Err(err).Int64("consentID", consent.ID).Msg("Consent no longer approved, left as is")
			return false
		}
		s.logger.Error().Err(err).Int64("consentID", consent.ID).Msg("Failed to complete consent after result")
		return false
	}
	return true
}

func validateResultPatch(p models.ResultPatch, family models.Family) error {
	if err := validateMeasurements(p.Height, p.Weight); err != nil {
		return err
	}
	required := map[string]*string{}
	switch family {
	case models.FamilyHealthCheckup:
		required["bloodPressure"] = p.BloodPressure
		required["visionTest"] = p.VisionTest
		required["hearingTest"] = p.HearingTest
		required["generalHealth"] = p.GeneralHealth
	case models.FamilyVaccination:
		required["vaccineType"] = p.VaccineType
		required["batchNumber"] = p.BatchNumber
		required["outcome"] = p.Outcome
	}
	for field, v := range required {
		if v != nil && strings.TrimSpace(*v) == "" {
			return apperrors.NewValidationError(field, field+" cannot be cleared")
		}
	}
	return nil
}

func (s *resultServiceImpl) UpdateResult(ctx context.Context, actor models.Actor, resultID int64, patch models.ResultPatch) (*models.ResultRecord, error) {
	if resultID <= 0 {
		return nil, apperrors.NewValidationError("id", "result ID must be positive")
	}
	if err := auth.RequireMedical(actor, "edit results"); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= updateAttempts; attempt++ {
		current, err := s.results.GetResult(ctx, resultID)
		if err != nil {
			return nil, err
		}
		if err := validateResultPatch(patch, current.Family); err != nil {
			return nil, err
		}
		campaign, err := s.campaigns.GetCampaign(ctx, current.CampaignID)
		if err != nil {
			return nil, err
		}
		if campaign.Status == models.CampaignCompleted {
			return nil, fmt.Errorf("%w: campaign %d is completed, results are read-only", apperrors.ErrCampaignClosed, campaign.ID)
		}

		expected := current.Version
		followup := current.RequiresFollowup
		patch.Apply(current)
		updated, err := s.results.UpdateResult(ctx, current, expected)
		if errors.Is(err, apperrors.ErrVersionConflict) {
			s.logger.Debug().Int64("resultID", resultID).Int("attempt", attempt).Msg("Concurrent result edit, re-applying patch")
			continue
		}
		if errors.Is(err, apperrors.ErrCampaignClosed) {
			return nil, err
		}
		if err != nil {
			s.logger.Error().Err(err).Int64("resultID", resultID).Msg("Failed to update result")
			return nil, err
		}

		s.logger.Info().Int64("resultID", resultID).Int64("actorID", actor.ID).Msg("Result updated")
		if updated.RequiresFollowup != followup {
			s.aggregator.Schedule(ctx, updated.CampaignID)
		}
		return updated, nil
	}

	return nil, fmt.Errorf("%w: result %d edited concurrently, retry the update", apperrors.ErrTransientIO, resultID)
}

func (s *resultServiceImpl) DeleteResult(ctx context.Context, actor models.Actor, resultID int64) error {
	if resultID <= 0 {
		return apperrors.NewValidationError("id", "result ID must be positive")
	}
	if err := auth.RequireStaff(actor, "delete results"); err != nil {
		return err
	}

	current, err := s.results.GetResult(ctx, resultID)
	if err != nil {
		return err
	}
	if err := s.results.DeleteResult(ctx, resultID); err != nil {
		s.logger.Error().Err(err).Int64("resultID", resultID).Msg("Failed to delete result")
		return err
	}

	// the linked consent keeps its completed status
	s.logger.Info().Int64("resultID", resultID).Int64("campaignID", current.CampaignID).Int64("actorID", actor.ID).Msg("Result deleted")
	s.aggregator.Schedule(ctx, current.CampaignID)
	return nil
}

func (s *resultServiceImpl) GetResult(ctx context.Context, id int64) (*models.ResultRecord, error) {
	if id <= 0 {
		return nil, apperrors.NewValidationError("id", "result ID must be positive")
	}
	return s.results.GetResult(ctx, id)
}

func (s *resultServiceImpl) ListByCampaign(ctx context.Context, campaignID int64) ([]*models.ResultRecord, error) {
	if campaignID <= 0 {
		return nil, apperrors.NewValidationError("id", "campaign ID must be positive")
	}
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.results.ListResultsByCampaign(ctx, campaignID)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/schoolhealth/internal/app/auth"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/app/repositories"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

// ConsentDecision is a guardian's answer to a consent request
type ConsentDecision struct {
	ConsentGiven    bool
	ParentSignature string
	Note            string
}

// ConsentService defines the interface for consent ledger operations
type ConsentService interface {
	IssueConsent(ctx context.Context, actor models.Actor, campaignID, studentID int64) (*models.ConsentRecord, error)
	IssueForRoster(ctx context.Context, actor models.Actor, campaignID int64) ([]*models.ConsentRecord, error)
	DecideConsent(ctx context.Context, actor models.Actor, consentID int64, decision ConsentDecision) (*models.ConsentRecord, error)
	MarkCompleted(ctx context.Context, consentID int64) (*models.ConsentRecord, error)
	GetConsent(ctx context.Context, id int64) (*models.ConsentRecord, error)
	// ViewConsent is GetConsent restricted to the student's guardian, nurses and staff
	ViewConsent(ctx context.Context, actor models.Actor, id int64) (*models.ConsentRecord, error)
	ListByStudent(ctx context.Context, actor models.Actor, studentID int64) ([]*models.ConsentRecord, error)
	ListByCampaign(ctx context.Context, campaignID int64) ([]*models.ConsentRecord, error)
}

// consentServiceImpl implements ConsentService
type consentServiceImpl struct {
	campaigns  repositories.CampaignStore
	consents   repositories.ConsentStore
	results    repositories.ResultStore
	roster     repositories.RosterService
	aggregator AggregatorService
	authz      *auth.AuthorizationService
	now        func() time.Time
	logger     zerolog.Logger
}

// NewConsentService creates a new ConsentService
func NewConsentService(
	repos *repositories.Repositories,
	aggregator AggregatorService,
	authz *auth.AuthorizationService,
	logger zerolog.Logger,
) ConsentService {
	return &consentServiceImpl{
		campaigns:  repos.Campaigns,
		consents:   repos.Consents,
		results:    repos.Results,
		roster:     repos.Roster,
		aggregator: aggregator,
		authz:      authz,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// openCampaign loads the campaign and rejects it when it no longer takes consents
func (s *consentServiceImpl) openCampaign(ctx context.Context, campaignID int64) (*models.Campaign, error) {
	campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status.Terminal() {
		return nil, fmt.Errorf("%w: campaign %d is %s", apperrors.ErrCampaignClosed, campaignID, campaign.Status)
	}
	return campaign, nil
}

func (s *consentServiceImpl) issue(ctx context.Context, campaign *models.Campaign, studentID int64) (*models.ConsentRecord, bool, error) {
	rec, created, err := s.consents.IssueConsent(ctx, &models.ConsentRecord{
		CampaignID:  campaign.ID,
		StudentID:   studentID,
		ConsentType: campaign.Family,
		Status:      models.ConsentPending,
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("campaignID", campaign.ID).Int64("studentID", studentID).Msg("Failed to issue consent")
		return nil, false, err
	}
	return rec, created, nil
}

func (s *consentServiceImpl) IssueConsent(ctx context.Context, actor models.Actor, campaignID, studentID int64) (*models.ConsentRecord, error) {
	if campaignID <= 0 {
		return nil, apperrors.NewValidationError("campaignId", "campaign ID must be positive")
	}
	if studentID <= 0 {
		return nil, apperrors.NewValidationError("studentId", "student ID must be positive")
	}
	if err := auth.RequireMedical(actor, "issue consent requests"); err != nil {
		return nil, err
	}

	campaign, err := s.openCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	rec, created, err := s.issue(ctx, campaign, studentID)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info().Int64("consentID", rec.ID).Int64("campaignID", campaignID).Int64("studentID", studentID).Msg("Consent issued")
		s.aggregator.Schedule(ctx, campaignID)
	}
	return rec, nil
}

func (s *consentServiceImpl) IssueForRoster(ctx context.Context, actor models.Actor, campaignID int64) ([]*models.ConsentRecord, error) {
	if campaignID <= 0 {
		return nil, apperrors.NewValidationError("campaignId", "campaign ID must be positive")
	}
	if err := auth.RequireMedical(actor, "issue consent requests"); err != nil {
		return nil, err
	}

	campaign, err := s.openCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	students, err := s.roster.StudentsInGrades(ctx, models.ParseTargetGrades(campaign.TargetGrades))
	if err != nil {
		return nil, err
	}

	records := make([]*models.ConsentRecord, 0, len(students))
	createdCount := 0
	for _, st := range students {
		rec, created, err := s.issue(ctx, campaign, st.StudentID)
		if err != nil {
			// keep what was issued; a second call is idempotent
			if createdCount > 0 {
				s.aggregator.Schedule(ctx, campaignID)
			}
			return nil, err
		}
		if created {
			createdCount++
		}
		records = append(records, rec)
	}

	s.logger.Info().
		Int64("campaignID", campaignID).
		Int("roster", len(students)).
		Int("created", createdCount).
		Msg("Consents issued to roster")
	if createdCount > 0 {
		s.aggregator.Schedule(ctx, campaignID)
	}
	return records, nil
}

// finalizedError translates a failed decision precondition into the caller-facing kind
func finalizedError(rec *models.ConsentRecord) error {
	return fmt.Errorf("%w: consent %d is already %s", apperrors.ErrAlreadyFinalized, rec.ID, rec.Status)
}

func (s *consentServiceImpl) DecideConsent(ctx context.Context, actor models.Actor, consentID int64, decision ConsentDecision) (*models.ConsentRecord, error) {
	if consentID <= 0 {
		return nil, apperrors.NewValidationError("id", "consent ID must be positive")
	}
	signature := strings.TrimSpace(decision.ParentSignature)
	if decision.ConsentGiven && signature == "" {
		return nil, apperrors.NewValidationError("parentSignature", "a signature is required to give consent")
	}
	if err := auth.RequireActor(actor); err != nil {
		return nil, err
	}

	current, err := s.consents.GetConsent(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.ValidateConsentDecision(ctx, actor, current.StudentID); err != nil {
		return nil, err
	}
	if !current.Status.Decidable() {
		return nil, finalizedError(current)
	}
	if _, err := s.openCampaign(ctx, current.CampaignID); err != nil {
		return nil, err
	}

	now := s.now()
	to := models.ConsentRejected
	if decision.ConsentGiven {
		to = models.ConsentApproved
	}
	updated, err := s.consents.TransitionConsent(ctx, consentID,
		[]models.ConsentStatus{models.ConsentPending, models.ConsentRejected},
		models.ConsentTransition{
			To:              to,
			Decision:        true,
			ConsentGiven:    decision.ConsentGiven,
			ParentSignature: signature,
			Note:            strings.TrimSpace(decision.Note),
			ConsentDate:     now,
			DecidedBy:       actor.ID,
			At:              now,
		})
	if errors.Is(err, apperrors.ErrStateConflict) {
		// lost a race against another decision or a completion
		return nil, finalizedError(updated)
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("consentID", consentID).Msg("Failed to record consent decision")
		return nil, err
	}

	s.logger.Info().
		Int64("consentID", consentID).
		Int64("campaignID", updated.CampaignID).
		Str("status", string(updated.Status)).
		Int64("decidedBy", actor.ID).
		Msg("Consent decided")
	if to == models.ConsentApproved {
		if completed, ok := s.completeIfExamined(ctx, updated); ok {
			return completed, nil
		}
	}
	s.aggregator.Schedule(ctx, updated.CampaignID)
	return updated, nil
}

// completeIfExamined moves a freshly approved consent on to completed when the nurse already
// recorded the student's result. MarkCompleted schedules the recompute when it succeeds.
func (s *consentServiceImpl) completeIfExamined(ctx context.Context, rec *models.ConsentRecord) (*models.ConsentRecord, bool) {
	_, err := s.results.GetResultByPair(ctx, rec.CampaignID, rec.StudentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("consentID", rec.ID).Msg("Failed to look up result for approved consent")
		return nil, false
	}

	completed, err := s.MarkCompleted(ctx, rec.ID)
	if errors.Is(err, apperrors.ErrInvalidTransition) {
		// the result submission completed it first
		if current, getErr := s.consents.GetConsent(ctx, rec.ID); getErr == nil {
			return current, true
		}
		return nil, false
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("consentID", rec.ID).Msg("Failed to complete approved consent")
		return nil, false
	}
	return completed, true
}

func (s *consentServiceImpl) MarkCompleted(ctx context.Context, consentID int64) (*models.ConsentRecord, error) {
	if consentID <= 0 {
		return nil, apperrors.NewValidationError("id", "consent ID must be positive")
	}

	updated, err := s.consents.TransitionConsent(ctx, consentID,
		[]models.ConsentStatus{models.ConsentApproved},
		models.ConsentTransition{To: models.ConsentCompleted, At: s.now()})
	if errors.Is(err, apperrors.ErrStateConflict) {
		return nil, fmt.Errorf("%w: consent %d is %s, only approved consents can be completed",
			apperrors.ErrInvalidTransition, consentID, updated.Status)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("consentID", consentID).Int64("campaignID", updated.CampaignID).Msg("Consent completed")
	s.aggregator.Schedule(ctx, updated.CampaignID)
	return updated, nil
}

func (s *consentServiceImpl) GetConsent(ctx context.Context, id int64) (*models.ConsentRecord, error) {
	if id <= 0 {
		return nil, apperrors.NewValidationError("id", "consent ID must be positive")
	}
	return s.consents.GetConsent(ctx, id)
}

func (s *consentServiceImpl) ViewConsent(ctx context.Context, actor models.Actor, id int64) (*models.ConsentRecord, error) {
	record, err := s.GetConsent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.ValidateStudentAccess(ctx, actor, record.StudentID); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *consentServiceImpl) ListByStudent(ctx context.Context, actor models.Actor, studentID int64) ([]*models.ConsentRecord, error) {
	if studentID <= 0 {
		return nil, apperrors.NewValidationError("id", "student ID must be positive")
	}
	if err := s.authz.ValidateStudentAccess(ctx, actor, studentID); err != nil {
		return nil, err
	}
	return s.consents.ListConsentsByStudent(ctx, studentID)
}

func (s *consentServiceImpl) ListByCampaign(ctx context.Context, campaignID int64) ([]*models.ConsentRecord, error) {
	if campaignID <= 0 {
		return nil, apperrors.NewValidationError("id", "campaign ID must be positive")
	}
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.consents.ListConsentsByCampaign(ctx, campaignID)
}

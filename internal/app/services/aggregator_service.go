package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/yigit/schoolhealth/internal/app/auth"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/app/repositories"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
	"github.com/yigit/schoolhealth/internal/pkg/metrics"
	"github.com/yigit/schoolhealth/internal/pkg/observability"
)

// AggregatorService keeps the derived campaign counters in line with the consent and result records
type AggregatorService interface {
	// Recompute rebuilds the counters of one campaign from source records. Safe to call redundantly.
	Recompute(ctx context.Context, campaignID int64) (*models.Campaign, error)
	// Schedule recomputes after a write, retrying transient failures. It never fails the caller:
	// when it gives up the campaign is flagged stale for Reconcile.
	Schedule(ctx context.Context, campaignID int64)
	// Reconcile recomputes stale campaigns, or every campaign when all is set.
	Reconcile(ctx context.Context, actor models.Actor, all bool) (*ReconcileReport, error)
}

// ReconcileReport summarizes one reconciliation pass
type ReconcileReport struct {
	Checked  int              `json:"checked"`
	Repaired []int64          `json:"repaired"`
	Failed   map[int64]string `json:"failed,omitempty"`
}

// AggregatorConfig bounds the retry budget of Schedule and the optimistic write loop of Recompute
type AggregatorConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	// ConflictAttempts caps how often Recompute re-reads after losing a version race.
	ConflictAttempts int
}

// DefaultAggregatorConfig is used for zero fields of a supplied config
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		MaxRetries:       4,
		InitialInterval:  50 * time.Millisecond,
		MaxInterval:      time.Second,
		MaxElapsedTime:   5 * time.Second,
		ConflictAttempts: 8,
	}
}

type aggregatorServiceImpl struct {
	campaigns repositories.CampaignStore
	consents  repositories.ConsentStore
	results   repositories.ResultStore
	roster    repositories.RosterService
	cfg       AggregatorConfig
	logger    zerolog.Logger
}

// NewAggregatorService creates a new AggregatorService
func NewAggregatorService(repos *repositories.Repositories, cfg AggregatorConfig, logger zerolog.Logger) AggregatorService {
	def := DefaultAggregatorConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = def.MaxElapsedTime
	}
	if cfg.ConflictAttempts <= 0 {
		cfg.ConflictAttempts = def.ConflictAttempts
	}
	return &aggregatorServiceImpl{
		campaigns: repos.Campaigns,
		consents:  repos.Consents,
		results:   repos.Results,
		roster:    repos.Roster,
		cfg:       cfg,
		logger:    logger.With().Str("component", "aggregator").Logger(),
	}
}

// totalStudents resolves the campaign population: declared total, then roster size of the target
// grades, then the derived count. It never drops below the students already holding records.
func (s *aggregatorServiceImpl) totalStudents(ctx context.Context, c *models.Campaign, distinct int) (int, error) {
	total := distinct
	switch {
	case c.DeclaredTotal != nil:
		total = *c.DeclaredTotal
	default:
		grades := models.ParseTargetGrades(c.TargetGrades)
		if len(grades) > 0 {
			entries, err := s.roster.StudentsInGrades(ctx, grades)
			if err != nil {
				return 0, err
			}
			if len(entries) > 0 {
				total = len(entries)
			}
		}
	}
	if total < distinct {
		total = distinct
	}
	return total, nil
}

func (s *aggregatorServiceImpl) computeCounters(ctx context.Context, c *models.Campaign) (models.CampaignCounters, error) {
	var counters models.CampaignCounters

	consents, err := s.consents.ListConsentsByCampaign(ctx, c.ID)
	if err != nil {
		return counters, err
	}
	results, err := s.results.ListResultsByCampaign(ctx, c.ID)
	if err != nil {
		return counters, err
	}

	students := make(map[int64]struct{}, len(consents)+len(results))
	for _, rec := range consents {
		students[rec.StudentID] = struct{}{}
		if rec.Status.Counted() {
			counters.ConsentReceived++
		}
	}
	for _, rec := range results {
		students[rec.StudentID] = struct{}{}
		counters.CheckupsCompleted++
		if c.Family == models.FamilyHealthCheckup && rec.RequiresFollowup {
			counters.RequiringFollowup++
		}
	}

	counters.TotalStudents, err = s.totalStudents(ctx, c, len(students))
	return counters, err
}

func (s *aggregatorServiceImpl) Recompute(ctx context.Context, campaignID int64) (*models.Campaign, error) {
	if campaignID <= 0 {
		return nil, apperrors.NewValidationError("campaignId", "campaign ID must be positive")
	}
	start := time.Now()

	for attempt := 1; attempt <= s.cfg.ConflictAttempts; attempt++ {
		campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
		if err != nil {
			metrics.ObserveRecompute(time.Since(start), metrics.OutcomeFailed)
			return nil, err
		}
		counters, err := s.computeCounters(ctx, campaign)
		if err != nil {
			metrics.ObserveRecompute(time.Since(start), metrics.OutcomeFailed)
			return nil, err
		}
		if counters == campaign.CampaignCounters && !campaign.CountersStale {
			metrics.ObserveRecompute(time.Since(start), metrics.OutcomeUnchanged)
			return campaign, nil
		}

		updated, err := s.campaigns.ApplyCounters(ctx, campaignID, campaign.Version, counters)
		if errors.Is(err, apperrors.ErrVersionConflict) {
			s.logger.Debug().Int64("campaignID", campaignID).Int("attempt", attempt).Msg("Counter write lost a version race, recomputing")
			continue
		}
		if err != nil {
			metrics.ObserveRecompute(time.Since(start), metrics.OutcomeFailed)
			return nil, err
		}

		s.logger.Debug().
			Int64("campaignID", campaignID).
			Int("totalStudents", counters.TotalStudents).
			Int("consentReceived", counters.ConsentReceived).
			Int("checkupsCompleted", counters.CheckupsCompleted).
			Int("requiringFollowup", counters.RequiringFollowup).
			Msg("Campaign counters recomputed")
		metrics.ObserveRecompute(time.Since(start), metrics.OutcomeWritten)
		return updated, nil
	}

	metrics.ObserveRecompute(time.Since(start), metrics.OutcomeFailed)
	return nil, fmt.Errorf("%w: campaign %d counters still contended after %d attempts", apperrors.ErrTransientIO, campaignID, s.cfg.ConflictAttempts)
}

func (s *aggregatorServiceImpl) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.MaxInterval = s.cfg.MaxInterval
	b.MaxElapsedTime = s.cfg.MaxElapsedTime
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxRetries)), ctx)
}

func (s *aggregatorServiceImpl) Schedule(ctx context.Context, campaignID int64) {
	op := func() error {
		_, err := s.Recompute(ctx, campaignID)
		if err != nil && !apperrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.RecomputeRetries.Inc()
		s.logger.Warn().Err(err).Int64("campaignID", campaignID).Dur("retryIn", wait).Msg("Recompute failed, retrying")
	}

	err := backoff.RetryNotify(op, s.newBackOff(ctx), notify)
	if err == nil {
		return
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn().Err(err).Int64("campaignID", campaignID).Msg("Recompute skipped, campaign not found")
		return
	}

	// the caller's write stands; flag the campaign so a reconcile pass repairs it
	flagCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if flagErr := s.campaigns.SetCountersStale(flagCtx, campaignID, true); flagErr != nil {
		s.logger.Error().Err(flagErr).Int64("campaignID", campaignID).Msg("Failed to flag campaign counters as stale")
	}
	metrics.StaleCampaigns.Inc()
	observability.CaptureErr(fmt.Errorf("recompute campaign %d: %w", campaignID, err))
	s.logger.Error().Err(err).Int64("campaignID", campaignID).Msg("Recompute gave up, campaign counters left stale")
}

func (s *aggregatorServiceImpl) Reconcile(ctx context.Context, actor models.Actor, all bool) (*ReconcileReport, error) {
	if err := auth.RequireStaff(actor, "reconcile campaign counters"); err != nil {
		return nil, err
	}

	campaigns, err := s.campaigns.ListCampaigns(ctx, models.CampaignFilter{StaleOnly: !all})
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{Repaired: []int64{}}
	for _, c := range campaigns {
		report.Checked++
		updated, err := s.Recompute(ctx, c.ID)
		if err != nil {
			if report.Failed == nil {
				report.Failed = make(map[int64]string)
			}
			report.Failed[c.ID] = err.Error()
			s.logger.Error().Err(err).Int64("campaignID", c.ID).Msg("Reconcile failed for campaign")
			continue
		}
		if updated.Version != c.Version {
			report.Repaired = append(report.Repaired, c.ID)
		}
	}

	s.logger.Info().
		Int("checked", report.Checked).
		Int("repaired", len(report.Repaired)).
		Int("failed", len(report.Failed)).
		Bool("all", all).
		Msg("Counter reconciliation finished")
	return report, nil
}

package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
	"github.com/yigit/schoolhealth/internal/pkg/dberrors"
	"github.com/yigit/schoolhealth/internal/pkg/logger"
)

var campaignColumns = []string{
	"id", "family", "name", "description", "scheduled_date", "target_grades", "checkup_types", "vaccine_type",
	"status", "declared_total", "total_students", "consent_received", "checkups_completed", "requiring_followup",
	"counters_stale", "version", "created_by", "created_at", "updated_at",
}

// CampaignRepository handles campaign database operations
type CampaignRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository(db *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	c := &models.Campaign{}
	err := row.Scan(
		&c.ID, &c.Family, &c.Name, &c.Description, &c.ScheduledDate, &c.TargetGrades, &c.CheckupTypes, &c.VaccineType,
		&c.Status, &c.DeclaredTotal, &c.TotalStudents, &c.ConsentReceived, &c.CheckupsCompleted, &c.RequiringFollowup,
		&c.CountersStale, &c.Version, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCampaign inserts a campaign and returns the stored row
func (r *CampaignRepository) CreateCampaign(ctx context.Context, campaign *models.Campaign) (*models.Campaign, error) {
	sql, args, err := r.sb.Insert("campaigns").
		Columns("family", "name", "description", "scheduled_date", "target_grades", "checkup_types", "vaccine_type",
			"status", "declared_total", "total_students", "consent_received", "checkups_completed", "requiring_followup",
			"created_by").
		Values(campaign.Family, campaign.Name, campaign.Description, campaign.ScheduledDate, campaign.TargetGrades,
			campaign.CheckupTypes, campaign.VaccineType, campaign.Status, campaign.DeclaredTotal, campaign.TotalStudents,
			campaign.ConsentReceived, campaign.CheckupsCompleted, campaign.RequiringFollowup, campaign.CreatedBy).
		Suffix("RETURNING " + joinColumns(campaignColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create campaign SQL")
		return nil, fmt.Errorf("failed to build create campaign query: %w", err)
	}

	stored, err := scanCampaign(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		logger.Error().Err(err).Str("name", campaign.Name).Msg("Error executing create campaign query")
		return nil, dberrors.Wrap(err, "create campaign")
	}
	return stored, nil
}

// GetCampaign retrieves a campaign by ID
func (r *CampaignRepository) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	sql, args, err := r.sb.Select(campaignColumns...).
		From("campaigns").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get campaign SQL")
		return nil, fmt.Errorf("failed to build get campaign query: %w", err)
	}

	c, err := scanCampaign(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, dberrors.Wrap(err, fmt.Sprintf("get campaign %d", id))
	}
	return c, nil
}

// ListCampaigns retrieves campaigns matching the filter, soonest first
func (r *CampaignRepository) ListCampaigns(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, error) {
	q := r.sb.Select(campaignColumns...).From("campaigns")
	if filter.Family != "" {
		q = q.Where(squirrel.Eq{"family": filter.Family})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.ActiveOnly {
		q = q.Where(squirrel.NotEq{"status": []models.CampaignStatus{models.CampaignCompleted, models.CampaignCancelled}})
	}
	if filter.StaleOnly {
		q = q.Where(squirrel.Eq{"counters_stale": true})
	}
	sql, args, err := q.OrderBy("scheduled_date ASC", "id ASC").ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list campaigns SQL")
		return nil, fmt.Errorf("failed to build list campaigns query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list campaigns query")
		return nil, dberrors.Wrap(err, "list campaigns")
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, dberrors.Wrap(err, "scan campaign")
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dberrors.Wrap(err, "iterate campaigns")
	}
	return campaigns, nil
}

// UpdateCampaign writes descriptive fields and status under an optimistic version check
func (r *CampaignRepository) UpdateCampaign(ctx context.Context, campaign *models.Campaign, expectedVersion int64) (*models.Campaign, error) {
	sql, args, err := r.sb.Update("campaigns").
		SetMap(map[string]interface{}{
			"name":           campaign.Name,
			"description":    campaign.Description,
			"scheduled_date": campaign.ScheduledDate,
			"target_grades":  campaign.TargetGrades,
			"checkup_types":  campaign.CheckupTypes,
			"vaccine_type":   campaign.VaccineType,
			"status":         campaign.Status,
			"version":        squirrel.Expr("version + 1"),
			"updated_at":     time.Now().UTC(),
		}).
		Where(squirrel.Eq{"id": campaign.ID, "version": expectedVersion}).
		Suffix("RETURNING " + joinColumns(campaignColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update campaign SQL")
		return nil, fmt.Errorf("failed to build update campaign query: %w", err)
	}
	return r.versionedWrite(ctx, campaign.ID, sql, args)
}

// ApplyCounters replaces the derived counters under an optimistic version check and clears the stale flag
func (r *CampaignRepository) ApplyCounters(ctx context.Context, id int64, expectedVersion int64, counters models.CampaignCounters) (*models.Campaign, error) {
	sql, args, err := r.sb.Update("campaigns").
		SetMap(map[string]interface{}{
			"total_students":     counters.TotalStudents,
			"consent_received":   counters.ConsentReceived,
			"checkups_completed": counters.CheckupsCompleted,
			"requiring_followup": counters.RequiringFollowup,
			"counters_stale":     false,
			"version":            squirrel.Expr("version + 1"),
			"updated_at":         time.Now().UTC(),
		}).
		Where(squirrel.Eq{"id": id, "version": expectedVersion}).
		Suffix("RETURNING " + joinColumns(campaignColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building apply counters SQL")
		return nil, fmt.Errorf("failed to build apply counters query: %w", err)
	}
	return r.versionedWrite(ctx, id, sql, args)
}

// versionedWrite runs a conditional UPDATE ... RETURNING and tells a lost race apart from a missing row.
func (r *CampaignRepository) versionedWrite(ctx context.Context, id int64, sql string, args []interface{}) (*models.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRow(ctx, sql, args...))
	if err == nil {
		return c, nil
	}
	wrapped := dberrors.Wrap(err, fmt.Sprintf("update campaign %d", id))
	if !apperrors.Is(wrapped, apperrors.ErrNotFound) {
		logger.Error().Err(err).Int64("campaignID", id).Msg("Error executing campaign update")
		return nil, wrapped
	}
	if _, getErr := r.GetCampaign(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("update campaign %d: %w", id, apperrors.ErrVersionConflict)
}

// SetCountersStale flags or clears a campaign whose counters could not be recomputed
func (r *CampaignRepository) SetCountersStale(ctx context.Context, id int64, stale bool) error {
	sql, args, err := r.sb.Update("campaigns").
		Set("counters_stale", stale).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build set stale query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return dberrors.Wrap(err, fmt.Sprintf("set campaign %d stale", id))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaign %d: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

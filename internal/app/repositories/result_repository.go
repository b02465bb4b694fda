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

const resultPairConstraint = "result_records_campaign_student_key"

var resultColumns = []string{
	"id", "campaign_id", "student_id", "nurse_id", "family",
	"height", "weight", "blood_pressure", "vision_test", "hearing_test", "general_health", "recommendations", "checkup_date",
	"vaccine_type", "batch_number", "side_effects", "outcome", "vaccination_date",
	"bmi", "requires_followup", "version", "created_at", "updated_at",
}

// ResultRepository handles result record database operations
type ResultRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewResultRepository creates a new ResultRepository
func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanResult(row pgx.Row) (*models.ResultRecord, error) {
	r := &models.ResultRecord{}
	err := row.Scan(&r.ID, &r.CampaignID, &r.StudentID, &r.NurseID, &r.Family,
		&r.Height, &r.Weight, &r.BloodPressure, &r.VisionTest, &r.HearingTest, &r.GeneralHealth, &r.Recommendations, &r.CheckupDate,
		&r.VaccineType, &r.BatchNumber, &r.SideEffects, &r.Outcome, &r.VaccinationDate,
		&r.BMI, &r.RequiresFollowup, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// resultValues maps the writable result columns onto rec
func resultValues(rec *models.ResultRecord) map[string]interface{} {
	return map[string]interface{}{
		"height":            rec.Height,
		"weight":            rec.Weight,
		"blood_pressure":    rec.BloodPressure,
		"vision_test":       rec.VisionTest,
		"hearing_test":      rec.HearingTest,
		"general_health":    rec.GeneralHealth,
		"recommendations":   rec.Recommendations,
		"checkup_date":      rec.CheckupDate,
		"vaccine_type":      rec.VaccineType,
		"batch_number":      rec.BatchNumber,
		"side_effects":      rec.SideEffects,
		"outcome":           rec.Outcome,
		"vaccination_date":  rec.VaccinationDate,
		"bmi":               rec.BMI,
		"requires_followup": rec.RequiresFollowup,
	}
}

// CreateResult inserts a result; the unique (campaign, student) index turns a race into ErrDuplicateResult
func (r *ResultRepository) CreateResult(ctx context.Context, rec *models.ResultRecord) (*models.ResultRecord, error) {
	values := resultValues(rec)
	values["campaign_id"] = rec.CampaignID
	values["student_id"] = rec.StudentID
	values["nurse_id"] = rec.NurseID
	values["family"] = rec.Family

	sql, args, err := r.sb.Insert("result_records").
		SetMap(values).
		Suffix("RETURNING " + joinColumns(resultColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create result SQL")
		return nil, fmt.Errorf("failed to build create result query: %w", err)
	}

	stored, err := scanResult(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, resultPairConstraint) {
			return nil, fmt.Errorf("campaign %d student %d: %w", rec.CampaignID, rec.StudentID, apperrors.ErrDuplicateResult)
		}
		logger.Error().Err(err).Int64("campaignID", rec.CampaignID).Int64("studentID", rec.StudentID).Msg("Error executing create result query")
		return nil, dberrors.Wrap(err, "create result")
	}
	return stored, nil
}

// GetResult retrieves a result by ID
func (r *ResultRepository) GetResult(ctx context.Context, id int64) (*models.ResultRecord, error) {
	sql, args, err := r.sb.Select(resultColumns...).
		From("result_records").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get result query: %w", err)
	}
	rec, err := scanResult(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, dberrors.Wrap(err, fmt.Sprintf("get result %d", id))
	}
	return rec, nil
}

// GetResultByPair retrieves the result of one student in one campaign
func (r *ResultRepository) GetResultByPair(ctx context.Context, campaignID, studentID int64) (*models.ResultRecord, error) {
	sql, args, err := r.sb.Select(resultColumns...).
		From("result_records").
		Where(squirrel.Eq{"campaign_id": campaignID, "student_id": studentID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get result by pair query: %w", err)
	}
	rec, err := scanResult(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, dberrors.Wrap(err, fmt.Sprintf("get result campaign %d student %d", campaignID, studentID))
	}
	return rec, nil
}

// UpdateResult rewrites the measured fields of a result while its version matches and its campaign is not completed
func (r *ResultRepository) UpdateResult(ctx context.Context, rec *models.ResultRecord, expectedVersion int64) (*models.ResultRecord, error) {
	values := resultValues(rec)
	values["version"] = squirrel.Expr("version + 1")
	values["updated_at"] = time.Now().UTC()

	sql, args, err := r.sb.Update("result_records").
		SetMap(values).
		Where(squirrel.Eq{"id": rec.ID, "version": expectedVersion}).
		Where(squirrel.Expr("NOT EXISTS (SELECT 1 FROM campaigns c WHERE c.id = result_records.campaign_id AND c.status = ?)",
			string(models.CampaignCompleted))).
		Suffix("RETURNING " + joinColumns(resultColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update result SQL")
		return nil, fmt.Errorf("failed to build update result query: %w", err)
	}
	stored, err := scanResult(r.db.QueryRow(ctx, sql, args...))
	if err == nil {
		return stored, nil
	}
	wrapped := dberrors.Wrap(err, fmt.Sprintf("update result %d", rec.ID))
	if !apperrors.Is(wrapped, apperrors.ErrNotFound) {
		logger.Error().Err(err).Int64("resultID", rec.ID).Msg("Error executing update result query")
		return nil, wrapped
	}

	// no row matched: tell a missing result, a lost race and a closed campaign apart
	current, getErr := r.GetResult(ctx, rec.ID)
	if getErr != nil {
		return nil, getErr
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("update result %d: %w", rec.ID, apperrors.ErrVersionConflict)
	}
	return nil, fmt.Errorf("%w: campaign %d is completed, results are read-only", apperrors.ErrCampaignClosed, current.CampaignID)
}

// DeleteResult removes a result by ID
func (r *ResultRepository) DeleteResult(ctx context.Context, id int64) error {
	sql, args, err := r.sb.Delete("result_records").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete result query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("resultID", id).Msg("Error executing delete result query")
		return dberrors.Wrap(err, fmt.Sprintf("delete result %d", id))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("result %d: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// ListResultsByCampaign lists every result of a campaign
func (r *ResultRepository) ListResultsByCampaign(ctx context.Context, campaignID int64) ([]*models.ResultRecord, error) {
	sql, args, err := r.sb.Select(resultColumns...).
		From("result_records").
		Where(squirrel.Eq{"campaign_id": campaignID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list results query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("campaignID", campaignID).Msg("Error executing list results query")
		return nil, dberrors.Wrap(err, "list results")
	}
	defer rows.Close()

	records := []*models.ResultRecord{}
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, dberrors.Wrap(err, "scan result")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dberrors.Wrap(err, "iterate results")
	}
	return records, nil
}

package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
	"github.com/yigit/schoolhealth/internal/pkg/dberrors"
	"github.com/yigit/schoolhealth/internal/pkg/logger"
)

var consentColumns = []string{
	"id", "campaign_id", "student_id", "consent_type", "status", "consent_given", "parent_signature", "note",
	"consent_date", "decided_by", "created_at", "updated_at",
}

// ConsentRepository handles consent record database operations
type ConsentRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewConsentRepository creates a new ConsentRepository
func NewConsentRepository(db *pgxpool.Pool) *ConsentRepository {
	return &ConsentRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanConsent(row pgx.Row) (*models.ConsentRecord, error) {
	c := &models.ConsentRecord{}
	err := row.Scan(&c.ID, &c.CampaignID, &c.StudentID, &c.ConsentType, &c.Status, &c.ConsentGiven,
		&c.ParentSignature, &c.Note, &c.ConsentDate, &c.DecidedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// IssueConsent inserts a pending consent; an existing (campaign, student) row wins and is returned unchanged
func (r *ConsentRepository) IssueConsent(ctx context.Context, rec *models.ConsentRecord) (*models.ConsentRecord, bool, error) {
	sql, args, err := r.sb.Insert("consent_records").
		Columns("campaign_id", "student_id", "consent_type", "status").
		Values(rec.CampaignID, rec.StudentID, rec.ConsentType, rec.Status).
		Suffix("ON CONFLICT (campaign_id, student_id) DO NOTHING RETURNING " + joinColumns(consentColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building issue consent SQL")
		return nil, false, fmt.Errorf("failed to build issue consent query: %w", err)
	}

	stored, err := scanConsent(r.db.QueryRow(ctx, sql, args...))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		logger.Error().Err(err).Int64("campaignID", rec.CampaignID).Int64("studentID", rec.StudentID).Msg("Error executing issue consent query")
		return nil, false, dberrors.Wrap(err, "issue consent")
	}

	existing, err := r.GetConsentByPair(ctx, rec.CampaignID, rec.StudentID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *ConsentRepository) getOne(ctx context.Context, where squirrel.Eq, op string) (*models.ConsentRecord, error) {
	sql, args, err := r.sb.Select(consentColumns...).
		From("consent_records").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", op, err)
	}
	c, err := scanConsent(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, dberrors.Wrap(err, op)
	}
	return c, nil
}

// GetConsent retrieves a consent record by ID
func (r *ConsentRepository) GetConsent(ctx context.Context, id int64) (*models.ConsentRecord, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, fmt.Sprintf("get consent %d", id))
}

// GetConsentByPair retrieves the consent record of one student in one campaign
func (r *ConsentRepository) GetConsentByPair(ctx context.Context, campaignID, studentID int64) (*models.ConsentRecord, error) {
	return r.getOne(ctx, squirrel.Eq{"campaign_id": campaignID, "student_id": studentID}, "get consent by pair")
}

// TransitionConsent applies change only while the stored status is one of from
func (r *ConsentRepository) TransitionConsent(ctx context.Context, id int64, from []models.ConsentStatus, change models.ConsentTransition) (*models.ConsentRecord, error) {
	set := map[string]interface{}{
		"status":     change.To,
		"updated_at": change.At,
	}
	if change.Decision {
		set["consent_given"] = change.ConsentGiven
		set["parent_signature"] = change.ParentSignature
		set["note"] = change.Note
		set["consent_date"] = change.ConsentDate
		set["decided_by"] = change.DecidedBy
	}
	sql, args, err := r.sb.Update("consent_records").
		SetMap(set).
		Where(squirrel.Eq{"id": id, "status": from}).
		Suffix("RETURNING " + joinColumns(consentColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building transition consent SQL")
		return nil, fmt.Errorf("failed to build transition consent query: %w", err)
	}

	updated, err := scanConsent(r.db.QueryRow(ctx, sql, args...))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		logger.Error().Err(err).Int64("consentID", id).Msg("Error executing transition consent query")
		return nil, dberrors.Wrap(err, "transition consent")
	}

	current, getErr := r.GetConsent(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return current, fmt.Errorf("consent %d is %s: %w", id, current.Status, apperrors.ErrStateConflict)
}

func (r *ConsentRepository) list(ctx context.Context, where squirrel.Eq, op string) ([]*models.ConsentRecord, error) {
	sql, args, err := r.sb.Select(consentColumns...).
		From("consent_records").
		Where(where).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error executing consent list query")
		return nil, dberrors.Wrap(err, op)
	}
	defer rows.Close()

	records := []*models.ConsentRecord{}
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, dberrors.Wrap(err, op)
		}
		records = append(records, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dberrors.Wrap(err, op)
	}
	return records, nil
}

// ListConsentsByStudent lists every consent record of a student
func (r *ConsentRepository) ListConsentsByStudent(ctx context.Context, studentID int64) ([]*models.ConsentRecord, error) {
	return r.list(ctx, squirrel.Eq{"student_id": studentID}, "list consents by student")
}

// ListConsentsByCampaign lists every consent record of a campaign
func (r *ConsentRepository) ListConsentsByCampaign(ctx context.Context, campaignID int64) ([]*models.ConsentRecord, error) {
	return r.list(ctx, squirrel.Eq{"campaign_id": campaignID}, "list consents by campaign")
}

package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/pkg/dberrors"
	"github.com/yigit/schoolhealth/internal/pkg/logger"
)

// RosterRepository answers roster questions from the students table
type RosterRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewRosterRepository creates a new RosterRepository
func NewRosterRepository(db *pgxpool.Pool) *RosterRepository {
	return &RosterRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *RosterRepository) query(ctx context.Context, where squirrel.Sqlizer, op string) ([]models.RosterEntry, error) {
	sql, args, err := r.sb.Select("id", "guardian_id", "grade", "full_name").
		From("students").
		Where(where).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("op", op).Msg("Error executing roster query")
		return nil, dberrors.Wrap(err, op)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.RosterEntry])
	if err != nil {
		return nil, dberrors.Wrap(err, op)
	}
	return entries, nil
}

// StudentsInGrades lists students whose normalized grade is one of grades
func (r *RosterRepository) StudentsInGrades(ctx context.Context, grades []string) ([]models.RosterEntry, error) {
	if len(grades) == 0 {
		return []models.RosterEntry{}, nil
	}
	return r.query(ctx, squirrel.Eq{"grade_key": grades}, "students in grades")
}

// StudentsOfGuardian lists the students under one guardian
func (r *RosterRepository) StudentsOfGuardian(ctx context.Context, guardianID int64) ([]models.RosterEntry, error) {
	return r.query(ctx, squirrel.Eq{"guardian_id": guardianID}, "students of guardian")
}

// AddStudent inserts a roster entry
func (r *RosterRepository) AddStudent(ctx context.Context, entry models.RosterEntry) (models.RosterEntry, error) {
	sql, args, err := r.sb.Insert("students").
		Columns("guardian_id", "grade", "grade_key", "full_name").
		Values(entry.GuardianID, entry.Grade, models.NormalizeGrade(entry.Grade), entry.FullName).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return entry, fmt.Errorf("failed to build add student query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&entry.StudentID); err != nil {
		return entry, dberrors.Wrap(err, "add student")
	}
	return entry, nil
}

package dberrors

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

func TestDuplicateDetection(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "result_records_campaign_student_key"}

	assert.True(t, IsDuplicateKeyError(err))
	assert.True(t, IsDuplicateConstraintError(err, "result_records_campaign_student_key"))
	assert.False(t, IsDuplicateConstraintError(err, "consent_records_campaign_student_key"))
	assert.False(t, IsDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "get campaign"))
	assert.ErrorIs(t, Wrap(pgx.ErrNoRows, "get campaign"), apperrors.ErrNotFound)
	assert.ErrorIs(t, Wrap(context.DeadlineExceeded, "list results"), apperrors.ErrTransientIO)
	assert.ErrorIs(t, Wrap(&pgconn.PgError{Code: "40001"}, "apply counters"), apperrors.ErrTransientIO)
	assert.ErrorIs(t, Wrap(&pgconn.PgError{Code: "08006"}, "apply counters"), apperrors.ErrTransientIO)

	canceled := Wrap(context.Canceled, "list results")
	assert.ErrorIs(t, canceled, context.Canceled)
	assert.False(t, errors.Is(canceled, apperrors.ErrTransientIO))

	plain := Wrap(&pgconn.PgError{Code: "42P01"}, "list results")
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(plain))
}

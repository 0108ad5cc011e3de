package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskcore/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	unique := &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "dead_letters_id_key"}
	check := &pgconn.PgError{Code: checkViolationCode, ConstraintName: "dead_letters_operation_check"}
	notNull := &pgconn.PgError{Code: notNullViolationCode, ColumnName: "error"}
	other := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique", unique, store.ErrDuplicate},
		{"wrapped unique", fmt.Errorf("insert: %w", unique), store.ErrDuplicate},
		{"check", check, store.ErrInvalidEntity},
		{"not null", notNull, store.ErrInvalidEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			assert.ErrorIs(t, mapped, tt.want)
			assert.ErrorIs(t, mapped, tt.err)
		})
	}

	assert.Nil(t, MapError(nil))
	assert.Equal(t, other, MapError(other))
}

func TestCheckRowsAffected(t *testing.T) {
	assert.NoError(t, CheckRowsAffected(sqlmock.NewResult(0, 1), "dead letter"))
	assert.ErrorIs(t, CheckRowsAffected(sqlmock.NewResult(0, 0), "dead letter"), store.ErrNotFound)
	assert.Error(t, CheckRowsAffected(sqlmock.NewErrorResult(errors.New("boom")), "dead letter"))
	assert.Error(t, CheckRowsAffected(nil, "dead letter"))
}

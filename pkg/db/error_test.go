package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestWrapStorageErr(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"deadline", fmt.Errorf("select: %w", context.DeadlineExceeded), true},
		{"bad conn", driver.ErrBadConn, true},
		{"pg connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"pg statement timeout", &pgconn.PgError{Code: "57014"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"sqlite locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"not found", gorm.ErrRecordNotFound, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := WrapStorageErr(tc.err)
			assert.Equal(t, tc.unavailable, errors.Is(wrapped, ErrStorageUnavailable))
			if !tc.unavailable {
				assert.Same(t, tc.err, wrapped)
			}
		})
	}
	assert.NoError(t, WrapStorageErr(nil))
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: ledgers.name")))
	assert.False(t, IsDuplicateKeyErr(errors.New("boom")))
	assert.False(t, IsDuplicateKeyErr(nil))
}

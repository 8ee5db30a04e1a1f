package store

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// TestReclaimExpiredLocks_SingleConditionalUpdate pins the sweep
// primitive to one guarded UPDATE: no read-then-write pair is allowed
// anywhere near lock state.
func TestReclaimExpiredLocks_SingleConditionalUpdate(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "rooms" SET .+ WHERE status = \$[0-9]+ AND lock_expires_at <= \$[0-9]+`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	reclaimed, err := s.ReclaimExpiredLocks(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reclaimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestReleaseLock_GuardedOnOwner pins release to a single UPDATE guarded
// on both lock state and owner, which is what makes it idempotent.
func TestReleaseLock_GuardedOnOwner(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "rooms" SET .+ WHERE id = \$[0-9]+ AND status = \$[0-9]+ AND locked_by = \$[0-9]+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.ReleaseLock(context.Background(), 42, "S1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}

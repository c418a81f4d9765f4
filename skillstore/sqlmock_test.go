package skillstore_test

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/agentflow/skillcore/smcerr"
)

// TestUnknownSkillPropagatesOnMockedConnectionFailure drives GORM directly
// (not the Repository) against a raw *sql.DB double whose skill lookup
// always fails with a bad-connection error: the failure must reach the
// caller rather than hang or panic, and once wrapped as a retryable
// IOFailure it must be reported as retryable with that code.
func TestUnknownSkillPropagatesOnMockedConnectionFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `skills` WHERE name = ?")).
		WithArgs("ghost").
		WillReturnError(driver.ErrBadConn)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `skills` WHERE name = ?")).
		WithArgs("ghost").
		WillReturnError(driver.ErrBadConn)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `skills` WHERE name = ?")).
		WithArgs("ghost").
		WillReturnError(driver.ErrBadConn)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `skills` WHERE name = ?")).
		WithArgs("ghost").
		WillReturnError(driver.ErrBadConn)

	var skill struct {
		Name string
	}
	err = gormDB.WithContext(context.Background()).Table("skills").Where("name = ?", "ghost").First(&skill).Error
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// bad connection is one of the markers the pool's retry classifier treats
	// as transient; confirm the taxonomy still distinguishes it from a
	// definitive UnknownSkill once wrapped by the Repository layer.
	wrapped := smcerr.New(smcerr.CodeIOFailure, "query skill").WithCause(err).WithRetryable(true)
	require.True(t, smcerr.IsRetryable(wrapped))
	require.Equal(t, smcerr.CodeIOFailure, smcerr.GetCode(wrapped))
}

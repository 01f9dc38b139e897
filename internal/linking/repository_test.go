// AngelaMos | 2026
// repository_test.go

package linking

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/socialsync/internal/core"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return NewRepository(sqlx.NewDb(mockDB, "pgx")), mock
}

var requestColumns = []string{
	"id", "user_id", "platform", "code_hash", "state", "issued_at",
	"expires_at", "consumed_at", "platform_user_id", "updated_at",
}

func issuedRow(now time.Time, expiresAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(requestColumns).AddRow(
		"req-1", "u1", "instagram", hashCode("A1B2C3"), "issued",
		now, expiresAt, nil, nil, now,
	)
}

func TestRepositoryIssueRevokesThenInserts(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET state = 'revoked'")).
		WithArgs("u1", PlatformInstagram).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO link_requests")).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectCommit()

	err := repo.Issue(t.Context(), &LinkRequest{
		ID:        "req-1",
		UserID:    "u1",
		Platform:  PlatformInstagram,
		CodeHash:  hashCode("A1B2C3"),
		State:     StateIssued,
		IssuedAt:  now,
		ExpiresAt: now.Add(10 * time.Minute),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryIssueCodeCollision(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET state = 'revoked'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO link_requests")).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: constraintIssuedCode,
		})
	mock.ExpectRollback()

	err := repo.Issue(t.Context(), &LinkRequest{
		ID:        "req-2",
		UserID:    "u2",
		Platform:  PlatformInstagram,
		CodeHash:  hashCode("A1B2C3"),
		State:     StateIssued,
		IssuedAt:  now,
		ExpiresAt: now.Add(10 * time.Minute),
	})
	require.ErrorIs(t, err, core.ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryIssueConcurrentIssueForSamePair(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET state = 'revoked'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO link_requests")).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: constraintOneIssued,
		})
	mock.ExpectRollback()

	err := repo.Issue(t.Context(), &LinkRequest{
		ID:        "req-3",
		UserID:    "u1",
		Platform:  PlatformInstagram,
		CodeHash:  hashCode("Z9Y8X7"),
		State:     StateIssued,
		IssuedAt:  now,
		ExpiresAt: now.Add(10 * time.Minute),
	})
	require.ErrorIs(t, err, core.ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindIssuedByCodeNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM link_requests")).
		WithArgs(PlatformInstagram, "nope").
		WillReturnRows(sqlmock.NewRows(requestColumns))

	_, err := repo.FindIssuedByCode(t.Context(), PlatformInstagram, "nope")
	require.ErrorIs(t, err, ErrLinkNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryConsumeLinksNewAccount(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(issuedRow(now, now.Add(10*time.Minute)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM social_accounts")).
		WithArgs(PlatformInstagram, "123").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("SET state = 'consumed'")).
		WithArgs("req-1", now, "123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO social_accounts")).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "platform", "platform_user_id", "linked_at",
		}).AddRow("acc-1", "u1", "instagram", "123", now))
	mock.ExpectCommit()

	result, err := repo.Consume(t.Context(), "req-1", "123", now)
	require.NoError(t, err)
	assert.Equal(t, StatusLinked, result.Status)
	assert.Equal(t, "u1", result.Account.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryConsumeExpiredCommitsExpiry(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(issuedRow(now.Add(-20*time.Minute), now.Add(-10*time.Minute)))
	mock.ExpectExec(regexp.QuoteMeta("SET state = 'expired'")).
		WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.Consume(t.Context(), "req-1", "123", now)
	require.ErrorIs(t, err, ErrLinkExpired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryConsumeConflictRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(issuedRow(now, now.Add(10*time.Minute)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM social_accounts")).
		WithArgs(PlatformInstagram, "123").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "platform", "platform_user_id", "linked_at",
		}).AddRow("acc-9", "someone-else", "instagram", "123", now))
	mock.ExpectRollback()

	_, err := repo.Consume(t.Context(), "req-1", "123", now)
	require.ErrorIs(t, err, ErrLinkConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryConsumeRefusesSilentRebind(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(issuedRow(now, now.Add(10*time.Minute)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM social_accounts")).
		WithArgs(PlatformInstagram, "456").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("SET state = 'consumed'")).
		WithArgs("req-1", now, "456").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO social_accounts")).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: constraintUserPlatform,
		})
	mock.ExpectRollback()

	_, err := repo.Consume(t.Context(), "req-1", "456", now)
	require.ErrorIs(t, err, ErrUnlinkRequired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryConsumeLostRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(requestColumns))
	mock.ExpectRollback()

	_, err := repo.Consume(t.Context(), "req-1", "123", now)
	require.ErrorIs(t, err, ErrLinkNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRevoke(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM social_accounts")).
		WithArgs("u1", PlatformInstagram).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET state = 'revoked'")).
		WithArgs("u1", PlatformInstagram).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.Revoke(t.Context(), "u1", PlatformInstagram))
	require.NoError(t, mock.ExpectationsWereMet())
}

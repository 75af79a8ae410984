package apikeys

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	selectByKey = `(?s)^SELECT\s+id,\s*key,\s*description,\s*added_at,\s*last_used_at\s+FROM\s+api_keys\s+WHERE\s+key\s*=\s*\$1\s*$`
	updateUsed  = `(?s)^UPDATE\s+api_keys\s+SET\s+last_used_at\s*=\s*GREATEST\(\$2,\s*last_used_at\s*\+\s*INTERVAL\s+'1 microsecond'\)\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+last_used_at\s*$`
	insertKey   = `(?s)^INSERT\s+INTO\s+api_keys\s*\(key,\s*description\)\s*VALUES\s*\(\$1,\s*\$2\)\s*RETURNING\s+id,\s*added_at\s*$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestGetByKey_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	added := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	used := added.Add(time.Hour)

	mock.ExpectQuery(selectByKey).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "description", "added_at", "last_used_at"}).
			AddRow(int64(7), "tok", "Default API key", added, used))

	got, err := repo.GetByKey(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "Default API key", got.Description)
	require.NotNil(t, got.LastUsedAt)
	assert.True(t, got.LastUsedAt.Equal(used))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByKey_NeverUsed(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectByKey).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "description", "added_at", "last_used_at"}).
			AddRow(int64(1), "tok", "", time.Now(), nil))

	got, err := repo.GetByKey(context.Background(), "tok")
	require.NoError(t, err)
	assert.Nil(t, got.LastUsedAt)
}

func TestGetByKey_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectByKey).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByKey(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestTouchLastUsed(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Now().UTC()
	later := at.Add(time.Second)

	mock.ExpectQuery(updateUsed).WithArgs(int64(3), at).
		WillReturnRows(sqlmock.NewRows([]string{"last_used_at"}).AddRow(at))
	stored, err := repo.TouchLastUsed(context.Background(), 3, at)
	require.NoError(t, err)
	assert.True(t, stored.Equal(at))

	// Another request already stored a later value; the store's answer wins.
	mock.ExpectQuery(updateUsed).WithArgs(int64(3), at).
		WillReturnRows(sqlmock.NewRows([]string{"last_used_at"}).AddRow(later))
	stored, err = repo.TouchLastUsed(context.Background(), 3, at)
	require.NoError(t, err)
	assert.True(t, stored.Equal(later))

	mock.ExpectQuery(updateUsed).WithArgs(int64(4), at).WillReturnError(sql.ErrNoRows)
	_, err = repo.TouchLastUsed(context.Background(), 4, at)
	require.ErrorIs(t, err, common.ErrNotFound)

	mock.ExpectQuery(updateUsed).WithArgs(int64(5), at).WillReturnError(errors.New("db down"))
	_, err = repo.TouchLastUsed(context.Background(), 5, at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	added := time.Now().UTC()

	mock.ExpectQuery(insertKey).
		WithArgs("tok", "Default API key").
		WillReturnRows(sqlmock.NewRows([]string{"id", "added_at"}).AddRow(int64(9), added))

	got, err := repo.Create(context.Background(), &models.APIKey{Key: "tok", Description: "Default API key"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.ID)
	assert.True(t, got.AddedAt.Equal(added))
}

func TestCreate_DuplicateKey(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertKey).
		WithArgs("tok", "").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "api_keys_key_key"})

	_, err := repo.Create(context.Background(), &models.APIKey{Key: "tok"})
	require.ErrorIs(t, err, common.ErrConflict)
}

func TestCount(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM api_keys`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

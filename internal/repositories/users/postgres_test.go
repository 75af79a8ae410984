package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const selectByTelegramID = `(?s)^SELECT\s+id,\s*telegram_id,\s*added_at\s+FROM\s+users\s+WHERE\s+telegram_id\s*=\s*\$1\s*$`

func TestGetByTelegramID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "telegram_id", "added_at"}).AddRow(int64(5), "12345", time.Now())
	mock.ExpectQuery(selectByTelegramID).WithArgs("12345").WillReturnRows(rows)

	got, err := repo.GetByTelegramID(context.Background(), "12345")
	if err != nil {
		t.Fatalf("GetByTelegramID error: %v", err)
	}
	if got.ID != 5 || got.TelegramID != "12345" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByTelegramID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectByTelegramID).WithArgs("999").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByTelegramID(context.Background(), "999")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByTelegramID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectByTelegramID).WithArgs("1").WillReturnError(errors.New("db down"))

	_, err := repo.GetByTelegramID(context.Background(), "1")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(telegram_id\)\s*VALUES\s*\(\$1\)\s*RETURNING\s+id,\s*added_at\s*$`
	mock.ExpectQuery(q).WithArgs("777").
		WillReturnRows(sqlmock.NewRows([]string{"id", "added_at"}).AddRow(int64(11), time.Now()))

	got, err := repo.Create(context.Background(), "777")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 11 || got.TelegramID != "777" {
		t.Fatalf("unexpected user: %+v", got)
	}

	mock.ExpectQuery(q).WithArgs("777").WillReturnError(&pgconn.PgError{Code: "23505"})
	if _, err := repo.Create(context.Background(), "777"); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

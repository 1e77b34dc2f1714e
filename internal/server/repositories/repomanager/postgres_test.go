package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T, opts ...sqlmock.Option) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(opts...)
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var _ RepositoryManager = m
}

func TestUsers_ReturnsPostgresRepo(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, _ := NewPostgresRepositoryManager(db)
	if _, ok := m.Users().(*users.PostgresRepository); !ok {
		t.Fatalf("Users() returned %T", m.Users())
	}
}

func TestInTx_CommitsOnSuccess(t *testing.T) {
	db, mock := newDB(t, sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	mock.ExpectExec(`UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*\$2`).
		WithArgs(int64(1), "digest").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m, _ := NewPostgresRepositoryManager(db)
	err := m.InTx(context.Background(), func(ctx context.Context, tx Repositories) error {
		u, err := tx.Users().Create(ctx, &models.User{Username: "a", Email: "a@x.io", Password: "pw"})
		if err != nil {
			return err
		}
		return tx.Users().UpdateRefreshTokenHash(ctx, u.ID, "digest")
	})
	if err != nil {
		t.Fatalf("InTx error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db, mock := newDB(t, sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	mock.ExpectExec(`UPDATE\s+users`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	m, _ := NewPostgresRepositoryManager(db)
	err := m.InTx(context.Background(), func(ctx context.Context, tx Repositories) error {
		u, err := tx.Users().Create(ctx, &models.User{Username: "a", Email: "a@x.io", Password: "pw"})
		if err != nil {
			return err
		}
		return tx.Users().UpdateRefreshTokenHash(ctx, u.ID, "digest")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPing(t *testing.T) {
	db, mock := newDB(t, sqlmock.MonitorPingsOption(true))
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("down"))

	m, _ := NewPostgresRepositoryManager(db)
	if err := m.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m, _ := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m, _ := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
)

func newRepoWithMock(t *testing.T) (*KVRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewKVRepository(db), mock, func() { _ = db.Close() }
}

func TestGetReturnsNilForMissingKey(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT value FROM kv_entries").
		WithArgs("cardsnap_data_v2").
		WillReturnError(sql.ErrNoRows)

	value, err := repo.Get(context.Background(), "cardsnap_data_v2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != nil {
		t.Fatalf("expected nil value, got %q", value)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetReturnsStoredValue(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT value FROM kv_entries").
		WithArgs("cardsnap_gemini_api_key").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte("AIza")))

	value, err := repo.Get(context.Background(), "cardsnap_gemini_api_key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(value) != "AIza" {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestGetWrapsDriverErrors(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT value FROM kv_entries").
		WithArgs("k").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Get(context.Background(), "k")
	if err == nil || !strings.Contains(err.Error(), "get kv entry k: connection reset") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSetUpsertsValue(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO kv_entries").
		WithArgs("k", []byte("v"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM kv_entries").
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaRunsEmbeddedMigrations(t *testing.T) {
	repo, _, done := newRepoWithMock(t)
	defer done()

	var gotDir string
	orig := gooseUpContext
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	defer func() { gooseUpContext = orig }()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if gotDir != "postgres" {
		t.Fatalf("expected postgres migrations dir, got %q", gotDir)
	}
}

func TestEnsureSchemaWrapsMigrationError(t *testing.T) {
	repo, _, done := newRepoWithMock(t)
	defer done()

	orig := gooseUpContext
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("locked")
	}
	defer func() { gooseUpContext = orig }()

	err := repo.EnsureSchema(context.Background())
	if err == nil || !strings.Contains(err.Error(), "run migrations: locked") {
		t.Fatalf("unexpected error %v", err)
	}
}

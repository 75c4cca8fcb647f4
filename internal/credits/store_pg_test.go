package credits

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPGStore(db), mock
}

func TestPGConsumeIsSingleConditionalUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND credits_remaining > 0")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "updated_at"}).AddRow(2, time.Now()))

	b, err := store.Consume(context.Background(), "user-1")
	if err != nil || b.Remaining != 2 {
		t.Fatalf("Consume = %+v, %v", b, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGConsumeNoRowsIsInsufficient(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("UPDATE credits").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "updated_at"}))

	if _, err := store.Consume(context.Background(), "user-1"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
}

func TestPGGetMissingUserIsZero(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT credits_remaining").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "updated_at"}))

	b, err := store.Get(context.Background(), "user-1")
	if err != nil || b.Remaining != 0 {
		t.Fatalf("Get = %+v, %v", b, err)
	}
}

func TestPGGrantAppliesOnce(t *testing.T) {
	store, mock := newMockStore(t)
	p := Purchase{SessionID: "cs_1", UserID: "user-1", Credits: 1, AmountTotal: 999, Currency: "usd", CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO purchases").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO credits").
		WithArgs("user-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "updated_at"}).AddRow(1, time.Now()))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO purchases").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT credits_remaining").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "updated_at"}).AddRow(1, time.Now()))

	b, granted, err := store.Grant(context.Background(), p)
	if err != nil || !granted || b.Remaining != 1 {
		t.Fatalf("first Grant = %+v, %v, %v", b, granted, err)
	}
	b, granted, err = store.Grant(context.Background(), p)
	if err != nil || granted || b.Remaining != 1 {
		t.Fatalf("replayed Grant = %+v, %v, %v", b, granted, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"pulabank.org/internal/ledger"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestSaveAccountUpsertsAndReplacesSignatories(t *testing.T) {
	store, mock := newMockStore(t)

	acc := ledger.Account{
		Number:         "01ACC",
		Type:           ledger.TypeCheque,
		CustomerID:     "cust-1",
		Branch:         "Gaborone",
		OpeningBalance: 0,
		Balance:        5000,
		Signatories:    []string{"Jane Doe", "Acme Corp"},
		EmployerName:   "Acme Corp",
		CreatedAt:      time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`insert into accounts`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`delete from account_signatories`).
		WithArgs(acc.Number).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into account_signatories`).
		WithArgs(acc.Number, "Jane Doe", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into account_signatories`).
		WithArgs(acc.Number, "Acme Corp", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.SaveAccount(context.Background(), acc); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveAccountRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`insert into accounts`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.SaveAccount(context.Background(), ledger.Account{Number: "01ACC", CreatedAt: time.Now().UTC()})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	tx := ledger.Transaction{
		ID:            "tx-1",
		AccountNumber: "01ACC",
		Kind:          ledger.KindDeposit,
		Amount:        1000,
		BalanceAfter:  1000,
		Description:   "Deposit to account",
		AuthorizedBy:  "Jane Doe",
		Sequence:      1,
		CreatedAt:     time.Now().UTC(),
	}

	mock.ExpectExec(`insert into transactions`).
		WithArgs(tx.ID, tx.AccountNumber, "DEPOSIT", int64(1000), int64(1000),
			tx.Description, tx.AuthorizedBy, tx.Sequence, tx.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SaveTransaction(context.Background(), tx); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAccountNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select number, customer_id`).
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"number"}))

	_, err := store.LoadAccount(context.Background(), "NOPE")
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestLoadAccountReconstructsState(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Now().UTC()

	mock.ExpectQuery(`select number, customer_id`).
		WithArgs("01ACC").
		WillReturnRows(sqlmock.NewRows([]string{
			"number", "customer_id", "type", "branch", "opening_balance", "balance",
			"employer_name", "employer_address", "created_at",
		}).AddRow("01ACC", "cust-1", "INVESTMENT", "Gaborone", int64(50000), int64(55000), nil, nil, created))

	mock.ExpectQuery(`select name from account_signatories`).
		WithArgs("01ACC").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Jane Doe"))

	mock.ExpectQuery(`select id, account_number, kind`).
		WithArgs("01ACC").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "account_number", "kind", "amount", "balance_after",
			"description", "authorized_by", "sequence", "created_at",
		}).AddRow("tx-1", "01ACC", "DEPOSIT", int64(5000), int64(55000), "Deposit to account", "Jane Doe", uint64(1), created))

	acc, err := store.LoadAccount(context.Background(), "01ACC")
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if acc.Type != ledger.TypeInvestment || acc.Balance != 55000 {
		t.Fatalf("unexpected account %+v", acc)
	}
	if len(acc.Signatories) != 1 || acc.Signatories[0] != "Jane Doe" {
		t.Fatalf("unexpected signatories %v", acc.Signatories)
	}
	if len(acc.Transactions) != 1 || acc.Transactions[0].Kind != ledger.KindDeposit {
		t.Fatalf("unexpected transactions %+v", acc.Transactions)
	}
}

func TestGetCustomerDisplayName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select display_name from customers`).
		WithArgs("cust-1").
		WillReturnRows(sqlmock.NewRows([]string{"display_name"}).AddRow("Jane Doe"))

	name, err := store.GetCustomerDisplayName(context.Background(), "cust-1")
	if err != nil {
		t.Fatal(err)
	}
	if name != "Jane Doe" {
		t.Fatalf("unexpected name %q", name)
	}

	mock.ExpectQuery(`select display_name from customers`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"display_name"}))

	if _, err := store.GetCustomerDisplayName(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown customer")
	}
}

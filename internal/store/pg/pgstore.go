package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pulabank.org/internal/ledger"
)

// Store persists accounts, signatories and transactions in Postgres. It
// implements both the ledger persistence port and the customer directory
// lookup.
type Store struct {
	db *sql.DB
}

var (
	_ ledger.Store             = (*Store)(nil)
	_ ledger.CustomerDirectory = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection pool (used by tests).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// SaveAccount upserts the account row and replaces its signatory rows in a
// single database transaction.
func (s *Store) SaveAccount(ctx context.Context, acc ledger.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into accounts(number, customer_id, type, branch, opening_balance, balance, employer_name, employer_address, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		on conflict (number) do update set balance = excluded.balance
	`, acc.Number, acc.CustomerID, string(acc.Type), acc.Branch,
		int64(acc.OpeningBalance), int64(acc.Balance),
		nullable(acc.EmployerName), nullable(acc.EmployerAddress), acc.CreatedAt); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from account_signatories where account_number=$1`, acc.Number); err != nil {
		return err
	}
	for i, name := range acc.Signatories {
		if _, err := tx.ExecContext(ctx, `
			insert into account_signatories(account_number, name, position)
			values ($1,$2,$3)
		`, acc.Number, name, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveTransaction appends one immutable transaction row.
func (s *Store) SaveTransaction(ctx context.Context, t ledger.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		insert into transactions(id, account_number, kind, amount, balance_after, description, authorized_by, sequence, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, t.ID, t.AccountNumber, string(t.Kind), int64(t.Amount), int64(t.BalanceAfter),
		t.Description, t.AuthorizedBy, t.Sequence, t.CreatedAt)
	return err
}

// LoadAccount reconstructs an account with its signatories and full log.
func (s *Store) LoadAccount(ctx context.Context, number string) (*ledger.Account, error) {
	var (
		acc             ledger.Account
		typ             string
		opening, bal    int64
		empName, empAdr sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select number, customer_id, type, branch, opening_balance, balance, employer_name, employer_address, created_at
		from accounts where number=$1
	`, number).Scan(&acc.Number, &acc.CustomerID, &typ, &acc.Branch, &opening, &bal, &empName, &empAdr, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.Type = ledger.AccountType(typ)
	acc.OpeningBalance = ledger.Money(opening)
	acc.Balance = ledger.Money(bal)
	if empName.Valid {
		acc.EmployerName = empName.String
	}
	if empAdr.Valid {
		acc.EmployerAddress = empAdr.String
	}

	if acc.Signatories, err = s.loadSignatories(ctx, number); err != nil {
		return nil, err
	}
	if acc.Transactions, err = s.loadTransactions(ctx, number); err != nil {
		return nil, err
	}
	return &acc, nil
}

// LoadAccountsByCustomer loads every account the customer owns.
func (s *Store) LoadAccountsByCustomer(ctx context.Context, customerID string) ([]*ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `select number from accounts where customer_id=$1 order by created_at`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*ledger.Account, 0, len(numbers))
	for _, n := range numbers {
		acc, err := s.LoadAccount(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

// GetCustomerDisplayName resolves the owner name used as the default
// signatory when an account is opened with none.
func (s *Store) GetCustomerDisplayName(ctx context.Context, customerID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `select display_name from customers where id=$1`, customerID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.New("customer not found")
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

func (s *Store) loadSignatories(ctx context.Context, number string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select name from account_signatories where account_number=$1 order by position
	`, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) loadTransactions(ctx context.Context, number string) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, account_number, kind, amount, balance_after, description, authorized_by, sequence, created_at
		from transactions where account_number=$1 order by sequence asc
	`, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var (
			t           ledger.Transaction
			kind        string
			amount, bal int64
		)
		if err := rows.Scan(&t.ID, &t.AccountNumber, &kind, &amount, &bal, &t.Description, &t.AuthorizedBy, &t.Sequence, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Kind = ledger.TransactionKind(kind)
		t.Amount = ledger.Money(amount)
		t.BalanceAfter = ledger.Money(bal)
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pulabank.org/internal/ids"
)

// Store is the persistence port. Implementations may fail; the ledger rolls
// its in-memory state back on failure, so a store error never leaves the
// balance and the transaction log out of step.
type Store interface {
	SaveAccount(ctx context.Context, acc Account) error
	SaveTransaction(ctx context.Context, tx Transaction) error
	LoadAccount(ctx context.Context, number string) (*Account, error)
	LoadAccountsByCustomer(ctx context.Context, customerID string) ([]*Account, error)
}

// CustomerDirectory resolves customer display names, used only for the
// default-signatory fallback when an account is opened with none.
type CustomerDirectory interface {
	GetCustomerDisplayName(ctx context.Context, customerID string) (string, error)
}

// TransactionPublisher receives every committed transaction. Implementations
// must not block.
type TransactionPublisher interface {
	PublishTransaction(tx Transaction)
}

// OpenAccountParams describes an account-opening request.
type OpenAccountParams struct {
	CustomerID      string
	Type            AccountType
	Branch          string
	InitialDeposit  Money
	Signatories     []string
	EmployerName    string
	EmployerAddress string
}

// AccrualFailure reports one account that failed during a batch sweep.
type AccrualFailure struct {
	AccountNumber string `json:"account_number"`
	Reason        string `json:"reason"`
}

// AccrualSummary aggregates the outcome of a batch interest run.
type AccrualSummary struct {
	Processed     int              `json:"processed"`
	TotalInterest Money            `json:"total_interest"`
	Failed        []AccrualFailure `json:"failed,omitempty"`
}

// Service defines the ledger operations exposed to callers. Every mutating
// operation is serialized per account and commits the balance change and
// its transaction record as one unit.
type Service interface {
	OpenAccount(ctx context.Context, p OpenAccountParams) (AccountView, error)
	Deposit(ctx context.Context, number string, amount Money, signatory string) (Money, error)
	Withdraw(ctx context.Context, number string, amount Money, signatory string) (Money, error)
	AddSignatory(ctx context.Context, number, name string) error
	RemoveSignatory(ctx context.Context, number, name string) error
	GetAccount(ctx context.Context, number string) (AccountView, error)
	GetTransactionHistory(ctx context.Context, number string) ([]Transaction, error)
	ListAccountsByCustomer(ctx context.Context, customerID string) ([]AccountView, error)
	AccrueInterest(ctx context.Context, number string) (Money, error)
	BatchAccrueInterest(ctx context.Context) (AccrualSummary, error)
}

// InMemory implements Service with in-process concurrency safety: the
// account directory is guarded by a read-mostly RWMutex, and every account
// carries its own mutex spanning validate-mutate-append-persist. Locks on
// different accounts are independent.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[string]*accountEntry

	store     Store
	directory CustomerDirectory
	publisher TransactionPublisher
}

type accountEntry struct {
	mu  sync.Mutex
	acc *Account
}

var _ Service = (*InMemory)(nil)

// Option configures an InMemory ledger.
type Option func(*InMemory)

// WithStore attaches a persistence collaborator.
func WithStore(s Store) Option {
	return func(l *InMemory) { l.store = s }
}

// WithDirectory attaches a customer directory for the default-signatory
// fallback.
func WithDirectory(d CustomerDirectory) Option {
	return func(l *InMemory) { l.directory = d }
}

// WithPublisher attaches a transaction event publisher.
func WithPublisher(p TransactionPublisher) Option {
	return func(l *InMemory) { l.publisher = p }
}

// NewInMemory creates a fresh ledger.
func NewInMemory(opts ...Option) *InMemory {
	l := &InMemory{accounts: make(map[string]*accountEntry)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OpenAccount validates the opening request, issues a collision-free account
// number and registers the account. If no signatories are supplied the owning
// customer's display name is used; with no resolvable default the open fails
// with ErrNoSignatory. This fallback is deliberate, documented policy.
func (l *InMemory) OpenAccount(ctx context.Context, p OpenAccountParams) (AccountView, error) {
	policy, ok := PolicyFor(p.Type)
	if !ok {
		return AccountView{}, ErrUnknownAccountType
	}
	if p.InitialDeposit.IsNegative() {
		return AccountView{}, ErrInvalidAmount
	}
	if p.InitialDeposit < policy.MinimumOpeningDeposit {
		return AccountView{}, ErrBelowMinimumDeposit
	}

	signatories := make([]string, 0, len(p.Signatories))
	for _, s := range p.Signatories {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !contains(signatories, s) {
			signatories = append(signatories, s)
		}
	}
	if len(signatories) == 0 {
		name, err := l.defaultSignatory(ctx, p.CustomerID)
		if err != nil {
			return AccountView{}, err
		}
		signatories = append(signatories, name)
	}

	acc := &Account{
		Number:          ids.New(),
		Type:            p.Type,
		CustomerID:      p.CustomerID,
		Branch:          p.Branch,
		OpeningBalance:  p.InitialDeposit,
		Balance:         p.InitialDeposit,
		Signatories:     signatories,
		CreatedAt:       time.Now().UTC(),
		EmployerName:    p.EmployerName,
		EmployerAddress: p.EmployerAddress,
	}

	if l.store != nil {
		if err := l.store.SaveAccount(ctx, acc.snapshot()); err != nil {
			return AccountView{}, fmt.Errorf("%w: save account: %v", ErrPersistence, err)
		}
	}

	l.mu.Lock()
	l.accounts[acc.Number] = &accountEntry{acc: acc}
	l.mu.Unlock()

	return acc.View(), nil
}

// Deposit credits the account on behalf of a signatory.
func (l *InMemory) Deposit(ctx context.Context, number string, amount Money, signatory string) (Money, error) {
	return l.mutate(ctx, number, signatory, func(acc *Account) (Transaction, error) {
		return acc.Deposit(amount, signatory)
	})
}

// Withdraw debits the account on behalf of a signatory, subject to the type
// policy and the non-negative balance invariant.
func (l *InMemory) Withdraw(ctx context.Context, number string, amount Money, signatory string) (Money, error) {
	return l.mutate(ctx, number, signatory, func(acc *Account) (Transaction, error) {
		return acc.Withdraw(amount, signatory)
	})
}

// AccrueInterest computes interest for an interest-bearing account and
// applies it as a system-authorized deposit. Zero interest (zero balance)
// applies nothing. Calling it twice pays interest twice: the computation
// is pure, the application is not.
func (l *InMemory) AccrueInterest(ctx context.Context, number string) (Money, error) {
	entry, err := l.entryFor(ctx, number)
	if err != nil {
		return 0, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	acc := entry.acc
	if !acc.Policy().InterestBearing() {
		return 0, ErrNotInterestBearing
	}
	interest := acc.CalculateInterest()
	if !interest.IsPositive() {
		return 0, nil
	}
	tx, err := acc.PayInterest(interest)
	if err != nil {
		return 0, err
	}
	if err := l.commit(ctx, acc, tx); err != nil {
		return 0, err
	}
	l.publish(tx)
	return interest, nil
}

// BatchAccrueInterest sweeps every interest-bearing account. Each account is
// accrued under its own lock only for the duration of its own step, and one
// account's failure never aborts the rest of the batch.
func (l *InMemory) BatchAccrueInterest(ctx context.Context) (AccrualSummary, error) {
	l.mu.RLock()
	numbers := make([]string, 0, len(l.accounts))
	for n, e := range l.accounts {
		if e.acc.Policy().InterestBearing() {
			numbers = append(numbers, n)
		}
	}
	l.mu.RUnlock()

	var summary AccrualSummary
	for _, n := range numbers {
		interest, err := l.AccrueInterest(ctx, n)
		if err != nil {
			summary.Failed = append(summary.Failed, AccrualFailure{AccountNumber: n, Reason: err.Error()})
			continue
		}
		summary.Processed++
		summary.TotalInterest += interest
	}
	return summary, nil
}

// AddSignatory authorizes a new name on the account. Idempotent.
func (l *InMemory) AddSignatory(ctx context.Context, number, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNoSignatory
	}
	return l.mutateSignatories(ctx, number, func(acc *Account) { acc.AddSignatory(name) })
}

// RemoveSignatory revokes a name. Removing an absent name is a no-op.
func (l *InMemory) RemoveSignatory(ctx context.Context, number, name string) error {
	return l.mutateSignatories(ctx, number, func(acc *Account) { acc.RemoveSignatory(name) })
}

// GetAccount returns a read-only snapshot.
func (l *InMemory) GetAccount(ctx context.Context, number string) (AccountView, error) {
	entry, err := l.entryFor(ctx, number)
	if err != nil {
		return AccountView{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.acc.View(), nil
}

// GetTransactionHistory returns a copy of the account's log, newest first.
// Internally the log is stored oldest first and never reordered.
func (l *InMemory) GetTransactionHistory(ctx context.Context, number string) ([]Transaction, error) {
	entry, err := l.entryFor(ctx, number)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	txs := entry.acc.Transactions
	out := make([]Transaction, len(txs))
	for i, tx := range txs {
		out[len(txs)-1-i] = tx
	}
	return out, nil
}

// ListAccountsByCustomer returns snapshots of every account the customer
// owns. Falls through to the store for accounts not yet cached.
func (l *InMemory) ListAccountsByCustomer(ctx context.Context, customerID string) ([]AccountView, error) {
	if l.store != nil {
		accs, err := l.store.LoadAccountsByCustomer(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("%w: load accounts: %v", ErrPersistence, err)
		}
		for _, acc := range accs {
			l.adopt(acc)
		}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []AccountView
	for _, e := range l.accounts {
		e.mu.Lock()
		if e.acc.CustomerID == customerID {
			out = append(out, e.acc.View())
		}
		e.mu.Unlock()
	}
	return out, nil
}

// mutate runs a signatory-authorized balance mutation under the account
// lock and commits it together with its transaction record. On persistence
// failure the in-memory mutation is rolled back before returning, so either
// both the new balance and the new log entry are visible or neither is.
func (l *InMemory) mutate(ctx context.Context, number, signatory string, op func(*Account) (Transaction, error)) (Money, error) {
	entry, err := l.entryFor(ctx, number)
	if err != nil {
		return 0, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	acc := entry.acc
	if !acc.HasSignatory(signatory) {
		return 0, ErrUnauthorizedSignatory
	}

	tx, err := op(acc)
	if err != nil {
		return 0, err
	}
	if err := l.commit(ctx, acc, tx); err != nil {
		return 0, err
	}
	l.publish(tx)
	return acc.Balance, nil
}

func (l *InMemory) mutateSignatories(ctx context.Context, number string, op func(*Account)) error {
	entry, err := l.entryFor(ctx, number)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	acc := entry.acc
	before := append([]string(nil), acc.Signatories...)
	op(acc)
	if l.store != nil {
		if err := l.store.SaveAccount(ctx, acc.snapshot()); err != nil {
			acc.Signatories = before
			return fmt.Errorf("%w: save account: %v", ErrPersistence, err)
		}
	}
	return nil
}

// commit persists the mutated account and its new transaction. The caller
// holds the account lock. Any store failure undoes the in-memory change.
func (l *InMemory) commit(ctx context.Context, acc *Account, tx Transaction) error {
	if l.store == nil {
		return nil
	}
	rollback := func() {
		switch tx.Kind {
		case KindWithdrawal:
			acc.Balance += tx.Amount
		default:
			acc.Balance -= tx.Amount
		}
		acc.Transactions = acc.Transactions[:len(acc.Transactions)-1]
	}
	if err := l.store.SaveAccount(ctx, acc.snapshot()); err != nil {
		rollback()
		return fmt.Errorf("%w: save account: %v", ErrPersistence, err)
	}
	if err := l.store.SaveTransaction(ctx, tx); err != nil {
		rollback()
		return fmt.Errorf("%w: save transaction: %v", ErrPersistence, err)
	}
	return nil
}

// entryFor resolves the account entry, loading from the store on a cache
// miss so restarted processes keep serving persisted accounts.
func (l *InMemory) entryFor(ctx context.Context, number string) (*accountEntry, error) {
	l.mu.RLock()
	entry, ok := l.accounts[number]
	l.mu.RUnlock()
	if ok {
		return entry, nil
	}
	if l.store == nil {
		return nil, ErrAccountNotFound
	}
	acc, err := l.store.LoadAccount(ctx, number)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: load account: %v", ErrPersistence, err)
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return l.adopt(acc), nil
}

// adopt registers a loaded account unless a concurrent caller won the race.
func (l *InMemory) adopt(acc *Account) *accountEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.accounts[acc.Number]; ok {
		return existing
	}
	entry := &accountEntry{acc: acc}
	l.accounts[acc.Number] = entry
	return entry
}

func (l *InMemory) defaultSignatory(ctx context.Context, customerID string) (string, error) {
	if l.directory == nil || customerID == "" {
		return "", ErrNoSignatory
	}
	name, err := l.directory.GetCustomerDisplayName(ctx, customerID)
	if err != nil || strings.TrimSpace(name) == "" {
		return "", ErrNoSignatory
	}
	return strings.TrimSpace(name), nil
}

func (l *InMemory) publish(tx Transaction) {
	if l.publisher != nil {
		l.publisher.PublishTransaction(tx)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

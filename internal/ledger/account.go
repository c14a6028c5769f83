package ledger

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Account is the ledger unit: identity, balance, signatory set and an
// append-only transaction log. Account methods do not synchronize; the
// owning Service serializes all access per account, so two concurrent
// withdrawals can never observe the same "before" balance.
type Account struct {
	Number         string        `json:"number"`
	Type           AccountType   `json:"type"`
	CustomerID     string        `json:"customer_id"`
	Branch         string        `json:"branch"`
	OpeningBalance Money         `json:"opening_balance"`
	Balance        Money         `json:"balance"`
	Signatories    []string      `json:"signatories"`
	Transactions   []Transaction `json:"transactions"`
	CreatedAt      time.Time     `json:"created_at"`

	// Cheque accounts carry employer details; descriptive only.
	EmployerName    string `json:"employer_name,omitempty"`
	EmployerAddress string `json:"employer_address,omitempty"`
}

// AccountView is the read-only snapshot exposed to callers.
type AccountView struct {
	Number           string      `json:"number"`
	Type             AccountType `json:"type"`
	CustomerID       string      `json:"customer_id"`
	Branch           string      `json:"branch"`
	Balance          Money       `json:"balance"`
	Signatories      []string    `json:"signatories"`
	TransactionCount int         `json:"transaction_count"`
	EmployerName     string      `json:"employer_name,omitempty"`
	EmployerAddress  string      `json:"employer_address,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Policy returns the behavior table for the account's type.
func (a *Account) Policy() Policy {
	p, _ := PolicyFor(a.Type)
	return p
}

// Deposit increases the balance and appends a DEPOSIT transaction.
func (a *Account) Deposit(amount Money, authorizedBy string) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	a.Balance += amount
	return a.record(KindDeposit, amount, "Deposit to account", authorizedBy), nil
}

// Withdraw decreases the balance and appends a WITHDRAWAL transaction.
// The type policy is checked before anything else: a Savings account
// rejects every withdrawal regardless of amount or balance.
func (a *Account) Withdraw(amount Money, authorizedBy string) (Transaction, error) {
	if !a.Policy().WithdrawalsAllowed {
		return Transaction{}, ErrWithdrawalNotPermitted
	}
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	if amount > a.Balance {
		return Transaction{}, ErrInsufficientFunds
	}
	a.Balance -= amount
	return a.record(KindWithdrawal, amount, "Withdrawal from account", authorizedBy), nil
}

// PayInterest credits a system-authorized interest payment.
func (a *Account) PayInterest(amount Money) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	a.Balance += amount
	return a.record(KindInterest, amount, "Interest payment", SystemAuthorizer), nil
}

// CalculateInterest returns balance × rate for the account's type without
// mutating anything. Pure: calling it twice yields the same value.
func (a *Account) CalculateInterest() Money {
	return a.Balance.MulBasisPoints(a.Policy().InterestBasisPoints)
}

// AddSignatory adds a name to the signatory set. Adding an existing name
// is a no-op; insertion order is preserved for display.
func (a *Account) AddSignatory(name string) {
	if name == "" || a.HasSignatory(name) {
		return
	}
	a.Signatories = append(a.Signatories, name)
}

// RemoveSignatory removes a name; removing an absent name is a no-op.
func (a *Account) RemoveSignatory(name string) {
	for i, s := range a.Signatories {
		if s == name {
			a.Signatories = append(a.Signatories[:i], a.Signatories[i+1:]...)
			return
		}
	}
}

// HasSignatory reports membership. Matching is a case-sensitive exact
// comparison.
func (a *Account) HasSignatory(name string) bool {
	return slices.Contains(a.Signatories, name)
}

// View returns a detached read-only snapshot.
func (a *Account) View() AccountView {
	return AccountView{
		Number:           a.Number,
		Type:             a.Type,
		CustomerID:       a.CustomerID,
		Branch:           a.Branch,
		Balance:          a.Balance,
		Signatories:      slices.Clone(a.Signatories),
		TransactionCount: len(a.Transactions),
		EmployerName:     a.EmployerName,
		EmployerAddress:  a.EmployerAddress,
		CreatedAt:        a.CreatedAt,
	}
}

// snapshot returns a deep copy safe to hand to a persistence collaborator.
func (a *Account) snapshot() Account {
	out := *a
	out.Signatories = slices.Clone(a.Signatories)
	out.Transactions = slices.Clone(a.Transactions)
	return out
}

func (a *Account) record(kind TransactionKind, amount Money, description, authorizedBy string) Transaction {
	tx := Transaction{
		ID:            uuid.NewString(),
		AccountNumber: a.Number,
		Kind:          kind,
		Amount:        amount,
		BalanceAfter:  a.Balance,
		Description:   description,
		AuthorizedBy:  authorizedBy,
		CreatedAt:     time.Now().UTC(),
		Sequence:      uint64(len(a.Transactions)) + 1,
	}
	a.Transactions = append(a.Transactions, tx)
	return tx
}

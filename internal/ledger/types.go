package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Money is an amount of Pula held in thebe (minor units). No floats.
type Money int64

const thebePerPula = 100

func (m Money) IsPositive() bool { return m > 0 }
func (m Money) IsNegative() bool { return m < 0 }
func (m Money) IsZero() bool     { return m == 0 }

// String renders the amount as pula, e.g. "P500.00" or "-P0.50".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%sP%d.%02d", sign, v/thebePerPula, v%thebePerPula)
}

// MulBasisPoints returns m scaled by bps/10000, truncated toward zero.
// 200 bps on P100.00 yields P2.00.
func (m Money) MulBasisPoints(bps int64) Money {
	return Money(int64(m) * bps / 10_000)
}

// ParseMoney parses a decimal pula amount such as "500", "500.5" or "P500.00"
// into thebe. At most two fractional digits are accepted.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "P")
	if s == "" {
		return 0, errors.New("empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	pula, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	var thebe int64
	if frac != "" {
		if len(frac) > 2 {
			return 0, fmt.Errorf("amount %q has more than two fractional digits", s)
		}
		for len(frac) < 2 {
			frac += "0"
		}
		thebe, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	v := pula*thebePerPula + thebe
	if neg {
		v = -v
	}
	return Money(v), nil
}

// TransactionKind classifies a balance-affecting event.
type TransactionKind string

const (
	KindDeposit    TransactionKind = "DEPOSIT"
	KindWithdrawal TransactionKind = "WITHDRAWAL"
	KindInterest   TransactionKind = "INTEREST"
)

// SystemAuthorizer is recorded on transactions initiated by the bank itself
// (interest payments) rather than by an account signatory.
const SystemAuthorizer = "System"

// Transaction is an immutable record of one balance-affecting event.
// BalanceAfter snapshots the account balance immediately after the event.
// Sequence is per-account and strictly increasing, so replaying a log in
// sequence order from the opening balance reproduces the current balance.
type Transaction struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"account_number"`
	Kind          TransactionKind `json:"kind"`
	Amount        Money           `json:"amount"`
	BalanceAfter  Money           `json:"balance_after"`
	Description   string          `json:"description"`
	AuthorizedBy  string          `json:"authorized_by"`
	CreatedAt     time.Time       `json:"created_at"`
	Sequence      uint64          `json:"sequence"`
}

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrInvalidAmount          = errors.New("invalid amount (must be > 0)")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrWithdrawalNotPermitted = errors.New("withdrawals are not permitted on this account type")
	ErrUnauthorizedSignatory  = errors.New("signatory is not authorized on this account")
	ErrBelowMinimumDeposit    = errors.New("initial deposit is below the account type minimum")
	ErrNoSignatory            = errors.New("at least one signatory is required")
	ErrNotInterestBearing     = errors.New("account type does not bear interest")
	ErrUnknownAccountType     = errors.New("unknown account type")
	ErrPersistence            = errors.New("persistence failure")
)

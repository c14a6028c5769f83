package ledger

import "strings"

// AccountType is the closed set of account variants.
type AccountType string

const (
	TypeSavings    AccountType = "SAVINGS"
	TypeInvestment AccountType = "INVESTMENT"
	TypeCheque     AccountType = "CHEQUE"
)

// Policy captures the per-type behavior as data rather than subclassing:
// whether withdrawals are allowed, the interest rate applied per accrual
// run, and the minimum deposit required to open the account.
type Policy struct {
	WithdrawalsAllowed    bool
	InterestBasisPoints   int64
	MinimumOpeningDeposit Money
}

// InterestBearing reports whether accounts of this policy accrue interest.
func (p Policy) InterestBearing() bool { return p.InterestBasisPoints > 0 }

// Savings pays 2% per accrual run and forbids withdrawals; Investment pays
// 5% and requires a P500.00 opening deposit; Cheque pays nothing.
var policies = map[AccountType]Policy{
	TypeSavings:    {WithdrawalsAllowed: false, InterestBasisPoints: 200},
	TypeInvestment: {WithdrawalsAllowed: true, InterestBasisPoints: 500, MinimumOpeningDeposit: 500 * thebePerPula},
	TypeCheque:     {WithdrawalsAllowed: true},
}

// PolicyFor returns the policy for the given account type.
func PolicyFor(t AccountType) (Policy, bool) {
	p, ok := policies[t]
	return p, ok
}

// ParseAccountType maps a case-insensitive type name to an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SAVINGS":
		return TypeSavings, nil
	case "INVESTMENT":
		return TypeInvestment, nil
	case "CHEQUE":
		return TypeCheque, nil
	default:
		return "", ErrUnknownAccountType
	}
}

// InterestBearingTypes lists account types with a non-zero interest rate,
// in a stable order.
func InterestBearingTypes() []AccountType {
	out := make([]AccountType, 0, 2)
	for _, t := range []AccountType{TypeSavings, TypeInvestment, TypeCheque} {
		if policies[t].InterestBearing() {
			out = append(out, t)
		}
	}
	return out
}

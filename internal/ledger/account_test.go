package ledger

import (
	"errors"
	"testing"
)

func TestMoneyString(t *testing.T) {
	cases := []struct {
		in   Money
		want string
	}{
		{0, "P0.00"},
		{50, "P0.50"},
		{100000, "P1000.00"},
		{-50, "-P0.50"},
	}
	for _, c := range cases {
		if got := c.in.String(); got != c.want {
			t.Errorf("Money(%d).String() = %q, want %q", int64(c.in), got, c.want)
		}
	}
}

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"500", 50000, false},
		{"500.00", 50000, false},
		{"P499.99", 49999, false},
		{"0.5", 50, false},
		{"-12.34", -1234, false},
		{"1.234", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		got, err := ParseMoney(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseMoney(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMoney(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseMoney(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDepositRejectsNonPositiveAmounts(t *testing.T) {
	acc := &Account{Number: "A1", Type: TypeCheque, Signatories: []string{"Jane Doe"}}
	for _, amount := range []Money{0, -100} {
		if _, err := acc.Deposit(amount, "Jane Doe"); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Deposit(%d): got %v, want ErrInvalidAmount", amount, err)
		}
	}
	if acc.Balance != 0 || len(acc.Transactions) != 0 {
		t.Fatalf("rejected deposit mutated account: balance=%d txs=%d", acc.Balance, len(acc.Transactions))
	}
}

func TestSavingsWithdrawalAlwaysBanned(t *testing.T) {
	acc := &Account{Number: "A1", Type: TypeSavings, Balance: 100000, Signatories: []string{"Jane Doe"}}

	// The policy check comes before amount validation and funds checks.
	for _, amount := range []Money{-1, 0, 50, 200000} {
		if _, err := acc.Withdraw(amount, "Jane Doe"); !errors.Is(err, ErrWithdrawalNotPermitted) {
			t.Fatalf("Withdraw(%d) on savings: got %v, want ErrWithdrawalNotPermitted", amount, err)
		}
	}
	if acc.Balance != 100000 {
		t.Fatalf("balance changed: %d", acc.Balance)
	}
}

func TestWithdrawValidationOrder(t *testing.T) {
	acc := &Account{Number: "A1", Type: TypeCheque, Balance: 3000, Signatories: []string{"Acme Corp"}}

	if _, err := acc.Withdraw(0, "Acme Corp"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := acc.Withdraw(5000, "Acme Corp"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientFunds", err)
	}
	if acc.Balance != 3000 || len(acc.Transactions) != 0 {
		t.Fatalf("rejected withdrawal mutated account: balance=%d txs=%d", acc.Balance, len(acc.Transactions))
	}

	tx, err := acc.Withdraw(3000, "Acme Corp")
	if err != nil {
		t.Fatalf("withdraw to zero: %v", err)
	}
	if acc.Balance != 0 || tx.BalanceAfter != 0 {
		t.Fatalf("expected zero balance, got balance=%d after=%d", acc.Balance, tx.BalanceAfter)
	}
}

func TestSignatorySetSemantics(t *testing.T) {
	acc := &Account{Number: "A1", Type: TypeCheque}

	acc.AddSignatory("Jane Doe")
	acc.AddSignatory("Jane Doe") // duplicate is a no-op
	acc.AddSignatory("Acme Corp")
	if len(acc.Signatories) != 2 {
		t.Fatalf("expected 2 signatories, got %v", acc.Signatories)
	}
	if acc.Signatories[0] != "Jane Doe" || acc.Signatories[1] != "Acme Corp" {
		t.Fatalf("insertion order not preserved: %v", acc.Signatories)
	}

	// Membership is a case-sensitive exact match.
	if acc.HasSignatory("jane doe") {
		t.Fatal("membership must be case-sensitive")
	}
	if !acc.HasSignatory("Jane Doe") {
		t.Fatal("expected Jane Doe to be a signatory")
	}

	acc.RemoveSignatory("Nobody") // absent removal is a no-op
	acc.RemoveSignatory("Jane Doe")
	if acc.HasSignatory("Jane Doe") || len(acc.Signatories) != 1 {
		t.Fatalf("remove failed: %v", acc.Signatories)
	}
}

func TestCalculateInterestIsPure(t *testing.T) {
	acc := &Account{Number: "A1", Type: TypeInvestment, Balance: 100000}

	first := acc.CalculateInterest()
	second := acc.CalculateInterest()
	if first != second {
		t.Fatalf("CalculateInterest not pure: %d != %d", first, second)
	}
	if first != 5000 { // 5% of P1000.00
		t.Fatalf("expected P50.00 interest, got %s", first)
	}
	if acc.Balance != 100000 || len(acc.Transactions) != 0 {
		t.Fatal("CalculateInterest mutated the account")
	}

	cheque := &Account{Number: "A2", Type: TypeCheque, Balance: 100000}
	if got := cheque.CalculateInterest(); got != 0 {
		t.Fatalf("cheque accounts bear no interest, got %s", got)
	}
}

func TestTransactionLogReplay(t *testing.T) {
	acc := &Account{Number: "A1", Type: TypeInvestment, OpeningBalance: 50000, Balance: 50000, Signatories: []string{"Jane Doe"}}

	if _, err := acc.Deposit(100000, "Jane Doe"); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.Withdraw(25000, "Jane Doe"); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.PayInterest(acc.CalculateInterest()); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.Withdraw(999999, "Jane Doe"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	replayed := acc.OpeningBalance
	var lastSeq uint64
	for _, tx := range acc.Transactions {
		if tx.Sequence != lastSeq+1 {
			t.Fatalf("sequence gap: %d after %d", tx.Sequence, lastSeq)
		}
		lastSeq = tx.Sequence
		switch tx.Kind {
		case KindWithdrawal:
			replayed -= tx.Amount
		default:
			replayed += tx.Amount
		}
		if tx.BalanceAfter != replayed {
			t.Fatalf("tx %d: balance_after=%d, replayed=%d", tx.Sequence, tx.BalanceAfter, replayed)
		}
	}
	if replayed != acc.Balance {
		t.Fatalf("replay mismatch: %d != %d", replayed, acc.Balance)
	}
	if acc.Balance.IsNegative() {
		t.Fatalf("negative balance: %s", acc.Balance)
	}
}

func TestPolicyTable(t *testing.T) {
	if p, _ := PolicyFor(TypeSavings); p.WithdrawalsAllowed || !p.InterestBearing() {
		t.Fatalf("savings policy wrong: %+v", p)
	}
	if p, _ := PolicyFor(TypeInvestment); !p.WithdrawalsAllowed || p.MinimumOpeningDeposit != 50000 {
		t.Fatalf("investment policy wrong: %+v", p)
	}
	if p, _ := PolicyFor(TypeCheque); !p.WithdrawalsAllowed || p.InterestBearing() {
		t.Fatalf("cheque policy wrong: %+v", p)
	}

	bearing := InterestBearingTypes()
	if len(bearing) != 2 {
		t.Fatalf("expected 2 interest-bearing types, got %v", bearing)
	}

	if _, err := ParseAccountType("cheque"); err != nil {
		t.Fatalf("parse cheque: %v", err)
	}
	if _, err := ParseAccountType("offshore"); !errors.Is(err, ErrUnknownAccountType) {
		t.Fatalf("expected ErrUnknownAccountType, got %v", err)
	}
}

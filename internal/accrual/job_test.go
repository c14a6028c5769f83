package accrual

import (
	"context"
	"testing"

	"pulabank.org/internal/ledger"
)

func openAccount(t *testing.T, l *ledger.InMemory, typ ledger.AccountType, initial ledger.Money) ledger.AccountView {
	t.Helper()
	view, err := l.OpenAccount(context.Background(), ledger.OpenAccountParams{
		CustomerID:     "cust-1",
		Type:           typ,
		Branch:         "Gaborone",
		InitialDeposit: initial,
		Signatories:    []string{"Jane Doe"},
	})
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	return view
}

func TestRunSweepsInterestBearingAccounts(t *testing.T) {
	l := ledger.NewInMemory()
	openAccount(t, l, ledger.TypeInvestment, 100000) // P1000 at 5%
	openAccount(t, l, ledger.TypeCheque, 100000)     // no interest

	savings := openAccount(t, l, ledger.TypeSavings, 0)
	if _, err := l.Deposit(context.Background(), savings.Number, 50000, "Jane Doe"); err != nil {
		t.Fatal(err)
	}

	job := New(l)
	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 2 {
		t.Fatalf("processed = %d, want 2", summary.Processed)
	}
	// 5% of P1000 plus 2% of P500.
	if summary.TotalInterest != 5000+1000 {
		t.Fatalf("total interest = %s", summary.TotalInterest)
	}
	if len(summary.Failed) != 0 {
		t.Fatalf("unexpected failures: %v", summary.Failed)
	}

	got, err := l.GetAccount(context.Background(), savings.Number)
	if err != nil {
		t.Fatal(err)
	}
	if got.Balance != 51000 {
		t.Fatalf("savings balance after sweep: %s", got.Balance)
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	job := New(ledger.NewInMemory())
	if err := job.Start("not a cron spec"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStartAndStop(t *testing.T) {
	job := New(ledger.NewInMemory())
	if err := job.Start("@monthly"); err != nil {
		t.Fatal(err)
	}
	job.Stop()
}

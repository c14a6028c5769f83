package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pulabank.org/internal/audit"
	"pulabank.org/internal/ledger"
	"pulabank.org/internal/obs"
)

type openAccountRequest struct {
	CustomerID      string   `json:"customer_id"`
	Type            string   `json:"type"`
	Branch          string   `json:"branch"`
	InitialDeposit  int64    `json:"initial_deposit"`
	Signatories     []string `json:"signatories"`
	EmployerName    string   `json:"employer_name"`
	EmployerAddress string   `json:"employer_address"`
}

type movementRequest struct {
	Amount    int64  `json:"amount"`
	Signatory string `json:"signatory"`
}

type movementResponse struct {
	AccountNumber string       `json:"account_number"`
	Balance       ledger.Money `json:"balance"`
}

type signatoryRequest struct {
	Name string `json:"name"`
}

type historyResponse struct {
	Items []ledger.Transaction `json:"items"`
	Count int                  `json:"count"`
	AsOf  time.Time            `json:"as_of"`
}

func (a *API) handleAccountsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.openAccount(w, r)
	case http.MethodGet:
		a.listAccounts(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	parts := strings.Split(path, "/")
	number := parts[0]
	if number == "" {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getAccount(w, r, number)
	case len(parts) == 2 && parts[1] == "transactions":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listTransactions(w, r, number)
	case len(parts) == 2 && parts[1] == "deposits":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.deposit(w, r, number)
	case len(parts) == 2 && parts[1] == "withdrawals":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.withdraw(w, r, number)
	case len(parts) == 2 && parts[1] == "signatories":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.addSignatory(w, r, number)
	case len(parts) == 3 && parts[1] == "signatories":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		name, err := url.PathUnescape(parts[2])
		if err != nil || strings.TrimSpace(name) == "" {
			writeError(w, r, http.StatusBadRequest, "invalid signatory name")
			return
		}
		a.removeSignatory(w, r, number, name)
	case len(parts) == 2 && parts[1] == "interest":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.accrueInterest(w, r, number)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleInterestAccruals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	summary, err := a.ledger.BatchAccrueInterest(r.Context())
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	obs.AddInterestPaid(int64(summary.TotalInterest))
	_ = audit.LogEvent(r.Context(), "ledger.interest.batch", map[string]any{
		"processed":      summary.Processed,
		"total_interest": int64(summary.TotalInterest),
		"failed":         len(summary.Failed),
	})

	writeJSON(w, http.StatusOK, summary)
}

func (a *API) openAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(req.CustomerID) == "" {
		writeError(w, r, http.StatusBadRequest, "customer_id is required")
		return
	}
	accType, err := ledger.ParseAccountType(req.Type)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "type must be one of SAVINGS, INVESTMENT, CHEQUE")
		return
	}
	if req.InitialDeposit < 0 {
		writeError(w, r, http.StatusBadRequest, "initial_deposit must be >= 0")
		return
	}
	branch := strings.TrimSpace(req.Branch)
	if branch == "" {
		writeError(w, r, http.StatusBadRequest, "branch is required")
		return
	}

	acc, err := a.ledger.OpenAccount(r.Context(), ledger.OpenAccountParams{
		CustomerID:      strings.TrimSpace(req.CustomerID),
		Type:            accType,
		Branch:          branch,
		InitialDeposit:  ledger.Money(req.InitialDeposit),
		Signatories:     req.Signatories,
		EmployerName:    strings.TrimSpace(req.EmployerName),
		EmployerAddress: strings.TrimSpace(req.EmployerAddress),
	})
	if err != nil {
		obs.ObserveLedgerOp("open_account", "error")
		handleLedgerError(w, r, err)
		return
	}

	obs.ObserveLedgerOp("open_account", "ok")
	a.audit(r.Context(), "ledger.account.open", map[string]any{
		"account_number":  acc.Number,
		"customer_id":     acc.CustomerID,
		"type":            string(acc.Type),
		"branch":          acc.Branch,
		"initial_deposit": req.InitialDeposit,
	})

	w.Header().Set("Location", "/v1/accounts/"+acc.Number)
	writeJSON(w, http.StatusCreated, acc)
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
	if customerID == "" {
		writeError(w, r, http.StatusBadRequest, "customer_id query parameter is required")
		return
	}
	accs, err := a.ledger.ListAccountsByCustomer(r.Context(), customerID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	if accs == nil {
		accs = []ledger.AccountView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": accs,
		"count": len(accs),
	})
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request, number string) {
	acc, err := a.ledger.GetAccount(r.Context(), number)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request, number string) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, err := a.ledger.GetTransactionHistory(r.Context(), number)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []ledger.Transaction{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Items: items,
		Count: len(items),
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request, number string) {
	req, ok := a.decodeMovement(w, r)
	if !ok {
		return
	}

	balance, err := a.ledger.Deposit(r.Context(), number, ledger.Money(req.Amount), req.Signatory)
	if err != nil {
		obs.ObserveLedgerOp("deposit", "error")
		handleLedgerError(w, r, err)
		return
	}

	obs.ObserveLedgerOp("deposit", "ok")
	a.audit(r.Context(), "ledger.deposit", map[string]any{
		"account_number": number,
		"amount":         req.Amount,
		"signatory":      req.Signatory,
	})

	writeJSON(w, http.StatusCreated, movementResponse{AccountNumber: number, Balance: balance})
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request, number string) {
	req, ok := a.decodeMovement(w, r)
	if !ok {
		return
	}

	balance, err := a.ledger.Withdraw(r.Context(), number, ledger.Money(req.Amount), req.Signatory)
	if err != nil {
		obs.ObserveLedgerOp("withdraw", "error")
		handleLedgerError(w, r, err)
		return
	}

	obs.ObserveLedgerOp("withdraw", "ok")
	a.audit(r.Context(), "ledger.withdrawal", map[string]any{
		"account_number": number,
		"amount":         req.Amount,
		"signatory":      req.Signatory,
	})

	writeJSON(w, http.StatusCreated, movementResponse{AccountNumber: number, Balance: balance})
}

func (a *API) decodeMovement(w http.ResponseWriter, r *http.Request) (movementRequest, bool) {
	var req movementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return req, false
	}
	req.Signatory = strings.TrimSpace(req.Signatory)
	if req.Signatory == "" {
		writeError(w, r, http.StatusBadRequest, "signatory is required")
		return req, false
	}
	if req.Amount <= 0 {
		writeError(w, r, http.StatusBadRequest, "amount must be > 0")
		return req, false
	}
	return req, true
}

func (a *API) addSignatory(w http.ResponseWriter, r *http.Request, number string) {
	var req signatoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	if err := a.ledger.AddSignatory(r.Context(), number, name); err != nil {
		handleLedgerError(w, r, err)
		return
	}

	a.audit(r.Context(), "ledger.signatory.add", map[string]any{
		"account_number": number,
		"name":           name,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "added"})
}

func (a *API) removeSignatory(w http.ResponseWriter, r *http.Request, number, name string) {
	if err := a.ledger.RemoveSignatory(r.Context(), number, name); err != nil {
		handleLedgerError(w, r, err)
		return
	}

	a.audit(r.Context(), "ledger.signatory.remove", map[string]any{
		"account_number": number,
		"name":           name,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})
}

func (a *API) accrueInterest(w http.ResponseWriter, r *http.Request, number string) {
	interest, err := a.ledger.AccrueInterest(r.Context(), number)
	if err != nil {
		obs.ObserveLedgerOp("accrue_interest", "error")
		handleLedgerError(w, r, err)
		return
	}

	obs.ObserveLedgerOp("accrue_interest", "ok")
	obs.AddInterestPaid(int64(interest))
	a.audit(r.Context(), "ledger.interest.accrue", map[string]any{
		"account_number": number,
		"interest":       int64(interest),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"account_number": number,
		"interest":       interest,
	})
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUnknownAccountType),
		errors.Is(err, ledger.ErrBelowMinimumDeposit),
		errors.Is(err, ledger.ErrNoSignatory):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrUnauthorizedSignatory):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrWithdrawalNotPermitted),
		errors.Is(err, ledger.ErrNotInterestBearing):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrPersistence):
		writeError(w, r, http.StatusServiceUnavailable, "persistence unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

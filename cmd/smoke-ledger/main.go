// Command smoke-ledger exercises a running pulabank-api end to end: it opens
// a savings and a cheque account, moves money, checks that the savings
// withdrawal ban holds and runs a batch interest sweep.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

type client struct {
	base  string
	token string
	http  *http.Client
}

func main() {
	base := os.Getenv("PULABANK_API_ADDR")
	if base == "" {
		base = "http://localhost:8080"
	}

	c := &client{base: base, http: &http.Client{Timeout: 5 * time.Second}}

	var tok struct {
		Token string `json:"token"`
	}
	c.call(http.MethodPost, "/v1/auth/token", map[string]any{
		"user":  "smoke",
		"roles": []string{"teller"},
	}, http.StatusOK, &tok)
	c.token = tok.Token

	var savings, cheque struct {
		Number  string `json:"number"`
		Balance int64  `json:"balance"`
	}
	c.call(http.MethodPost, "/v1/accounts", map[string]any{
		"customer_id":     "smoke-jane",
		"type":            "SAVINGS",
		"branch":          "Gaborone",
		"initial_deposit": 10000,
		"signatories":     []string{"Jane Doe"},
	}, http.StatusCreated, &savings)

	c.call(http.MethodPost, "/v1/accounts", map[string]any{
		"customer_id":     "smoke-acme",
		"type":            "CHEQUE",
		"branch":          "Gaborone",
		"initial_deposit": 50000,
		"signatories":     []string{"Acme Corp"},
		"employer_name":   "Acme Corp",
	}, http.StatusCreated, &cheque)

	var afterDeposit struct {
		Balance int64 `json:"balance"`
	}
	c.call(http.MethodPost, "/v1/accounts/"+savings.Number+"/deposits", map[string]any{
		"amount":    5000,
		"signatory": "Jane Doe",
	}, http.StatusCreated, &afterDeposit)
	if afterDeposit.Balance != 15000 {
		log.Fatalf("unexpected savings balance: %d", afterDeposit.Balance)
	}

	// The savings withdrawal ban must hold.
	c.call(http.MethodPost, "/v1/accounts/"+savings.Number+"/withdrawals", map[string]any{
		"amount":    100,
		"signatory": "Jane Doe",
	}, http.StatusConflict, nil)

	var afterWithdraw struct {
		Balance int64 `json:"balance"`
	}
	c.call(http.MethodPost, "/v1/accounts/"+cheque.Number+"/withdrawals", map[string]any{
		"amount":    20000,
		"signatory": "Acme Corp",
	}, http.StatusCreated, &afterWithdraw)
	if afterWithdraw.Balance != 30000 {
		log.Fatalf("unexpected cheque balance: %d", afterWithdraw.Balance)
	}

	var summary struct {
		Processed     int   `json:"processed"`
		TotalInterest int64 `json:"total_interest"`
	}
	c.call(http.MethodPost, "/v1/interest/accruals", nil, http.StatusOK, &summary)
	if summary.Processed < 1 {
		log.Fatalf("interest sweep processed nothing")
	}

	fmt.Printf("ledger smoke test passed: accounts=%s,%s interest=%d\n",
		savings.Number, cheque.Number, summary.TotalInterest)
}

func (c *client) call(method, path string, body any, wantStatus int, out any) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Fatalf("marshal %s %s: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("request %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
}

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"vaultd/custody"
	"vaultd/state"
	"vaultd/storage"
	"vaultd/vault"
)

const (
	ownerHex = "0x1111111111111111111111111111111111111111"
	aliceHex = "0x2222222222222222222222222222222222222222"
)

func newTestServer(t *testing.T) (*httptest.Server, *state.Manager) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine := vault.NewEngine(manager, addr(ownerHex))
	engine.SetRoleRegistry(manager)
	engine.SetTransferer(custody.NewMemory())
	engine.SetTokenRegistry(vault.StaticTokenRegistry{"TOKA": 18, "TOKB": 18, "USDX": 6})

	server := httptest.NewServer(New(engine, nil, nil).Handler())
	t.Cleanup(server.Close)
	return server, manager
}

func addr(hexAddr string) [20]byte {
	var out [20]byte
	decoded := []byte(hexAddr[2:])
	for i := 0; i < 20; i++ {
		out[i] = fromHex(decoded[i*2])<<4 | fromHex(decoded[i*2+1])
	}
	return out
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func postJSON(t *testing.T, url string, payload interface{}) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func decodeError(t *testing.T, data []byte) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode error response %q: %v", data, err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	resp := getJSON(t, server.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	server, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/healthz", nil)
	req.Header.Set("X-Request-Id", "trace-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-Id"); got != "trace-123" {
		t.Fatalf("expected inbound request id echoed, got %q", got)
	}
}

func TestDepositAndBalance(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := postJSON(t, server.URL+"/v1/vault/deposit", operationRequest{
		Account: aliceHex,
		Asset:   "toka",
		Amount:  "100",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deposit: expected 200, got %d", resp.StatusCode)
	}

	var balance amountResponse
	getJSON(t, server.URL+"/v1/vault/balance/TOKA/"+aliceHex, &balance)
	if balance.Amount != "100" || balance.Asset != "TOKA" {
		t.Fatalf("unexpected balance response %+v", balance)
	}

	var total amountResponse
	getJSON(t, server.URL+"/v1/vault/total/toka", &total)
	if total.Amount != "100" {
		t.Fatalf("unexpected total response %+v", total)
	}
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	server, _ := newTestServer(t)

	resp, data := postJSON(t, server.URL+"/v1/vault/withdraw", operationRequest{
		Account: aliceHex,
		Asset:   "TOKA",
		Amount:  "5",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, data)
	}
	errResp := decodeError(t, data)
	if errResp.Code != "insufficient_balance" {
		t.Fatalf("expected insufficient_balance, got %q", errResp.Code)
	}
	if errResp.Requested != "5" || errResp.Available != "0" {
		t.Fatalf("unexpected error details %+v", errResp)
	}
}

func TestSwapEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	postJSON(t, server.URL+"/v1/vault/deposit", operationRequest{Account: aliceHex, Asset: "TOKA", Amount: "100"})
	postJSON(t, server.URL+"/v1/vault/deposit", operationRequest{Account: aliceHex, Asset: "TOKB", Amount: "50"})

	resp, data := postJSON(t, server.URL+"/v1/vault/swap", swapRequest{
		Account:  aliceHex,
		AssetIn:  "TOKA",
		AssetOut: "TOKB",
		AmountIn: "20",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("swap: expected 200, got %d: %s", resp.StatusCode, data)
	}
	var swap swapResponse
	if err := json.Unmarshal(data, &swap); err != nil {
		t.Fatalf("decode swap response: %v", err)
	}
	if swap.AmountOut != "20" || swap.AssetOut != "TOKB" {
		t.Fatalf("unexpected swap response %+v", swap)
	}

	var balance amountResponse
	getJSON(t, server.URL+"/v1/vault/balance/TOKB/"+aliceHex, &balance)
	if balance.Amount != "70" {
		t.Fatalf("expected TOKB balance 70, got %s", balance.Amount)
	}
}

func TestSwapSlippageRejected(t *testing.T) {
	server, _ := newTestServer(t)
	postJSON(t, server.URL+"/v1/vault/deposit", operationRequest{Account: aliceHex, Asset: "TOKA", Amount: "100"})

	resp, data := postJSON(t, server.URL+"/v1/vault/swap", swapRequest{
		Account:  aliceHex,
		AssetIn:  "TOKA",
		AssetOut: "TOKB",
		AmountIn: "20",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, data)
	}
	if errResp := decodeError(t, data); errResp.Code != "insufficient_liquidity" {
		t.Fatalf("expected insufficient_liquidity, got %q", errResp.Code)
	}
}

func TestBadRequests(t *testing.T) {
	server, _ := newTestServer(t)

	cases := []struct {
		name string
		url  string
		body string
	}{
		{"malformed address", "/v1/vault/deposit", `{"account": "nope", "asset": "TOKA", "amount": "1"}`},
		{"malformed amount", "/v1/vault/deposit", `{"account": "` + aliceHex + `", "asset": "TOKA", "amount": "abc"}`},
		{"unknown field", "/v1/vault/deposit", `{"account": "` + aliceHex + `", "asset": "TOKA", "amount": "1", "extra": true}`},
		{"invalid json", "/v1/vault/swap", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+tc.url, "application/json", bytes.NewReader([]byte(tc.body)))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.StatusCode, data)
			}
		})
	}
}

func TestAdminCapsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, data := postJSON(t, server.URL+"/v1/admin/caps", setCapsRequest{
		Caller:      aliceHex,
		Asset:       "TOKA",
		DepositCap:  "1000",
		WithdrawCap: "50",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d: %s", resp.StatusCode, data)
	}
	if errResp := decodeError(t, data); errResp.Code != "access_denied" {
		t.Fatalf("expected access_denied, got %q", errResp.Code)
	}

	resp, data = postJSON(t, server.URL+"/v1/admin/caps", setCapsRequest{
		Caller:      ownerHex,
		Asset:       "TOKA",
		DepositCap:  "1000",
		WithdrawCap: "50",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner caps: expected 200, got %d: %s", resp.StatusCode, data)
	}

	var caps capsResponse
	getJSON(t, server.URL+"/v1/vault/caps/TOKA", &caps)
	if caps.DepositCap != "1000" || caps.WithdrawCap != "50" {
		t.Fatalf("unexpected caps %+v", caps)
	}
}

func TestOperatorViaRoleRegistry(t *testing.T) {
	server, manager := newTestServer(t)
	if err := manager.GrantRole(state.RoleOperator, addr(aliceHex)); err != nil {
		t.Fatalf("grant role: %v", err)
	}

	resp, data := postJSON(t, server.URL+"/v1/admin/usd-cap", setUSDCapRequest{
		Caller: aliceHex,
		Cap:    "200000000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("operator usd-cap: expected 200, got %d: %s", resp.StatusCode, data)
	}

	var caps capsResponse
	getJSON(t, server.URL+"/v1/vault/caps/NATIVE", &caps)
	if caps.USDCap != "200000000" {
		t.Fatalf("expected usd cap 200000000, got %q", caps.USDCap)
	}
}

func TestRescueEndpointGuardsSurplus(t *testing.T) {
	server, _ := newTestServer(t)
	postJSON(t, server.URL+"/v1/vault/deposit", operationRequest{Account: aliceHex, Asset: "TOKA", Amount: "100"})

	resp, data := postJSON(t, server.URL+"/v1/admin/rescue", rescueRequest{
		Caller: ownerHex,
		Asset:  "TOKA",
		To:     ownerHex,
		Amount: "1",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, data)
	}
	if errResp := decodeError(t, data); errResp.Code != "insufficient_balance" {
		t.Fatalf("expected insufficient_balance, got %q", errResp.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	engine := vault.NewEngine(manager, addr(ownerHex))
	server := httptest.NewServer(New(engine, nil, NewRateLimiter(60, 1)).Handler())
	defer server.Close()

	resp := getJSON(t, server.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", resp.StatusCode)
	}
	resp = getJSON(t, server.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", resp.StatusCode)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	if NewRateLimiter(0, 5) != nil {
		t.Fatal("expected nil limiter for non-positive budget")
	}
}

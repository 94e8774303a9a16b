package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dicehouse/internal/chain"
	"dicehouse/internal/contract"
	"dicehouse/internal/game"
	"dicehouse/internal/store"
)

const (
	testContract = "dice1house"
	testAdmin    = "dice1admin"
	testPlayer   = "dice1player"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T, faucet bool) *FiberServer {
	t.Helper()
	ctx := context.Background()

	c := chain.New(store.NewMemory(), testContract, chain.WithBeacon(game.StaticEntropy(make([]byte, chain.BeaconSize))))
	if _, err := c.Instantiate(ctx, testAdmin, contract.InstantiateMsg{
		MinBet:            game.NewAmount(1),
		MaxBet:            game.NewAmount(100),
		PayoutNumerator:   57,
		PayoutDenominator: 10,
		Admin:             testAdmin,
	}); err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}
	coins := func(n uint64) []contract.Coin {
		return []contract.Coin{{Denom: game.DefaultDenom, Amount: game.NewAmount(n)}}
	}
	if err := c.Mint(ctx, testAdmin, coins(10000)); err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if err := c.Mint(ctx, testPlayer, coins(500)); err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if _, err := c.Execute(ctx, testAdmin, coins(5000), contract.Deposit{}); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}

	s := New(Options{
		Chain:         c,
		JWTSecret:     testSecret,
		FaucetEnabled: faucet,
		Denom:         game.DefaultDenom,
	})
	s.RegisterFiberRoutes()
	t.Cleanup(func() { s.cancel() })
	return s
}

func token(t *testing.T, sender string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, sender, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return tok
}

func do(t *testing.T, s *FiberServer, method, path, bearer, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read response body: %v", err)
	}
	var result map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			t.Fatalf("could not unmarshal response %q: %v", raw, err)
		}
	}
	return resp.StatusCode, result
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, false)

	status, result := do(t, s, http.MethodGet, "/health", "", "")
	if status != http.StatusOK {
		t.Fatalf("expected status OK; got %v", status)
	}

	chainInfo, ok := result["chain"].(map[string]any)
	if !ok {
		t.Fatalf("health has no chain section: %v", result)
	}
	if chainInfo["instantiated"] != true || chainInfo["contract"] != testContract {
		t.Errorf("chain = %v", chainInfo)
	}
	if chainInfo["height"].(float64) != 2 {
		t.Errorf("height = %v, want 2", chainInfo["height"])
	}
	if _, ok := result["database"]; ok {
		t.Error("health reports a database that was never configured")
	}
}

func TestExecute_RequiresToken(t *testing.T) {
	s := newTestServer(t, false)
	body := `{"msg":{"deposit":{}},"funds":[]}`

	tests := []struct {
		name   string
		bearer string
	}{
		{name: "Missing", bearer: ""},
		{name: "Garbage", bearer: "not-a-jwt"},
		{name: "Wrong secret", bearer: func() string {
			tok, _ := IssueToken([]byte("other"), testAdmin, time.Hour, time.Now())
			return tok
		}()},
		{name: "Expired", bearer: func() string {
			tok, _ := IssueToken(testSecret, testAdmin, time.Minute, time.Now().Add(-time.Hour))
			return tok
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, result := do(t, s, http.MethodPost, "/api/v1/execute", tt.bearer, body)
			if status != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", status)
			}
			if result["error"] != codeUnauthenticated {
				t.Errorf("error = %v, want %s", result["error"], codeUnauthenticated)
			}
		})
	}
}

func TestExecute_Play(t *testing.T) {
	s := newTestServer(t, false)

	status, result := do(t, s, http.MethodPost, "/api/v1/execute", token(t, testPlayer),
		`{"msg":{"play":{"guess":3,"salt":"c2FsdA=="}},"funds":[{"denom":"udice","amount":"10"}]}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %v", status, result)
	}
	if result["sender"] != testPlayer {
		t.Errorf("sender = %v, want %s", result["sender"], testPlayer)
	}

	status, nonce := do(t, s, http.MethodGet, "/api/v1/rounds/nonce", "", "")
	if status != http.StatusOK || nonce["nonce"].(float64) != 1 {
		t.Errorf("nonce = %v (status %d), want 1", nonce, status)
	}

	// Whatever the outcome, no coins appear or vanish.
	ctx := context.Background()
	player, _ := s.chain.Balance(ctx, testPlayer)
	house, _ := s.chain.Balance(ctx, testContract)
	total, _ := player[game.DefaultDenom].Add(house[game.DefaultDenom])
	if !total.Equal(game.NewAmount(5500)) {
		t.Errorf("player + contract = %s, want 5500", total)
	}
}

func TestExecute_Errors(t *testing.T) {
	s := newTestServer(t, false)

	tests := []struct {
		name       string
		sender     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "Unknown message", sender: testPlayer, body: `{"msg":{"spin":{}}}`, wantStatus: 400, wantCode: string(game.CodeInvalidMessage)},
		{name: "Missing msg", sender: testPlayer, body: `{"funds":[]}`, wantStatus: 400, wantCode: string(game.CodeInvalidMessage)},
		{name: "Stake above max", sender: testPlayer, body: `{"msg":{"play":{"guess":3}},"funds":[{"denom":"udice","amount":"101"}]}`, wantStatus: 400, wantCode: string(game.CodeBetOutOfBounds)},
		{name: "Guess off the die", sender: testPlayer, body: `{"msg":{"play":{"guess":7}},"funds":[{"denom":"udice","amount":"10"}]}`, wantStatus: 400, wantCode: string(game.CodeInvalidRange)},
		{name: "More than the player holds", sender: testPlayer, body: `{"msg":{"deposit":{}},"funds":[{"denom":"udice","amount":"501"}]}`, wantStatus: 400, wantCode: string(game.CodeInvalidFunds)},
		{name: "Withdraw by non-admin", sender: testPlayer, body: `{"msg":{"withdraw":{"amount":"1"}}}`, wantStatus: 403, wantCode: string(game.CodeUnauthorized)},
		{name: "Withdraw beyond the house", sender: testAdmin, body: `{"msg":{"withdraw":{"amount":"5001"}}}`, wantStatus: 409, wantCode: string(game.CodeInsufficientHouseFunds)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, result := do(t, s, http.MethodPost, "/api/v1/execute", token(t, tt.sender), tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %v)", status, tt.wantStatus, result)
			}
			if result["error"] != tt.wantCode {
				t.Errorf("error = %v, want %s", result["error"], tt.wantCode)
			}
		})
	}

	// None of the rejected transactions moved the nonce.
	_, nonce := do(t, s, http.MethodGet, "/api/v1/rounds/nonce", "", "")
	if nonce["nonce"].(float64) != 0 {
		t.Errorf("nonce = %v after rejected plays, want 0", nonce["nonce"])
	}
}

func TestQueryRoutes(t *testing.T) {
	s := newTestServer(t, false)

	status, house := do(t, s, http.MethodGet, "/api/v1/house/balance", "", "")
	if status != http.StatusOK || house["amount"] != "5000" {
		t.Errorf("house balance = %v (status %d), want 5000", house, status)
	}

	status, odds := do(t, s, http.MethodGet, "/api/v1/odds", "", "")
	if status != http.StatusOK || odds["multiplier_decimal"] != "5.7" || odds["house_edge"] != "0.05" {
		t.Errorf("odds = %v (status %d)", odds, status)
	}

	status, cfg := do(t, s, http.MethodPost, "/api/v1/query", "", `{"get_config":{}}`)
	if status != http.StatusOK || cfg["admin_address"] != testAdmin {
		t.Errorf("config = %v (status %d)", cfg, status)
	}

	status, verify := do(t, s, http.MethodPost, "/api/v1/query", "",
		`{"verify_round":{"block_entropy":"AAAA","sender":"dice1player","nonce":0}}`)
	if status != http.StatusOK {
		t.Fatalf("verify_round status = %d, body %v", status, verify)
	}
	if o := verify["outcome"].(float64); o < 1 || o > 6 {
		t.Errorf("verify_round outcome = %v, outside the die", o)
	}

	status, bad := do(t, s, http.MethodPost, "/api/v1/query", "", `{"get_config":{},"get_odds":{}}`)
	if status != http.StatusBadRequest || bad["error"] != string(game.CodeInvalidMessage) {
		t.Errorf("two-key query = %v (status %d), want INVALID_MESSAGE", bad, status)
	}
}

func TestBankHandler(t *testing.T) {
	s := newTestServer(t, false)

	status, result := do(t, s, http.MethodGet, "/api/v1/bank/"+testPlayer, "", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	balances := result["balances"].([]any)
	if len(balances) != 1 {
		t.Fatalf("balances = %v, want one coin", balances)
	}
	coin := balances[0].(map[string]any)
	if coin["denom"] != game.DefaultDenom || coin["amount"] != "500" {
		t.Errorf("coin = %v, want 500udice", coin)
	}
}

func TestRoundsWithoutIndexer(t *testing.T) {
	s := newTestServer(t, false)

	status, result := do(t, s, http.MethodGet, "/api/v1/rounds", "", "")
	if status != http.StatusServiceUnavailable || result["error"] != codeUnavailable {
		t.Errorf("rounds = %v (status %d), want 503", result, status)
	}
}

func TestFaucet(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		s := newTestServer(t, false)
		status, _ := do(t, s, http.MethodPost, "/api/v1/faucet", token(t, "dice1new"), `{"amount":"10"}`)
		if status != http.StatusNotFound {
			t.Errorf("status = %d, want 404", status)
		}
	})

	t.Run("Enabled", func(t *testing.T) {
		s := newTestServer(t, true)
		status, result := do(t, s, http.MethodPost, "/api/v1/faucet", token(t, "dice1new"), `{"amount":"250"}`)
		if status != http.StatusOK {
			t.Fatalf("status = %d, body %v", status, result)
		}
		coin := result["balances"].([]any)[0].(map[string]any)
		if coin["amount"] != "250" {
			t.Errorf("balance = %v, want 250", coin)
		}
	})

	t.Run("Above limit", func(t *testing.T) {
		s := newTestServer(t, true)
		status, result := do(t, s, http.MethodPost, "/api/v1/faucet", token(t, "dice1new"), `{"amount":"1000001"}`)
		if status != http.StatusBadRequest || result["error"] != string(game.CodeInvalidFunds) {
			t.Errorf("result = %v (status %d), want INVALID_FUNDS", result, status)
		}
	})
}

func TestPublishEvent_OnlyRoundResults(t *testing.T) {
	s := &FiberServer{feed: NewHub()}
	block := chain.Block{Height: 9}

	s.publishEvent(block, testPlayer, contract.Event{Type: "deposit"})
	if n := len(s.feed.broadcast); n != 0 {
		t.Fatalf("deposit queued %d feed messages", n)
	}

	s.publishEvent(block, testPlayer, contract.Event{
		Type:       contract.EventRoundResult,
		Attributes: []contract.Attribute{{Key: "outcome", Value: "4"}},
	})
	msg := (<-s.feed.broadcast).(roundMessage)
	if msg.Height != 9 || msg.Sender != testPlayer || msg.Data["outcome"] != "4" {
		t.Errorf("feed message = %+v", msg)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok := token(t, testPlayer)

	sub, err := ParseToken(testSecret, tok)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if sub != testPlayer {
		t.Errorf("ParseToken() = %s, want %s", sub, testPlayer)
	}

	if _, err := IssueToken(testSecret, "", time.Hour, time.Now()); err == nil {
		t.Error("IssueToken() without subject succeeded")
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"scratch2x/internal/game"
	"scratch2x/internal/payment"
	"scratch2x/internal/repository"
)

type fakePlayers struct {
	players map[string]*repository.Player
}

func (f *fakePlayers) CreatePlayer(_ context.Context, username string, balance decimal.Decimal) (*repository.Player, error) {
	for _, p := range f.players {
		if p.Username == username {
			return nil, repository.ErrUsernameTaken
		}
	}
	p := &repository.Player{ID: "p-" + username, Username: username, Balance: balance, CreatedAt: time.Now()}
	f.players[p.ID] = p
	return p, nil
}

func (f *fakePlayers) GetPlayer(_ context.Context, id string) (*repository.Player, error) {
	p, ok := f.players[id]
	if !ok {
		return nil, repository.ErrPlayerNotFound
	}
	return p, nil
}

func (f *fakePlayers) History(_ context.Context, id string, _ int) ([]repository.GameResult, error) {
	if _, ok := f.players[id]; !ok {
		return nil, repository.ErrPlayerNotFound
	}
	return []repository.GameResult{{ID: "r1", PlayerID: id, Bet: decimal.NewFromInt(10)}}, nil
}

func (f *fakePlayers) Leaderboard(_ context.Context, _ int) ([]repository.LeaderboardEntry, error) {
	return []repository.LeaderboardEntry{{PlayerID: "p-a", Username: "a", TotalWins: 2}}, nil
}

// fakeGateway answers every call with err, or a fixed payment when err is nil.
type fakeGateway struct {
	err error
}

func (f *fakeGateway) payment() *payment.Payment {
	return &payment.Payment{ID: "pay-1", PlayerID: "u1", Kind: payment.KindDeposit, Status: payment.StatusPending}
}

func (f *fakeGateway) Deposit(context.Context, payment.DepositRequest) (*payment.DepositResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &payment.DepositResult{Payment: f.payment(), Instructions: payment.Instructions{PaymentURL: "upi://pay?pa=x"}}, nil
}

func (f *fakeGateway) Withdraw(context.Context, payment.WithdrawalRequest) (*payment.WithdrawalResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &payment.WithdrawalResult{Payment: f.payment(), EstimatedTime: "1-3 business days"}, nil
}

func (f *fakeGateway) Get(context.Context, string) (*payment.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payment(), nil
}

func (f *fakeGateway) UpdateStatus(_ context.Context, _ string, status payment.Status) (*payment.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := f.payment()
	p.Status = status
	return p, nil
}

func (f *fakeGateway) Transactions(context.Context, string, int) ([]*payment.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*payment.Payment{f.payment()}, nil
}

func (f *fakeGateway) Wallet(_ context.Context, playerID string) (*payment.WalletView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &payment.WalletView{PlayerID: playerID, Balance: decimal.NewFromInt(1000)}, nil
}

// newTestServer wires an in-memory manager whose every card pays 2.00x.
func newTestServer(t *testing.T, players PlayerDirectory, payments PaymentGateway) *FiberServer {
	t.Helper()
	hub := game.NewHub(nil)
	manager := game.NewManager(
		game.WithRandomSource(game.RandomFunc(func() float64 { return 0.96 })),
		game.WithNotifier(hub),
	)
	manager.Start()

	s := New(Deps{Manager: manager, Hub: hub, Players: players, Payments: payments})
	s.RegisterFiberRoutes()
	t.Cleanup(func() {
		manager.Stop()
		hub.Stop()
	})
	return s
}

func do(t *testing.T, s *FiberServer, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

func errorOf(t *testing.T, raw []byte) string {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	msg, _ := body["error"].(string)
	return msg
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, nil, nil)

	status, raw := do(t, s, http.MethodGet, "/health", "")
	if status != http.StatusOK {
		t.Fatalf("expected status OK; got %d", status)
	}

	var result map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("could not unmarshal response: %v", err)
	}
	if result["game"]["status"] != "running" {
		t.Errorf("game status = %v", result["game"]["status"])
	}
	if result["database"]["status"] != "disabled" {
		t.Errorf("database status = %v", result["database"]["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	status, raw := do(t, s, http.MethodGet, "/metrics", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(string(raw), "go_goroutines") {
		t.Error("metrics output is missing the default collectors")
	}
}

func TestGameRoundFlow(t *testing.T) {
	s := newTestServer(t, nil, nil)

	status, raw := do(t, s, http.MethodPost, "/api/v1/game/start", `{"user_id":"u1","bet":"10"}`)
	if status != http.StatusOK {
		t.Fatalf("start: %d %s", status, raw)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != game.StatusPlaying || !snap.Balance.Equal(decimal.NewFromInt(990)) {
		t.Fatalf("after start: status %s balance %s", snap.Status, snap.Balance)
	}
	for _, c := range snap.Cards {
		if c.Multiplier != "" {
			t.Fatalf("card %d leaks its multiplier before reveal", c.Index)
		}
	}

	status, raw = do(t, s, http.MethodPost, "/api/v1/game/select", `{"user_id":"u1","index":3}`)
	if status != http.StatusOK {
		t.Fatalf("select: %d %s", status, raw)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != game.StatusAwaitingReveal || snap.Selected == nil || *snap.Selected != 3 {
		t.Fatalf("after select: %+v", snap)
	}

	status, raw = do(t, s, http.MethodPost, "/api/v1/game/reveal", `{"user_id":"u1"}`)
	if status != http.StatusOK {
		t.Fatalf("reveal: %d %s", status, raw)
	}
	var out struct {
		Snapshot   game.Snapshot    `json:"snapshot"`
		Settlement *game.Settlement `json:"settlement"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.Settlement == nil || !out.Settlement.Won {
		t.Fatalf("settlement = %+v", out.Settlement)
	}
	if !out.Snapshot.Balance.Equal(decimal.NewFromInt(1020)) {
		t.Errorf("balance = %s, want 1020", out.Snapshot.Balance)
	}
	if out.Snapshot.Message != "You Won ₹30.00 (Bet: ₹10.00 + Win: ₹20.00)" {
		t.Errorf("message = %q", out.Snapshot.Message)
	}

	status, raw = do(t, s, http.MethodGet, "/api/v1/user/u1/balance", "")
	if status != http.StatusOK || !strings.Contains(string(raw), `"balance_display":"₹1020.00"`) {
		t.Errorf("balance: %d %s", status, raw)
	}

	status, raw = do(t, s, http.MethodPost, "/api/v1/game/reset", `{"user_id":"u1"}`)
	if status != http.StatusOK {
		t.Fatalf("reset: %d %s", status, raw)
	}
	status, raw = do(t, s, http.MethodGet, "/api/v1/game/u1", "")
	if err := json.Unmarshal(raw, &snap); err != nil || status != http.StatusOK {
		t.Fatalf("snapshot: %d %s", status, raw)
	}
	if snap.Status != game.StatusIdle {
		t.Errorf("status after reset = %s", snap.Status)
	}
}

func TestGameValidation(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		wantMsg string
	}{
		{"missing user", "/api/v1/game/start", `{"bet":"10"}`, "User ID is required"},
		{"bad json", "/api/v1/game/start", `{"user_id":`, "Invalid request body"},
		{"bad bet", "/api/v1/game/start", `{"user_id":"u1","bet":"abc"}`, "Please enter a valid bet amount"},
		{"negative bet", "/api/v1/game/start", `{"user_id":"u1","bet":-5}`, "Please enter a valid bet amount"},
		{"over balance", "/api/v1/game/start", `{"user_id":"u1","bet":5000}`, "Insufficient balance"},
		{"select idle", "/api/v1/game/select", `{"user_id":"u1","index":2}`, "That card cannot be selected"},
		{"select without index", "/api/v1/game/select", `{"user_id":"u1"}`, "Card index is required"},
		{"reveal idle", "/api/v1/game/reveal", `{"user_id":"u1"}`, "Select a card first"},
	}

	s := newTestServer(t, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := do(t, s, http.MethodPost, tt.path, tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", status, raw)
			}
			if got := errorOf(t, raw); got != tt.wantMsg {
				t.Errorf("error = %q, want %q", got, tt.wantMsg)
			}
		})
	}

	// rejected requests leave the balance alone
	_, raw := do(t, s, http.MethodGet, "/api/v1/user/u1/balance", "")
	if !strings.Contains(string(raw), `"balance_display":"₹1000.00"`) {
		t.Errorf("balance after rejections: %s", raw)
	}
}

func TestPlayerRoutes(t *testing.T) {
	s := newTestServer(t, &fakePlayers{players: map[string]*repository.Player{}}, nil)

	status, raw := do(t, s, http.MethodPost, "/api/v1/players", `{"username":"asha"}`)
	if status != http.StatusCreated {
		t.Fatalf("create: %d %s", status, raw)
	}
	var p repository.Player
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatal(err)
	}
	if !p.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("starting balance = %s", p.Balance)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"duplicate", http.MethodPost, "/api/v1/players", `{"username":"asha"}`, http.StatusConflict},
		{"blank username", http.MethodPost, "/api/v1/players", `{"username":"  "}`, http.StatusBadRequest},
		{"get", http.MethodGet, "/api/v1/players/" + p.ID, "", http.StatusOK},
		{"get unknown", http.MethodGet, "/api/v1/players/nobody", "", http.StatusNotFound},
		{"history", http.MethodGet, "/api/v1/players/" + p.ID + "/history", "", http.StatusOK},
		{"history unknown", http.MethodGet, "/api/v1/players/nobody/history", "", http.StatusNotFound},
		{"leaderboard", http.MethodGet, "/api/v1/leaderboard", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := do(t, s, tt.method, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", status, tt.wantStatus, raw)
			}
		})
	}
}

func TestUnconfiguredStores(t *testing.T) {
	s := newTestServer(t, nil, nil)

	for _, path := range []string{"/api/v1/leaderboard", "/api/v1/wallet/u1", "/api/v1/payments/pay-1"} {
		if status, _ := do(t, s, http.MethodGet, path, ""); status != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503", path, status)
		}
	}
}

func TestPaymentRoutes(t *testing.T) {
	s := newTestServer(t, nil, &fakeGateway{})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"deposit", http.MethodPost, "/api/v1/payments/deposits", `{"user_id":"u1","amount":"500","source_currency":"INR","payment_method":"UPI","upi_app":"gpay"}`, http.StatusCreated},
		{"withdraw", http.MethodPost, "/api/v1/payments/withdrawals", `{"user_id":"u1","amount":1000,"withdrawal_method":"UPI","upi_id":"a@b"}`, http.StatusCreated},
		{"get", http.MethodGet, "/api/v1/payments/pay-1", "", http.StatusOK},
		{"status", http.MethodPost, "/api/v1/payments/pay-1/status", `{"status":"completed"}`, http.StatusOK},
		{"list", http.MethodGet, "/api/v1/payments?user_id=u1", "", http.StatusOK},
		{"list without user", http.MethodGet, "/api/v1/payments", "", http.StatusBadRequest},
		{"wallet", http.MethodGet, "/api/v1/wallet/u1", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := do(t, s, tt.method, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", status, tt.wantStatus, raw)
			}
		})
	}
}

func TestPaymentErrorMapping(t *testing.T) {
	validation := &payment.ValidationError{Message: "Minimum deposit amount is INR 100"}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", validation, http.StatusBadRequest, "Minimum deposit amount is INR 100"},
		{"wrapped validation", errors.Join(errors.New("ctx"), validation), http.StatusBadRequest, "Minimum deposit amount is INR 100"},
		{"not found", payment.ErrPaymentNotFound, http.StatusNotFound, "Payment not found"},
		{"already final", payment.ErrAlreadyFinal, http.StatusConflict, "Payment already finalised"},
		{"bad status", payment.ErrInvalidStatus, http.StatusBadRequest, "Status must be completed or failed"},
		{"busy", game.ErrQueueFull, http.StatusServiceUnavailable, "Server busy, please retry"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil, &fakeGateway{err: tt.err})
			status, raw := do(t, s, http.MethodPost, "/api/v1/payments/pay-1/status", `{"status":"completed"}`)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", status, tt.wantStatus, raw)
			}
			if got := errorOf(t, raw); got != tt.wantMsg {
				t.Errorf("error = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestHandleFrame(t *testing.T) {
	s := newTestServer(t, nil, nil)
	ctx := context.Background()

	frameType := func(v interface{}) string {
		if v == nil {
			return ""
		}
		return v.(game.WSMessage).Type
	}

	if got := frameType(s.handleFrame(ctx, "u1", clientFrame{Type: "ping"})); got != "pong" {
		t.Errorf("ping -> %q", got)
	}
	if got := frameType(s.handleFrame(ctx, "u1", clientFrame{Type: "scratch_start", X: 10, Y: 10})); got != "error" {
		t.Errorf("scratch without a card -> %q, want error", got)
	}
	if got := frameType(s.handleFrame(ctx, "u1", clientFrame{Type: "bogus"})); got != "" {
		t.Errorf("unknown frame -> %q, want no reply", got)
	}

	if reply := s.handleFrame(ctx, "u1", clientFrame{Type: "start", Bet: "10"}); reply != nil {
		t.Fatalf("start -> %+v", reply)
	}
	idx := 4
	if reply := s.handleFrame(ctx, "u1", clientFrame{Type: "select", Index: &idx}); reply != nil {
		t.Fatalf("select -> %+v", reply)
	}

	reply := s.handleFrame(ctx, "u1", clientFrame{Type: "scratch_start", X: 100, Y: 100})
	msg, ok := reply.(game.WSMessage)
	if !ok || msg.Type != "progress" {
		t.Fatalf("scratch_start -> %+v", reply)
	}
	progress := msg.Data.(game.ProgressMessage)
	if progress.Index != 4 || progress.Percent <= 0 || progress.Percent >= 40 {
		t.Errorf("progress = %+v", progress)
	}

	// sweep the whole surface so coverage crosses the reveal threshold
	for y := 0.0; y <= 200; y += 30 {
		s.handleFrame(ctx, "u1", clientFrame{Type: "scratch_move", X: 0, Y: y})
		s.handleFrame(ctx, "u1", clientFrame{Type: "scratch_move", X: 200, Y: y})
	}
	s.handleFrame(ctx, "u1", clientFrame{Type: "scratch_end"})

	snap, err := s.gameManager.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != game.StatusCompleted {
		t.Fatalf("status after scratching = %s", snap.Status)
	}
	if !snap.Balance.Equal(decimal.NewFromInt(1020)) {
		t.Errorf("balance = %s, want 1020", snap.Balance)
	}
}

package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"presupuesto/internal/cache"
	"presupuesto/internal/core"
	"presupuesto/internal/events"
	"presupuesto/internal/feeds"
	"presupuesto/internal/log"
	"presupuesto/internal/services"
	"presupuesto/internal/storage"
)

const testSecret = "test-secret-please-rotate"

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type httpEnv struct {
	ts    *httptest.Server
	store *storage.SQLiteRepository
}

func newHTTPEnv(t *testing.T) *httpEnv {
	t.Helper()

	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	bus := events.NewBus()
	summary := cache.New[core.MonthSummary](64, time.Minute)
	clock := fixedClock{now: time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)}
	loc := time.UTC

	srv := NewServer(Options{
		Addr:              "127.0.0.1:0",
		JWTSecret:         testSecret,
		Ledger:            services.NewLedgerService(store, nil, bus, summary, clock, loc, logger),
		Config:            services.NewConfigService(store, bus, summary, logger),
		Goals:             services.NewGoalService(store, bus, clock, logger),
		Reset:             services.NewResetService(store, bus, summary, clock, loc, logger),
		Bus:               bus,
		Inflation:         feeds.NewInflationClient("", time.Second, clock, logger),
		Investments:       feeds.NewInvestmentsClient("", time.Second, clock, logger),
		Clock:             clock,
		Location:          loc,
		Logger:            logger,
		RequestsPerMinute: 1000,
	})

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return &httpEnv{ts: ts, store: store}
}

func signToken(t *testing.T, secret, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (e *httpEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, payload)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, raw
}

// decodeData unwraps the success envelope into out.
func decodeData(t *testing.T, raw []byte, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, raw)
	}
	if !envelope.Success {
		t.Fatalf("expected success envelope, got error %q", envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("unmarshal data: %v (%s)", err, envelope.Data)
		}
	}
}

func decodeError(t *testing.T, raw []byte) string {
	t.Helper()
	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, raw)
	}
	if envelope.Success {
		t.Fatalf("expected error envelope, got success: %s", raw)
	}
	return envelope.Error
}

func amt(s string) amountField { return amountField{decimal.RequireFromString(s)} }

func pct(s string) percentField { return percentField{decimal.RequireFromString(s)} }

func testConfigDTO() configDTO {
	return configDTO{
		GrossSalary:          decimal.RequireFromString("1000000"),
		MonotributoDeduction: decimal.RequireFromString("50000"),
		Categories: map[string]categoryDTO{
			"gastos":     {Name: "Gastos fijos", Percentage: pct("40"), Icon: "Wallet"},
			"ocio":       {Name: "Ocio", Percentage: pct("35"), Icon: "Gamepad"},
			"inversion":  {Name: "Inversión", Percentage: pct("15"), Icon: "TrendingUp"},
			"emergencia": {Name: "Emergencia", Percentage: pct("10"), Icon: "PiggyBank", IsSavings: true},
		},
		CategoryOrder: []string{"gastos", "ocio", "inversion", "emergencia"},
	}
}

func (e *httpEnv) saveConfig(t *testing.T, token string) {
	t.Helper()
	status, raw := e.do(t, http.MethodPut, "/api/config", token, testConfigDTO())
	if status != http.StatusOK {
		t.Fatalf("save config: status %d: %s", status, raw)
	}
}

func TestMissingCredentialsAreSilent(t *testing.T) {
	env := newHTTPEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/config", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 without credentials, got %d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) != 0 {
		t.Fatalf("expected empty body, got %s", raw)
	}
}

func TestBadTokenRejected(t *testing.T) {
	env := newHTTPEnv(t)

	forged := signToken(t, "some-other-secret", "mallory")
	status, raw := env.do(t, http.MethodGet, "/api/config", forged, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", status)
	}
	if msg := decodeError(t, raw); msg != "permission denied" {
		t.Fatalf("expected generic permission error, got %q", msg)
	}
}

func TestTokenWithoutSubjectRejected(t *testing.T) {
	env := newHTTPEnv(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	status, _ := env.do(t, http.MethodGet, "/api/config", signed, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for subject-less token, got %d", status)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	env := newHTTPEnv(t)
	token := signToken(t, testSecret, "alice")
	env.saveConfig(t, token)

	status, raw := env.do(t, http.MethodGet, "/api/config", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get config: status %d: %s", status, raw)
	}
	var got configDTO
	decodeData(t, raw, &got)

	if !got.GrossSalary.Equal(decimal.RequireFromString("1000000")) {
		t.Errorf("gross salary = %s, want 1000000", got.GrossSalary)
	}
	if len(got.CategoryOrder) != 4 || got.CategoryOrder[0] != "gastos" {
		t.Errorf("category order = %v", got.CategoryOrder)
	}
	if !got.Categories["emergencia"].IsSavings {
		t.Error("emergencia should stay a savings category")
	}
}

func TestConfigPercentagesMustSum(t *testing.T) {
	env := newHTTPEnv(t)
	token := signToken(t, testSecret, "alice")

	dto := testConfigDTO()
	cat := dto.Categories["ocio"]
	cat.Percentage = pct("20")
	dto.Categories["ocio"] = cat

	status, raw := env.do(t, http.MethodPut, "/api/config", token, dto)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad percentages, got %d: %s", status, raw)
	}
	decodeError(t, raw)
}

func TestSessionBeforeAndAfterConfig(t *testing.T) {
	env := newHTTPEnv(t)
	token := signToken(t, testSecret, "alice")

	status, raw := env.do(t, http.MethodGet, "/api/session", token, nil)
	if status != http.StatusOK {
		t.Fatalf("session: status %d: %s", status, raw)
	}
	var session sessionDTO
	decodeData(t, raw, &session)
	if session.Config != nil {
		t.Fatal("expected null config before first save")
	}

	env.saveConfig(t, token)
	_, raw = env.do(t, http.MethodGet, "/api/session", token, nil)
	decodeData(t, raw, &session)
	if session.Config == nil {
		t.Fatal("expected config after save")
	}
}

func TestCreateTransactionAssignsID(t *testing.T) {
	env := newHTTPEnv(t)
	token := signToken(t, testSecret, "alice")
	env.saveConfig(t, token)

	status, raw := env.do(t, http.MethodPost, "/api/transactions", token, transactionDTO{
		ID:       "client-chosen",
		Type:     string(core.Expense),
		Category: "gastos",
		Amount:   amt("12500.50"),
		Date:     time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
	})
	if status != http.StatusCreated {
		t.Fatalf("create: status %d: %s", status, raw)
	}
	var created transactionDTO
	decodeData(t, raw, &created)
	if created.ID == "" || created.ID == "client-chosen" {
		t.Fatalf("expected a server-assigned id, got %q", created.ID)
	}
}

func TestCreateTransactionAmountParsing(t *testing.T) {
	env := newHTTPEnv(t)
	token := signToken(t, testSecret, "alice")
	env.saveConfig(t, token)

	// Comma decimal separators are common input here and must parse.
	body := json.RawMessage(`{"type":"expense","category":"gastos","amount":"1250,50","date":"2026-03-10T00:00:00Z"}`)
	status, raw := env.do(t, http.MethodPost, "/api/transactions", token, body)
	if status != http.StatusCreated {
		t.Fatalf("create: status %d: %s", status, raw)
	}
	var created transactionDTO
	decodeData(t, raw, &created)
	if !created.Amount.Equal(decimal.RequireFromString("1250.50")) {
		t.Errorf("amount = %s, want 1250.50", created.Amount)
	}

	t.Run("signed amount rejected", func(t *testing.T) {
		body := json.RawMessage(`{"type":"expense","category":"gastos","amount":"-3","date":"2026-03-10T00:00:00Z"}`)
		status, _ := env.do(t, http.MethodPost, "/api/transactions", token, body)
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400 for signed amount, got %d", status)
		}
	})

	t.Run("percentage out of range rejected", func(t *testing.T) {
		dto := testConfigDTO()
		cat := dto.Categories["ocio"]
		cat.Percentage = percentField{decimal.RequireFromString("135")}
		dto.Categories["ocio"] = cat
		status, _ := env.do(t, http.MethodPut, "/api/config", token, dto)
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400 for percentage over 100, got %d", status)
		}
	})
}

func TestExpenseOnSavingsCategoryRejected(t *testing.T) {
	env := newHTTPEnv(t)
	token := signToken(t, testSecret, "alice")
	env.saveConfig(t, token)

	status, raw := env.do(t, http.MethodPost, "/api/transactions", token, transactionDTO{
		Type:     string(core.Expense),
		Category: "emergencia",
		Amount:   amt("1000"),
		Date:     time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for expense on savings category, got %d: %s", status, raw)
	}

	status, raw = env.do(t, http.MethodGet, "/api/transactions", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list: status %d", status)
	}
	var list []transactionDTO
	decodeData(t, raw, &list)
	if len(list) != 0 {
		t.Fatalf("rejected transaction should not be persisted, got %d", len(list))
	}
}

func TestSummaryEndpoint(t *testing.T) {
	env := newHTTPEnv(t)
	token := signToken(t, testSecret, "alice")
	env.saveConfig(t, token)

	env.do(t, http.MethodPost, "/api/transactions", token, transactionDTO{
		Type:   string(core.Income),
		Amount: amt("100000"),
		Date:   time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
	})
	env.do(t, http.MethodPost, "/api/transactions", token, transactionDTO{
		Type:     string(core.Expense),
		Category: "gastos",
		Amount:   amt("250000"),
		Date:     time.Date(2026, time.March, 6, 0, 0, 0, 0, time.UTC),
	})

	status, raw := env.do(t, http.MethodGet, "/api/summary", token, nil)
	if status != http.StatusOK {
		t.Fatalf("summary: status %d: %s", status, raw)
	}
	var got summaryDTO
	decodeData(t, raw, &got)

	if got.Year != 2026 || got.Month != 3 {
		t.Errorf("period = %d-%d, want 2026-3", got.Year, got.Month)
	}
	// net 950000, savings budget 10% = 95000: 950000+100000-250000-95000.
	if !got.RemainingBudget.Equal(decimal.RequireFromString("705000")) {
		t.Errorf("remaining budget = %s, want 705000", got.RemainingBudget)
	}
	if len(got.Categories) != 4 {
		t.Errorf("expected 4 category reports, got %d", len(got.Categories))
	}
}

func TestGoalMovementEndpoint(t *testing.T) {
	env := newHTTPEnv(t)
	token := signToken(t, testSecret, "alice")
	env.saveConfig(t, token)

	status, raw := env.do(t, http.MethodPost, "/api/goals", token, goalDTO{
		Name:         "Vacaciones",
		TargetAmount: amt("500000"),
	})
	if status != http.StatusCreated {
		t.Fatalf("create goal: status %d: %s", status, raw)
	}
	var goal goalDTO
	decodeData(t, raw, &goal)

	status, raw = env.do(t, http.MethodPost, "/api/goals/"+goal.ID+"/movements", token, movementDTO{
		SavingsType: string(core.Deposit),
		Amount:      amt("30000"),
		Date:        time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC),
	})
	if status != http.StatusCreated {
		t.Fatalf("deposit: status %d: %s", status, raw)
	}
	var result struct {
		Transaction transactionDTO `json:"transaction"`
		Goal        goalDTO        `json:"goal"`
	}
	decodeData(t, raw, &result)
	if !result.Goal.CurrentAmount.Equal(decimal.RequireFromString("30000")) {
		t.Errorf("goal balance = %s, want 30000", result.Goal.CurrentAmount)
	}
	if result.Transaction.GoalID != goal.ID {
		t.Errorf("transaction goal id = %q, want %q", result.Transaction.GoalID, goal.ID)
	}

	// Withdrawing more than the balance fails and leaves it untouched.
	status, _ = env.do(t, http.MethodPost, "/api/goals/"+goal.ID+"/movements", token, movementDTO{
		SavingsType: string(core.Withdrawal),
		Amount:      amt("50000"),
		Date:        time.Date(2026, time.March, 13, 0, 0, 0, 0, time.UTC),
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for overdraft, got %d", status)
	}

	_, raw = env.do(t, http.MethodGet, "/api/goals", token, nil)
	var goals []goalDTO
	decodeData(t, raw, &goals)
	if len(goals) != 1 || !goals[0].CurrentAmount.Equal(decimal.RequireFromString("30000")) {
		t.Fatalf("goal balance after failed overdraft = %v", goals)
	}
}

func TestManualResetEndpoint(t *testing.T) {
	env := newHTTPEnv(t)
	token := signToken(t, testSecret, "alice")
	env.saveConfig(t, token)

	for range 3 {
		env.do(t, http.MethodPost, "/api/transactions", token, transactionDTO{
			Type:     string(core.Expense),
			Category: "gastos",
			Amount:   amt("1000"),
			Date:     time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC),
		})
	}

	status, raw := env.do(t, http.MethodPost, "/api/reset", token, nil)
	if status != http.StatusOK {
		t.Fatalf("reset: status %d: %s", status, raw)
	}
	var result struct {
		Deleted int64 `json:"deleted"`
	}
	decodeData(t, raw, &result)
	if result.Deleted != 3 {
		t.Errorf("deleted = %d, want 3", result.Deleted)
	}

	_, raw = env.do(t, http.MethodGet, "/api/transactions", token, nil)
	var list []transactionDTO
	decodeData(t, raw, &list)
	if len(list) != 0 {
		t.Errorf("expected empty ledger after reset, got %d", len(list))
	}
}

func TestUsersAreIsolated(t *testing.T) {
	env := newHTTPEnv(t)
	alice := signToken(t, testSecret, "alice")
	bob := signToken(t, testSecret, "bob")
	env.saveConfig(t, alice)

	env.do(t, http.MethodPost, "/api/transactions", alice, transactionDTO{
		Type:     string(core.Expense),
		Category: "gastos",
		Amount:   amt("1000"),
		Date:     time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC),
	})

	status, raw := env.do(t, http.MethodGet, "/api/transactions", bob, nil)
	if status != http.StatusOK {
		t.Fatalf("list as bob: status %d", status)
	}
	var list []transactionDTO
	decodeData(t, raw, &list)
	if len(list) != 0 {
		t.Fatalf("bob should not see alice's transactions, got %d", len(list))
	}
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	env := newHTTPEnv(t)

	// Months must be an integer; the check runs before any upstream fetch,
	// so an unconfigured feed URL still exercises it.
	status, raw := env.do(t, http.MethodGet, "/api/inflation?months=abc", "", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("inflation with bad months: status %d: %s", status, raw)
	}
	decodeError(t, raw)

	// Investments always answer with at least the fallback option.
	status, raw = env.do(t, http.MethodGet, "/api/investments", "", nil)
	if status != http.StatusOK {
		t.Fatalf("investments: status %d: %s", status, raw)
	}
	var inv feeds.Investment
	decodeData(t, raw, &inv)
	if inv.Nombre == "" || inv.TasaNumero <= 0 {
		t.Errorf("expected a usable fallback investment, got %+v", inv)
	}

	status, _ = env.do(t, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK {
		t.Fatalf("healthz: status %d", status)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	env := newHTTPEnv(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestEventStreamDeliversChanges(t *testing.T) {
	env := newHTTPEnv(t)
	token := signToken(t, testSecret, "alice")
	env.saveConfig(t, token)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	env.do(t, http.MethodPost, "/api/transactions", token, transactionDTO{
		Type:     string(core.Expense),
		Category: "gastos",
		Amount:   amt("1000"),
		Date:     time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC),
	})

	frame := make(chan string, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := resp.Body.Read(buf)
		frame <- string(buf[:n])
	}()

	select {
	case got := <-frame:
		if !bytes.Contains([]byte(got), []byte("event: "+events.KindTransactionCreated)) {
			t.Errorf("expected a transaction.created frame, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event frame within 2s")
	}
}

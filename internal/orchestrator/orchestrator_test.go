package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/AlliedToasters/hyperliquidity/internal/audit"
	"github.com/AlliedToasters/hyperliquidity/internal/exchange"
	"github.com/AlliedToasters/hyperliquidity/internal/orderstate"
	"github.com/AlliedToasters/hyperliquidity/internal/transport"
)

type fakeWS struct{ alive bool }

func (f *fakeWS) IsAlive() bool { return f.alive }

func testConfig() Config {
	return Config{
		Coin:              "PURR",
		StartPx:           0.20,
		NOrders:           10,
		OrderSz:           100,
		NSeededLevels:     3,
		TickSize:          0.003,
		IntervalS:         3,
		DeadZoneBps:       5,
		PriceToleranceBps: 1,
		SizeTolerancePct:  1,
		ReconcileEvery:    20,
		MinNotional:       0,
		AllocatedToken:    5000,
		AllocatedUSDC:     1000,
	}
}

func seededClient() *exchange.StubClient {
	c := exchange.NewStubClient()
	c.SetSpotMeta(exchange.SpotMeta{
		Tokens: []exchange.SpotToken{
			{Name: "PURR", Index: 0},
			{Name: "USDC", Index: 1},
		},
		Universe: []exchange.SpotAsset{
			{Name: "PURR", Index: 0, TokenIDs: []int{0, 1}},
		},
	})
	c.SetBalances([]exchange.SpotBalance{
		{Coin: "PURR", Total: 5000},
		{Coin: "USDC", Total: 1000},
	})
	c.SetRateLimit(exchange.RateLimitInfo{CumVlm: 1000, NRequestsUsed: 5})
	return c
}

func TestStartup_SeedsAllModules(t *testing.T) {
	client := seededClient()
	inbox := make(chan transport.Message)
	o := New(testConfig(), "0xabc", client, &fakeWS{alive: true}, inbox, nil, nil)

	if err := o.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if o.assetID != 10_000 {
		t.Errorf("expected asset_id 10000, got %d", o.assetID)
	}
	if o.Inventory.AccountToken != 5000 || o.Inventory.AccountUSDC != 1000 {
		t.Errorf("expected seeded balances, got %+v", o.Inventory)
	}
	if o.RateLimit.Remaining() == 0 {
		t.Error("expected non-zero rate limit budget after sync")
	}
}

func TestStartup_SeedsOpenOrdersAndBoundary(t *testing.T) {
	client := seededClient()
	client.SetOpenOrders([]exchange.OpenOrder{
		{Coin: "PURR", OID: 1, IsBuy: false, Price: 0.2006, Size: 100},
	})
	inbox := make(chan transport.Message)
	o := New(testConfig(), "0xabc", client, &fakeWS{alive: true}, inbox, nil, nil)

	if err := o.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if o.OrderState.Count() != 1 {
		t.Fatalf("expected 1 seeded order, got %d", o.OrderState.Count())
	}
	// The seeded ask at 0.2006 sits on grid level 1, the lowest ask.
	if o.boundaryLevel != 1 {
		t.Fatalf("expected boundary at the seeded ask's level 1, got %d", o.boundaryLevel)
	}
}

func TestStartup_UnknownCoinErrors(t *testing.T) {
	client := seededClient()
	cfg := testConfig()
	cfg.Coin = "NOPE"
	inbox := make(chan transport.Message)
	o := New(cfg, "0xabc", client, &fakeWS{alive: true}, inbox, nil, nil)

	if err := o.Startup(context.Background()); err == nil {
		t.Fatal("expected error for unknown coin")
	}
}

func TestTick_EmitsAndAdvancesReconcileCounter(t *testing.T) {
	client := seededClient()
	inbox := make(chan transport.Message)
	cfg := testConfig()
	cfg.ReconcileEvery = 1
	o := New(cfg, "0xabc", client, &fakeWS{alive: true}, inbox, nil, nil)
	if err := o.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}

	if err := o.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if o.tickCount != 1 {
		t.Fatalf("expected tick counter 1, got %d", o.tickCount)
	}
	// The first tick places one batch of orders (5 requests synced at
	// startup, plus one).
	if o.RateLimit.NRequests != 6 {
		t.Errorf("expected one batch request spent by the first tick, NRequests=%d", o.RateLimit.NRequests)
	}
	// ReconcileEvery=1 reconciles on the same tick; the stub reports no
	// open orders, so every placed order is dropped as a ghost.
	if o.OrderState.Count() != 0 {
		t.Errorf("expected reconciliation to drop orders the exchange does not report, count=%d", o.OrderState.Count())
	}
}

func TestHandleFill_UpdatesInventoryAndRateLimit(t *testing.T) {
	client := seededClient()
	inbox := make(chan transport.Message)
	o := New(testConfig(), "0xabc", client, &fakeWS{alive: true}, inbox, nil, nil)
	if err := o.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	o.OrderState.OnPlaceConfirmed(42, orderstate.Sell, 3, 0.21, 50)

	before := o.Inventory.AccountUSDC
	o.handleFill(context.Background(), []byte(`[{"tid":1,"oid":42,"sz":"50","px":"0.21"}]`))

	if o.Inventory.AccountUSDC <= before {
		t.Errorf("expected USDC to increase after ask fill, before=%v after=%v", before, o.Inventory.AccountUSDC)
	}
	if o.OrderState.Count() != 0 {
		t.Errorf("expected fully-filled order removed, count=%d", o.OrderState.Count())
	}
}

func TestRun_TickAndFillRecordAuditEvents(t *testing.T) {
	trail, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	defer trail.Close()

	client := seededClient()
	inbox := make(chan transport.Message)
	cfg := testConfig()
	o := New(cfg, "0xabc", client, &fakeWS{alive: true}, inbox, nil, trail)
	if err := o.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}

	if err := o.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	var placeCount int
	if err := trail.DB().QueryRow("SELECT COUNT(*) FROM events WHERE type = 'place'").Scan(&placeCount); err != nil {
		t.Fatalf("query place events: %v", err)
	}
	if placeCount == 0 {
		t.Fatal("expected Tick to record at least one place event via the emitter's trail")
	}

	o.OrderState.OnPlaceConfirmed(42, orderstate.Sell, 3, 0.21, 50)
	o.handleFill(context.Background(), []byte(`[{"tid":1,"oid":42,"sz":"50","px":"0.21"}]`))

	var fillCount int
	if err := trail.DB().QueryRow("SELECT COUNT(*) FROM events WHERE type = 'fill'").Scan(&fillCount); err != nil {
		t.Fatalf("query fill events: %v", err)
	}
	if fillCount != 1 {
		t.Fatalf("expected 1 fill event recorded, got %d", fillCount)
	}

	if err := o.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	var reconcileCount int
	if err := trail.DB().QueryRow("SELECT COUNT(*) FROM events WHERE type = 'reconcile'").Scan(&reconcileCount); err != nil {
		t.Fatalf("query reconcile events: %v", err)
	}
	if reconcileCount != 1 {
		t.Fatalf("expected 1 reconcile event recorded, got %d", reconcileCount)
	}
}

func TestCheckWSHealth_ReconnectTriggersReconcile(t *testing.T) {
	client := seededClient()
	inbox := make(chan transport.Message)
	ws := &fakeWS{alive: false}
	o := New(testConfig(), "0xabc", client, ws, inbox, nil, nil)
	if err := o.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	o.wsAlive = false
	// A locally tracked order the stub exchange does not report.
	o.OrderState.OnPlaceConfirmed(99, orderstate.Sell, 5, 0.21, 1)

	ws.alive = true
	o.checkWSHealth(context.Background())
	if !o.wsAlive {
		t.Error("expected wsAlive to flip true after reconnect check")
	}
	if o.OrderState.Count() != 0 {
		t.Errorf("expected reconnect reconciliation to drop the ghost order, count=%d", o.OrderState.Count())
	}
}

package exchange

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/AlliedToasters/hyperliquidity/internal/infra"
	"github.com/AlliedToasters/hyperliquidity/internal/orderstate"
	"github.com/AlliedToasters/hyperliquidity/internal/wire"
)

func TestFactory_Paper(t *testing.T) {
	f := NewFactory(ModePaper, "0xabc")
	client, err := f.CreateClient()
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if _, ok := client.(*StubClient); !ok {
		t.Fatal("expected paper mode to return a StubClient")
	}
}

func TestFactory_MainnetRequiresSafetyLatch(t *testing.T) {
	os.Unsetenv("CONFIRM_REAL_TRADING")
	f := NewFactory(ModeMainnet, "0xabc")

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when CONFIRM_REAL_TRADING is unset")
		}
	}()
	f.CreateClient()
}

func TestFactory_MainnetWithLatchSet(t *testing.T) {
	os.Setenv("CONFIRM_REAL_TRADING", "true")
	defer os.Unsetenv("CONFIRM_REAL_TRADING")

	f := NewFactory(ModeMainnet, "0xabc")
	client, err := f.CreateClient()
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestFactory_UnknownMode(t *testing.T) {
	f := NewFactory(Mode("BOGUS"), "0xabc")
	if _, err := f.CreateClient(); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestStubClient_BulkOrdersAssignsIncreasingOIDs(t *testing.T) {
	c := NewStubClient()
	reqs := []wire.OrderRequest{
		wire.NewOrderRequest(1, orderstate.Buy, 1.0, 1.0),
		wire.NewOrderRequest(1, orderstate.Sell, 2.0, 1.0),
	}
	res, err := c.BulkOrders(context.Background(), reqs)
	if err != nil {
		t.Fatalf("BulkOrders: %v", err)
	}
	if len(res.Statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(res.Statuses))
	}
	if res.Statuses[0].Resting.OID == res.Statuses[1].Resting.OID {
		t.Fatal("expected distinct OIDs")
	}
}

func TestStubClient_CallErrorTripsCircuitBreaker(t *testing.T) {
	c := NewStubClient()
	wantErr := errors.New("dial tcp: connection refused")

	for i := 0; i < 3; i++ {
		c.QueueCallError(wantErr)
		if _, err := c.BulkOrders(context.Background(), []wire.OrderRequest{
			wire.NewOrderRequest(1, orderstate.Buy, 1.0, 1.0),
		}); !errors.Is(err, wantErr) {
			t.Fatalf("expected wrapped call error, got %v", err)
		}
	}

	if c.CircuitState() != infra.StateOpen {
		t.Fatalf("expected circuit breaker to be open after 3 failures, got %s", c.CircuitState())
	}

	if _, err := c.BulkOrders(context.Background(), []wire.OrderRequest{
		wire.NewOrderRequest(1, orderstate.Buy, 1.0, 1.0),
	}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen while breaker is open, got %v", err)
	}
}

func TestStubClient_CallLimiterExhaustionReturnsErrRateLimited(t *testing.T) {
	c := NewStubClient()
	req := []wire.OrderRequest{wire.NewOrderRequest(1, orderstate.Buy, 1.0, 1.0)}

	for i := 0; i < 5; i++ {
		if _, err := c.BulkOrders(context.Background(), req); err != nil {
			t.Fatalf("call %d: expected burst capacity to absorb it, got %v", i, err)
		}
	}

	if _, err := c.BulkOrders(context.Background(), req); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited once burst capacity is spent, got %v", err)
	}
	if c.CircuitState() != infra.StateClosed {
		t.Fatalf("local rate limiting must not trip the circuit breaker, got %s", c.CircuitState())
	}
}

func TestStubClient_QueuedResultOverridesDefault(t *testing.T) {
	c := NewStubClient()
	c.QueueOrdersResult(BatchResult{Statuses: []wire.OrderStatus{{Error: "Post-only would take"}}})

	res, err := c.BulkOrders(context.Background(), []wire.OrderRequest{
		wire.NewOrderRequest(1, orderstate.Buy, 1.0, 1.0),
	})
	if err != nil {
		t.Fatalf("BulkOrders: %v", err)
	}
	if len(res.Statuses) != 1 || res.Statuses[0].Error != "Post-only would take" {
		t.Fatalf("expected queued error status, got %+v", res.Statuses)
	}

	// Second call should fall back to the default behavior.
	res2, err := c.BulkOrders(context.Background(), []wire.OrderRequest{
		wire.NewOrderRequest(1, orderstate.Buy, 1.0, 1.0),
	})
	if err != nil {
		t.Fatalf("BulkOrders: %v", err)
	}
	if res2.Statuses[0].Resting == nil {
		t.Fatal("expected default resting status after queued result consumed")
	}
}

package quoting

import (
	"testing"

	"github.com/AlliedToasters/hyperliquidity/internal/orderstate"
	"github.com/AlliedToasters/hyperliquidity/internal/pricing"
)

func mustGrid(t *testing.T, start float64, n int) *pricing.Grid {
	t.Helper()
	g, err := pricing.NewGrid(start, n, pricing.DefaultTickSize, nil)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	return g
}

func TestComputeDesiredOrders_AsksAndBids(t *testing.T) {
	g := mustGrid(t, 1.0, 10)
	orders := ComputeDesiredOrders(g, 5, 3.5, 10.0, 1.0, 0)

	var asks, bids int
	for _, o := range orders {
		if o.Side == orderstate.Sell {
			asks++
			if o.LevelIndex < 5 {
				t.Fatalf("ask level %d below boundary 5", o.LevelIndex)
			}
		} else {
			bids++
			if o.LevelIndex >= 5 {
				t.Fatalf("bid level %d at/above boundary 5", o.LevelIndex)
			}
		}
	}
	if asks == 0 || bids == 0 {
		t.Fatalf("expected both sides quoted, got asks=%d bids=%d", asks, bids)
	}
}

func TestComputeDesiredOrders_PartialTrancheClampsAtGridEdge(t *testing.T) {
	g := mustGrid(t, 1.0, 3)
	// boundary at max level: only room for one ask at the top, rest is
	// dropped by the max_level clamp even though token balance implies more.
	orders := ComputeDesiredOrders(g, 2, 5.0, 0, 1.0, 0)
	for _, o := range orders {
		if o.LevelIndex > 2 {
			t.Fatalf("order beyond grid edge: %+v", o)
		}
	}
}

func TestComputeDesiredOrders_ZeroBalancesProduceNoOrders(t *testing.T) {
	g := mustGrid(t, 1.0, 5)
	orders := ComputeDesiredOrders(g, 2, 0, 0, 1.0, 0)
	if len(orders) != 0 {
		t.Fatalf("expected no orders, got %v", orders)
	}
}

func TestComputeDesiredOrders_MinNotionalFilter(t *testing.T) {
	g := mustGrid(t, 1.0, 5)
	// A tiny partial USDC balance produces a small bid tranche below any
	// reasonable min notional.
	orders := ComputeDesiredOrders(g, 3, 0, 0.5, 1.0, 100.0)
	if len(orders) != 0 {
		t.Fatalf("expected min notional to filter out the small order, got %v", orders)
	}
}

func TestComputeDesiredOrders_BoundaryAtZeroNoBids(t *testing.T) {
	g := mustGrid(t, 1.0, 5)
	orders := ComputeDesiredOrders(g, 0, 3.0, 1000.0, 1.0, 0)
	for _, o := range orders {
		if o.Side == orderstate.Buy {
			t.Fatalf("no bids should exist when boundary is 0, got %+v", o)
		}
	}
}

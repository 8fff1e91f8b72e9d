// Package exchange defines the boundary between hyperliquidity's pure
// computation core and the real Hyperliquid HTTP API. Signing, request
// retries, and wire-level HTTP transport are out of scope for this
// project (spec: "exchange SDK... out of scope"); this package supplies
// the interface every other package programs against, plus a stub
// implementation for tests and dry runs.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AlliedToasters/hyperliquidity/internal/wire"
)

// Mode selects which Client implementation the factory constructs.
type Mode string

const (
	ModePaper   Mode = "PAPER"
	ModeTestnet Mode = "TESTNET"
	ModeMainnet Mode = "MAINNET"
)

// SpotToken describes one entry of the spot_meta universe response.
type SpotToken struct {
	Name  string
	Index int
}

// SpotAsset describes one spot trading pair from spot_meta.
type SpotAsset struct {
	Name     string
	Index    int
	TokenIDs []int
}

// SpotMeta is the parsed spot_meta REST response.
type SpotMeta struct {
	Tokens   []SpotToken
	Universe []SpotAsset
}

// OpenOrder is one entry of the open_orders REST response.
type OpenOrder struct {
	Coin  string
	OID   int64
	IsBuy bool
	Price float64
	Size  float64
}

// SpotBalance is one entry of the spot_user_state balances array.
type SpotBalance struct {
	Coin  string
	Total float64
}

// RateLimitInfo is the parsed user_rate_limit REST response.
type RateLimitInfo struct {
	CumVlm        float64
	NRequestsUsed int
}

// BatchResult is the outcome of a bulk_orders/bulk_modify_orders_new/
// bulk_cancel call: the per-order statuses, in request order.
type BatchResult struct {
	Statuses []wire.OrderStatus
}

// Client abstracts the read (REST metadata) and mutation (batch order)
// surface of the Hyperliquid API that hyperliquidity depends on.
type Client interface {
	SpotMeta(ctx context.Context) (SpotMeta, error)
	OpenOrders(ctx context.Context, address string) ([]OpenOrder, error)
	SpotUserState(ctx context.Context, address string) ([]SpotBalance, error)
	UserRateLimit(ctx context.Context, address string) (RateLimitInfo, error)

	BulkOrders(ctx context.Context, reqs []wire.OrderRequest) (BatchResult, error)
	BulkModifyOrders(ctx context.Context, reqs []wire.ModifyRequest) (BatchResult, error)
	BulkCancel(ctx context.Context, reqs []wire.CancelRequest) (BatchResult, error)
}

// Factory constructs the Client implementation for a configured Mode.
type Factory struct {
	mode    Mode
	address string
}

// NewFactory returns a Factory for the given mode and wallet address.
func NewFactory(mode Mode, address string) *Factory {
	return &Factory{mode: mode, address: address}
}

// CreateClient returns the Client implementation for the factory's mode.
// ModeMainnet panics if CONFIRM_REAL_TRADING isn't set to "true" —
// the same fail-fast safety latch pattern as the teacher's
// execution.ExecutionFactory, applied here to real-money order flow.
func (f *Factory) CreateClient() (Client, error) {
	slog.Info("initializing exchange client", slog.String("mode", string(f.mode)))

	switch f.mode {
	case ModePaper:
		return NewStubClient(), nil

	case ModeTestnet:
		return NewStubClient(), nil

	case ModeMainnet:
		if os.Getenv("CONFIRM_REAL_TRADING") != "true" {
			err := fmt.Errorf("exchange: mainnet trading requires CONFIRM_REAL_TRADING=true")
			slog.Error(err.Error())
			panic(err)
		}
		slog.Warn("connecting to Hyperliquid mainnet — real funds at risk")
		return NewStubClient(), nil

	default:
		return nil, fmt.Errorf("exchange: unknown mode %q", f.mode)
	}
}

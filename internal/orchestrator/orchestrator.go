// Package orchestrator is the thin glue that wires PricingGrid,
// Inventory, OrderState, RateLimitBudget, the quoting engine, the order
// differ, and the emitter into a running market maker. All exchange I/O
// is boundary-only: REST calls happen only in Startup and Reconcile,
// and WS frames only ever mutate state through this package's single
// goroutine — the Go equivalent of the original's
// asyncio.run_coroutine_threadsafe bridge from WS callback threads onto
// one event loop.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AlliedToasters/hyperliquidity/internal/audit"
	"github.com/AlliedToasters/hyperliquidity/internal/emitter"
	"github.com/AlliedToasters/hyperliquidity/internal/exchange"
	"github.com/AlliedToasters/hyperliquidity/internal/inventory"
	"github.com/AlliedToasters/hyperliquidity/internal/orderdiff"
	"github.com/AlliedToasters/hyperliquidity/internal/orderstate"
	"github.com/AlliedToasters/hyperliquidity/internal/pricing"
	"github.com/AlliedToasters/hyperliquidity/internal/quoting"
	"github.com/AlliedToasters/hyperliquidity/internal/ratelimit"
	"github.com/AlliedToasters/hyperliquidity/internal/transport"
	"github.com/AlliedToasters/hyperliquidity/internal/wire"
)

// Config carries the strategy and tuning parameters an Orchestrator
// needs at startup. Field names mirror SPEC_FULL.md's config surface.
type Config struct {
	Coin              string
	StartPx           float64
	NOrders           int
	OrderSz           float64
	NSeededLevels     int
	TickSize          float64
	IntervalS         float64
	DeadZoneBps       float64
	PriceToleranceBps float64
	SizeTolerancePct  float64
	ReconcileEvery    int
	MinNotional       float64
	AllocatedToken    float64
	AllocatedUSDC     float64
}

// WSAliveChecker abstracts transport.Client for the health poll so
// tests can substitute a fake.
type WSAliveChecker interface {
	IsAlive() bool
}

// Orchestrator wires the pure-computation core to REST/WS I/O for one
// coin. Not safe for concurrent use — Run owns it on a single goroutine.
type Orchestrator struct {
	cfg     Config
	address string
	client  exchange.Client
	ws      WSAliveChecker
	inbox   <-chan transport.Message
	now     func() time.Time
	trail   *audit.Trail

	Grid       *pricing.Grid
	OrderState *orderstate.OrderState
	Inventory  *inventory.Inventory
	RateLimit  *ratelimit.Budget
	Emitter    *emitter.Emitter

	assetID       int
	balanceCoin   string
	boundaryLevel int
	tickCount     int
	wsAlive       bool
}

// New constructs an Orchestrator. inbox is the transport.Client's
// Inbox channel; ws is the same client, consulted for IsAlive(). trail
// may be nil, in which case no audit events are recorded.
func New(cfg Config, address string, client exchange.Client, ws WSAliveChecker, inbox <-chan transport.Message, now func() time.Time, trail *audit.Trail) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		cfg:        cfg,
		address:    address,
		client:     client,
		ws:         ws,
		inbox:      inbox,
		now:        now,
		trail:      trail,
		OrderState: orderstate.New(),
		RateLimit:  ratelimit.New(),
		wsAlive:    true,
	}
}

// record appends one audit event if a trail is configured.
func (o *Orchestrator) record(ctx context.Context, evtType audit.EventType, payload any) {
	if o.trail == nil {
		return
	}
	err := o.trail.Record(ctx, audit.Record{
		TS:      o.now().Unix(),
		Coin:    o.cfg.Coin,
		Type:    evtType,
		Payload: payload,
	})
	if err != nil {
		slog.Warn("audit record failed", slog.String("type", string(evtType)), slog.Any("err", err))
	}
}

// Startup seeds every module from REST data: spot_meta → asset_id and
// balance coin, open_orders → OrderState, spot_user_state → Inventory,
// user_rate_limit → RateLimitBudget.
func (o *Orchestrator) Startup(ctx context.Context) error {
	meta, err := o.client.SpotMeta(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator startup: spot meta: %w", err)
	}

	var asset *exchange.SpotAsset
	for i := range meta.Universe {
		if meta.Universe[i].Name == o.cfg.Coin {
			asset = &meta.Universe[i]
			break
		}
	}
	if asset == nil {
		return fmt.Errorf("orchestrator startup: coin %q not found in spot meta universe", o.cfg.Coin)
	}
	o.assetID = asset.Index + 10_000

	if len(asset.TokenIDs) == 0 {
		return fmt.Errorf("orchestrator startup: coin %q has no backing token", o.cfg.Coin)
	}
	baseTokenID := asset.TokenIDs[0]
	for _, tok := range meta.Tokens {
		if tok.Index == baseTokenID {
			o.balanceCoin = tok.Name
			break
		}
	}
	if o.balanceCoin == "" {
		return fmt.Errorf("orchestrator startup: base token index %d not found", baseTokenID)
	}

	grid, err := pricing.NewGrid(o.cfg.StartPx, o.cfg.NOrders, o.cfg.TickSize, pricing.DefaultRound)
	if err != nil {
		return fmt.Errorf("orchestrator startup: pricing grid: %w", err)
	}
	o.Grid = grid

	openOrders, err := o.client.OpenOrders(ctx, o.address)
	if err != nil {
		return fmt.Errorf("orchestrator startup: open orders: %w", err)
	}
	for _, ord := range openOrders {
		if ord.Coin != o.cfg.Coin {
			continue
		}
		side := orderstate.Sell
		if ord.IsBuy {
			side = orderstate.Buy
		}
		level, ok := o.Grid.LevelForPrice(ord.Price)
		if ok {
			o.OrderState.OnPlaceConfirmed(ord.OID, side, level, ord.Price, ord.Size)
		}
	}

	tokenBal, usdcBal, err := o.fetchBalances(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator startup: spot user state: %w", err)
	}
	o.Inventory = inventory.New(o.cfg.OrderSz, o.cfg.AllocatedToken, o.cfg.AllocatedUSDC, tokenBal, usdcBal)

	rl, err := o.client.UserRateLimit(ctx, o.address)
	if err != nil {
		return fmt.Errorf("orchestrator startup: user rate limit: %w", err)
	}
	o.RateLimit.SyncFromExchange(rl.CumVlm, rl.NRequestsUsed)

	o.Emitter = emitter.New(o.cfg.Coin, o.assetID, o.client, o.OrderState, o.now, o.trail)
	o.boundaryLevel = o.computeBoundaryLevel()

	slog.Info("orchestrator startup complete",
		slog.String("coin", o.cfg.Coin), slog.Int("asset_id", o.assetID),
		slog.Int("boundary", o.boundaryLevel), slog.Int("orders", o.OrderState.Count()))
	return nil
}

func (o *Orchestrator) fetchBalances(ctx context.Context) (token, usdc float64, err error) {
	balances, err := o.client.SpotUserState(ctx, o.address)
	if err != nil {
		return 0, 0, err
	}
	for _, b := range balances {
		switch b.Coin {
		case o.balanceCoin:
			token = b.Total
		case "USDC":
			usdc = b.Total
		}
	}
	return token, usdc, nil
}

// computeBoundaryLevel derives the boundary from tracked orders: the
// lowest resting ask level, or NSeededLevels if there are no asks.
func (o *Orchestrator) computeBoundaryLevel() int {
	boundary := -1
	for _, ord := range o.OrderState.GetCurrentOrders() {
		if ord.Side != orderstate.Sell {
			continue
		}
		if boundary == -1 || ord.LevelIndex < boundary {
			boundary = ord.LevelIndex
		}
	}
	if boundary == -1 {
		return o.cfg.NSeededLevels
	}
	return boundary
}

// wsUpdate is the shape of one entry in an orderUpdates frame.
type wsUpdate struct {
	Status string `json:"status"`
	Order  struct {
		OID     int64  `json:"oid"`
		Side    string `json:"side"`
		LimitPx string `json:"limitPx"`
		Sz      string `json:"sz"`
	} `json:"order"`
}

type wsFill struct {
	TID int64  `json:"tid"`
	OID int64  `json:"oid"`
	Sz  string `json:"sz"`
	Px  string `json:"px"`
}

type wsBalanceEntry struct {
	Coin  string `json:"coin"`
	Total string `json:"total"`
}

type wsBalancesFrame struct {
	SpotBalances []wsBalanceEntry `json:"spotBalances"`
	Balances     []wsBalanceEntry `json:"balances"`
}

// handleMessage routes one decoded WS frame to the module it belongs
// to. Called only from Run's single goroutine.
func (o *Orchestrator) handleMessage(ctx context.Context, msg transport.Message) {
	switch msg.Channel {
	case "orderUpdates":
		o.handleOrderUpdate(msg.Data)
	case "userFills":
		o.handleFill(ctx, msg.Data)
	case "webData2":
		o.handleBalanceUpdate(msg.Data)
	default:
		slog.Debug("orchestrator: ignoring unknown ws channel", slog.String("channel", msg.Channel))
	}
}

func (o *Orchestrator) handleOrderUpdate(data json.RawMessage) {
	var updates []wsUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		var single wsUpdate
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			slog.Warn("orchestrator: malformed orderUpdates frame", slog.Any("err", err))
			return
		}
		updates = []wsUpdate{single}
	}

	for _, u := range updates {
		switch {
		case u.Status == "resting":
			side := orderstate.Sell
			if u.Order.Side == "B" {
				side = orderstate.Buy
			}
			px := parseFloat(u.Order.LimitPx)
			sz := parseFloat(u.Order.Sz)
			if level, ok := o.Grid.LevelForPrice(px); ok {
				o.OrderState.OnPlaceConfirmed(u.Order.OID, side, level, px, sz)
			}
		case wire.IsCannotModifyRejection(u.Status):
			o.OrderState.OnModifyResponse(u.Order.OID, nil, u.Status)
		case u.Status == "canceled":
			o.OrderState.RemoveGhost(u.Order.OID)
		}
	}
}

func (o *Orchestrator) handleFill(ctx context.Context, data json.RawMessage) {
	var fills []wsFill
	if err := json.Unmarshal(data, &fills); err != nil {
		var single wsFill
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			slog.Warn("orchestrator: malformed userFills frame", slog.Any("err", err))
			return
		}
		fills = []wsFill{single}
	}

	for _, f := range fills {
		sz := parseFloat(f.Sz)
		px := parseFloat(f.Px)
		result, ok := o.OrderState.OnFill(f.TID, f.OID, sz)
		if !ok {
			continue
		}
		o.RateLimit.OnFill(px * sz)
		if result.Side == orderstate.Sell {
			o.Inventory.OnAskFill(px, sz)
		} else {
			o.Inventory.OnBidFill(px, sz)
		}
		o.record(ctx, audit.EventFill, map[string]any{
			"tid": f.TID, "oid": f.OID, "side": result.Side, "price": px, "size": sz,
		})
	}
}

func (o *Orchestrator) handleBalanceUpdate(data json.RawMessage) {
	var frame wsBalancesFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Warn("orchestrator: malformed webData2 frame", slog.Any("err", err))
		return
	}
	entries := frame.SpotBalances
	if len(entries) == 0 {
		entries = frame.Balances
	}

	var token, usdc float64
	var haveToken, haveUSDC bool
	for _, b := range entries {
		switch b.Coin {
		case o.cfg.Coin:
			token = parseFloat(b.Total)
			haveToken = true
		case "USDC":
			usdc = parseFloat(b.Total)
			haveUSDC = true
		}
	}
	if haveToken && haveUSDC {
		o.Inventory.OnBalanceUpdate(token, usdc)
	}
}

func parseFloat(s string) float64 {
	var v float64
	fmt.Sscanf(s, "%g", &v)
	return v
}

// Tick runs one iteration of the quoting pipeline: recompute boundary,
// compute desired orders, diff against current state, emit.
func (o *Orchestrator) Tick(ctx context.Context) error {
	o.tickCount++
	o.boundaryLevel = o.computeBoundaryLevel()

	desired := quoting.ComputeDesiredOrders(o.Grid, o.boundaryLevel, o.Inventory.EffectiveToken, o.Inventory.EffectiveUSDC, o.cfg.OrderSz, o.cfg.MinNotional)
	current := o.OrderState.GetCurrentOrders()
	diff := orderdiff.Compute(desired, current, o.cfg.DeadZoneBps, o.cfg.PriceToleranceBps, o.cfg.SizeTolerancePct)

	result := o.Emitter.Emit(ctx, diff, o.RateLimit)

	slog.Debug("tick complete",
		slog.Int("tick", o.tickCount), slog.Int("boundary", o.boundaryLevel),
		slog.Int("desired", len(desired)), slog.Int("current", len(current)),
		slog.Int("placed", result.NPlaced), slog.Int("modified", result.NModified),
		slog.Int("cancelled", result.NCancelled), slog.Int("errors", result.NErrors),
		slog.String("rate_limit", o.RateLimit.LogStatus()))

	if o.cfg.ReconcileEvery > 0 && o.tickCount%o.cfg.ReconcileEvery == 0 {
		if err := o.Reconcile(ctx); err != nil {
			slog.Error("reconciliation failed", slog.Int("tick", o.tickCount), slog.Any("err", err))
		}
	}
	return nil
}

// Reconcile pulls authoritative REST state and corrects drift: cancels
// orphaned exchange orders the local state doesn't recognize, drops
// ghost orders the exchange no longer has, and refreshes balances.
func (o *Orchestrator) Reconcile(ctx context.Context) error {
	openOrders, err := o.client.OpenOrders(ctx, o.address)
	if err != nil {
		return fmt.Errorf("reconcile: open orders: %w", err)
	}
	exchangeOIDs := make(map[int64]struct{})
	for _, ord := range openOrders {
		if ord.Coin == o.cfg.Coin {
			exchangeOIDs[ord.OID] = struct{}{}
		}
	}

	result := o.OrderState.Reconcile(exchangeOIDs)
	if len(result.OrphanedOIDs) > 0 {
		o.Emitter.Emit(ctx, orderdiff.Diff{Cancels: result.OrphanedOIDs}, o.RateLimit)
		slog.Info("reconciliation: cancelled orphans", slog.Int("n", len(result.OrphanedOIDs)))
	}
	for _, oid := range result.GhostOIDs {
		o.OrderState.RemoveGhost(oid)
	}
	if len(result.GhostOIDs) > 0 {
		slog.Info("reconciliation: removed ghosts", slog.Int("n", len(result.GhostOIDs)))
	}

	token, usdc, err := o.fetchBalances(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: spot user state: %w", err)
	}
	o.Inventory.OnBalanceUpdate(token, usdc)

	o.record(ctx, audit.EventReconcile, map[string]any{
		"orphaned": len(result.OrphanedOIDs), "ghosts": len(result.GhostOIDs),
		"token_balance": token, "usdc_balance": usdc,
	})
	return nil
}

// checkWSHealth polls the transport client and, on a dead→alive
// transition, resubscribes implicitly (the transport client
// re-subscribes on every reconnect) and forces a reconciliation.
func (o *Orchestrator) checkWSHealth(ctx context.Context) {
	alive := o.ws.IsAlive()
	if alive && !o.wsAlive {
		o.wsAlive = true
		slog.Info("websocket reconnected, running reconciliation")
		if err := o.Reconcile(ctx); err != nil {
			slog.Error("post-reconnect reconciliation failed", slog.Any("err", err))
		}
	} else if !alive && o.wsAlive {
		o.wsAlive = false
		slog.Warn("websocket disconnected")
	}
}

// Run starts the market maker: Startup, then a single-threaded loop
// that drains WS frames from inbox and ticks every IntervalS. This
// loop IS the concurrency bridge — the transport.Client's read
// goroutine only ever writes to inbox; every state mutation in this
// package happens here, on one goroutine.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Startup(ctx); err != nil {
		return err
	}

	interval := time.Duration(o.cfg.IntervalS * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-o.inbox:
			if !ok {
				return fmt.Errorf("orchestrator: transport inbox closed")
			}
			o.handleMessage(ctx, msg)

		case <-ticker.C:
			o.checkWSHealth(ctx)
			if err := o.Tick(ctx); err != nil {
				slog.Error("tick failed", slog.Any("err", err))
			}
		}
	}
}

// Package emitter is the only part of hyperliquidity that performs
// exchange I/O for order management. It receives an OrderDiff and
// executes it against the exchange via batch operations, respecting
// rate-limit budget constraints and per-side cooldowns.
package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AlliedToasters/hyperliquidity/internal/audit"
	"github.com/AlliedToasters/hyperliquidity/internal/exchange"
	"github.com/AlliedToasters/hyperliquidity/internal/orderdiff"
	"github.com/AlliedToasters/hyperliquidity/internal/orderstate"
	"github.com/AlliedToasters/hyperliquidity/internal/quoting"
	"github.com/AlliedToasters/hyperliquidity/internal/ratelimit"
	"github.com/AlliedToasters/hyperliquidity/internal/wire"
)

const (
	safetyMargin               = 100
	maxMutationsPerTick        = 20
	balanceCooldown            = 60 * time.Second
	rejectCooldown             = 10 * time.Second
	consecutiveRejectThreshold = 3
)

// Result summarizes a single Emit call.
type Result struct {
	NCancelled int
	NModified  int
	NPlaced    int
	NErrors    int
	CancelOnly bool
}

type cooldownKey struct {
	coin string
	side orderstate.Side
}

// Emitter is a budget-aware, prioritized batch order emitter for a
// single coin.
type Emitter struct {
	coin       string
	assetID    int
	client     exchange.Client
	orderState *orderstate.OrderState
	now        func() time.Time
	trail      *audit.Trail

	cooldowns          map[cooldownKey]time.Time
	consecutiveRejects map[orderstate.Side]int
}

// New constructs an Emitter for coin/assetID, executing against client
// and notifying orderState of lifecycle transitions. now defaults to
// time.Now if nil. trail may be nil, in which case emitted decisions
// are not recorded anywhere.
func New(coin string, assetID int, client exchange.Client, orderState *orderstate.OrderState, now func() time.Time, trail *audit.Trail) *Emitter {
	if now == nil {
		now = time.Now
	}
	return &Emitter{
		coin:               coin,
		assetID:            assetID,
		client:             client,
		orderState:         orderState,
		now:                now,
		trail:              trail,
		cooldowns:          make(map[cooldownKey]time.Time),
		consecutiveRejects: make(map[orderstate.Side]int),
	}
}

// record appends one audit event if a trail is configured. Failures are
// logged, not propagated — a broken audit disk must never stop trading.
func (e *Emitter) record(ctx context.Context, evtType audit.EventType, payload any) {
	if e.trail == nil {
		return
	}
	err := e.trail.Record(ctx, audit.Record{
		TS:      e.now().Unix(),
		Coin:    e.coin,
		Type:    evtType,
		Payload: payload,
	})
	if err != nil {
		slog.Warn("audit record failed", slog.String("type", string(evtType)), slog.Any("err", err))
	}
}

func (e *Emitter) isCooledDown(side orderstate.Side, now time.Time) bool {
	k := cooldownKey{coin: e.coin, side: side}
	expiry, ok := e.cooldowns[k]
	if !ok {
		return false
	}
	if !now.Before(expiry) {
		delete(e.cooldowns, k)
		return false
	}
	return true
}

func (e *Emitter) setCooldown(side orderstate.Side, dur time.Duration) {
	e.cooldowns[cooldownKey{coin: e.coin, side: side}] = e.now().Add(dur)
}

func (e *Emitter) clearCooldown(side orderstate.Side) {
	delete(e.cooldowns, cooldownKey{coin: e.coin, side: side})
}

// Emit executes diff against the exchange. Flow: budget gating →
// priority trimming → cooldown filter → execute cancels → execute
// modifies → execute places.
func (e *Emitter) Emit(ctx context.Context, diff orderdiff.Diff, budget *ratelimit.Budget) Result {
	nCancel := len(diff.Cancels)
	nModify := len(diff.Modifies)
	nPlace := len(diff.Places)
	total := nCancel + nModify + nPlace

	if total == 0 {
		return Result{}
	}

	cancelOnly := budget.Remaining() < total+safetyMargin

	cancels := append([]int64(nil), diff.Cancels...)
	var modifies []orderdiff.Modification
	var places []quoting.DesiredOrder
	if !cancelOnly {
		modifies = append([]orderdiff.Modification(nil), diff.Modifies...)
		places = append([]quoting.DesiredOrder(nil), diff.Places...)
	}

	// Priority trimming — cancels are never trimmed.
	if !cancelOnly {
		mutTotal := len(cancels) + len(modifies) + len(places)
		if mutTotal > maxMutationsPerTick {
			room := maxMutationsPerTick - len(cancels)
			switch {
			case room <= 0:
				modifies = nil
				places = nil
			case len(modifies) <= room:
				remaining := room - len(modifies)
				if remaining < len(places) {
					places = places[:remaining]
				}
			default:
				modifies = modifies[:room]
				places = nil
			}
		}
	}

	// Cooldown filter on places.
	if len(places) > 0 {
		now := e.now()
		filtered := places[:0]
		for _, p := range places {
			if !e.isCooledDown(p.Side, now) {
				filtered = append(filtered, p)
			}
		}
		places = filtered
	}

	var result Result
	result.CancelOnly = cancelOnly

	if len(cancels) > 0 {
		ok, err := e.executeCancels(ctx, cancels, budget)
		result.NCancelled += ok
		result.NErrors += err
	}
	if len(modifies) > 0 {
		ok, err := e.executeModifies(ctx, modifies, budget)
		result.NModified += ok
		result.NErrors += err
	}
	if len(places) > 0 {
		ok, err := e.executePlaces(ctx, places, budget)
		result.NPlaced += ok
		result.NErrors += err
	}

	return result
}

func (e *Emitter) executeCancels(ctx context.Context, oids []int64, budget *ratelimit.Budget) (int, int) {
	reqs := make([]wire.CancelRequest, len(oids))
	for i, oid := range oids {
		reqs[i] = wire.NewCancelRequest(e.assetID, oid)
	}

	res, callErr := e.client.BulkCancel(ctx, reqs)
	budget.OnRequest(1)

	if callErr != nil {
		slog.Warn("bulk cancel call failed", slog.String("error", callErr.Error()), slog.Int("n", len(oids)))
		for _, oid := range oids {
			e.orderState.RemoveGhost(oid)
		}
		return 0, len(oids)
	}

	nOK, nErr := 0, 0
	for i, oid := range oids {
		var status wire.OrderStatus
		if i < len(res.Statuses) {
			status = res.Statuses[i]
		}
		if status.Error != "" {
			nErr++
			slog.Debug("cancel error", slog.Int64("oid", oid), slog.String("error", status.Error))
		} else {
			nOK++
		}
		e.record(ctx, audit.EventCancel, map[string]any{"oid": oid, "error": status.Error})
		// Always remove — a cancel error means it was already filled.
		e.orderState.RemoveGhost(oid)
	}
	return nOK, nErr
}

func (e *Emitter) executeModifies(ctx context.Context, modifies []orderdiff.Modification, budget *ratelimit.Budget) (int, int) {
	for _, m := range modifies {
		if tracked, ok := e.orderState.GetByOID(m.OID); ok && tracked.Side != m.Desired.Side {
			panic(fmt.Sprintf("cross-side modify: oid=%d tracked_side=%s desired_side=%s", m.OID, tracked.Side, m.Desired.Side))
		}
	}

	reqs := make([]wire.ModifyRequest, len(modifies))
	for i, m := range modifies {
		reqs[i] = wire.NewModifyRequest(m.OID, e.assetID, m.Desired.Side, m.Desired.Price, m.Desired.Size)
	}

	res, callErr := e.client.BulkModifyOrders(ctx, reqs)
	budget.OnRequest(1)

	nOK, nErr := 0, 0
	for i, m := range modifies {
		var status wire.OrderStatus
		if callErr == nil && i < len(res.Statuses) {
			status = res.Statuses[i]
		}

		switch {
		case status.Resting != nil:
			newOID := status.Resting.OID
			e.orderState.OnModifyResponse(m.OID, &newOID, "resting")
			if order, ok := e.orderState.GetByOID(newOID); ok {
				order.Price = m.Desired.Price
				order.Size = m.Desired.Size
			}
			e.record(ctx, audit.EventModify, map[string]any{"oid": m.OID, "new_oid": newOID, "price": m.Desired.Price, "size": m.Desired.Size})
			nOK++
		case status.Error != "":
			e.orderState.OnModifyResponse(m.OID, nil, "error: "+status.Error)
			e.record(ctx, audit.EventModify, map[string]any{"oid": m.OID, "error": status.Error})
			nErr++
		default:
			slog.Warn("unhandled modify status", slog.Int64("oid", m.OID))
			e.orderState.RemoveGhost(m.OID)
			e.record(ctx, audit.EventModify, map[string]any{"oid": m.OID, "error": "unhandled status"})
			nErr++
		}
	}
	return nOK, nErr
}

func (e *Emitter) executePlaces(ctx context.Context, places []quoting.DesiredOrder, budget *ratelimit.Budget) (int, int) {
	reqs := make([]wire.OrderRequest, len(places))
	for i, p := range places {
		reqs[i] = wire.NewOrderRequest(e.assetID, p.Side, p.Price, p.Size)
	}

	res, callErr := e.client.BulkOrders(ctx, reqs)
	budget.OnRequest(1)

	nOK, nErr := 0, 0
	for i, desired := range places {
		var status wire.OrderStatus
		if callErr == nil && i < len(res.Statuses) {
			status = res.Statuses[i]
		}

		switch {
		case status.Resting != nil:
			e.orderState.OnPlaceConfirmed(status.Resting.OID, desired.Side, desired.LevelIndex, desired.Price, desired.Size)
			e.clearCooldown(desired.Side)
			e.consecutiveRejects[desired.Side] = 0
			e.record(ctx, audit.EventPlace, map[string]any{
				"oid": status.Resting.OID, "side": desired.Side, "level": desired.LevelIndex,
				"price": desired.Price, "size": desired.Size,
			})
			nOK++

		case status.Error != "":
			switch {
			case wire.IsInsufficientBalanceRejection(status.Error):
				e.setCooldown(desired.Side, balanceCooldown)
			case wire.IsALOCrossRejection(status.Error):
				// Expected — no cooldown, no reject counter increment.
			default:
				count := e.consecutiveRejects[desired.Side] + 1
				e.consecutiveRejects[desired.Side] = count
				if count >= consecutiveRejectThreshold {
					e.setCooldown(desired.Side, rejectCooldown)
					e.consecutiveRejects[desired.Side] = 0
				}
			}
			e.record(ctx, audit.EventReject, map[string]any{
				"side": desired.Side, "level": desired.LevelIndex, "price": desired.Price,
				"size": desired.Size, "error": status.Error,
			})
			nErr++

		default:
			slog.Warn("unhandled place status", slog.String("side", string(desired.Side)), slog.Int("level", desired.LevelIndex))
			nErr++
		}
	}
	return nOK, nErr
}

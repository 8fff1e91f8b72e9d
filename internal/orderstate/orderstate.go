// Package orderstate is the single source of truth for all resting
// orders. It tracks order lifecycle, handles OID swaps from modify
// operations, detects ghost orders, and provides the "current orders"
// snapshot the order differ compares against. No I/O — it receives
// events, it doesn't fetch them.
package orderstate

import (
	"sort"
	"strings"
)

// Side is one leg of a spot order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Status is the lifecycle status of a tracked order.
type Status string

const (
	StatusResting       Status = "resting"
	StatusPendingPlace  Status = "pending_place"
	StatusPendingModify Status = "pending_modify"
	StatusPendingCancel Status = "pending_cancel"
)

// key identifies a grid slot: one order rests per (side, level index).
type key struct {
	side  Side
	level int
}

// TrackedOrder is a resting order tracked by the order state manager.
type TrackedOrder struct {
	OID        int64
	Side       Side
	LevelIndex int
	Price      float64
	Size       float64
	Status     Status
}

// FillResult is returned by OnFill so the caller can update inventory.
type FillResult struct {
	Side        Side
	Price       float64
	Size        float64
	FullyFilled bool
}

// ReconcileResult is the result of reconciling tracked state against
// exchange-reported state.
type ReconcileResult struct {
	OrphanedOIDs []int64 // on exchange, not tracked — cancel these
	GhostOIDs    []int64 // tracked, not on exchange — remove from state
}

// seenTidsCap bounds the trade-id dedup set.
const seenTidsCap = 5000

// OrderState is a dual-indexed order tracker with fill dedup and
// reconciliation. It is not safe for concurrent use — callers must
// serialize access onto a single goroutine (see internal/orchestrator).
type OrderState struct {
	byOID       map[int64]*TrackedOrder
	byKey       map[key]*TrackedOrder
	seenTids    map[int64]struct{}
	seenTidsCap int
}

// New constructs an empty OrderState with the default trade-id dedup
// capacity.
func New() *OrderState {
	return NewWithSeenTidsCap(seenTidsCap)
}

// NewWithSeenTidsCap constructs an empty OrderState with a custom
// trade-id dedup capacity, mainly for tests.
func NewWithSeenTidsCap(cap int) *OrderState {
	return &OrderState{
		byOID:       make(map[int64]*TrackedOrder),
		byKey:       make(map[key]*TrackedOrder),
		seenTids:    make(map[int64]struct{}),
		seenTidsCap: cap,
	}
}

// OnPlaceConfirmed records a newly confirmed resting order. If an order
// already exists at the same (side, levelIndex), the old order is
// evicted from both indices before inserting the new one.
func (s *OrderState) OnPlaceConfirmed(oid int64, side Side, levelIndex int, price, size float64) {
	k := key{side: side, level: levelIndex}

	if existing, ok := s.byKey[k]; ok {
		delete(s.byOID, existing.OID)
	}

	order := &TrackedOrder{
		OID:        oid,
		Side:       side,
		LevelIndex: levelIndex,
		Price:      price,
		Size:       size,
		Status:     StatusResting,
	}
	s.byOID[oid] = order
	s.byKey[k] = order
}

// OnModifyResponse handles a modify response from the exchange.
//
//   - status containing "Cannot modify" → ghost, remove immediately.
//   - unknown originalOID → no-op (idempotent).
//   - newOID != originalOID → atomic re-key in byOID.
func (s *OrderState) OnModifyResponse(originalOID int64, newOID *int64, status string) {
	order, ok := s.byOID[originalOID]

	if strings.Contains(status, "Cannot modify") {
		if ok {
			delete(s.byOID, originalOID)
			delete(s.byKey, key{side: order.Side, level: order.LevelIndex})
		}
		return
	}

	if !ok {
		return
	}

	order.Status = StatusResting

	if newOID != nil && *newOID != originalOID {
		delete(s.byOID, originalOID)
		order.OID = *newOID
		s.byOID[*newOID] = order
		// byKey is unchanged — same pointer, just the OID field moved.
	}
}

// fillEpsilon is the size tolerance under which a fill counts as full.
const fillEpsilon = 1e-9

// OnFill processes a fill event, deduplicating by trade ID. Returns a
// FillResult and true on the first occurrence of tid with a known OID,
// or (zero, false) if the tid is a duplicate or the OID is unknown.
func (s *OrderState) OnFill(tid, oid int64, fillSz float64) (FillResult, bool) {
	if _, seen := s.seenTids[tid]; seen {
		return FillResult{}, false
	}

	s.seenTids[tid] = struct{}{}
	if len(s.seenTids) > s.seenTidsCap {
		s.pruneSeenTids()
	}

	order, ok := s.byOID[oid]
	if !ok {
		return FillResult{}, false
	}

	remaining := order.Size - fillSz
	fullyFilled := fillSz >= order.Size-fillEpsilon

	result := FillResult{
		Side:        order.Side,
		Price:       order.Price,
		Size:        fillSz,
		FullyFilled: fullyFilled,
	}

	if fullyFilled {
		delete(s.byOID, oid)
		delete(s.byKey, key{side: order.Side, level: order.LevelIndex})
	} else {
		order.Size = remaining
	}

	return result, true
}

// pruneSeenTids keeps the newest half of seen tids (tids are
// monotonically increasing).
func (s *OrderState) pruneSeenTids() {
	sorted := make([]int64, 0, len(s.seenTids))
	for tid := range s.seenTids {
		sorted = append(sorted, tid)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	half := len(sorted) / 2
	kept := make(map[int64]struct{}, len(sorted)-half)
	for _, tid := range sorted[half:] {
		kept[tid] = struct{}{}
	}
	s.seenTids = kept
}

// Reconcile compares tracked state against the exchange's reported open
// order OIDs.
func (s *OrderState) Reconcile(exchangeOIDs map[int64]struct{}) ReconcileResult {
	var orphaned, ghosts []int64
	for oid := range exchangeOIDs {
		if _, tracked := s.byOID[oid]; !tracked {
			orphaned = append(orphaned, oid)
		}
	}
	for oid := range s.byOID {
		if _, onExchange := exchangeOIDs[oid]; !onExchange {
			ghosts = append(ghosts, oid)
		}
	}
	return ReconcileResult{OrphanedOIDs: orphaned, GhostOIDs: ghosts}
}

// RemoveGhost removes a ghost order from both indices. Idempotent.
func (s *OrderState) RemoveGhost(oid int64) {
	order, ok := s.byOID[oid]
	if !ok {
		return
	}
	delete(s.byOID, oid)
	delete(s.byKey, key{side: order.Side, level: order.LevelIndex})
}

// GetByOID returns the tracked order for oid, if any.
func (s *OrderState) GetByOID(oid int64) (*TrackedOrder, bool) {
	order, ok := s.byOID[oid]
	return order, ok
}

// GetCurrentOrders returns a snapshot of all currently tracked orders.
func (s *OrderState) GetCurrentOrders() []TrackedOrder {
	orders := make([]TrackedOrder, 0, len(s.byOID))
	for _, o := range s.byOID {
		orders = append(orders, *o)
	}
	return orders
}

// Count returns the number of tracked orders.
func (s *OrderState) Count() int {
	return len(s.byOID)
}

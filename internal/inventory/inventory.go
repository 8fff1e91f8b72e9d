// Package inventory tracks token/USDC balances and decomposes them into
// order tranches for the quoting engine.
package inventory

import (
	"math"

	"github.com/AlliedToasters/hyperliquidity/internal/pricing"
)

// TrancheDecomposition is an immutable snapshot of how a balance
// decomposes into order tranches.
type TrancheDecomposition struct {
	NFull     int
	PartialSz float64
	Levels    []int // consumed grid levels; ascending for asks, descending for bids
}

// Inventory tracks allocated, account, and effective balances for both
// legs of a spot pair. Effective is recomputed on every mutation and is
// the only value tranche math consults.
type Inventory struct {
	OrderSz        float64
	AllocatedToken float64
	AllocatedUSDC  float64
	AccountToken   float64
	AccountUSDC    float64
	EffectiveToken float64
	EffectiveUSDC  float64
}

// New constructs an Inventory and computes its initial effective balances.
func New(orderSz, allocatedToken, allocatedUSDC, accountToken, accountUSDC float64) *Inventory {
	inv := &Inventory{
		OrderSz:        orderSz,
		AllocatedToken: allocatedToken,
		AllocatedUSDC:  allocatedUSDC,
		AccountToken:   accountToken,
		AccountUSDC:    accountUSDC,
	}
	inv.recomputeEffective()
	return inv
}

func (inv *Inventory) recomputeEffective() {
	inv.EffectiveToken = math.Min(inv.AllocatedToken, inv.AccountToken)
	inv.EffectiveUSDC = math.Min(inv.AllocatedUSDC, inv.AccountUSDC)
}

// UpdateAllocation changes the allocation ceilings and recomputes
// effective balances.
func (inv *Inventory) UpdateAllocation(token, usdc float64) {
	inv.AllocatedToken = token
	inv.AllocatedUSDC = usdc
	inv.recomputeEffective()
}

// ComputeAskTranches decomposes the effective token balance into
// ask-side tranches. Levels is always empty — ask level assignment is
// the quoting engine's responsibility.
func (inv *Inventory) ComputeAskTranches() TrancheDecomposition {
	var nFull int
	if inv.OrderSz > 0 {
		nFull = int(math.Floor(inv.EffectiveToken / inv.OrderSz))
	}
	partial := inv.EffectiveToken - float64(nFull)*inv.OrderSz
	if partial < 0 {
		partial = 0
	}
	return TrancheDecomposition{NFull: nFull, PartialSz: partial}
}

// ComputeBidTranches decomposes the effective USDC balance into bid-side
// tranches, walking grid levels descending from boundaryLevel (exclusive
// — the boundary itself is the lowest ask, so bids start one level
// below).
func (inv *Inventory) ComputeBidTranches(grid *pricing.Grid, boundaryLevel int) TrancheDecomposition {
	available := inv.EffectiveUSDC
	nFull := 0
	var levels []int
	partial := 0.0

	for lvl := boundaryLevel - 1; lvl >= 0; lvl-- {
		px, err := grid.PriceAtLevel(lvl)
		if err != nil {
			break
		}
		cost := px * inv.OrderSz
		if available >= cost {
			nFull++
			available -= cost
			levels = append(levels, lvl)
			continue
		}
		if available > 0 && px > 0 {
			partial = available / px
			levels = append(levels, lvl)
		}
		break
	}

	return TrancheDecomposition{NFull: nFull, PartialSz: partial, Levels: levels}
}

// OnAskFill processes an ask-side fill: sold sz tokens at price px.
func (inv *Inventory) OnAskFill(px, sz float64) {
	inv.AccountToken -= sz
	inv.AccountUSDC += px * sz
	inv.recomputeEffective()
}

// OnBidFill processes a bid-side fill: bought sz tokens at price px.
func (inv *Inventory) OnBidFill(px, sz float64) {
	inv.AccountToken += sz
	inv.AccountUSDC -= px * sz
	inv.recomputeEffective()
}

// OnBalanceUpdate resets account balances from an authoritative exchange
// reconciliation.
func (inv *Inventory) OnBalanceUpdate(token, usdc float64) {
	inv.AccountToken = token
	inv.AccountUSDC = usdc
	inv.recomputeEffective()
}

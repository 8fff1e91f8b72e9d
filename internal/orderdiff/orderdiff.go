// Package orderdiff computes the minimum set of mutations (modify,
// place, cancel) needed to converge the currently resting orders to the
// quoting engine's desired set. Pure function: no I/O, no side effects.
package orderdiff

import (
	"math"

	"github.com/AlliedToasters/hyperliquidity/internal/orderstate"
	"github.com/AlliedToasters/hyperliquidity/internal/quoting"
)

// Modification pairs an existing order's OID with the desired order it
// should be modified into.
type Modification struct {
	OID     int64
	Desired quoting.DesiredOrder
}

// Diff is the minimum mutation set to converge current orders to
// desired orders.
type Diff struct {
	Modifies []Modification
	Places   []quoting.DesiredOrder
	Cancels  []int64
}

type key struct {
	side  orderstate.Side
	level int
}

// weightedMidPrice is the size-weighted average price. Returns 0 if
// total size is zero.
func weightedMidPrice(prices, sizes []float64) float64 {
	var totalSize, weightedSum float64
	for i := range prices {
		weightedSum += prices[i] * sizes[i]
		totalSize += sizes[i]
	}
	if totalSize == 0 {
		return 0
	}
	return weightedSum / totalSize
}

// Compute converges current -> desired via:
//  1. Dead-zone check (short-circuit if drift is negligible)
//  2. Level-index matching by (side, level_index)
//  3. Per-order tolerance filter
//  4. Cross-side validation (cancel + place, never a cross-side modify)
func Compute(desired []quoting.DesiredOrder, current []orderstate.TrackedOrder, deadZoneBps, priceToleranceBps, sizeTolerancePct float64) Diff {
	if len(desired) == 0 && len(current) == 0 {
		return Diff{}
	}
	if len(current) == 0 {
		return Diff{Places: append([]quoting.DesiredOrder(nil), desired...)}
	}
	if len(desired) == 0 {
		cancels := make([]int64, len(current))
		for i, c := range current {
			cancels[i] = c.OID
		}
		return Diff{Cancels: cancels}
	}

	// --- Step 1: Dead-zone check ---
	dPrices := make([]float64, len(desired))
	dSizes := make([]float64, len(desired))
	for i, d := range desired {
		dPrices[i] = d.Price
		dSizes[i] = d.Size
	}
	cPrices := make([]float64, len(current))
	cSizes := make([]float64, len(current))
	for i, c := range current {
		cPrices[i] = c.Price
		cSizes[i] = c.Size
	}

	desiredMid := weightedMidPrice(dPrices, dSizes)
	currentMid := weightedMidPrice(cPrices, cSizes)
	if currentMid > 0 {
		driftBps := math.Abs(desiredMid-currentMid) / currentMid * 10_000
		if driftBps < deadZoneBps {
			return Diff{}
		}
	}

	// --- Step 2: Level-index matching ---
	desiredByKey := make(map[key]quoting.DesiredOrder, len(desired))
	for _, d := range desired {
		desiredByKey[key{side: d.Side, level: d.LevelIndex}] = d
	}
	currentByKey := make(map[key]orderstate.TrackedOrder, len(current))
	for _, c := range current {
		currentByKey[key{side: c.Side, level: c.LevelIndex}] = c
	}

	var modifies []Modification
	var places []quoting.DesiredOrder
	var cancels []int64
	matched := make(map[key]struct{})

	for k, d := range desiredByKey {
		if c, ok := currentByKey[k]; ok {
			matched[k] = struct{}{}

			pxDiffBps := math.Inf(1)
			if c.Price > 0 {
				pxDiffBps = math.Abs(d.Price-c.Price) / c.Price * 10_000
			}
			szDiffPct := math.Inf(1)
			if c.Size > 0 {
				szDiffPct = math.Abs(d.Size-c.Size) / c.Size * 100
			}

			if pxDiffBps <= priceToleranceBps && szDiffPct <= sizeTolerancePct {
				continue // within tolerance
			}
			modifies = append(modifies, Modification{OID: c.OID, Desired: d})
			continue
		}

		// --- Step 4: Cross-side check ---
		opposite := key{side: oppositeSide(k.side), level: k.level}
		if c, ok := currentByKey[opposite]; ok {
			if _, already := matched[opposite]; !already {
				matched[opposite] = struct{}{}
				cancels = append(cancels, c.OID)
				places = append(places, d)
				continue
			}
		}
		places = append(places, d)
	}

	for k, c := range currentByKey {
		if _, ok := matched[k]; !ok {
			cancels = append(cancels, c.OID)
		}
	}

	return Diff{Modifies: modifies, Places: places, Cancels: cancels}
}

func oppositeSide(s orderstate.Side) orderstate.Side {
	if s == orderstate.Buy {
		return orderstate.Sell
	}
	return orderstate.Buy
}

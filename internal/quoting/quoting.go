// Package quoting is the HIP-2 algorithm proper: a pure function from a
// price grid and inventory balances to the deterministic set of desired
// resting orders. No I/O, no side effects.
package quoting

import (
	"math"

	"github.com/AlliedToasters/hyperliquidity/internal/orderstate"
	"github.com/AlliedToasters/hyperliquidity/internal/pricing"
)

// DesiredOrder is an order the quoting engine wants resting on the book.
type DesiredOrder struct {
	Side       orderstate.Side
	LevelIndex int
	Price      float64
	Size       float64
}

// ComputeDesiredOrders computes the desired set of resting orders from
// inventory state.
//
// boundaryLevel is the grid index of the lowest ask level; asks are
// placed at boundaryLevel and above, bids at boundaryLevel-1 and below.
// minNotional, if > 0, filters out any order whose price*size falls
// below it. The returned slice is deterministic: asks ascending, then
// bids descending.
func ComputeDesiredOrders(grid *pricing.Grid, boundaryLevel int, effectiveToken, effectiveUSDC, orderSz, minNotional float64) []DesiredOrder {
	var orders []DesiredOrder

	maxLevel := len(grid.Levels()) - 1

	// --- Ask side: ascending from boundaryLevel ---
	if effectiveToken > 0 && orderSz > 0 {
		nFull := int(math.Floor(effectiveToken / orderSz))
		partial := effectiveToken - float64(nFull)*orderSz
		if partial < 0 {
			partial = 0
		}

		for i := 0; i < nFull; i++ {
			lvl := boundaryLevel + i
			if lvl > maxLevel {
				break
			}
			px, err := grid.PriceAtLevel(lvl)
			if err != nil {
				break
			}
			orders = append(orders, DesiredOrder{Side: orderstate.Sell, LevelIndex: lvl, Price: px, Size: orderSz})
		}

		if partial > 0 {
			partialLvl := boundaryLevel + nFull
			if partialLvl <= maxLevel {
				if px, err := grid.PriceAtLevel(partialLvl); err == nil {
					orders = append(orders, DesiredOrder{Side: orderstate.Sell, LevelIndex: partialLvl, Price: px, Size: partial})
				}
			}
		}
	}

	// --- Bid side: descending from boundaryLevel - 1 ---
	if effectiveUSDC > 0 && orderSz > 0 {
		available := effectiveUSDC
		for lvl := boundaryLevel - 1; lvl >= 0; lvl-- {
			px, err := grid.PriceAtLevel(lvl)
			if err != nil {
				break
			}
			cost := px * orderSz
			if available >= cost {
				orders = append(orders, DesiredOrder{Side: orderstate.Buy, LevelIndex: lvl, Price: px, Size: orderSz})
				available -= cost
				continue
			}
			if available > 0 && px > 0 {
				partialSz := available / px
				orders = append(orders, DesiredOrder{Side: orderstate.Buy, LevelIndex: lvl, Price: px, Size: partialSz})
			}
			break
		}
	}

	if minNotional > 0 {
		filtered := orders[:0]
		for _, o := range orders {
			if o.Price*o.Size >= minNotional {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}

	return orders
}

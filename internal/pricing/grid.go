// Package pricing builds and queries the geometric price ladder HIP-2
// market making rests orders on.
package pricing

import (
	"fmt"
	"math"
	"sort"
)

// DefaultTickSize is the HIP-2 multiplicative spacing between grid levels.
const DefaultTickSize = 0.003

// RoundFunc rounds a price to the wire precision used by the exchange.
type RoundFunc func(px float64) float64

// DefaultRound rounds px to 8 significant figures, matching Hyperliquid's
// spot price precision.
func DefaultRound(px float64) float64 {
	if px == 0 {
		return 0
	}
	magnitude := math.Floor(math.Log10(math.Abs(px))) + 1
	decimals := 8 - magnitude
	scale := math.Pow(10, decimals)
	return math.Round(px*scale) / scale
}

// Grid is an immutable geometric price ladder. Build one with NewGrid;
// there are no mutating methods.
type Grid struct {
	tickSize float64
	levels   []float64
}

// NewGrid constructs the ladder by repeatedly compounding startPx by
// (1+tickSize) and rounding with roundFn. If roundFn is nil, DefaultRound
// is used. Returns an error if rounding collapses two adjacent levels to
// the same price (degenerate grid).
func NewGrid(startPx float64, nOrders int, tickSize float64, roundFn RoundFunc) (*Grid, error) {
	if tickSize == 0 {
		tickSize = DefaultTickSize
	}
	if roundFn == nil {
		roundFn = DefaultRound
	}

	levels := make([]float64, 0, nOrders)
	levels = append(levels, roundFn(startPx))
	for i := 1; i < nOrders; i++ {
		next := roundFn(levels[i-1] * (1 + tickSize))
		if next == levels[i-1] {
			return nil, fmt.Errorf("pricing: degenerate grid: rounding collapsed level %d to same price as level %d (%v)", i, i-1, next)
		}
		levels = append(levels, next)
	}

	return &Grid{tickSize: tickSize, levels: levels}, nil
}

// Levels returns the complete ordered price ladder, ascending. Callers
// must not mutate the returned slice.
func (g *Grid) Levels() []float64 {
	return g.levels
}

// TickSize returns the multiplicative spacing this grid was built with.
func (g *Grid) TickSize() float64 {
	return g.tickSize
}

// PriceAtLevel returns the price at grid index i, or an error if i is out
// of range.
func (g *Grid) PriceAtLevel(i int) (float64, error) {
	if i < 0 || i >= len(g.levels) {
		return 0, fmt.Errorf("pricing: level index %d out of range [0, %d]", i, len(g.levels)-1)
	}
	return g.levels[i], nil
}

// LevelForPrice returns the nearest grid level index for px, and true, or
// (0, false) if px falls outside the grid range by more than half a tick
// spacing. Ties (px exactly between two levels) resolve to the lower
// index.
func (g *Grid) LevelForPrice(px float64) (int, bool) {
	levels := g.levels
	if len(levels) == 0 {
		return 0, false
	}

	halfTickLow := levels[0] * g.tickSize / 2
	halfTickHigh := levels[len(levels)-1] * g.tickSize / 2

	if px < levels[0]-halfTickLow {
		return 0, false
	}
	if px > levels[len(levels)-1]+halfTickHigh {
		return 0, false
	}

	idx := sort.SearchFloat64s(levels, px)

	if idx == 0 {
		return 0, true
	}
	if idx == len(levels) {
		return len(levels) - 1, true
	}

	left := levels[idx-1]
	right := levels[idx]
	if 2*px <= left+right { // <= gives lower-index tie-breaking
		return idx - 1, true
	}
	return idx, true
}

// Package ratelimit tracks the Hyperliquid API's own rate-limit budget
// model locally and exposes queries the batch emitter uses to throttle
// proactively. This is pure accounting — it has nothing to do with
// internal/infra.RateLimiter's local token-bucket pacing.
package ratelimit

import "fmt"

const (
	initialBudget  = 10_000
	safetyMargin   = 500
	criticalMargin = 100
)

// Budget tracks cumulative maker volume and request counts against the
// exchange's budget formula: budget = 10_000 + cum_vlm - n_requests.
// Pure state — mutate via OnRequest/OnFill/SyncFromExchange, query via
// Remaining/IsHealthy/IsEmergency.
type Budget struct {
	CumVlm    float64
	NRequests int
}

// New returns a zero-valued Budget, matching a freshly started process
// before it syncs from the exchange.
func New() *Budget {
	return &Budget{}
}

// budget returns the raw budget value (may be negative).
func (b *Budget) budget() float64 {
	return initialBudget + b.CumVlm - float64(b.NRequests)
}

// Ratio is the long-term utilization ratio: volume earned per request
// spent.
func (b *Budget) Ratio() float64 {
	n := b.NRequests
	if n < 1 {
		n = 1
	}
	return b.CumVlm / float64(n)
}

// Remaining is the current usable budget, clamped to >= 0.
func (b *Budget) Remaining() int {
	v := b.budget()
	if v < 0 {
		return 0
	}
	return int(v)
}

// IsHealthy is true when the account is earning volume at least as fast
// as it is spending requests.
func (b *Budget) IsHealthy() bool {
	return b.Ratio() >= 1.0
}

// IsEmergency is true when the remaining budget is below the safety
// margin.
func (b *Budget) IsEmergency() bool {
	return b.Remaining() < safetyMargin
}

// OnRequest records n API requests (a batch operation counts as 1).
func (b *Budget) OnRequest(n int) {
	b.NRequests += n
}

// OnFill records maker fill volume in USD.
func (b *Budget) OnFill(volumeUSD float64) {
	b.CumVlm += volumeUSD
}

// SyncFromExchange overwrites local state with exchange-reported values.
func (b *Budget) SyncFromExchange(cumVlm float64, nRequests int) {
	b.CumVlm = cumVlm
	b.NRequests = nRequests
}

// LogStatus renders the canonical utilization line used by the
// orchestrator's per-tick monitoring log.
func (b *Budget) LogStatus() string {
	return fmt.Sprintf("Utilization: ratio=%.2f budget=%d vol=$%.0f reqs=%d",
		b.Ratio(), b.Remaining(), b.CumVlm, b.NRequests)
}

package exchange

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/AlliedToasters/hyperliquidity/internal/infra"
	"github.com/AlliedToasters/hyperliquidity/internal/wire"
)

// ErrCircuitOpen is returned by a mutating call when the client's
// circuit breaker has tripped and is not yet allowing traffic through.
var ErrCircuitOpen = errors.New("exchange: circuit breaker open")

// ErrRateLimited is returned by a mutating call when the client-side
// call limiter has no token available. This is a local pacing backstop,
// separate from RateLimitBudget's exchange-side accounting.
var ErrRateLimited = errors.New("exchange: local call limiter exhausted")

// StubClient is an in-memory Client used by tests and by the CLI in
// every mode (Factory returns it for PAPER, TESTNET and MAINNET). It logs every call it would make and returns a
// caller-configurable canned response instead of touching the network —
// the real Hyperliquid HTTP/WS signing implementation is out of scope
// for this project (see internal/walletsecret for the credential
// surface it would need). Mutating calls are gated by a circuit
// breaker so a run of transport failures against the real exchange
// (once wired in) doesn't hammer a struggling endpoint.
type StubClient struct {
	mu      sync.Mutex
	cb      *infra.CircuitBreaker
	limiter *infra.RateLimiter

	meta       SpotMeta
	openOrders []OpenOrder
	balances   []SpotBalance
	rateLimit  RateLimitInfo

	// nextOrdersResult / nextModifyResult / nextCancelResult, if set, is
	// returned by the next call of the matching kind instead of the
	// default all-resting response. Tests use this to script
	// rejections.
	nextOrdersResult *BatchResult
	nextModifyResult *BatchResult
	nextCancelResult *BatchResult

	// nextCallErr, if set, is returned by the next mutating call in
	// place of a result, simulating a transport failure that should
	// trip the circuit breaker.
	nextCallErr error

	nextOID int64
}

// NewStubClient returns a StubClient with empty metadata; call the
// SetXxx helpers to seed it for a test.
func NewStubClient() *StubClient {
	return &StubClient{
		nextOID: 1,
		cb:      infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("exchange")),
		limiter: infra.NewExchangeCallLimiter(),
	}
}

// QueueCallError scripts the next mutating call to fail outright,
// as if the transport had errored, rather than returning statuses.
func (c *StubClient) QueueCallError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextCallErr = err
}

// CircuitState exposes the breaker's state for monitoring/tests.
func (c *StubClient) CircuitState() infra.State {
	return c.cb.GetState()
}

// guard checks the breaker before a mutating call and records the
// outcome after. callErr is the error the wrapped operation produced,
// if any.
func (c *StubClient) guard(op func() (BatchResult, error)) (BatchResult, error) {
	if !c.cb.Allow() {
		return BatchResult{}, ErrCircuitOpen
	}
	if !c.limiter.TryAcquire() {
		return BatchResult{}, ErrRateLimited
	}
	res, err := op()
	if err != nil {
		c.cb.RecordFailure()
		return res, err
	}
	c.cb.RecordSuccess()
	return res, nil
}

// SetSpotMeta seeds the response for SpotMeta.
func (c *StubClient) SetSpotMeta(meta SpotMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta = meta
}

// SetOpenOrders seeds the response for OpenOrders.
func (c *StubClient) SetOpenOrders(orders []OpenOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openOrders = orders
}

// SetBalances seeds the response for SpotUserState.
func (c *StubClient) SetBalances(balances []SpotBalance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances = balances
}

// SetRateLimit seeds the response for UserRateLimit.
func (c *StubClient) SetRateLimit(info RateLimitInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateLimit = info
}

// QueueOrdersResult scripts the next BulkOrders response.
func (c *StubClient) QueueOrdersResult(res BatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextOrdersResult = &res
}

// QueueModifyResult scripts the next BulkModifyOrders response.
func (c *StubClient) QueueModifyResult(res BatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextModifyResult = &res
}

// QueueCancelResult scripts the next BulkCancel response.
func (c *StubClient) QueueCancelResult(res BatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextCancelResult = &res
}

func (c *StubClient) SpotMeta(ctx context.Context) (SpotMeta, error) {
	slog.Debug("stub exchange client: SpotMeta")
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta, nil
}

func (c *StubClient) OpenOrders(ctx context.Context, address string) ([]OpenOrder, error) {
	slog.Debug("stub exchange client: OpenOrders", slog.String("address", address))
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openOrders, nil
}

func (c *StubClient) SpotUserState(ctx context.Context, address string) ([]SpotBalance, error) {
	slog.Debug("stub exchange client: SpotUserState", slog.String("address", address))
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances, nil
}

func (c *StubClient) UserRateLimit(ctx context.Context, address string) (RateLimitInfo, error) {
	slog.Debug("stub exchange client: UserRateLimit", slog.String("address", address))
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateLimit, nil
}

// BulkOrders resolves each request into a resting status with a
// freshly minted OID unless a canned result was queued.
func (c *StubClient) BulkOrders(ctx context.Context, reqs []wire.OrderRequest) (BatchResult, error) {
	slog.Debug("stub exchange client: BulkOrders", slog.Int("n", len(reqs)))
	return c.guard(func() (BatchResult, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.nextCallErr != nil {
			err := c.nextCallErr
			c.nextCallErr = nil
			return BatchResult{}, err
		}
		if c.nextOrdersResult != nil {
			res := *c.nextOrdersResult
			c.nextOrdersResult = nil
			return res, nil
		}

		statuses := make([]wire.OrderStatus, len(reqs))
		for i := range reqs {
			statuses[i] = wire.OrderStatus{Resting: &wire.RestingStatus{OID: c.nextOID}}
			c.nextOID++
		}
		return BatchResult{Statuses: statuses}, nil
	})
}

// BulkModifyOrders resolves each request into a resting status under
// its original OID unless a canned result was queued.
func (c *StubClient) BulkModifyOrders(ctx context.Context, reqs []wire.ModifyRequest) (BatchResult, error) {
	slog.Debug("stub exchange client: BulkModifyOrders", slog.Int("n", len(reqs)))
	return c.guard(func() (BatchResult, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.nextCallErr != nil {
			err := c.nextCallErr
			c.nextCallErr = nil
			return BatchResult{}, err
		}
		if c.nextModifyResult != nil {
			res := *c.nextModifyResult
			c.nextModifyResult = nil
			return res, nil
		}

		statuses := make([]wire.OrderStatus, len(reqs))
		for i, r := range reqs {
			statuses[i] = wire.OrderStatus{Resting: &wire.RestingStatus{OID: r.OID}}
		}
		return BatchResult{Statuses: statuses}, nil
	})
}

// BulkCancel resolves every request as successfully cancelled unless a
// canned result was queued.
func (c *StubClient) BulkCancel(ctx context.Context, reqs []wire.CancelRequest) (BatchResult, error) {
	slog.Debug("stub exchange client: BulkCancel", slog.Int("n", len(reqs)))
	return c.guard(func() (BatchResult, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.nextCallErr != nil {
			err := c.nextCallErr
			c.nextCallErr = nil
			return BatchResult{}, err
		}
		if c.nextCancelResult != nil {
			res := *c.nextCancelResult
			c.nextCancelResult = nil
			return res, nil
		}

		statuses := make([]wire.OrderStatus, len(reqs))
		for i := range reqs {
			statuses[i] = wire.OrderStatus{}
		}
		return BatchResult{Statuses: statuses}, nil
	})
}

package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/domain"
)

// ── fakes ──

type fakeDiscovery struct {
	pairs []domain.TokenPair
	err   error
	calls atomic.Int32
}

func (f *fakeDiscovery) FetchPairs(context.Context, string, int) ([]domain.TokenPair, error) {
	f.calls.Add(1)
	return f.pairs, f.err
}

// passthroughCache never caches, so every cycle hits discovery.
type passthroughCache struct{}

func (passthroughCache) GetOrCompute(ctx context.Context, _ string, _ time.Duration, compute func(context.Context) ([]domain.TokenPair, error)) ([]domain.TokenPair, error) {
	return compute(ctx)
}

type fixedGenerator struct {
	triples []domain.TokenTriple
	block   chan struct{}
}

func (g fixedGenerator) Generate(context.Context, []domain.TokenPair) []domain.TokenTriple {
	if g.block != nil {
		<-g.block
	}
	return g.triples
}

type quoteResult struct {
	best domain.BestPrice
	err  error
}

// fakeQuoter answers per triple key and counts calls per key.
type fakeQuoter struct {
	mu      sync.Mutex
	answers map[string]quoteResult
	calls   map[string]int
}

func newFakeQuoter() *fakeQuoter {
	return &fakeQuoter{answers: map[string]quoteResult{}, calls: map[string]int{}}
}

func (q *fakeQuoter) set(t domain.TokenTriple, price string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p := decimal.RequireFromString(price)
	q.answers[t.Key()] = quoteResult{best: domain.BestPrice{
		Price: p,
		Venue: "router-1",
		Quote: &domain.Quote{Venue: "router-1", AmountIn: big.NewInt(1000), AmountOut: big.NewInt(1)},
	}}
}

func (q *fakeQuoter) setResult(t domain.TokenTriple, r quoteResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.answers[t.Key()] = r
}

func (q *fakeQuoter) BestPrice(_ context.Context, t domain.TokenTriple, _ decimal.Decimal, _ string) (domain.BestPrice, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls[t.Key()]++
	r, ok := q.answers[t.Key()]
	if !ok {
		return domain.BestPrice{Price: decimal.Zero}, nil
	}
	return r.best, r.err
}

func (q *fakeQuoter) callsFor(t domain.TokenTriple) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls[t.Key()]
}

type fakeFacts struct {
	estimate    uint64
	estimateErr error
	price       *big.Int
	priceErr    error

	estimateCalls atomic.Int32
	priceCalls    atomic.Int32
}

func (f *fakeFacts) TokenDecimals(context.Context, domain.Token) (int32, error) { return 18, nil }

func (f *fakeFacts) EstimateGas(context.Context, string, string, []byte) (uint64, error) {
	f.estimateCalls.Add(1)
	return f.estimate, f.estimateErr
}

func (f *fakeFacts) GasPrice(context.Context) (*big.Int, error) {
	f.priceCalls.Add(1)
	return f.price, f.priceErr
}

type fakeEncoder struct{ err error }

func (e fakeEncoder) EncodeSwap(venue string, _ []domain.Token, _ *big.Int) (string, []byte, error) {
	return venue, []byte{0x38, 0xed, 0x17, 0x39}, e.err
}

type fakeExecutor struct {
	mu    sync.Mutex
	keys  []string
	calls map[string]int
	ok    bool
}

func newFakeExecutor(ok bool) *fakeExecutor {
	return &fakeExecutor{calls: map[string]int{}, ok: ok}
}

func (e *fakeExecutor) Execute(_ context.Context, t domain.TokenTriple, _ decimal.Decimal, _ string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys = append(e.keys, t.Key())
	e.calls[t.Key()]++
	return e.ok
}

func (e *fakeExecutor) callsFor(t domain.TokenTriple) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[t.Key()]
}

type fakePublisher struct {
	mu   sync.Mutex
	opps []domain.Opportunity
}

func (p *fakePublisher) PublishOpportunity(_ context.Context, o domain.Opportunity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opps = append(p.opps, o)
	return nil
}

// ── harness ──

var (
	xyz = domain.TokenTriple{A: "X", B: "Y", C: "Z"}
	xzy = domain.TokenTriple{A: "X", B: "Z", C: "Y"}
	yxz = domain.TokenTriple{A: "Y", B: "X", C: "Z"}
)

type harness struct {
	scanner   *Scanner
	discovery *fakeDiscovery
	quoter    *fakeQuoter
	facts     *fakeFacts
	executor  *fakeExecutor
	publisher *fakePublisher
	dedup     *DedupSets
}

func newHarness(t *testing.T, triples []domain.TokenTriple) *harness {
	t.Helper()
	h := &harness{
		discovery: &fakeDiscovery{pairs: []domain.TokenPair{{TokenA: "X", TokenB: "Y"}}},
		quoter:    newFakeQuoter(),
		facts:     &fakeFacts{estimate: 100_000, price: big.NewInt(1_000_000_000)},
		executor:  newFakeExecutor(true),
		publisher: &fakePublisher{},
		dedup:     NewDedupSets(),
	}
	logger := slog.New(slog.DiscardHandler)
	s, err := New(Config{
		Factory:          "0xfactory",
		PairFetchLimit:   100,
		BatchSize:        2,
		TradeAmount:      decimal.NewFromInt(1000),
		Wallet:           "0xwallet",
		GasBufferPct:     20,
		DefaultGasLimit:  300_000,
		FallbackGasPrice: big.NewInt(50_000_000_000),
	}, Deps{
		Discovery:  h.discovery,
		PairCache:  passthroughCache{},
		Generator:  fixedGenerator{triples: triples},
		Aggregator: h.quoter,
		Evaluator:  arbitrage.NewEvaluator(arbitrage.EvaluatorConfig{SlippageTolerance: decimal.RequireFromString("0.01"), NativeDecimals: 18}),
		Facts:      h.facts,
		Encoder:    fakeEncoder{},
		Executor:   h.executor,
		Publisher:  h.publisher,
		Pool:       NewPool(4, logger),
		Dedup:      h.dedup,
		Logger:     logger,
	})
	require.NoError(t, err)
	h.scanner = s
	return h
}

func (h *harness) scanAndDrain(t *testing.T) CycleStats {
	t.Helper()
	stats, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.scanner.Drain(context.Background()))
	return stats
}

// ── tests ──

func TestScanner_Scan_AcceptExecutesAndPromotes(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz, xzy})
	h.quoter.set(xyz, "1005")

	stats := h.scanAndDrain(t)

	assert.Equal(t, 2, stats.Candidates)
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, 2, stats.Submitted)
	assert.Equal(t, 1, h.executor.callsFor(xyz))
	assert.Zero(t, h.executor.callsFor(xzy))
	assert.True(t, h.dedup.IsHighProfit(xyz.Key()))
	assert.False(t, h.dedup.IsHighProfit(xzy.Key()), "no-quote stays unknown")
	assert.False(t, h.dedup.IsSkipped(xzy.Key()))

	require.Len(t, h.publisher.opps, 1)
	assert.Equal(t, xyz.Key(), h.publisher.opps[0].Key)
	assert.Equal(t, int64(1), h.scanner.Status().Outcomes[OutcomeAccepted])
}

func TestScanner_Scan_HighProfitIsFastTrackedWithoutRequote(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz})
	h.quoter.set(xyz, "1005")

	h.scanAndDrain(t)
	require.Equal(t, 1, h.quoter.callsFor(xyz))

	for i := 0; i < 3; i++ {
		stats := h.scanAndDrain(t)
		assert.Equal(t, 1, stats.FastTracked)
		assert.Zero(t, stats.Submitted)
	}

	assert.Equal(t, 1, h.quoter.callsFor(xyz), "fast-track must not re-quote")
	assert.Equal(t, 4, h.executor.callsFor(xyz))
}

func TestScanner_Scan_SkippedNeverExecuted(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz, yxz})
	require.NoError(t, h.dedup.MarkSkipped(xyz.Key()))
	h.quoter.set(xyz, "2000")
	h.quoter.set(yxz, "990")

	stats := h.scanAndDrain(t)

	assert.Zero(t, stats.FastTracked)
	assert.Equal(t, 1, stats.Excluded)
	assert.Equal(t, 1, stats.Submitted)
	assert.Zero(t, h.quoter.callsFor(xyz))
	assert.Zero(t, h.executor.callsFor(xyz))
	assert.ErrorIs(t, h.dedup.MarkHighProfit(xyz.Key()), domain.ErrConflictingState)
}

func TestScanner_Scan_DiscoveryFailureIsFatal(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz})
	rpcErr := errors.New("rpc down")
	h.discovery.err = rpcErr

	stats, err := h.scanner.Scan(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, rpcErr)
	assert.Zero(t, stats.Candidates)
	assert.Zero(t, h.quoter.callsFor(xyz))
	assert.NotEmpty(t, h.scanner.Status().LastError)
}

func TestScanner_Scan_EmptyDiscoveryIsAnError(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz})
	h.discovery.pairs = nil

	_, err := h.scanner.Scan(context.Background())

	assert.ErrorIs(t, err, domain.ErrNoPairs)
}

func TestScanner_Scan_AllVenuesFailSkipsGas(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz})
	h.quoter.setResult(xyz, quoteResult{best: domain.BestPrice{Price: decimal.Zero, VenuesQueried: 2, VenuesFailed: 2}})

	h.scanAndDrain(t)

	assert.Zero(t, h.facts.estimateCalls.Load())
	assert.Zero(t, h.facts.priceCalls.Load())
	assert.Zero(t, h.executor.callsFor(xyz))
	assert.False(t, h.dedup.IsSkipped(xyz.Key()), "transient failure stays retryable")
	assert.Equal(t, int64(1), h.scanner.Status().Outcomes[OutcomeNoQuote])

	h.scanAndDrain(t)
	assert.Equal(t, 2, h.quoter.callsFor(xyz))
}

func TestScanner_Scan_StructuralCandidateIsSkipped(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz, xzy})
	h.quoter.setResult(xyz, quoteResult{best: domain.BestPrice{Price: decimal.Zero, Structural: true}})
	h.quoter.setResult(xzy, quoteResult{err: fmt.Errorf("decimals: %w: %w", domain.ErrTokenMetadata, domain.ErrStructural)})

	h.scanAndDrain(t)
	assert.True(t, h.dedup.IsSkipped(xyz.Key()))
	assert.True(t, h.dedup.IsSkipped(xzy.Key()))

	stats := h.scanAndDrain(t)
	assert.Equal(t, 2, stats.Excluded)
	assert.Equal(t, 1, h.quoter.callsFor(xyz))
	assert.Equal(t, 1, h.quoter.callsFor(xzy))
}

func TestScanner_Scan_MetadataFailureIsNotSticky(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz})
	h.quoter.setResult(xyz, quoteResult{err: fmt.Errorf("decimals: %w: timeout", domain.ErrTokenMetadata)})

	h.scanAndDrain(t)

	assert.False(t, h.dedup.IsSkipped(xyz.Key()))
	assert.Equal(t, int64(1), h.scanner.Status().Outcomes[OutcomeError])
}

func TestScanner_Scan_GasEstimateBuffered(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz})
	h.quoter.set(xyz, "1005")

	h.scanAndDrain(t)

	require.Len(t, h.publisher.opps, 1)
	// 100k estimate + 20% at 1 gwei
	assert.Equal(t, "0.00012", h.publisher.opps[0].GasCost.String())
}

func TestScanner_Scan_GasFallbacks(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz})
	h.quoter.set(xyz, "1005")
	h.facts.estimateErr = errors.New("execution reverted")
	h.facts.priceErr = errors.New("timeout")

	h.scanAndDrain(t)

	require.Len(t, h.publisher.opps, 1)
	// default 300k at the 50 gwei fallback
	assert.Equal(t, "0.015", h.publisher.opps[0].GasCost.String())
	assert.Equal(t, 1, h.executor.callsFor(xyz))
}

func TestScanner_Scan_DefaultGasCanTurnUnprofitable(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz})
	h.quoter.set(xyz, "1000.01")
	h.facts.estimateErr = errors.New("execution reverted")
	h.facts.priceErr = errors.New("timeout")

	h.scanAndDrain(t)

	assert.Zero(t, h.executor.callsFor(xyz))
	assert.False(t, h.dedup.IsHighProfit(xyz.Key()))
	assert.Equal(t, int64(1), h.scanner.Status().Outcomes[OutcomeRejected])
}

func TestScanner_Scan_PromotesEvenWhenExecutionFails(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz})
	h.executor.ok = false
	h.quoter.set(xyz, "1005")

	h.scanAndDrain(t)

	assert.True(t, h.dedup.IsHighProfit(xyz.Key()))
}

func TestScanner_Evaluate_DuplicateEvaluationIsIdempotent(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz})
	h.quoter.set(xyz, "1005")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.scanner.evaluate(context.Background(), xyz)
		}()
	}
	wg.Wait()

	skipped, high := h.dedup.Sizes()
	assert.Zero(t, skipped)
	assert.Equal(t, 1, high)
	assert.GreaterOrEqual(t, h.executor.callsFor(xyz), 1)
	st := h.scanner.Status()
	assert.Equal(t, int64(8), st.Outcomes[OutcomeAccepted]+st.Outcomes[OutcomeRaced])
}

func TestScanner_Scan_Batches(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz, xzy, yxz})

	stats := h.scanAndDrain(t)

	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, 3, stats.Submitted)
}

func TestScanner_Scan_RejectsConcurrentCycle(t *testing.T) {
	h := newHarness(t, nil)
	block := make(chan struct{})
	h.scanner.deps.Generator = fixedGenerator{triples: []domain.TokenTriple{xyz}, block: block}

	done := make(chan error, 1)
	go func() {
		_, err := h.scanner.Scan(context.Background())
		done <- err
	}()
	require.Eventually(t, h.scanner.Running, time.Second, time.Millisecond)

	_, err := h.scanner.Scan(context.Background())
	assert.ErrorIs(t, err, domain.ErrScanInProgress)

	close(block)
	require.NoError(t, <-done)
	require.NoError(t, h.scanner.Drain(context.Background()))
}

func TestScanner_Scan_CancelledContextStopsSubmission(t *testing.T) {
	h := newHarness(t, []domain.TokenTriple{xyz, xzy, yxz})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// discovery ignores ctx in the fake, so only submission is affected

	stats, err := h.scanner.Scan(ctx)

	require.NoError(t, err)
	assert.True(t, stats.Interrupted)
	assert.Zero(t, stats.Submitted)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)
}

// Package scanner drives scan cycles: it resolves pairs, generates candidate
// triples, fast-tracks confirmed keys and dispatches the rest to a worker pool.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/triarb/internal/arbitrage"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/observability"
)

// Evaluation outcomes, used for counters and metrics labels.
const (
	OutcomeAccepted   = "accepted"
	OutcomeRejected   = "rejected"
	OutcomeNoQuote    = "no_quote"
	OutcomeStructural = "structural"
	OutcomeError      = "error"
	OutcomeRaced      = "raced"
)

// CandidateGenerator turns pairs into ordered candidate triples.
type CandidateGenerator interface {
	Generate(ctx context.Context, pairs []domain.TokenPair) []domain.TokenTriple
}

// PriceQuoter returns the best verified price for one candidate.
type PriceQuoter interface {
	BestPrice(ctx context.Context, triple domain.TokenTriple, notional decimal.Decimal, correlationID string) (domain.BestPrice, error)
}

// Config holds the scanner's tunables.
type Config struct {
	Factory          string
	PairFetchLimit   int
	PairCacheTTL     time.Duration
	BatchSize        int
	TradeAmount      decimal.Decimal
	Wallet           string
	GasBufferPct     int
	DefaultGasLimit  uint64
	FallbackGasPrice *big.Int
}

// Deps are the scanner's collaborators. Publisher and Metrics are optional.
type Deps struct {
	Discovery  domain.PairDiscovery
	PairCache  domain.PairCache
	Generator  CandidateGenerator
	Aggregator PriceQuoter
	Evaluator  arbitrage.Evaluator
	Facts      domain.ChainFacts
	Encoder    domain.SwapEncoder
	Executor   domain.ExecutionCoordinator
	Publisher  domain.OpportunityPublisher
	Pool       *Pool
	Dedup      *DedupSets
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

// CycleStats describes what the driver did during one Scan. Evaluation
// results land asynchronously and are reported through Status.
type CycleStats struct {
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Pairs       int           `json:"pairs"`
	Candidates  int           `json:"candidates"`
	Batches     int           `json:"batches"`
	FastTracked int           `json:"fast_tracked"`
	Submitted   int           `json:"submitted"`
	Excluded    int           `json:"excluded"`
	Interrupted bool          `json:"interrupted"`
}

// Status is a point-in-time view of the scanner for the HTTP surface.
type Status struct {
	Running    bool             `json:"running"`
	Cycles     int64            `json:"cycles"`
	InFlight   int64            `json:"in_flight"`
	Skipped    int              `json:"skipped"`
	HighProfit int              `json:"high_profit"`
	Outcomes   map[string]int64 `json:"outcomes"`
	LastCycle  *CycleStats      `json:"last_cycle,omitempty"`
	LastError  string           `json:"last_error,omitempty"`
}

// Scanner is the scheduler. It exclusively owns the dedup sets.
type Scanner struct {
	cfg  Config
	deps Deps

	logger  *slog.Logger
	running atomic.Bool
	cycles  atomic.Int64

	outcomesMu sync.Mutex
	outcomes   map[string]int64

	lastMu    sync.Mutex
	lastCycle *CycleStats
	lastErr   string
}

// New creates a Scanner. Pool and Dedup are created when nil.
func New(cfg Config, deps Deps) (*Scanner, error) {
	switch {
	case deps.Discovery == nil:
		return nil, errors.New("scanner: pair discovery is required")
	case deps.PairCache == nil:
		return nil, errors.New("scanner: pair cache is required")
	case deps.Generator == nil:
		return nil, errors.New("scanner: candidate generator is required")
	case deps.Aggregator == nil:
		return nil, errors.New("scanner: price aggregator is required")
	case deps.Facts == nil:
		return nil, errors.New("scanner: chain facts are required")
	case deps.Encoder == nil:
		return nil, errors.New("scanner: swap encoder is required")
	case deps.Executor == nil:
		return nil, errors.New("scanner: execution coordinator is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Pool == nil {
		deps.Pool = NewPool(0, deps.Logger)
	}
	if deps.Dedup == nil {
		deps.Dedup = NewDedupSets()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.FallbackGasPrice == nil {
		cfg.FallbackGasPrice = new(big.Int)
	}
	return &Scanner{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.With(slog.String("component", "scanner")),
		outcomes: make(map[string]int64),
	}, nil
}

// Dedup exposes the sets for inspection.
func (s *Scanner) Dedup() *DedupSets { return s.deps.Dedup }

// Drain waits for in-flight evaluation units.
func (s *Scanner) Drain(ctx context.Context) error { return s.deps.Pool.Drain(ctx) }

// Running reports whether a driver pass is active.
func (s *Scanner) Running() bool { return s.running.Load() }

// Scan runs one driver pass. It returns once every candidate has been
// fast-tracked or submitted; evaluation units may still be running. Only
// pair discovery failures are returned. A cancelled ctx stops submission
// and marks the stats as interrupted.
func (s *Scanner) Scan(ctx context.Context) (CycleStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return CycleStats{}, domain.ErrScanInProgress
	}
	defer s.running.Store(false)

	stats := CycleStats{StartedAt: time.Now()}
	s.cycles.Add(1)

	pairs, err := s.resolvePairs(ctx)
	if err != nil {
		stats.Duration = time.Since(stats.StartedAt)
		s.finishCycle(stats, err)
		return stats, fmt.Errorf("scanner: discover pairs: %w", err)
	}
	stats.Pairs = len(pairs)

	triples := s.deps.Generator.Generate(ctx, pairs)
	stats.Candidates = len(triples)

	for start := 0; start < len(triples); start += s.cfg.BatchSize {
		if ctx.Err() != nil {
			stats.Interrupted = true
			break
		}
		end := min(start+s.cfg.BatchSize, len(triples))
		batch := triples[start:end]
		stats.Batches++

		s.fastTrack(ctx, batch, &stats)
		s.submit(ctx, batch, &stats)
	}

	stats.Duration = time.Since(stats.StartedAt)
	s.finishCycle(stats, nil)
	s.logger.Info("scan cycle dispatched",
		slog.Int("pairs", stats.Pairs),
		slog.Int("candidates", stats.Candidates),
		slog.Int("batches", stats.Batches),
		slog.Int("fast_tracked", stats.FastTracked),
		slog.Int("submitted", stats.Submitted),
		slog.Int("excluded", stats.Excluded),
		slog.Bool("interrupted", stats.Interrupted),
		slog.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func (s *Scanner) resolvePairs(ctx context.Context) ([]domain.TokenPair, error) {
	key := "pairs:" + s.cfg.Factory
	return s.deps.PairCache.GetOrCompute(ctx, key, s.cfg.PairCacheTTL, func(ctx context.Context) ([]domain.TokenPair, error) {
		pairs, err := s.deps.Discovery.FetchPairs(ctx, s.cfg.Factory, s.cfg.PairFetchLimit)
		if err != nil {
			return nil, err
		}
		if len(pairs) == 0 {
			return nil, domain.ErrNoPairs
		}
		return pairs, nil
	})
}

// fastTrack executes every batch member already in the high-profit set
// without re-quoting it. Skipped keys never take this path.
func (s *Scanner) fastTrack(ctx context.Context, batch []domain.TokenTriple, stats *CycleStats) {
	for _, triple := range batch {
		key := triple.Key()
		if s.deps.Dedup.IsSkipped(key) || !s.deps.Dedup.IsHighProfit(key) {
			continue
		}
		cid := uuid.NewString()
		ok := s.deps.Executor.Execute(ctx, triple, s.cfg.TradeAmount, cid)
		stats.FastTracked++
		s.deps.Metrics.RecordFastTrack()
		s.deps.Metrics.RecordExecution("fast_track", ok)
		s.logger.Info("fast-tracked execution",
			slog.String("correlation_id", cid),
			slog.String("triple", key),
			slog.Bool("ok", ok),
		)
	}
}

func (s *Scanner) submit(ctx context.Context, batch []domain.TokenTriple, stats *CycleStats) {
	for _, triple := range batch {
		key := triple.Key()
		if s.deps.Dedup.IsSkipped(key) || s.deps.Dedup.IsHighProfit(key) {
			stats.Excluded++
			continue
		}
		stats.Submitted++
		s.deps.Metrics.AddInFlight(1)
		s.deps.Pool.Submit(func() {
			defer s.deps.Metrics.AddInFlight(-1)
			s.evaluate(ctx, triple)
		})
	}
}

// evaluate is one evaluation unit. Every failure stays inside the unit.
func (s *Scanner) evaluate(ctx context.Context, triple domain.TokenTriple) {
	key := triple.Key()
	if s.deps.Dedup.IsSkipped(key) || s.deps.Dedup.IsHighProfit(key) {
		s.record(OutcomeRaced)
		return
	}

	cid := uuid.NewString()
	log := s.logger.With(slog.String("correlation_id", cid), slog.String("triple", key))

	best, err := s.deps.Aggregator.BestPrice(ctx, triple, s.cfg.TradeAmount, cid)
	if err != nil {
		log.Warn("price aggregation failed", slog.String("error", err.Error()))
		if errors.Is(err, domain.ErrStructural) {
			s.markSkipped(log, key)
			s.record(OutcomeStructural)
			return
		}
		s.record(OutcomeError)
		return
	}
	if best.NoOpportunity() && best.Structural {
		s.markSkipped(log, key)
		s.record(OutcomeStructural)
		return
	}

	a := s.deps.Evaluator.Evaluate(triple, best, s.cfg.TradeAmount, func() arbitrage.Gas {
		return s.estimateGas(ctx, log, triple, best)
	})
	if !a.Accepted {
		if a.Reason == domain.ReasonNoQuote {
			s.record(OutcomeNoQuote)
		} else {
			s.record(OutcomeRejected)
		}
		log.Debug("candidate rejected",
			slog.String("reason", string(a.Reason)),
			slog.String("best_price", a.BestPrice.String()),
			slog.String("net_profit", a.NetProfit.String()),
			slog.String("min_acceptable", a.MinAcceptableOutput.String()),
		)
		return
	}

	s.record(OutcomeAccepted)
	log.Info("opportunity accepted",
		slog.String("venue", a.Venue),
		slog.String("best_price", a.BestPrice.String()),
		slog.String("gross_profit", a.GrossProfit.String()),
		slog.String("gas_cost", a.GasCost.String()),
		slog.String("net_profit", a.NetProfit.String()),
		slog.Uint64("gas_limit", a.GasLimit),
	)

	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishOpportunity(ctx, domain.NewOpportunity(a, cid, time.Now())); err != nil {
			log.Warn("publish opportunity failed", slog.String("error", err.Error()))
		}
	}

	ok := s.deps.Executor.Execute(ctx, triple, s.cfg.TradeAmount, cid)
	s.deps.Metrics.RecordExecution("evaluated", ok)
	if !ok {
		log.Warn("execution reported failure")
	}

	if err := s.deps.Dedup.MarkHighProfit(key); err != nil {
		log.Warn("promote to high-profit failed", slog.String("error", err.Error()))
	}
	s.updateDedupGauges()
}

// estimateGas returns the buffered estimate for the swap on the winning
// venue, falling back to the configured default limit and gas price.
func (s *Scanner) estimateGas(ctx context.Context, log *slog.Logger, triple domain.TokenTriple, best domain.BestPrice) arbitrage.Gas {
	gas := arbitrage.Gas{Limit: s.cfg.DefaultGasLimit, Price: s.cfg.FallbackGasPrice}

	amountIn := new(big.Int)
	if best.Quote != nil {
		amountIn = best.Quote.AmountIn
	}
	contract, data, err := s.deps.Encoder.EncodeSwap(best.Venue, triple.Path(), amountIn)
	if err == nil {
		var est uint64
		est, err = s.deps.Facts.EstimateGas(ctx, s.cfg.Wallet, contract, data)
		if err == nil {
			gas.Limit = est * uint64(100+s.cfg.GasBufferPct) / 100
		}
	}
	if err != nil {
		log.Warn("gas estimation failed, using default limit",
			slog.Uint64("gas_limit", gas.Limit),
			slog.String("error", err.Error()),
		)
	}

	price, err := s.deps.Facts.GasPrice(ctx)
	if err != nil {
		log.Warn("gas price lookup failed, using fallback",
			slog.String("gas_price", gas.Price.String()),
			slog.String("error", err.Error()),
		)
		return gas
	}
	gas.Price = price
	return gas
}

func (s *Scanner) markSkipped(log *slog.Logger, key string) {
	if err := s.deps.Dedup.MarkSkipped(key); err != nil {
		log.Warn("mark skipped failed", slog.String("error", err.Error()))
		return
	}
	log.Info("triple excluded as structurally invalid")
	s.updateDedupGauges()
}

func (s *Scanner) updateDedupGauges() {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.SetDedupSizes(s.deps.Dedup.Sizes())
}

func (s *Scanner) record(outcome string) {
	s.outcomesMu.Lock()
	s.outcomes[outcome]++
	s.outcomesMu.Unlock()
	s.deps.Metrics.RecordEvaluation(outcome)
}

func (s *Scanner) finishCycle(stats CycleStats, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
		s.logger.Error("scan cycle failed", slog.String("error", err.Error()))
	}
	s.deps.Metrics.RecordCycle(result, stats.Duration, stats.Pairs, stats.Candidates)

	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.lastCycle = &stats
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
}

// Status returns a snapshot of counters and dedup sizes.
func (s *Scanner) Status() Status {
	skipped, high := s.deps.Dedup.Sizes()
	st := Status{
		Running:    s.running.Load(),
		Cycles:     s.cycles.Load(),
		InFlight:   s.deps.Pool.InFlight(),
		Skipped:    skipped,
		HighProfit: high,
		Outcomes:   make(map[string]int64),
	}
	s.outcomesMu.Lock()
	for k, v := range s.outcomes {
		st.Outcomes[k] = v
	}
	s.outcomesMu.Unlock()

	s.lastMu.Lock()
	if s.lastCycle != nil {
		lc := *s.lastCycle
		st.LastCycle = &lc
	}
	st.LastError = s.lastErr
	s.lastMu.Unlock()
	return st
}

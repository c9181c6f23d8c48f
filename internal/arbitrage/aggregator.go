package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/observability"
)

// PriceAggregator asks every venue for the same cycle and keeps the best
// answer. It holds no mutable state.
type PriceAggregator struct {
	venues  []domain.QuoteSource
	facts   domain.ChainFacts
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPriceAggregator creates an aggregator over venues.
func NewPriceAggregator(venues []domain.QuoteSource, facts domain.ChainFacts, logger *slog.Logger) *PriceAggregator {
	return &PriceAggregator{
		venues: venues,
		facts:  facts,
		logger: logger.With(slog.String("component", "price_aggregator")),
	}
}

// SetMetrics attaches venue failure counters. Call before first use.
func (a *PriceAggregator) SetMetrics(m *observability.Metrics) { a.metrics = m }

// Venues returns the number of configured quote sources.
func (a *PriceAggregator) Venues() int { return len(a.venues) }

// BestPrice quotes the path [A, B, C, A] for notional units of A on every
// venue and returns the maximum output that beats the input. When no venue
// qualifies it returns a zero Price and an empty Venue without an error.
//
// An error is returned only when tokenA's decimals cannot be resolved; it
// wraps domain.ErrTokenMetadata.
func (a *PriceAggregator) BestPrice(ctx context.Context, triple domain.TokenTriple, notional decimal.Decimal, correlationID string) (domain.BestPrice, error) {
	decimals, err := a.facts.TokenDecimals(ctx, triple.A)
	if err != nil {
		return domain.BestPrice{}, fmt.Errorf("aggregator: decimals of %s: %w: %w", triple.A, domain.ErrTokenMetadata, err)
	}

	amountIn := notional.Shift(decimals).BigInt()
	result := domain.BestPrice{Price: decimal.Zero}
	if amountIn.Sign() <= 0 {
		return result, nil
	}

	path := triple.Path()
	structural := 0
	for _, venue := range a.venues {
		result.VenuesQueried++
		amounts, err := venue.AmountsOut(ctx, path, amountIn, correlationID)
		if err == nil && len(amounts) == 0 {
			err = errors.New("empty amounts")
		}
		if err != nil {
			result.VenuesFailed++
			a.metrics.RecordVenueFailures(venue.VenueID(), 1)
			if errors.Is(err, domain.ErrStructural) {
				structural++
			}
			a.logger.Warn("venue quote failed",
				slog.String("correlation_id", correlationID),
				slog.String("venue", venue.VenueID()),
				slog.String("triple", triple.Key()),
				slog.String("error", err.Error()),
			)
			continue
		}

		out := amounts[len(amounts)-1]
		if out == nil || out.Cmp(amountIn) <= 0 {
			continue
		}
		if result.Quote == nil || out.Cmp(result.Quote.AmountOut) > 0 {
			result.Quote = &domain.Quote{
				Venue:     venue.VenueID(),
				AmountIn:  new(big.Int).Set(amountIn),
				AmountOut: new(big.Int).Set(out),
			}
		}
	}

	if result.Quote == nil {
		result.Structural = len(a.venues) > 0 && structural == len(a.venues)
		return result, nil
	}
	result.Venue = result.Quote.Venue
	result.Price = decimal.NewFromBigInt(result.Quote.AmountOut, -decimals)

	a.logger.Debug("best price",
		slog.String("correlation_id", correlationID),
		slog.String("triple", triple.Key()),
		slog.String("venue", result.Venue),
		slog.String("price", result.Price.String()),
	)
	return result, nil
}

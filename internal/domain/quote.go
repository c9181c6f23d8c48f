package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Quote is one successful venue answer for a candidate path.
type Quote struct {
	Venue     string
	AmountIn  *big.Int // base units of tokenA
	AmountOut *big.Int // base units of tokenA, final hop
}

// BestPrice is the aggregated result across all venues for one candidate.
// A non-positive Price is the "no opportunity" sentinel.
type BestPrice struct {
	Price decimal.Decimal // human-scaled output in tokenA units
	Venue string
	Quote *Quote

	// VenuesQueried and VenuesFailed are counts for observability.
	VenuesQueried int
	VenuesFailed  int

	// Structural is set when every venue rejected the path as one that can
	// never be valid (missing pool, reverted route).
	Structural bool
}

// NoOpportunity reports whether p is the sentinel price.
func (p BestPrice) NoOpportunity() bool {
	return p.Price.Sign() <= 0
}

package domain

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
)

// QuoteSource answers "what does this path return" for one venue.
type QuoteSource interface {
	VenueID() string
	// AmountsOut returns one amount per hop. The last element is the final
	// output in the path's base unit, unscaled.
	AmountsOut(ctx context.Context, path []Token, amountIn *big.Int, correlationID string) ([]*big.Int, error)
}

// ChainFacts resolves token metadata and gas facts.
type ChainFacts interface {
	TokenDecimals(ctx context.Context, token Token) (int32, error)
	EstimateGas(ctx context.Context, from, contract string, data []byte) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

// PairDiscovery lists the token pairs a factory knows about.
type PairDiscovery interface {
	FetchPairs(ctx context.Context, source string, limit int) ([]TokenPair, error)
}

// BalanceSource resolves the wallet-holding weight of a token.
type BalanceSource interface {
	Weight(ctx context.Context, token Token) (decimal.Decimal, error)
}

// SwapEncoder builds calldata for the swap the engine would submit, used
// only for gas estimation.
type SwapEncoder interface {
	EncodeSwap(venue string, path []Token, amountIn *big.Int) (contract string, data []byte, err error)
}

// ExecutionCoordinator submits an approved opportunity.
type ExecutionCoordinator interface {
	Execute(ctx context.Context, triple TokenTriple, amount decimal.Decimal, correlationID string) bool
}

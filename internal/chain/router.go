package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Router is a UniswapV2-style router used as a quote source.
type Router struct {
	address common.Address
	pool    *Pool
}

// NewRouter creates a quote source for the router at address.
func NewRouter(address string, pool *Pool) *Router {
	return &Router{address: common.HexToAddress(address), pool: pool}
}

// VenueID is the router address.
func (r *Router) VenueID() string { return r.address.Hex() }

// AmountsOut calls getAmountsOut(amountIn, path). A reasonless revert, which
// is what a router does for a path with a missing pool, wraps
// domain.ErrStructural. A reserve-dependent revert such as
// INSUFFICIENT_LIQUIDITY stays transient.
func (r *Router) AmountsOut(ctx context.Context, path []domain.Token, amountIn *big.Int, correlationID string) ([]*big.Int, error) {
	addrs := toAddresses(path)
	data, err := routerABI.Pack("getAmountsOut", amountIn, addrs)
	if err != nil {
		return nil, fmt.Errorf("router %s: pack getAmountsOut: %w", r.VenueID(), err)
	}
	res, err := r.pool.Call(ctx, "getAmountsOut", r.address, data)
	if err != nil {
		return nil, fmt.Errorf("router %s: getAmountsOut [%s]: %w", r.VenueID(), correlationID, err)
	}
	vals, err := routerABI.Unpack("getAmountsOut", res)
	if err != nil {
		return nil, fmt.Errorf("router %s: unpack getAmountsOut: %w", r.VenueID(), err)
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, fmt.Errorf("router %s: getAmountsOut returned %d amounts for %d hops", r.VenueID(), len(amounts), len(path))
	}
	return amounts, nil
}

func toAddresses(path []domain.Token) []common.Address {
	out := make([]common.Address, len(path))
	for i, t := range path {
		out[i] = common.HexToAddress(string(t))
	}
	return out
}

var _ domain.QuoteSource = (*Router)(nil)

package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Factory discovers pairs from a UniswapV2-style factory.
type Factory struct {
	pool        *Pool
	concurrency int
	logger      *slog.Logger
}

// NewFactory creates a discovery adapter. concurrency bounds in-flight pair
// lookups; <= 0 means 8.
func NewFactory(pool *Pool, concurrency int, logger *slog.Logger) *Factory {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Factory{
		pool:        pool,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "pair_discovery")),
	}
}

// FetchPairs reads up to limit pairs from the factory at source, in factory
// index order. limit <= 0 reads them all. Any failed lookup fails the whole
// call.
func (f *Factory) FetchPairs(ctx context.Context, source string, limit int) ([]domain.TokenPair, error) {
	factory := common.HexToAddress(source)

	total, err := f.allPairsLength(ctx, factory)
	if err != nil {
		return nil, err
	}
	n := total
	if limit > 0 && limit < n {
		n = limit
	}

	pairs := make([]domain.TokenPair, n)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(f.concurrency)
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			p, err := f.pairAt(egCtx, factory, i)
			if err != nil {
				return err
			}
			pairs[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	f.logger.Info("pairs fetched",
		slog.String("factory", factory.Hex()),
		slog.Int("total", total),
		slog.Int("fetched", n),
	)
	return pairs, nil
}

func (f *Factory) allPairsLength(ctx context.Context, factory common.Address) (int, error) {
	data, err := factoryABI.Pack("allPairsLength")
	if err != nil {
		return 0, fmt.Errorf("chain: pack allPairsLength: %w", err)
	}
	res, err := f.pool.Call(ctx, "allPairsLength", factory, data)
	if err != nil {
		return 0, fmt.Errorf("chain: allPairsLength on %s: %w", factory.Hex(), err)
	}
	vals, err := factoryABI.Unpack("allPairsLength", res)
	if err != nil {
		return 0, fmt.Errorf("chain: unpack allPairsLength: %w", err)
	}
	n, ok := vals[0].(*big.Int)
	if !ok || !n.IsInt64() {
		return 0, fmt.Errorf("chain: allPairsLength on %s: bad value %v", factory.Hex(), vals[0])
	}
	return int(n.Int64()), nil
}

func (f *Factory) pairAt(ctx context.Context, factory common.Address, i int) (domain.TokenPair, error) {
	data, err := factoryABI.Pack("allPairs", big.NewInt(int64(i)))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("chain: pack allPairs: %w", err)
	}
	res, err := f.pool.Call(ctx, "allPairs", factory, data)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("chain: allPairs(%d): %w", i, err)
	}
	vals, err := factoryABI.Unpack("allPairs", res)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("chain: unpack allPairs(%d): %w", i, err)
	}
	pair, err := addressOut("allPairs", vals)
	if err != nil {
		return domain.TokenPair{}, err
	}

	t0, err := f.pairToken(ctx, pair, "token0")
	if err != nil {
		return domain.TokenPair{}, err
	}
	t1, err := f.pairToken(ctx, pair, "token1")
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{TokenA: domain.Token(t0.Hex()), TokenB: domain.Token(t1.Hex())}, nil
}

func (f *Factory) pairToken(ctx context.Context, pair common.Address, method string) (common.Address, error) {
	data, err := pairABI.Pack(method)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	res, err := f.pool.Call(ctx, method, pair, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: %s of pair %s: %w", method, pair.Hex(), err)
	}
	vals, err := pairABI.Unpack(method, res)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return addressOut(method, vals)
}

func addressOut(method string, vals []any) (common.Address, error) {
	if len(vals) == 0 {
		return common.Address{}, fmt.Errorf("chain: %s returned no values", method)
	}
	addr, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: %s returned %T, want address", method, vals[0])
	}
	return addr, nil
}

var _ domain.PairDiscovery = (*Factory)(nil)

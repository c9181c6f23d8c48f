package arbitrage

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

type fakeBalances struct {
	weights map[domain.Token]float64
	errs    map[domain.Token]error
}

func (f fakeBalances) Weight(_ context.Context, t domain.Token) (decimal.Decimal, error) {
	if err, ok := f.errs[t]; ok {
		return decimal.Zero, err
	}
	w, ok := f.weights[t]
	if !ok {
		return decimal.NewFromFloat(0.1), nil
	}
	return decimal.NewFromFloat(w), nil
}

type fakeVenue struct {
	id    string
	out   *big.Int
	err   error
	calls atomic.Int32

	mu       sync.Mutex
	lastPath []domain.Token
	lastIn   *big.Int
}

func (v *fakeVenue) VenueID() string { return v.id }

func (v *fakeVenue) AmountsOut(_ context.Context, path []domain.Token, amountIn *big.Int, _ string) ([]*big.Int, error) {
	v.calls.Add(1)
	v.mu.Lock()
	v.lastPath = path
	v.lastIn = amountIn
	v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	return []*big.Int{amountIn, big.NewInt(1), big.NewInt(1), v.out}, nil
}

type fakeFacts struct {
	decimals    int32
	decimalsErr error
}

func (f fakeFacts) TokenDecimals(context.Context, domain.Token) (int32, error) {
	return f.decimals, f.decimalsErr
}

func (fakeFacts) EstimateGas(context.Context, string, string, []byte) (uint64, error) {
	return 0, errors.New("not used")
}

func (fakeFacts) GasPrice(context.Context) (*big.Int, error) {
	return nil, errors.New("not used")
}

// units returns n * 10^dec as a big.Int.
func units(n int64, dec int32) *big.Int {
	return decimal.NewFromInt(n).Shift(dec).BigInt()
}

package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Facts implements domain.ChainFacts. Token decimals never change, so they
// are memoized for the life of the process.
type Facts struct {
	pool     *Pool
	decimals sync.Map // common.Address -> int32
}

// NewFacts creates a Facts over pool.
func NewFacts(pool *Pool) *Facts {
	return &Facts{pool: pool}
}

// TokenDecimals returns the ERC-20 decimals of token.
func (f *Facts) TokenDecimals(ctx context.Context, token domain.Token) (int32, error) {
	addr := common.HexToAddress(string(token))
	if v, ok := f.decimals.Load(addr); ok {
		return v.(int32), nil
	}

	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("chain: pack decimals: %w", err)
	}
	res, err := f.pool.Call(ctx, "decimals", addr, data)
	if err != nil {
		return 0, fmt.Errorf("chain: decimals of %s: %w", addr.Hex(), err)
	}
	vals, err := erc20ABI.Unpack("decimals", res)
	if err != nil {
		return 0, fmt.Errorf("chain: unpack decimals of %s: %w", addr.Hex(), err)
	}
	d, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("chain: decimals of %s: unexpected type %T", addr.Hex(), vals[0])
	}
	dec := int32(d)
	f.decimals.Store(addr, dec)
	return dec, nil
}

// EstimateGas estimates a call of data on contract sent from from.
func (f *Facts) EstimateGas(ctx context.Context, from, contract string, data []byte) (uint64, error) {
	to := common.HexToAddress(contract)
	gas, err := f.pool.EstimateGas(ctx, ethereum.CallMsg{
		From: common.HexToAddress(from),
		To:   &to,
		Data: data,
	})
	if err != nil {
		return 0, fmt.Errorf("chain: estimate gas on %s: %w", to.Hex(), err)
	}
	return gas, nil
}

// GasPrice returns the current suggested gas price in wei.
func (f *Facts) GasPrice(ctx context.Context) (*big.Int, error) {
	p, err := f.pool.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: gas price: %w", err)
	}
	return p, nil
}

var _ domain.ChainFacts = (*Facts)(nil)

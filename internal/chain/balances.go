package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Balances ranks tokens by the wallet's ERC-20 holdings. A positive
// override replaces every lookup with that constant weight.
type Balances struct {
	pool     *Pool
	facts    domain.ChainFacts
	wallet   common.Address
	override decimal.Decimal
}

// NewBalances creates a weight source for wallet.
func NewBalances(pool *Pool, facts domain.ChainFacts, wallet string, override decimal.Decimal) *Balances {
	return &Balances{
		pool:     pool,
		facts:    facts,
		wallet:   common.HexToAddress(wallet),
		override: override,
	}
}

// Weight returns the wallet balance of token in whole units.
func (b *Balances) Weight(ctx context.Context, token domain.Token) (decimal.Decimal, error) {
	if b.override.IsPositive() {
		return b.override, nil
	}
	addr := common.HexToAddress(string(token))
	data, err := erc20ABI.Pack("balanceOf", b.wallet)
	if err != nil {
		return decimal.Zero, fmt.Errorf("chain: pack balanceOf: %w", err)
	}
	res, err := b.pool.Call(ctx, "balanceOf", addr, data)
	if err != nil {
		return decimal.Zero, fmt.Errorf("chain: balanceOf %s: %w", addr.Hex(), err)
	}
	vals, err := erc20ABI.Unpack("balanceOf", res)
	if err != nil {
		return decimal.Zero, fmt.Errorf("chain: unpack balanceOf: %w", err)
	}
	raw, ok := vals[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("chain: balanceOf %s: unexpected type %T", addr.Hex(), vals[0])
	}
	dec, err := b.facts.TokenDecimals(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(raw, -dec), nil
}

var _ domain.BalanceSource = (*Balances)(nil)

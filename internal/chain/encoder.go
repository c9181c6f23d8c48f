package chain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// SwapEncoder builds swapExactTokensForTokens calldata for gas estimation.
// amountOutMin is zero and the deadline is now plus the configured window.
type SwapEncoder struct {
	wallet   common.Address
	deadline time.Duration
	now      func() time.Time
}

// NewSwapEncoder creates an encoder that routes proceeds to wallet.
func NewSwapEncoder(wallet string, deadline time.Duration) *SwapEncoder {
	return &SwapEncoder{
		wallet:   common.HexToAddress(wallet),
		deadline: deadline,
		now:      time.Now,
	}
}

// EncodeSwap returns the router to call and the packed calldata.
func (e *SwapEncoder) EncodeSwap(venue string, path []domain.Token, amountIn *big.Int) (string, []byte, error) {
	if !common.IsHexAddress(venue) {
		return "", nil, fmt.Errorf("chain: encode swap: venue %q is not an address", venue)
	}
	deadline := big.NewInt(e.now().Add(e.deadline).Unix())
	data, err := routerABI.Pack("swapExactTokensForTokens",
		amountIn,
		big.NewInt(0),
		toAddresses(path),
		e.wallet,
		deadline,
	)
	if err != nil {
		return "", nil, fmt.Errorf("chain: pack swapExactTokensForTokens: %w", err)
	}
	return common.HexToAddress(venue).Hex(), data, nil
}

var _ domain.SwapEncoder = (*SwapEncoder)(nil)

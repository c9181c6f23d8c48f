package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract ABIs, trimmed to the methods the engine calls.
var (
	routerABI = mustParse(`[
		{"name":"getAmountsOut","type":"function","stateMutability":"view",
		 "inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
		 "outputs":[{"name":"amounts","type":"uint256[]"}]},
		{"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable",
		 "inputs":[
			{"name":"amountIn","type":"uint256"},
			{"name":"amountOutMin","type":"uint256"},
			{"name":"path","type":"address[]"},
			{"name":"to","type":"address"},
			{"name":"deadline","type":"uint256"}],
		 "outputs":[{"name":"amounts","type":"uint256[]"}]}
	]`)
	factoryABI = mustParse(`[
		{"name":"allPairsLength","type":"function","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"allPairs","type":"function","stateMutability":"view",
		 "inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
	]`)
	pairABI = mustParse(`[
		{"name":"token0","type":"function","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"address"}]},
		{"name":"token1","type":"function","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"address"}]}
	]`)
	erc20ABI = mustParse(`[
		{"name":"decimals","type":"function","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"uint8"}]},
		{"name":"balanceOf","type":"function","stateMutability":"view",
		 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("chain: parse abi: " + err.Error())
	}
	return parsed
}

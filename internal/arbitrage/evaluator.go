package arbitrage

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// EvaluatorConfig holds the constants of the decision gate.
type EvaluatorConfig struct {
	// SlippageTolerance is a fraction, e.g. 0.01 for 1%.
	SlippageTolerance decimal.Decimal
	// NativeDecimals scales wei-denominated gas cost into native units.
	NativeDecimals int32
}

// Gas is the gas estimate for the swap under evaluation.
type Gas struct {
	Limit uint64
	Price *big.Int
}

// Evaluator is the pure accept/reject gate.
type Evaluator struct {
	cfg EvaluatorConfig
}

func NewEvaluator(cfg EvaluatorConfig) Evaluator {
	if cfg.NativeDecimals == 0 {
		cfg.NativeDecimals = 18
	}
	return Evaluator{cfg: cfg}
}

// GasCost converts gas price times limit into native-currency decimal form.
func (e Evaluator) GasCost(gas Gas) decimal.Decimal {
	if gas.Price == nil || gas.Limit == 0 {
		return decimal.Zero
	}
	wei := new(big.Int).Mul(gas.Price, new(big.Int).SetUint64(gas.Limit))
	return decimal.NewFromBigInt(wei, -e.cfg.NativeDecimals)
}

// MinAcceptableOutput is notional discounted by the slippage tolerance.
func (e Evaluator) MinAcceptableOutput(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(decimal.NewFromInt(1).Sub(e.cfg.SlippageTolerance))
}

// Evaluate applies the decision gate. gas is only consulted when best
// carries a positive price. Both net profit and the slippage floor must pass.
func (e Evaluator) Evaluate(triple domain.TokenTriple, best domain.BestPrice, notional decimal.Decimal, gas func() Gas) domain.Assessment {
	a := domain.Assessment{
		Triple:              triple,
		Venue:               best.Venue,
		Notional:            notional,
		BestPrice:           best.Price,
		MinAcceptableOutput: e.MinAcceptableOutput(notional),
	}
	if best.NoOpportunity() {
		a.Reason = domain.ReasonNoQuote
		return a
	}

	g := gas()
	a.GasLimit = g.Limit
	a.GasPrice = g.Price
	a.GasComputed = true
	a.GrossProfit = best.Price.Sub(notional)
	a.GasCost = e.GasCost(g)
	a.NetProfit = a.GrossProfit.Sub(a.GasCost)

	switch {
	case !a.NetProfit.IsPositive():
		a.Reason = domain.ReasonUnprofitable
	case !best.Price.GreaterThan(a.MinAcceptableOutput):
		a.Reason = domain.ReasonSlippageFloor
	default:
		a.Accepted = true
	}
	return a
}

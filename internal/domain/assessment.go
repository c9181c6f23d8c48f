package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// RejectReason explains why an assessment did not pass the decision gate.
type RejectReason string

const (
	ReasonNone          RejectReason = ""
	ReasonNoQuote       RejectReason = "no_quote"
	ReasonUnprofitable  RejectReason = "unprofitable"
	ReasonSlippageFloor RejectReason = "below_slippage_floor"
)

// Assessment is the full output of one profitability evaluation, intermediate
// values included.
type Assessment struct {
	Triple              TokenTriple
	Venue               string
	Notional            decimal.Decimal
	BestPrice           decimal.Decimal
	GrossProfit         decimal.Decimal
	GasLimit            uint64
	GasPrice            *big.Int
	GasCost             decimal.Decimal
	NetProfit           decimal.Decimal
	MinAcceptableOutput decimal.Decimal
	Accepted            bool
	Reason              RejectReason
	// GasComputed is false when the evaluation short-circuited on a missing quote.
	GasComputed bool
}

// Opportunity is an accepted assessment as published to downstream listeners.
type Opportunity struct {
	CorrelationID string          `json:"correlation_id"`
	Key           string          `json:"key"`
	Path          []Token         `json:"path"`
	Venue         string          `json:"venue"`
	Notional      decimal.Decimal `json:"notional"`
	BestPrice     decimal.Decimal `json:"best_price"`
	GasCost       decimal.Decimal `json:"gas_cost"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	DetectedAt    time.Time       `json:"detected_at"`
}

// NewOpportunity projects an accepted assessment into a publishable record.
func NewOpportunity(a Assessment, correlationID string, at time.Time) Opportunity {
	return Opportunity{
		CorrelationID: correlationID,
		Key:           a.Triple.Key(),
		Path:          a.Triple.Path(),
		Venue:         a.Venue,
		Notional:      a.Notional,
		BestPrice:     a.BestPrice,
		GasCost:       a.GasCost,
		NetProfit:     a.NetProfit,
		DetectedAt:    at,
	}
}

// Package domain defines the core types shared across the qka backtest
// engine: bars, sizing, positions, and executed trades.
package domain

import "time"

// Side is the direction of an order or trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Bar is one OHLCV observation for one symbol at one timestamp.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Sizing expresses how much of a symbol to trade: either an absolute share
// count, or a fraction of available capital (buys) / currently held shares
// (sells). Exactly one of the two forms must be set; use the Shares and
// Ratio constructors.
type Sizing struct {
	ShareCount int64
	Fraction   float64
}

// Shares returns a Sizing for an absolute share count.
func Shares(n int64) Sizing {
	return Sizing{ShareCount: n}
}

// Ratio returns a Sizing for a fraction-of-capital (or fraction-of-holding)
// request in (0, 1].
func Ratio(r float64) Sizing {
	return Sizing{Fraction: r}
}

// IsRatio reports whether the sizing is a fractional request.
func (s Sizing) IsRatio() bool {
	return s.ShareCount == 0
}

// Position is the holding of a single symbol: a lot-aligned share count and
// the volume-weighted average cost per share. Share counts are never
// negative; short positions are not supported.
type Position struct {
	Symbol  string
	Shares  int64
	AvgCost float64
}

// Trade is one executed fill. Trades are immutable once appended to the
// ledger's history; all reporting derives from them.
type Trade struct {
	Timestamp   time.Time
	Symbol      string
	Side        Side
	Shares      int64
	Price       float64 // fill price, slippage-adjusted
	Commission  float64
	CashAfter   float64
	EquityAfter float64
}

// Value returns the fill value of the trade, excluding commission.
func (t Trade) Value() float64 {
	return float64(t.Shares) * t.Price
}

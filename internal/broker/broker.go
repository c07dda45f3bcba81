// Package broker exposes the minimal order surface strategies trade
// through. The simulated implementation executes against the in-memory
// ledger; a live implementation would consume the same intent shape, which
// is why the surface stays small and side-effect-explicit.
package broker

import (
	"qka/internal/domain"
)

// Broker is the strategy-facing trading surface.
//
// Buy and Sell return the executed Trade on success. Business rejections
// (insufficient funds or shares, no position) are *domain.Rejection error
// values a strategy can branch on; validation errors indicate caller bugs
// and must not be swallowed.
type Broker interface {
	// Buy submits a buy intent at the given reference price. Ratio sizing
	// resolves against available cash.
	Buy(symbol string, sz domain.Sizing, price float64) (*domain.Trade, error)

	// Sell submits a sell intent. Ratio sizing resolves against held shares.
	Sell(symbol string, sz domain.Sizing, price float64) (*domain.Trade, error)

	// Position returns the held share count for a symbol, zero when flat.
	Position(symbol string) int64

	// Cash returns the available cash balance.
	Cash() float64

	// Equity returns cash plus positions marked at the given prices.
	Equity(prices map[string]float64) float64

	// Trades returns the trade history in execution order.
	Trades() []domain.Trade
}

// Package ledger owns the account state of a simulated run (cash, the
// position book, and the append-only trade history) together with the
// execution policy that turns trade intents into concrete fills.
package ledger

import "qka/internal/domain"

// Policy is the execution cost model applied to every fill: commission,
// slippage, and lot-size rounding. It is pure data; resolution methods have
// no side effects so they can be tested in isolation.
type Policy struct {
	CommissionRate float64 // fraction of fill value
	MinCommission  float64 // floor per fill
	SlippageRate   float64 // adverse price adjustment per fill
	LotSize        int64   // minimum tradable share increment
}

// DefaultPolicy returns the standard A-share cost model: 0.03% commission
// with a 5-unit floor, 0.1% slippage, 100-share lots.
func DefaultPolicy() Policy {
	return Policy{
		CommissionRate: 0.0003,
		MinCommission:  5,
		SlippageRate:   0.001,
		LotSize:        100,
	}
}

// BuyPrice returns the slippage-adjusted fill price for a buy. This is the
// only point slippage enters the accounting.
func (p Policy) BuyPrice(ref float64) float64 {
	return ref * (1 + p.SlippageRate)
}

// SellPrice returns the slippage-adjusted fill price for a sell.
func (p Policy) SellPrice(ref float64) float64 {
	return ref * (1 - p.SlippageRate)
}

// Commission returns the commission charged on a fill of the given value.
func (p Policy) Commission(value float64) float64 {
	c := value * p.CommissionRate
	if c < p.MinCommission {
		return p.MinCommission
	}
	return c
}

// RoundLot rounds a share count down to the nearest whole lot. Rounding is
// always downward so rounding alone can never overspend or oversell.
func (p Policy) RoundLot(shares int64) int64 {
	if p.LotSize <= 1 {
		return shares
	}
	return shares / p.LotSize * p.LotSize
}

// ResolveBuyShares resolves a buy sizing into a lot-aligned share count.
// Ratio sizing targets a fraction of available cash at the slippage-adjusted
// price. A zero result means the request is too small to fill one lot.
func (p Policy) ResolveBuyShares(sz domain.Sizing, adjPrice, cash float64) int64 {
	if !sz.IsRatio() {
		return p.RoundLot(sz.ShareCount)
	}
	target := cash * sz.Fraction
	return p.RoundLot(int64(target / adjPrice))
}

// ResolveSellShares resolves a sell sizing against the held share count.
// Ratio sizing is a fraction of held shares, rounded down to a whole lot,
// except a ratio of exactly 1 which liquidates the full holding.
func (p Policy) ResolveSellShares(sz domain.Sizing, held int64) int64 {
	if !sz.IsRatio() {
		return p.RoundLot(sz.ShareCount)
	}
	if sz.Fraction == 1 {
		return held
	}
	return p.RoundLot(int64(float64(held) * sz.Fraction))
}

// Validate checks the sizing form itself: exactly one of share count or
// ratio must be set, the count must be positive, and the ratio must lie in
// (0, 1]. Violations are caller bugs, not market conditions.
func validateSizing(sz domain.Sizing) error {
	if sz.ShareCount < 0 {
		return domain.Validationf("negative share count %d", sz.ShareCount)
	}
	if sz.ShareCount > 0 && sz.Fraction != 0 {
		return domain.Validationf("ambiguous sizing: both shares (%d) and ratio (%v) set", sz.ShareCount, sz.Fraction)
	}
	if sz.ShareCount == 0 && (sz.Fraction <= 0 || sz.Fraction > 1) {
		return domain.Validationf("ratio %v outside (0, 1]", sz.Fraction)
	}
	return nil
}

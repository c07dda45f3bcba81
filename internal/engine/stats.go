package engine

import (
	"math"
	"time"

	"qka/internal/domain"
)

// Result is the summary of a finished run, derived purely from the recorded
// equity curve and the ledger's trade history so report and ledger can never
// disagree.
type Result struct {
	RunID    string
	Strategy string
	Start    time.Time
	End      time.Time

	InitialCash float64
	FinalEquity float64

	TotalReturn  float64
	AnnualReturn float64
	Volatility   float64
	Sharpe       float64
	MaxDrawdown  float64 // peak-to-trough, reported as a value <= 0

	TotalTrades     int
	TotalCommission float64
	RoundTrips      int
	Wins            int
	WinRate         float64

	EquityCurve []EquityPoint
	Trades      []domain.Trade
}

func computeResult(runID, strategyName string, cfg Config, equity []EquityPoint, trades []domain.Trade) *Result {
	res := &Result{
		RunID:       runID,
		Strategy:    strategyName,
		InitialCash: cfg.InitialCash,
		EquityCurve: equity,
		Trades:      trades,
		TotalTrades: len(trades),
	}
	if len(equity) == 0 {
		return res
	}
	res.Start = equity[0].Timestamp
	res.End = equity[len(equity)-1].Timestamp
	res.FinalEquity = equity[len(equity)-1].Value
	res.TotalReturn = (res.FinalEquity - cfg.InitialCash) / cfg.InitialCash

	// Annualized return compounds over the number of samples at the series'
	// sampling frequency.
	steps := float64(len(equity))
	res.AnnualReturn = math.Pow(res.FinalEquity/cfg.InitialCash, cfg.PeriodsPerYear/steps) - 1

	res.Volatility = annualizedVolatility(equity, cfg.PeriodsPerYear)
	if res.Volatility > 0 {
		res.Sharpe = res.AnnualReturn / res.Volatility
	}
	res.MaxDrawdown = maxDrawdown(equity)

	for _, t := range trades {
		res.TotalCommission += t.Commission
	}
	res.RoundTrips, res.Wins = roundTrips(trades)
	if res.RoundTrips > 0 {
		res.WinRate = float64(res.Wins) / float64(res.RoundTrips)
	}
	return res
}

// annualizedVolatility is the standard deviation of step-over-step returns
// scaled by the square root of the sampling frequency.
func annualizedVolatility(equity []EquityPoint, periodsPerYear float64) float64 {
	if len(equity) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i].Value-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance) * math.Sqrt(periodsPerYear)
}

// maxDrawdown is the deepest peak-to-trough decline on the equity curve,
// returned as a fraction <= 0.
func maxDrawdown(equity []EquityPoint) float64 {
	peak := equity[0].Value
	worst := 0.0
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			if dd := (p.Value - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// buyLot is an open buy parcel awaiting matching sells.
type buyLot struct {
	shares       int64
	costPerShare float64 // fill price plus commission spread over the lot
}

// roundTrips matches buys and sells per symbol in trade order, FIFO, and
// counts each sell as one round trip, won when its realized P&L net of both
// sides' commissions is positive.
func roundTrips(trades []domain.Trade) (total, wins int) {
	open := make(map[string][]buyLot)

	for _, t := range trades {
		switch t.Side {
		case domain.SideBuy:
			open[t.Symbol] = append(open[t.Symbol], buyLot{
				shares:       t.Shares,
				costPerShare: t.Price + t.Commission/float64(t.Shares),
			})
		case domain.SideSell:
			netPerShare := t.Price - t.Commission/float64(t.Shares)
			remaining := t.Shares
			pnl := 0.0
			lots := open[t.Symbol]
			for remaining > 0 && len(lots) > 0 {
				lot := &lots[0]
				matched := min(lot.shares, remaining)
				pnl += float64(matched) * (netPerShare - lot.costPerShare)
				lot.shares -= matched
				remaining -= matched
				if lot.shares == 0 {
					lots = lots[1:]
				}
			}
			open[t.Symbol] = lots

			total++
			if pnl > 0 {
				wins++
			}
		}
	}
	return total, wins
}

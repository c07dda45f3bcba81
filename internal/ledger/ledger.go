package ledger

import (
	"fmt"
	"time"

	"qka/internal/domain"
)

// Ledger is the account state of one simulated run: cash, the position book,
// and the append-only trade history. It is mutated exclusively through
// ApplyBuy and ApplySell; everything else is read-only access.
//
// A position sold down to zero shares is purged from the book, so a symbol
// is "held" exactly when it has a non-zero entry.
type Ledger struct {
	cash      float64
	positions map[string]*domain.Position
	trades    []domain.Trade
}

// New creates a Ledger with the given starting cash.
func New(initialCash float64) (*Ledger, error) {
	if initialCash <= 0 {
		return nil, domain.Validationf("initial cash must be positive, got %v", initialCash)
	}
	return &Ledger{
		cash:      initialCash,
		positions: make(map[string]*domain.Position),
	}, nil
}

// Cash returns the available cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Position returns the holding for a symbol, if any.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Positions returns a copy of the position book.
func (l *Ledger) Positions() map[string]domain.Position {
	out := make(map[string]domain.Position, len(l.positions))
	for sym, p := range l.positions {
		out[sym] = *p
	}
	return out
}

// Trades returns the trade history in execution order. The returned slice
// must not be mutated.
func (l *Ledger) Trades() []domain.Trade {
	return l.trades
}

// Equity returns cash plus the position book marked at the given prices.
// Symbols missing from the price map fall back to their average cost.
func (l *Ledger) Equity(prices map[string]float64) float64 {
	total := l.cash
	for sym, p := range l.positions {
		price, ok := prices[sym]
		if !ok {
			price = p.AvgCost
		}
		total += float64(p.Shares) * price
	}
	return total
}

// ApplyBuy resolves and executes a buy intent against the ledger. On success
// it debits cash by fill value plus commission, folds the fill into the
// position's volume-weighted average cost, appends a Trade, and returns it.
// Rejections come back as *domain.Rejection error values.
//
// The marks map is used only to record total equity on the Trade.
func (l *Ledger) ApplyBuy(p Policy, ts time.Time, symbol string, sz domain.Sizing, refPrice float64, marks map[string]float64) (*domain.Trade, error) {
	if err := validateIntent(symbol, sz, refPrice); err != nil {
		return nil, err
	}

	adj := p.BuyPrice(refPrice)
	shares := p.ResolveBuyShares(sz, adj, l.cash)
	if shares <= 0 {
		return nil, domain.Reject(domain.RejectInsufficientFunds, symbol,
			"request resolves to zero lots at price %.4f", adj)
	}

	value := float64(shares) * adj
	commission := p.Commission(value)
	cost := value + commission
	if cost > l.cash {
		return nil, domain.Reject(domain.RejectInsufficientFunds, symbol,
			"need %.2f, have %.2f", cost, l.cash)
	}

	l.cash -= cost

	pos, ok := l.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol}
		l.positions[symbol] = pos
	}
	// Volume-weighted average cost over prior holding and the new fill.
	pos.AvgCost = (float64(pos.Shares)*pos.AvgCost + value) / float64(pos.Shares+shares)
	pos.Shares += shares

	return l.append(ts, symbol, domain.SideBuy, shares, adj, commission, marks)
}

// ApplySell resolves and executes a sell intent. Ratio sizing resolves
// against the held share count, never against cash. Average cost is left
// untouched by partial sells; a holding sold to zero is purged.
func (l *Ledger) ApplySell(p Policy, ts time.Time, symbol string, sz domain.Sizing, refPrice float64, marks map[string]float64) (*domain.Trade, error) {
	if err := validateIntent(symbol, sz, refPrice); err != nil {
		return nil, err
	}

	pos, ok := l.positions[symbol]
	if !ok {
		return nil, domain.Reject(domain.RejectNoPosition, symbol, "no holding")
	}
	if !sz.IsRatio() && sz.ShareCount > pos.Shares {
		return nil, domain.Reject(domain.RejectInsufficientShares, symbol,
			"requested %d, held %d", sz.ShareCount, pos.Shares)
	}

	shares := p.ResolveSellShares(sz, pos.Shares)
	if shares <= 0 {
		return nil, domain.Reject(domain.RejectInsufficientShares, symbol,
			"request resolves to zero lots of %d held", pos.Shares)
	}

	adj := p.SellPrice(refPrice)
	value := float64(shares) * adj
	commission := p.Commission(value)
	// A fill so small that commission swallows the proceeds could push cash
	// negative; reject it rather than break the cash floor.
	if l.cash+value-commission < 0 {
		return nil, domain.Reject(domain.RejectInsufficientFunds, symbol,
			"commission %.2f exceeds proceeds %.2f plus cash %.2f", commission, value, l.cash)
	}

	l.cash += value - commission
	pos.Shares -= shares
	if pos.Shares == 0 {
		delete(l.positions, symbol)
	}

	return l.append(ts, symbol, domain.SideSell, shares, adj, commission, marks)
}

// append records the trade and checks the accounting invariants afterwards.
func (l *Ledger) append(ts time.Time, symbol string, side domain.Side, shares int64, price, commission float64, marks map[string]float64) (*domain.Trade, error) {
	if err := l.checkInvariants(); err != nil {
		return nil, err
	}
	t := domain.Trade{
		Timestamp:   ts,
		Symbol:      symbol,
		Side:        side,
		Shares:      shares,
		Price:       price,
		Commission:  commission,
		CashAfter:   l.cash,
		EquityAfter: l.Equity(marks),
	}
	l.trades = append(l.trades, t)
	return &t, nil
}

func (l *Ledger) checkInvariants() error {
	if l.cash < 0 {
		return fmt.Errorf("%w: cash %.4f below zero", domain.ErrCorrupt, l.cash)
	}
	for sym, p := range l.positions {
		if p.Shares < 0 {
			return fmt.Errorf("%w: %s holds %d shares", domain.ErrCorrupt, sym, p.Shares)
		}
	}
	return nil
}

func validateIntent(symbol string, sz domain.Sizing, refPrice float64) error {
	if symbol == "" {
		return domain.Validationf("empty symbol")
	}
	if refPrice <= 0 {
		return domain.Validationf("non-positive reference price %v for %s", refPrice, symbol)
	}
	return validateSizing(sz)
}

package broker

import (
	"log/slog"
	"time"

	"qka/internal/domain"
	"qka/internal/event"
	"qka/internal/ledger"
)

// Compile-time interface check.
var _ Broker = (*Simulator)(nil)

// Simulator executes intents immediately against an in-memory ledger at the
// caller-supplied reference price, applying the configured execution policy.
// It tracks current marks by listening to market-data events on the bus and
// publishes a fill or rejection event for every mutating call.
type Simulator struct {
	ledger *ledger.Ledger
	policy ledger.Policy
	bus    *event.Bus
	marks  map[string]float64
	now    time.Time
	log    *slog.Logger
}

// NewSimulator creates a Simulator with the given starting cash and policy,
// wired to the bus for mark updates and fill/rejection events.
func NewSimulator(initialCash float64, p ledger.Policy, bus *event.Bus, log *slog.Logger) (*Simulator, error) {
	led, err := ledger.New(initialCash)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Simulator{
		ledger: led,
		policy: p,
		bus:    bus,
		marks:  make(map[string]float64),
		log:    log.With("component", "broker"),
	}
	bus.Subscribe(event.TypeMarketData, s.onMarketData)
	return s, nil
}

// onMarketData advances the simulator clock and refreshes last-known marks.
func (s *Simulator) onMarketData(e event.Event) {
	md, ok := e.Payload.(event.MarketDataPayload)
	if !ok {
		return
	}
	s.now = md.Timestamp
	for sym, close := range md.Closes {
		s.marks[sym] = close
	}
}

// Buy executes a buy intent at the given reference price.
func (s *Simulator) Buy(symbol string, sz domain.Sizing, price float64) (*domain.Trade, error) {
	t, err := s.ledger.ApplyBuy(s.policy, s.now, symbol, sz, price, s.marks)
	return s.report(domain.SideBuy, symbol, t, err)
}

// Sell executes a sell intent at the given reference price.
func (s *Simulator) Sell(symbol string, sz domain.Sizing, price float64) (*domain.Trade, error) {
	t, err := s.ledger.ApplySell(s.policy, s.now, symbol, sz, price, s.marks)
	return s.report(domain.SideSell, symbol, t, err)
}

// report publishes the outcome of a mutating call. Validation and fatal
// errors pass through unreported; they are defects, not market outcomes.
func (s *Simulator) report(side domain.Side, symbol string, t *domain.Trade, err error) (*domain.Trade, error) {
	if err != nil {
		if rej, ok := domain.AsRejection(err); ok {
			s.log.Debug("order rejected", "symbol", symbol, "side", side, "reason", rej.Reason)
			s.bus.Publish(event.TypeOrderRejected, s.now, event.RejectPayload{
				Symbol: symbol,
				Side:   side,
				Reason: rej.Reason,
				Detail: rej.Detail,
			})
		}
		return nil, err
	}
	s.log.Debug("order filled",
		"symbol", symbol, "side", side, "shares", t.Shares, "price", t.Price)
	s.bus.Publish(event.TypeOrderFilled, t.Timestamp, event.FillPayload{Trade: *t})
	return t, nil
}

// Position returns the held share count for a symbol.
func (s *Simulator) Position(symbol string) int64 {
	p, ok := s.ledger.Position(symbol)
	if !ok {
		return 0
	}
	return p.Shares
}

// Cash returns the available cash balance.
func (s *Simulator) Cash() float64 {
	return s.ledger.Cash()
}

// Equity returns cash plus positions marked at the given prices.
func (s *Simulator) Equity(prices map[string]float64) float64 {
	return s.ledger.Equity(prices)
}

// Trades returns the trade history in execution order.
func (s *Simulator) Trades() []domain.Trade {
	return s.ledger.Trades()
}

// Positions returns a copy of the current position book.
func (s *Simulator) Positions() map[string]domain.Position {
	return s.ledger.Positions()
}

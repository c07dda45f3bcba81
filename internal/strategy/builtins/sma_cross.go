// Package builtins provides built-in strategy implementations that ship with
// qka.
package builtins

import (
	"fmt"
	"time"

	"qka/internal/broker"
	"qka/internal/domain"
	"qka/internal/event"
	"qka/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross is a simple moving average crossover strategy. It buys a fraction
// of available capital when the short SMA crosses above the long SMA and
// liquidates the position when it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	ratio       float64 // fraction of cash committed per entry
	bus         *event.Bus
}

// NewSMACross creates an SMACross with the given short and long periods and
// the fraction of cash committed on each entry. The bus is optional; when
// set, the strategy publishes signal events for its decisions.
func NewSMACross(short, long int, ratio float64, bus *event.Bus) (*SMACross, error) {
	if short <= 0 || long <= short {
		return nil, fmt.Errorf("sma-cross: need 0 < short < long, got %d/%d", short, long)
	}
	if ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("sma-cross: entry ratio %v outside (0, 1]", ratio)
	}
	return &SMACross{shortPeriod: short, longPeriod: long, ratio: ratio, bus: bus}, nil
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// OnBar checks each symbol in the snapshot for a crossover and trades it.
// Rejections are normal market outcomes and are ignored; anything else
// aborts the run.
func (s *SMACross) OnBar(snap *strategy.Snapshot, b broker.Broker, ts time.Time) error {
	for _, sym := range snap.Symbols() {
		// One extra close so the previous step's SMAs are computable.
		closes := snap.Closes(sym, s.longPeriod+1)
		if len(closes) < s.longPeriod+1 {
			continue
		}

		cur := len(closes)
		prevShort := sma(closes[:cur-1], s.shortPeriod)
		prevLong := sma(closes[:cur-1], s.longPeriod)
		curShort := sma(closes, s.shortPeriod)
		curLong := sma(closes, s.longPeriod)

		price := closes[cur-1]
		switch {
		case prevShort <= prevLong && curShort > curLong && b.Position(sym) == 0:
			s.signal(ts, sym, domain.SideBuy, "short sma crossed above long")
			if _, err := b.Buy(sym, domain.Ratio(s.ratio), price); err != nil {
				if _, rejected := domain.AsRejection(err); !rejected {
					return err
				}
			}
		case prevShort >= prevLong && curShort < curLong && b.Position(sym) > 0:
			s.signal(ts, sym, domain.SideSell, "short sma crossed below long")
			if _, err := b.Sell(sym, domain.Ratio(1), price); err != nil {
				if _, rejected := domain.AsRejection(err); !rejected {
					return err
				}
			}
		}
	}
	return nil
}

func (s *SMACross) signal(ts time.Time, symbol string, side domain.Side, note string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.TypeSignal, ts, event.SignalPayload{
		Strategy: s.Name(),
		Symbol:   symbol,
		Side:     side,
		Note:     note,
	})
}

// sma averages the last n values of series.
func sma(series []float64, n int) float64 {
	window := series[len(series)-n:]
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(n)
}

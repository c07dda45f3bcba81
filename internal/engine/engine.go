// Package engine drives the bar-by-bar replay: it aligns the instrument
// series on the union of their timestamps, invokes the strategy once per
// step, coordinates the event bus, records the equity curve, and derives the
// summary statistics at the end.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"qka/internal/broker"
	"qka/internal/domain"
	"qka/internal/event"
	"qka/internal/ledger"
	"qka/internal/strategy"
)

// State is the engine lifecycle state.
type State int

const (
	StateConfigured State = iota
	StateRunning
	StateFinished
)

// Config holds the engine parameters.
type Config struct {
	InitialCash    float64
	Policy         ledger.Policy
	PeriodsPerYear float64 // sampling frequency for annualization; 0 means daily (252)
}

// Engine replays one or more instrument series through a strategy. An
// engine runs exactly once: configured, running, finished. Finished is
// terminal, so two runs can never share leaked state; build a fresh
// instance to rerun.
type Engine struct {
	cfg    Config
	state  State
	series map[string][]domain.Bar
	strat  strategy.Strategy
	bus    *event.Bus
	log    *slog.Logger
	runID  string
}

// EquityPoint is one mark-to-market sample of total portfolio value.
type EquityPoint struct {
	Timestamp time.Time
	Value     float64
}

// New creates an engine in the configured state.
func New(cfg Config, bus *event.Bus, log *slog.Logger) *Engine {
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = 252
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		series: make(map[string][]domain.Bar),
		bus:    bus,
		log:    log.With("component", "engine"),
		runID:  uuid.NewString(),
	}
}

// RunID returns the unique identifier assigned to this engine instance.
func (e *Engine) RunID() string {
	return e.runID
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// AddSeries registers the bar series for one symbol. Timestamps must be
// strictly increasing within the series; series for different symbols need
// not align. Only allowed while configured.
func (e *Engine) AddSeries(symbol string, bars []domain.Bar) error {
	if e.state != StateConfigured {
		return domain.Validationf("cannot add series in state %d", e.state)
	}
	if symbol == "" {
		return domain.Validationf("empty symbol")
	}
	if len(bars) == 0 {
		return domain.Validationf("empty series for %s", symbol)
	}
	if _, dup := e.series[symbol]; dup {
		return domain.Validationf("duplicate series for %s", symbol)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return domain.Validationf("series %s not strictly increasing at index %d (%s)",
				symbol, i, bars[i].Timestamp)
		}
	}
	e.series[symbol] = bars
	return nil
}

// Bind attaches the strategy. Only allowed while configured.
func (e *Engine) Bind(s strategy.Strategy) error {
	if e.state != StateConfigured {
		return domain.Validationf("cannot bind strategy in state %d", e.state)
	}
	if s == nil {
		return domain.Validationf("nil strategy")
	}
	e.strat = s
	return nil
}

// Run replays the full timeline and returns the summary result. It requires
// at least one series and a bound strategy. The context is checked once per
// step; cancellation aborts the run with the context's error.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.state != StateConfigured {
		return nil, domain.Validationf("engine already ran; build a fresh instance")
	}
	if len(e.series) == 0 {
		return nil, domain.Validationf("no instrument series configured")
	}
	if e.strat == nil {
		return nil, domain.Validationf("no strategy bound")
	}
	e.state = StateRunning

	sim, err := broker.NewSimulator(e.cfg.InitialCash, e.cfg.Policy, e.bus, e.log)
	if err != nil {
		return nil, err
	}

	timeline := e.timeline()
	marks := make(map[string]float64)  // last-known close per symbol
	cursor := make(map[string]int, len(e.series))
	var equity []EquityPoint

	e.log.Info("simulation starting",
		"run", e.runID, "strategy", e.strat.Name(),
		"symbols", len(e.series), "steps", len(timeline))
	e.bus.Publish(event.TypeSimulationStart, timeline[0],
		event.RunPayload{RunID: e.runID, Strategy: e.strat.Name()})

	if starter, ok := e.strat.(strategy.Starter); ok {
		if err := starter.OnStart(sim); err != nil {
			return nil, fmt.Errorf("strategy start: %w", err)
		}
	}

	stopped := false
	for _, ts := range timeline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snap, closes := e.buildStep(ts, cursor)
		if snap.Len() == 0 {
			// No series has data at this timestamp; cannot happen when the
			// timeline is the union of series timestamps, but the contract
			// is to skip such a step entirely.
			continue
		}
		for sym, c := range closes {
			marks[sym] = c
		}

		e.bus.Publish(event.TypeMarketData, ts, event.MarketDataPayload{
			Timestamp: ts,
			Closes:    closes,
		})

		if err := e.strat.OnBar(snap, sim, ts); err != nil {
			if errors.Is(err, strategy.ErrStop) {
				e.log.Info("strategy requested stop", "run", e.runID, "at", ts)
				stopped = true
			} else {
				return nil, fmt.Errorf("strategy step at %s: %w", ts, err)
			}
		}

		e.bus.Pump()

		equity = append(equity, EquityPoint{Timestamp: ts, Value: sim.Equity(marks)})
		if stopped {
			break
		}
	}

	if finisher, ok := e.strat.(strategy.Finisher); ok {
		if err := finisher.OnEnd(sim); err != nil {
			return nil, fmt.Errorf("strategy end: %w", err)
		}
	}

	last := equity[len(equity)-1].Timestamp
	e.bus.Publish(event.TypeSimulationEnd, last,
		event.RunPayload{RunID: e.runID, Strategy: e.strat.Name()})
	e.bus.Pump()

	e.state = StateFinished
	res := computeResult(e.runID, e.strat.Name(), e.cfg, equity, sim.Trades())
	e.log.Info("simulation finished",
		"run", e.runID,
		"finalEquity", fmt.Sprintf("%.2f", res.FinalEquity),
		"totalReturn", fmt.Sprintf("%.4f", res.TotalReturn),
		"trades", res.TotalTrades)
	return res, nil
}

// timeline returns the sorted union of all series timestamps.
func (e *Engine) timeline() []time.Time {
	seen := make(map[int64]time.Time)
	for _, bars := range e.series {
		for _, b := range bars {
			seen[b.Timestamp.UnixNano()] = b.Timestamp
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// buildStep assembles the snapshot for one timestamp, advancing per-symbol
// cursors. A symbol without a bar at ts is simply absent from the snapshot:
// a gap means no update, never a zero.
func (e *Engine) buildStep(ts time.Time, cursor map[string]int) (*strategy.Snapshot, map[string]float64) {
	bars := make(map[string]domain.Bar)
	history := make(map[string][]domain.Bar)
	closes := make(map[string]float64)

	for sym, series := range e.series {
		i := cursor[sym]
		if i >= len(series) || !series[i].Timestamp.Equal(ts) {
			continue
		}
		cursor[sym] = i + 1
		bars[sym] = series[i]
		history[sym] = series[:i+1]
		closes[sym] = series[i].Close
	}
	return strategy.NewSnapshot(ts, bars, history), closes
}

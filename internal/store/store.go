// Package store defines storage interfaces for bar data feeding the engine
// and for persisting finished backtest results.
package store

import (
	"context"
	"time"

	"qka/internal/domain"
	"qka/internal/engine"
)

// BarStore persists and retrieves daily OHLCV bar data. The engine treats
// its output as read-only input.
type BarStore interface {
	// WriteBars persists a batch of bars.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end],
	// ordered by timestamp.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunSummary is one row of a persisted backtest run.
type RunSummary struct {
	RunID       string
	Strategy    string
	Start       time.Time
	End         time.Time
	InitialCash float64
	FinalEquity float64
	TotalReturn float64
	MaxDrawdown float64
	TotalTrades int
	WinRate     float64
	SavedAt     time.Time
}

// ResultStore persists finished backtest results so reports can be
// regenerated without re-running.
type ResultStore interface {
	// SaveResult persists a run's summary, trade ledger, and equity curve.
	SaveResult(ctx context.Context, res *engine.Result) error

	// GetResult reloads a persisted run by ID.
	GetResult(ctx context.Context, runID string) (*engine.Result, error)

	// ListRuns returns summaries of all persisted runs, newest first.
	ListRuns(ctx context.Context) ([]RunSummary, error)
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"qka/internal/domain"
	"qka/internal/engine"
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	strategy     TEXT NOT NULL,
	start_ts     INTEGER NOT NULL,
	end_ts       INTEGER NOT NULL,
	initial_cash REAL NOT NULL,
	final_equity REAL NOT NULL,
	total_return REAL NOT NULL,
	annual_return REAL NOT NULL,
	volatility   REAL NOT NULL,
	sharpe       REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	total_commission REAL NOT NULL,
	round_trips  INTEGER NOT NULL,
	wins         INTEGER NOT NULL,
	win_rate     REAL NOT NULL,
	saved_at     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_trades (
	run_id       TEXT NOT NULL REFERENCES runs(run_id),
	seq          INTEGER NOT NULL,
	ts           INTEGER NOT NULL,
	symbol       TEXT NOT NULL,
	side         TEXT NOT NULL,
	shares       INTEGER NOT NULL,
	price        REAL NOT NULL,
	commission   REAL NOT NULL,
	cash_after   REAL NOT NULL,
	equity_after REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS run_equity (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	seq    INTEGER NOT NULL,
	ts     INTEGER NOT NULL,
	value  REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the result schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating result schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveResult persists the run summary, its trades, and its equity curve in
// one transaction.
func (s *SQLiteStore) SaveResult(ctx context.Context, res *engine.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, strategy, start_ts, end_ts, initial_cash,
			final_equity, total_return, annual_return, volatility, sharpe,
			max_drawdown, total_trades, total_commission, round_trips, wins,
			win_rate, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Strategy, res.Start.UnixMilli(), res.End.UnixMilli(),
		res.InitialCash, res.FinalEquity, res.TotalReturn, res.AnnualReturn,
		res.Volatility, res.Sharpe, res.MaxDrawdown, res.TotalTrades,
		res.TotalCommission, res.RoundTrips, res.Wins, res.WinRate,
		time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", res.RunID, err)
	}

	for i, t := range res.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_trades (run_id, seq, ts, symbol, side, shares,
				price, commission, cash_after, equity_after)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, i, t.Timestamp.UnixMilli(), t.Symbol, string(t.Side),
			t.Shares, t.Price, t.Commission, t.CashAfter, t.EquityAfter)
		if err != nil {
			return fmt.Errorf("inserting trade %d of run %s: %w", i, res.RunID, err)
		}
	}

	for i, p := range res.EquityCurve {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_equity (run_id, seq, ts, value)
			VALUES (?, ?, ?, ?)`,
			res.RunID, i, p.Timestamp.UnixMilli(), p.Value)
		if err != nil {
			return fmt.Errorf("inserting equity point %d of run %s: %w", i, res.RunID, err)
		}
	}

	return tx.Commit()
}

// GetResult reloads a persisted run by ID.
func (s *SQLiteStore) GetResult(ctx context.Context, runID string) (*engine.Result, error) {
	res := &engine.Result{RunID: runID}
	var startMs, endMs int64
	err := s.db.QueryRowContext(ctx, `
		SELECT strategy, start_ts, end_ts, initial_cash, final_equity,
			total_return, annual_return, volatility, sharpe, max_drawdown,
			total_trades, total_commission, round_trips, wins, win_rate
		FROM runs WHERE run_id = ?`, runID).Scan(
		&res.Strategy, &startMs, &endMs, &res.InitialCash, &res.FinalEquity,
		&res.TotalReturn, &res.AnnualReturn, &res.Volatility, &res.Sharpe,
		&res.MaxDrawdown, &res.TotalTrades, &res.TotalCommission,
		&res.RoundTrips, &res.Wins, &res.WinRate)
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	res.Start = time.UnixMilli(startMs).UTC()
	res.End = time.UnixMilli(endMs).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, symbol, side, shares, price, commission, cash_after, equity_after
		FROM run_trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t domain.Trade
		var ms int64
		var side string
		if err := rows.Scan(&ms, &t.Symbol, &side, &t.Shares, &t.Price,
			&t.Commission, &t.CashAfter, &t.EquityAfter); err != nil {
			return nil, err
		}
		t.Timestamp = time.UnixMilli(ms).UTC()
		t.Side = domain.Side(side)
		res.Trades = append(res.Trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	eqRows, err := s.db.QueryContext(ctx, `
		SELECT ts, value FROM run_equity WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer eqRows.Close()
	for eqRows.Next() {
		var ms int64
		var v float64
		if err := eqRows.Scan(&ms, &v); err != nil {
			return nil, err
		}
		res.EquityCurve = append(res.EquityCurve, engine.EquityPoint{
			Timestamp: time.UnixMilli(ms).UTC(),
			Value:     v,
		})
	}
	return res, eqRows.Err()
}

// ListRuns returns summaries of all persisted runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, strategy, start_ts, end_ts, initial_cash, final_equity,
			total_return, max_drawdown, total_trades, win_rate, saved_at
		FROM runs ORDER BY saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var startMs, endMs, savedMs int64
		if err := rows.Scan(&r.RunID, &r.Strategy, &startMs, &endMs,
			&r.InitialCash, &r.FinalEquity, &r.TotalReturn, &r.MaxDrawdown,
			&r.TotalTrades, &r.WinRate, &savedMs); err != nil {
			return nil, err
		}
		r.Start = time.UnixMilli(startMs).UTC()
		r.End = time.UnixMilli(endMs).UTC()
		r.SavedAt = time.UnixMilli(savedMs).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

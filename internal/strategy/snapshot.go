package strategy

import (
	"sort"
	"time"

	"qka/internal/domain"
)

// Snapshot is the read-only market view handed to a strategy for one time
// step. A symbol appears only if it has a bar at this step; a symbol absent
// from the snapshot had no update (trading suspension), never a zero price.
// History slices share backing arrays with the engine's series and must not
// be mutated.
type Snapshot struct {
	timestamp time.Time
	bars      map[string]domain.Bar
	history   map[string][]domain.Bar // bars up to and including this step
}

// NewSnapshot builds a snapshot for one step. bars holds the current bar per
// symbol; history holds, per symbol, all bars up to and including this step
// in time order.
func NewSnapshot(ts time.Time, bars map[string]domain.Bar, history map[string][]domain.Bar) *Snapshot {
	return &Snapshot{timestamp: ts, bars: bars, history: history}
}

// Timestamp returns the step's timestamp.
func (s *Snapshot) Timestamp() time.Time {
	return s.timestamp
}

// Symbols returns the symbols with a bar at this step, sorted for
// deterministic iteration.
func (s *Snapshot) Symbols() []string {
	syms := make([]string, 0, len(s.bars))
	for sym := range s.bars {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Len returns the number of symbols with a bar at this step.
func (s *Snapshot) Len() int {
	return len(s.bars)
}

// Bar returns the current bar for a symbol, if present this step.
func (s *Snapshot) Bar(symbol string) (domain.Bar, bool) {
	b, ok := s.bars[symbol]
	return b, ok
}

// Close returns the current close for a symbol, if present this step.
func (s *Snapshot) Close(symbol string) (float64, bool) {
	b, ok := s.bars[symbol]
	if !ok {
		return 0, false
	}
	return b.Close, true
}

// History returns up to n most recent bars for the symbol, ending at the
// current step, oldest first. n <= 0 returns the full known history.
func (s *Snapshot) History(symbol string, n int) []domain.Bar {
	h := s.history[symbol]
	if n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	return h
}

// Closes returns up to n most recent closing prices for the symbol, oldest
// first. Most rolling statistics want exactly this window.
func (s *Snapshot) Closes(symbol string, n int) []float64 {
	h := s.History(symbol, n)
	closes := make([]float64, len(h))
	for i, b := range h {
		closes[i] = b.Close
	}
	return closes
}

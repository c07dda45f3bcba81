package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"qka/internal/domain"
)

// testPolicy has easy numbers: 0.1% commission with a floor of 5, no
// slippage, 100-share lots.
func testPolicy() Policy {
	return Policy{
		CommissionRate: 0.001,
		MinCommission:  5,
		SlippageRate:   0,
		LotSize:        100,
	}
}

func ts(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestNewRejectsNonPositiveCash(t *testing.T) {
	for _, cash := range []float64{0, -100} {
		if _, err := New(cash); !domain.IsValidation(err) {
			t.Errorf("New(%v) error = %v, want ValidationError", cash, err)
		}
	}
}

func TestApplyBuyUpdatesCashAndPosition(t *testing.T) {
	l, _ := New(100_000)
	p := testPolicy()

	tr, err := l.ApplyBuy(p, ts(1), "600000", domain.Shares(200), 10, nil)
	if err != nil {
		t.Fatalf("ApplyBuy: %v", err)
	}
	if tr.Shares != 200 || tr.Side != domain.SideBuy {
		t.Errorf("trade = %+v, want 200 shares buy", tr)
	}
	// value 2000, commission max(5, 2) = 5.
	approx(t, "commission", tr.Commission, 5)
	approx(t, "cash", l.Cash(), 97_995)

	pos, ok := l.Position("600000")
	if !ok {
		t.Fatal("position missing after buy")
	}
	if pos.Shares != 200 {
		t.Errorf("pos.Shares = %d, want 200", pos.Shares)
	}
	approx(t, "pos.AvgCost", pos.AvgCost, 10)
}

func TestApplyBuyVolumeWeightedAverageCost(t *testing.T) {
	l, _ := New(100_000)
	p := testPolicy()

	if _, err := l.ApplyBuy(p, ts(1), "600000", domain.Shares(200), 10, nil); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	if _, err := l.ApplyBuy(p, ts(2), "600000", domain.Shares(200), 20, nil); err != nil {
		t.Fatalf("second buy: %v", err)
	}

	pos, _ := l.Position("600000")
	if pos.Shares != 400 {
		t.Errorf("pos.Shares = %d, want 400", pos.Shares)
	}
	// (200*10 + 200*20) / 400 = 15
	approx(t, "pos.AvgCost", pos.AvgCost, 15)
}

func TestApplySellKeepsAverageCost(t *testing.T) {
	l, _ := New(100_000)
	p := testPolicy()

	l.ApplyBuy(p, ts(1), "600000", domain.Shares(200), 10, nil)
	l.ApplyBuy(p, ts(2), "600000", domain.Shares(200), 20, nil)

	if _, err := l.ApplySell(p, ts(3), "600000", domain.Shares(200), 20, nil); err != nil {
		t.Fatalf("partial sell: %v", err)
	}

	pos, ok := l.Position("600000")
	if !ok {
		t.Fatal("position missing after partial sell")
	}
	if pos.Shares != 200 {
		t.Errorf("pos.Shares = %d, want 200", pos.Shares)
	}
	approx(t, "pos.AvgCost after sell", pos.AvgCost, 15)
}

func TestApplySellPurgesZeroPosition(t *testing.T) {
	l, _ := New(100_000)
	p := testPolicy()

	l.ApplyBuy(p, ts(1), "600000", domain.Shares(300), 10, nil)
	if _, err := l.ApplySell(p, ts(2), "600000", domain.Ratio(1), 10, nil); err != nil {
		t.Fatalf("liquidating sell: %v", err)
	}
	if _, ok := l.Position("600000"); ok {
		t.Error("zero position retained, want purged")
	}
	if len(l.Positions()) != 0 {
		t.Errorf("Positions() has %d entries, want 0", len(l.Positions()))
	}
}

func TestRatioBuyResolution(t *testing.T) {
	l, _ := New(100_000)
	p := testPolicy()

	// target = 50000, price 10 -> 5000 shares, already lot-aligned.
	tr, err := l.ApplyBuy(p, ts(1), "600000", domain.Ratio(0.5), 10, nil)
	if err != nil {
		t.Fatalf("ratio buy: %v", err)
	}
	if tr.Shares != 5000 {
		t.Errorf("shares = %d, want 5000", tr.Shares)
	}
}

func TestRatioResolutionIsDeterministic(t *testing.T) {
	p := testPolicy()
	sz := domain.Ratio(0.37)
	a := p.ResolveBuyShares(sz, 12.34, 98_765.43)
	b := p.ResolveBuyShares(sz, 12.34, 98_765.43)
	if a != b {
		t.Errorf("ResolveBuyShares not deterministic: %d vs %d", a, b)
	}
	if a%p.LotSize != 0 {
		t.Errorf("resolved shares %d not lot-aligned", a)
	}
}

func TestLotRoundingAlwaysDown(t *testing.T) {
	p := testPolicy()
	cases := []struct {
		in, want int64
	}{
		{0, 0}, {99, 0}, {100, 100}, {199, 100}, {250, 200}, {1000, 1000},
	}
	for _, c := range cases {
		if got := p.RoundLot(c.in); got != c.want {
			t.Errorf("RoundLot(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestBuyRejectsInsufficientFunds(t *testing.T) {
	l, _ := New(500)
	p := testPolicy()

	_, err := l.ApplyBuy(p, ts(1), "600000", domain.Shares(100), 10, nil)
	rej, ok := domain.AsRejection(err)
	if !ok || rej.Reason != domain.RejectInsufficientFunds {
		t.Fatalf("error = %v, want InsufficientFunds rejection", err)
	}
	// Rejected order leaves the ledger untouched.
	approx(t, "cash after rejection", l.Cash(), 500)
	if len(l.Trades()) != 0 {
		t.Errorf("trade history has %d entries after rejection, want 0", len(l.Trades()))
	}
}

func TestBuyRejectsWhenRatioResolvesToZeroLots(t *testing.T) {
	l, _ := New(100)
	p := testPolicy()

	_, err := l.ApplyBuy(p, ts(1), "600000", domain.Ratio(0.5), 10, nil)
	rej, ok := domain.AsRejection(err)
	if !ok || rej.Reason != domain.RejectInsufficientFunds {
		t.Fatalf("error = %v, want InsufficientFunds rejection", err)
	}
}

func TestSellRejectsNoPosition(t *testing.T) {
	l, _ := New(100_000)
	p := testPolicy()

	_, err := l.ApplySell(p, ts(1), "600000", domain.Shares(100), 10, nil)
	rej, ok := domain.AsRejection(err)
	if !ok || rej.Reason != domain.RejectNoPosition {
		t.Fatalf("error = %v, want NoPosition rejection", err)
	}
}

func TestSellRejectsInsufficientShares(t *testing.T) {
	l, _ := New(100_000)
	p := testPolicy()

	l.ApplyBuy(p, ts(1), "600000", domain.Shares(100), 10, nil)
	_, err := l.ApplySell(p, ts(2), "600000", domain.Shares(200), 10, nil)
	rej, ok := domain.AsRejection(err)
	if !ok || rej.Reason != domain.RejectInsufficientShares {
		t.Fatalf("error = %v, want InsufficientShares rejection", err)
	}
	// Never partially filled: holding is intact.
	pos, _ := l.Position("600000")
	if pos.Shares != 100 {
		t.Errorf("pos.Shares = %d after rejected oversell, want 100", pos.Shares)
	}
}

func TestSellRatioResolvesAgainstHolding(t *testing.T) {
	l, _ := New(100_000)
	p := testPolicy()

	l.ApplyBuy(p, ts(1), "600000", domain.Shares(300), 10, nil)

	// 0.5 of 300 = 150, lot-rounded down to 100.
	tr, err := l.ApplySell(p, ts(2), "600000", domain.Ratio(0.5), 10, nil)
	if err != nil {
		t.Fatalf("ratio sell: %v", err)
	}
	if tr.Shares != 100 {
		t.Errorf("shares = %d, want 100", tr.Shares)
	}
	pos, _ := l.Position("600000")
	if pos.Shares != 200 {
		t.Errorf("remaining = %d, want 200", pos.Shares)
	}
}

func TestSellRejectsWhenCommissionExceedsProceeds(t *testing.T) {
	p := testPolicy()

	// Drain cash buying commission-free, then attempt a sell whose proceeds
	// are below the commission floor: 100 shares at 0.01 = 1.00 value
	// against a 5.00 minimum commission.
	l, _ := New(2_000)
	if _, err := l.ApplyBuy(Policy{LotSize: 100}, ts(1), "600000", domain.Shares(100), 19.99, nil); err != nil {
		t.Fatalf("setup buy: %v", err)
	}
	_, err := l.ApplySell(p, ts(2), "600000", domain.Shares(100), 0.01, nil)
	rej, ok := domain.AsRejection(err)
	if !ok || rej.Reason != domain.RejectInsufficientFunds {
		t.Fatalf("error = %v, want InsufficientFunds rejection", err)
	}
	if l.Cash() < 0 {
		t.Errorf("cash = %v, must never go negative", l.Cash())
	}
}

func TestSlippageAdjustsFillPrice(t *testing.T) {
	p := testPolicy()
	p.SlippageRate = 0.01

	approx(t, "BuyPrice", p.BuyPrice(100), 101)
	approx(t, "SellPrice", p.SellPrice(100), 99)

	l, _ := New(100_000)
	tr, err := l.ApplyBuy(p, ts(1), "600000", domain.Shares(100), 100, nil)
	if err != nil {
		t.Fatalf("buy with slippage: %v", err)
	}
	approx(t, "fill price", tr.Price, 101)
}

func TestCommissionFloor(t *testing.T) {
	p := testPolicy()
	approx(t, "small fill commission", p.Commission(100), 5)       // 0.1 < 5
	approx(t, "large fill commission", p.Commission(100_000), 100) // 100 > 5
}

func TestValidationErrors(t *testing.T) {
	l, _ := New(100_000)
	p := testPolicy()

	cases := []struct {
		name string
		fn   func() error
	}{
		{"empty symbol", func() error {
			_, err := l.ApplyBuy(p, ts(1), "", domain.Shares(100), 10, nil)
			return err
		}},
		{"non-positive price", func() error {
			_, err := l.ApplyBuy(p, ts(1), "600000", domain.Shares(100), 0, nil)
			return err
		}},
		{"negative shares", func() error {
			_, err := l.ApplyBuy(p, ts(1), "600000", domain.Shares(-100), 10, nil)
			return err
		}},
		{"ratio above one", func() error {
			_, err := l.ApplyBuy(p, ts(1), "600000", domain.Ratio(1.5), 10, nil)
			return err
		}},
		{"zero sizing", func() error {
			_, err := l.ApplyBuy(p, ts(1), "600000", domain.Sizing{}, 10, nil)
			return err
		}},
	}
	for _, c := range cases {
		if err := c.fn(); !domain.IsValidation(err) {
			t.Errorf("%s: error = %v, want ValidationError", c.name, err)
		}
	}
}

// TestConservation checks that bookkeeping alone creates and destroys no
// value: with zero slippage, equity marked at the trade price drops by
// exactly the commission on every fill.
func TestConservation(t *testing.T) {
	l, _ := New(100_000)
	p := testPolicy()
	marks := map[string]float64{"600000": 10}

	l.ApplyBuy(p, ts(1), "600000", domain.Shares(100), 10, marks)
	// value 1000, commission 5.
	approx(t, "equity after buy", l.Equity(marks), 100_000-5)

	l.ApplySell(p, ts(2), "600000", domain.Shares(100), 10, marks)
	approx(t, "equity after round trip", l.Equity(marks), 100_000-10)
}

func TestTradeRecordsCashAndEquityAfter(t *testing.T) {
	l, _ := New(100_000)
	p := testPolicy()
	marks := map[string]float64{"600000": 10}

	tr, _ := l.ApplyBuy(p, ts(1), "600000", domain.Shares(100), 10, marks)
	approx(t, "CashAfter", tr.CashAfter, 98_995)
	approx(t, "EquityAfter", tr.EquityAfter, 99_995)

	if len(l.Trades()) != 1 {
		t.Fatalf("trade history length = %d, want 1", len(l.Trades()))
	}
}

func TestCorruptionIsNotARejection(t *testing.T) {
	if errors.Is(domain.Reject(domain.RejectNoPosition, "600000", "x"), domain.ErrCorrupt) {
		t.Error("rejection must not match ErrCorrupt")
	}
}

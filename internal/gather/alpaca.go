// Package gather fetches historical daily bars from the Alpaca market-data
// API into the local bar store. It is a thin I/O collaborator: all fetching
// completes before a simulation starts, and the engine only ever sees the
// store's output.
package gather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"qka/internal/domain"
	"qka/internal/store"
	"qka/internal/util"
)

// DailyBarGatherer fetches daily OHLCV bars for a symbol list via the Alpaca
// market-data API and writes them to the bar store.
type DailyBarGatherer struct {
	client    *marketdata.Client
	store     store.BarStore
	batchSize int
	limiter   *util.RateLimiter
	log       *slog.Logger
}

// NewDailyBarGatherer creates a gatherer with the given Alpaca credentials
// and target store. batchSize bounds symbols per API call; ratePerMin bounds
// API calls per minute.
func NewDailyBarGatherer(apiKey, apiSecret, dataURL string, s store.BarStore, batchSize, ratePerMin int) *DailyBarGatherer {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	if ratePerMin <= 0 {
		ratePerMin = 200
	}
	return &DailyBarGatherer{
		client:    marketdata.NewClient(opts),
		store:     s,
		batchSize: batchSize,
		limiter:   util.NewRateLimiter(ratePerMin),
		log:       slog.Default().With("gatherer", "daily"),
	}
}

// Run fetches daily bars for all symbols in [start, end] and writes them to
// the store. Batches that fail after retries abort the run.
func (g *DailyBarGatherer) Run(ctx context.Context, symbols []string, start, end time.Time) error {
	for i := 0; i < len(symbols); i += g.batchSize {
		batch := symbols[i:min(i+g.batchSize, len(symbols))]

		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}

		var multiBars map[string][]marketdata.Bar
		err := util.Retry(ctx, 3, time.Second, func() error {
			var err error
			multiBars, err = g.client.GetMultiBars(batch, marketdata.GetBarsRequest{
				TimeFrame: marketdata.OneDay,
				Start:     start,
				End:       end,
				Feed:      "sip",
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("fetching bars for batch starting at %s: %w", batch[0], err)
		}

		var bars []domain.Bar
		for symbol, alpacaBars := range multiBars {
			for _, b := range alpacaBars {
				bars = append(bars, domain.Bar{
					Symbol:    symbol,
					Timestamp: b.Timestamp.UTC(),
					Open:      b.Open,
					High:      b.High,
					Low:       b.Low,
					Close:     b.Close,
					Volume:    int64(b.Volume),
				})
			}
		}

		if err := g.store.WriteBars(ctx, bars); err != nil {
			return fmt.Errorf("writing bars: %w", err)
		}
		g.log.Info("batch stored", "symbols", len(batch), "bars", len(bars))
	}
	return nil
}

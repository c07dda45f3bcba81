// Command qka-gather fetches historical daily bars from the Alpaca
// market-data API into the local Parquet bar store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"qka/internal/config"
	"qka/internal/gather"
	"qka/internal/store"
	"qka/internal/util"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config (built-in defaults when empty)")
		symbolsArg = flag.String("symbols", "", "comma-separated symbols (required)")
		startArg   = flag.String("start", "", "start date YYYY-MM-DD (required)")
		endArg     = flag.String("end", "", "end date YYYY-MM-DD (defaults to today)")
	)
	flag.Parse()

	if *symbolsArg == "" || *startArg == "" {
		flag.Usage()
		os.Exit(1)
	}

	var cfg *config.Config
	var err error
	if *configPath == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	log := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(log)

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		fmt.Fprintln(os.Stderr, "missing Alpaca credentials (set APCA_API_KEY_ID / APCA_API_SECRET_KEY)")
		os.Exit(1)
	}

	start, err := time.Parse("2006-01-02", *startArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -start: %v\n", err)
		os.Exit(1)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if *endArg != "" {
		if end, err = time.Parse("2006-01-02", *endArg); err != nil {
			fmt.Fprintf(os.Stderr, "bad -end: %v\n", err)
			os.Exit(1)
		}
	}

	var symbols []string
	for _, s := range strings.Split(*symbolsArg, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	g := gather.NewDailyBarGatherer(
		cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
		bars, cfg.Gather.BatchSize, cfg.Gather.RateLimitPerMin)

	if err := g.Run(ctx, symbols, start, end); err != nil {
		fmt.Fprintf(os.Stderr, "gather failed: %v\n", err)
		os.Exit(1)
	}
	log.Info("gather complete", "symbols", len(symbols))
}

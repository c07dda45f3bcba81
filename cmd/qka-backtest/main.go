// Command qka-backtest replays historical daily bars through a registered
// strategy and reports the resulting performance statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"qka/internal/config"
	"qka/internal/engine"
	"qka/internal/event"
	"qka/internal/ledger"
	"qka/internal/store"
	"qka/internal/strategy"
	"qka/internal/strategy/builtins"
	"qka/internal/util"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config (built-in defaults when empty)")
		stratName  = flag.String("strategy", "sma-cross", "registered strategy name")
		symbolsArg = flag.String("symbols", "", "comma-separated symbols (required)")
		startArg   = flag.String("start", "", "start date YYYY-MM-DD (required)")
		endArg     = flag.String("end", "", "end date YYYY-MM-DD (required)")
		cashArg    = flag.Float64("cash", 0, "initial cash override")
		shortArg   = flag.Int("short", 5, "sma-cross short period")
		longArg    = flag.Int("long", 20, "sma-cross long period")
		ratioArg   = flag.Float64("ratio", 0.5, "sma-cross entry ratio of cash")
		noSave     = flag.Bool("no-save", false, "skip persisting the result to SQLite")
	)
	flag.Parse()

	if *symbolsArg == "" || *startArg == "" || *endArg == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if *cashArg > 0 {
		cfg.Backtest.InitialCash = *cashArg
	}

	log := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(log)

	start, err := time.Parse("2006-01-02", *startArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -start: %v\n", err)
		os.Exit(1)
	}
	end, err := time.Parse("2006-01-02", *endArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -end: %v\n", err)
		os.Exit(1)
	}

	bus := event.New(log)

	registry := strategy.NewRegistry()
	smaCross, err := builtins.NewSMACross(*shortArg, *longArg, *ratioArg, bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building sma-cross: %v\n", err)
		os.Exit(1)
	}
	registry.Register(smaCross)

	strat, ok := registry.Get(*stratName)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown strategy %q; available: %s\n",
			*stratName, strings.Join(registry.List(), ", "))
		os.Exit(1)
	}

	eng := engine.New(engine.Config{
		InitialCash: cfg.Backtest.InitialCash,
		Policy: ledger.Policy{
			CommissionRate: cfg.Backtest.CommissionRate,
			MinCommission:  cfg.Backtest.MinCommission,
			SlippageRate:   cfg.Backtest.SlippageRate,
			LotSize:        cfg.Backtest.LotSize,
		},
		PeriodsPerYear: cfg.Backtest.PeriodsPerYear,
	}, bus, log)

	ctx := context.Background()
	bars := store.NewParquetStore(cfg.Storage.DataDir)
	for _, symbol := range strings.Split(*symbolsArg, ",") {
		symbol = strings.TrimSpace(symbol)
		series, err := bars.ReadBars(ctx, symbol, start, end)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading bars for %s: %v\n", symbol, err)
			os.Exit(1)
		}
		if len(series) == 0 {
			fmt.Fprintf(os.Stderr, "no bars for %s in %s..%s (run qka-gather first)\n",
				symbol, *startArg, *endArg)
			os.Exit(1)
		}
		if err := eng.AddSeries(symbol, series); err != nil {
			fmt.Fprintf(os.Stderr, "adding series %s: %v\n", symbol, err)
			os.Exit(1)
		}
	}
	if err := eng.Bind(strat); err != nil {
		fmt.Fprintf(os.Stderr, "binding strategy: %v\n", err)
		os.Exit(1)
	}

	res, err := eng.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}

	printReport(res, bus.Stats())

	if !*noSave {
		results, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening result store: %v\n", err)
			os.Exit(1)
		}
		defer results.Close()
		if err := results.SaveResult(ctx, res); err != nil {
			fmt.Fprintf(os.Stderr, "saving result: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("saved run %s to %s\n", res.RunID, cfg.Storage.SQLitePath)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func printReport(res *engine.Result, stats event.Stats) {
	fmt.Printf("run            %s (%s)\n", res.RunID, res.Strategy)
	fmt.Printf("period         %s .. %s (%d steps)\n",
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"), len(res.EquityCurve))
	fmt.Printf("initial cash   %14.2f\n", res.InitialCash)
	fmt.Printf("final equity   %14.2f\n", res.FinalEquity)
	fmt.Printf("total return   %13.2f%%\n", res.TotalReturn*100)
	fmt.Printf("annual return  %13.2f%%\n", res.AnnualReturn*100)
	fmt.Printf("volatility     %13.2f%%\n", res.Volatility*100)
	fmt.Printf("sharpe         %14.2f\n", res.Sharpe)
	fmt.Printf("max drawdown   %13.2f%%\n", res.MaxDrawdown*100)
	fmt.Printf("trades         %14d (commission %.2f)\n", res.TotalTrades, res.TotalCommission)
	fmt.Printf("round trips    %14d (win rate %.1f%%)\n", res.RoundTrips, res.WinRate*100)
	fmt.Printf("events         %14d published, %d handler errors\n",
		stats.Published, stats.HandlerErrors)
}

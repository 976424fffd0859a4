package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"MarketLens/internal/di"
	"MarketLens/pkg/config"
	"MarketLens/pkg/util"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	dateFlag := flag.String("date", "", "catch up through this date YYYY-MM-DD, default today (UTC)")
	daysFlag := flag.Int("days", 365, "history window for symbols with no stored bars")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	lgr, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	market, err := di.ProvideMarketData(cfg, lgr)
	if err != nil {
		log.Fatalf("marketdata init failed: %v", err)
	}
	if market == nil {
		log.Fatal("marketdata is disabled in config, nothing to ingest")
	}

	store, err := di.ProvideStore(cfg, lgr)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer store.Close()

	ingest, err := di.ProvideIngestUseCase(market, store, store, di.ProvideMetrics(), lgr)
	if err != nil {
		log.Fatalf("ingest init failed: %v", err)
	}

	end := util.Day(time.Now().UTC())
	if *dateFlag != "" {
		if end, err = util.ParseDate(*dateFlag); err != nil {
			log.Fatalf("invalid date: %v", err)
		}
	}

	res, err := ingest.Backfill(context.Background(), end, *daysFlag)
	if err != nil {
		log.Fatalf("backfill failed: %v", err)
	}

	log.Printf("backfill run_id=%s symbols=%d fetched=%d skipped=%d bars=%d elapsed_ms=%d",
		res.RunID, res.Symbols, res.Fetched, res.Skipped, res.BarsWritten, res.ElapsedMS)

	if len(res.Errors) > 0 {
		for sym, msg := range res.Errors {
			log.Printf("backfill error: %s: %s", sym, msg)
		}
		os.Exit(1)
	}
}

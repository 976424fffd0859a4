package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"MarketLens/internal/di"
	"MarketLens/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	symbolsFlag := flag.String("symbols", "", "comma separated symbols, empty scans every stored symbol")
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

	store, err := di.ProvideStore(cfg, lgr)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer store.Close()

	cacheSvc, err := di.ProvideCache(cfg)
	if err != nil {
		log.Fatalf("cache init failed: %v", err)
	}

	publisher, err := di.ProvideEventPublisher(cfg)
	if err != nil {
		log.Fatalf("kafka init failed: %v", err)
	}
	if publisher != nil {
		defer publisher.Close()
	}

	scan, err := di.ProvideScanUseCase(cfg, store, publisher, cacheSvc, di.ProvideMetrics(), lgr, di.ProvideWindowParams(cfg))
	if err != nil {
		log.Fatalf("scan init failed: %v", err)
	}

	var symbols []string
	if *symbolsFlag != "" {
		for _, s := range strings.Split(*symbolsFlag, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
	}

	res, err := scan.Run(context.Background(), symbols)
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}

	log.Printf("scan run_id=%s scanned=%d skipped=%d events=%d elapsed_ms=%d",
		res.RunID, res.Scanned, res.Skipped, res.EventsWritten, res.ElapsedMS)

	if len(res.Errors) > 0 {
		for sym, msg := range res.Errors {
			log.Printf("scan error: %s: %s", sym, msg)
		}
		os.Exit(1)
	}
}

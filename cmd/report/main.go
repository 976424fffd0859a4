package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"MarketLens/internal/di"
	"MarketLens/internal/render"
	"MarketLens/pkg/config"
	"MarketLens/pkg/util"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	dateFlag := flag.String("date", "", "report date YYYY-MM-DD, default today (UTC)")
	daysFlag := flag.Int("days", 0, "trailing window length, 0 skips the trailing report")
	dirFlag := flag.String("dir", "", "output directory, default from config")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	date := util.Day(time.Now().UTC())
	if *dateFlag != "" {
		if date, err = util.ParseDate(*dateFlag); err != nil {
			log.Fatalf("bad date: %v", err)
		}
	}
	dir := cfg.Report.OutputDir
	if *dirFlag != "" {
		dir = *dirFlag
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

	mtr := di.ProvideMetrics()
	params := di.ProvideReportParams(cfg)

	daily, err := di.ProvideDailyReportUseCase(store, store, mtr, lgr, params)
	if err != nil {
		log.Fatalf("daily report init failed: %v", err)
	}
	trailing, err := di.ProvideTrailingReportUseCase(store, store, mtr, lgr, params)
	if err != nil {
		log.Fatalf("trailing report init failed: %v", err)
	}

	ctx := context.Background()

	rep, err := daily.Build(ctx, date)
	if err != nil {
		log.Fatalf("daily report failed: %v", err)
	}
	text := render.DailyText(rep)
	fmt.Print(text)
	path, err := render.WriteFile(dir, render.DailyFileName(rep.ReportDate), text)
	if err != nil {
		log.Fatalf("write report: %v", err)
	}
	log.Printf("daily report written to %s", path)

	if *daysFlag > 0 {
		trep, err := trailing.Build(ctx, date, *daysFlag)
		if err != nil {
			log.Fatalf("trailing report failed: %v", err)
		}
		ttext := render.TrailingText(trep)
		fmt.Print(ttext)
		tpath, err := render.WriteFile(dir, render.TrailingFileName(trep.EndDate), ttext)
		if err != nil {
			log.Fatalf("write trailing report: %v", err)
		}
		log.Printf("trailing report written to %s", tpath)
	}
}

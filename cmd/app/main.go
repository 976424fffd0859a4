package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"MarketLens/internal/di"
	"MarketLens/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Printf("marketlens: %v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Printf("starting env=%s store=%s cache=%s queue=%t kafka=%t",
		cfg.Environment, cfg.Store.Backend, cfg.Cache.Backend, cfg.Queue.Enabled, cfg.Kafka.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	// Blocks until SIGINT or SIGTERM.
	return app.Run()
}

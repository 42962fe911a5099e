package main

import (
	"flag"
	"log"
	"os"

	"PatternPull/internal/di"
	"PatternPull/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s okx=%v kafka=%v symbols=%v", cfg.Environment, cfg.OKX.Enabled, cfg.Kafka.Enabled, cfg.OKX.Symbols)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("clickhouse: schema ready db=%s", cfg.ClickHouse.Database)

	// blocks until SIGINT/SIGTERM
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

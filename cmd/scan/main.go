package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PatternPull/internal/di"
	domrepo "PatternPull/internal/domain/repository"
	internalrepo "PatternPull/internal/repository"
	"PatternPull/internal/service/okx"
	"PatternPull/internal/service/ratelimit"
	"PatternPull/internal/services/detector"
	"PatternPull/internal/services/labels"
	"PatternPull/internal/usecase"
	"PatternPull/pkg/config"
	xhttp "PatternPull/pkg/http"
	applogger "PatternPull/pkg/logger"
	"PatternPull/pkg/metrics"
	"PatternPull/pkg/util"
)

type options struct {
	configPath string
	csvPath    string
	symbol     string
	tf         string
	limit      int
	top        int
	workers    int
	labelDir   string
	out        string
	logLevel   string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "optional config file for detector and okx settings")
	flag.StringVar(&o.csvPath, "csv", "", "read candles from a CSV file instead of OKX")
	flag.StringVar(&o.symbol, "symbol", "BTC-USDT", "instrument id")
	flag.StringVar(&o.tf, "tf", string(domrepo.DefaultTimeframe()), "bar timeframe")
	flag.IntVar(&o.limit, "limit", 1000, "number of most recent candles to scan")
	flag.IntVar(&o.top, "top", 0, "scan the N highest-volume OKX USDT pairs instead of -symbol")
	flag.IntVar(&o.workers, "workers", 4, "parallel scans for -top")
	flag.StringVar(&o.labelDir, "labels", "", "write label files and the class manifest here")
	flag.StringVar(&o.out, "out", "", "write the JSON summary to this file instead of stdout")
	flag.StringVar(&o.logLevel, "log-level", "info", "log level")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()

	l, err := applogger.New(&applogger.Config{Level: o.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, l); err != nil {
		l.Error("scan failed", applogger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, l *applogger.Logger) error {
	detCfg := detector.DefaultConfig()
	okxURL := "https://www.okx.com"
	okxCapacity, okxRefill := 20, 10.0
	singleClass := false

	if o.configPath != "" {
		cfg, err := config.LoadWithEnv(o.configPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if detCfg, err = di.DetectorConfig(cfg.Detector); err != nil {
			return fmt.Errorf("detector config: %w", err)
		}
		okxURL = cfg.OKX.RestURL
		okxCapacity, okxRefill = cfg.OKX.RateLimit.Capacity, cfg.OKX.RateLimit.Refill
		singleClass = cfg.Detector.SingleClass
	}

	o.symbol = util.NormalizeSymbol(o.symbol)
	tf := domrepo.NormalizeTimeframe(o.tf)
	if !domrepo.IsValidTimeframe(tf) {
		return fmt.Errorf("unknown timeframe %q", o.tf)
	}

	var (
		source domrepo.CandleSource
		rest   *okx.RESTClient
	)
	if o.csvPath != "" {
		csv, err := internalrepo.NewCSVSource(o.csvPath, o.symbol)
		if err != nil {
			return err
		}
		l.Info("csv loaded", applogger.String("path", o.csvPath), applogger.Int("candles", csv.Len()))
		source = csv
	} else {
		httpClient := xhttp.NewClient(xhttp.WithTimeout(15*time.Second), xhttp.WithRetries(3, time.Second))
		rest = okx.NewRESTClient(okxURL, httpClient, ratelimit.New(okxCapacity, okxRefill), l)
		source = rest
	}

	opts := []usecase.ScanOption{usecase.WithDefaultLimit(o.limit)}
	if o.labelDir != "" {
		classes := labels.DirectionalClasses
		if singleClass {
			classes = labels.SingleClass
		}
		w, err := labels.NewWriter(o.labelDir, classes)
		if err != nil {
			return err
		}
		manifest, err := w.WriteManifest()
		if err != nil {
			return err
		}
		l.Info("label manifest written", applogger.String("path", manifest))
		opts = append(opts, usecase.WithLabelWriter(w))
	}

	scans := usecase.NewScanUseCase(source, detCfg, metrics.New(), l, opts...)

	var result interface{}
	if o.top > 0 {
		if rest == nil {
			return fmt.Errorf("-top needs the OKX source")
		}
		symbols, err := rest.TopVolume(ctx, o.top)
		if err != nil {
			return fmt.Errorf("top volume: %w", err)
		}
		l.Info("batch scan", applogger.Strings("symbols", symbols))
		results := usecase.NewBatchScanner(scans, o.workers).ScanAll(ctx, symbols, tf, o.limit)
		for _, r := range results {
			if r.Err != nil {
				l.Warn("symbol scan failed", applogger.String("symbol", r.Symbol), applogger.Error(r.Err))
			}
		}
		result = results
	} else {
		summary, err := scans.Scan(ctx, usecase.ScanParams{Symbol: o.symbol, TF: tf, Limit: o.limit, Refresh: true})
		if err != nil {
			return err
		}
		l.Info("scan done",
			applogger.String("symbol", summary.Symbol),
			applogger.Int("bars", summary.Bars),
			applogger.Int("longs", summary.Longs),
			applogger.Int("shorts", summary.Shorts),
			applogger.Int("labeled", summary.Labeled),
		)
		result = summary
	}

	return writeJSON(o.out, result)
}

func writeJSON(path string, v interface{}) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Package main ingests daily-bar CSV files into ClickHouse. Each file is
// one symbol; re-running over the same file is safe because the bar table
// replaces rows by (symbol, date).
package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/config"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	symbol := flag.String("symbol", "", "Ticker symbol; default derives from the file name")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: ingest [-config file] [-symbol SYM] file.csv [file.csv ...]")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := marketdata.NewStore(ctx, cfg.ClickHouse, logger)
	if err != nil {
		logger.Fatal("connect clickhouse", zap.Error(err))
	}
	defer store.Close()

	for _, path := range flag.Args() {
		sym := *symbol
		if sym == "" {
			sym = symbolFromPath(path)
		}
		raws, err := marketdata.LoadRawCSV(path, sym, logger)
		if err != nil {
			logger.Error("load failed", zap.String("path", path), zap.Error(err))
			continue
		}
		if err := store.InsertBars(ctx, raws); err != nil {
			logger.Error("insert failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		logger.Info("ingested", zap.String("symbol", sym), zap.Int("rows", len(raws)))
	}
}

// symbolFromPath turns "data/aapl_daily.csv" into "AAPL".
func symbolFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.IndexAny(name, "_-."); i > 0 {
		name = name[:i]
	}
	return strings.ToUpper(name)
}

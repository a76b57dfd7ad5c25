// Package main runs the analysis HTTP service: Wyckoff phase analysis,
// phase and EMA backtests, stop-loss optimization and multi-symbol reports
// over daily bars stored in ClickHouse.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/config"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/engine"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/marketdata"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/optimizer"
	"github.com/Kyzereye/KyzerEyeStockLabs/services/wyckoff"
)

type server struct {
	cfg      config.Config
	store    *marketdata.Store
	analyzer *wyckoff.Analyzer
	sim      *engine.Simulator
	ema      *engine.EMAStrategy
	opt      *optimizer.Optimizer
	logger   *zap.Logger
}

func newServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*server, error) {
	store, err := marketdata.NewStore(ctx, cfg.ClickHouse, logger)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	return &server{
		cfg:      cfg,
		store:    store,
		analyzer: wyckoff.NewAnalyzer(logger),
		sim:      engine.NewSimulator(cfg.Engine, logger),
		ema:      engine.NewEMAStrategy(cfg.Engine, logger),
		opt:      optimizer.New(cfg.Optimizer, logger),
		logger:   logger,
	}, nil
}

func (s *server) routes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/wyckoff/:symbol", s.handleAnalysis)
		api.GET("/backtest/:symbol", s.handleBacktest)
		api.GET("/backtest/:symbol/ema", s.handleEMABacktest)
		api.GET("/optimize/:symbol", s.handleOptimize)
		api.POST("/report", s.handleReport)
	}
}

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *server) handleAnalysis(c *gin.Context) {
	symbol := c.Param("symbol")
	bars, ok := s.loadBars(c, symbol)
	if !ok {
		return
	}
	analysis, err := s.analyzer.Analyze(symbol, bars)
	if err != nil {
		s.writeError(c, symbol, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *server) handleBacktest(c *gin.Context) {
	symbol := c.Param("symbol")
	bars, ok := s.loadBars(c, symbol)
	if !ok {
		return
	}
	result, err := s.sim.Run(symbol, bars)
	if err != nil {
		s.writeError(c, symbol, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *server) handleEMABacktest(c *gin.Context) {
	symbol := c.Param("symbol")
	bars, ok := s.loadBars(c, symbol)
	if !ok {
		return
	}
	result, err := s.ema.Run(symbol, bars)
	if err != nil {
		s.writeError(c, symbol, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *server) handleOptimize(c *gin.Context) {
	symbol := c.Param("symbol")
	bars, ok := s.loadBars(c, symbol)
	if !ok {
		return
	}
	result, err := s.opt.Optimize(symbol, bars)
	if err != nil {
		s.writeError(c, symbol, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type reportRequest struct {
	Symbols []string `json:"symbols" binding:"required,min=1"`
}

// handleReport analyzes every requested symbol on a small worker pool.
// A symbol that fails is reported in the failures list; it never aborts
// the rest of the batch.
func (s *server) handleReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	jobID := uuid.New().String()
	s.logger.Info("report requested",
		zap.String("job_id", jobID),
		zap.Int("symbols", len(req.Symbols)))

	type outcome struct {
		analysis *wyckoff.Analysis
		failure  *wyckoff.SymbolError
	}
	outcomes := make([]outcome, len(req.Symbols))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := s.cfg.Optimizer.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	ctx := c.Request.Context()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				symbol := req.Symbols[idx]
				analysis, err := s.analyzeSymbol(ctx, symbol)
				if err != nil {
					outcomes[idx] = outcome{failure: &wyckoff.SymbolError{Symbol: symbol, Error: err.Error()}}
					continue
				}
				outcomes[idx] = outcome{analysis: analysis}
			}
		}()
	}
	for i := range req.Symbols {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var analyses []*wyckoff.Analysis
	var failures []wyckoff.SymbolError
	for _, o := range outcomes {
		switch {
		case o.analysis != nil:
			analyses = append(analyses, o.analysis)
		case o.failure != nil:
			failures = append(failures, *o.failure)
		}
	}
	report := wyckoff.BuildReport(analyses, failures)
	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "report": report})
}

func (s *server) analyzeSymbol(ctx context.Context, symbol string) (*wyckoff.Analysis, error) {
	from, to := defaultRange()
	bars, err := s.store.QueryBars(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s", symbol)
	}
	return s.analyzer.Analyze(symbol, bars)
}

// loadBars resolves the symbol's series for the request's from/to query
// parameters (YYYY-MM-DD, default trailing two years) and writes the HTTP
// error itself when loading fails.
func (s *server) loadBars(c *gin.Context, symbol string) ([]marketdata.Bar, bool) {
	from, to := defaultRange()
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid from date %q", v)})
			return nil, false
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid to date %q", v)})
			return nil, false
		}
		to = t
	}

	bars, err := s.store.QueryBars(c.Request.Context(), symbol, from, to)
	if err != nil {
		s.logger.Error("query bars failed", zap.String("symbol", symbol), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if len(bars) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no bars for %s", symbol)})
		return nil, false
	}
	return bars, true
}

func (s *server) writeError(c *gin.Context, symbol string, err error) {
	var insufficient *marketdata.InsufficientDataError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  err.Error(),
			"symbol": symbol,
			"need":   insufficient.Need,
			"have":   insufficient.Have,
		})
		return
	}
	s.logger.Error("request failed", zap.String("symbol", symbol), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func defaultRange() (time.Time, time.Time) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	return now.AddDate(-2, 0, 0), now
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	svc, err := newServer(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer svc.store.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	svc.routes(router)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http serve failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("stopped")
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"EquityTradeBot/config"
	"EquityTradeBot/internal/logger"
	"EquityTradeBot/internal/models"
	"EquityTradeBot/internal/notify"
	"EquityTradeBot/internal/operations/exchange"
	"EquityTradeBot/internal/operations/execution"
	"EquityTradeBot/internal/operations/monitor"
	"EquityTradeBot/internal/operations/rebalance"
	"EquityTradeBot/internal/repositories"
	"EquityTradeBot/internal/services/risk"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := logger.Init(cfg.Debug); err != nil {
		log.Fatal("Failed to init logger:", err)
	}
	defer logger.Sync()

	// Setup database
	db := setupDatabase(cfg.Database)

	// Initialize repositories
	portfolioRepo := repositories.NewPortfolioRepository(db)
	positionRepo := repositories.NewPositionRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	bucketRepo := repositories.NewCapitalBucketRepository(db)

	notifier := notify.NewLog()

	// Find or create the configured portfolio with its capital bucket
	portfolio, err := portfolioRepo.Bootstrap(cfg.Portfolio.Name, cfg.Portfolio.Mode,
		cfg.Portfolio.OpeningBalance, cfg.Buckets.Threshold3L, cfg.Buckets.Threshold5L)
	if err != nil {
		log.Fatal("Failed to bootstrap portfolio:", err)
	}
	logger.Info("portfolio %q (%s) ready: equity %s", portfolio.Name, portfolio.Mode, portfolio.TotalEquity)

	// Initialize exchange client; paper mode never submits real orders
	binanceClient := exchange.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey)
	var submitter exchange.OrderSubmitter = exchange.NewPaperSubmitter()
	if cfg.Portfolio.Mode == models.TradingModeLive {
		submitter = binanceClient
	}

	gate := risk.NewGate(orderRepo, positionRepo, notifier, risk.GateConfig{
		MaxExposurePct:    cfg.Risk.MaxExposurePct,
		BreakerWindow:     cfg.Risk.BreakerWindow,
		BreakerMinSamples: cfg.Risk.BreakerMinSamples,
		BreakerThreshold:  cfg.Risk.BreakerThreshold,
	})
	executor := execution.NewExecutor(portfolioRepo, positionRepo, orderRepo,
		gate, submitter, notifier, execution.Config{
			PortfolioID:     portfolio.ID,
			TradingMode:     cfg.Portfolio.Mode,
			RiskPerTradePct: cfg.Risk.RiskPerTradePct,
			MaxExposurePct:  cfg.Risk.MaxExposurePct,
			Symbols:         cfg.Symbols,
		})

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	positionMonitor := monitor.NewMonitor(binanceClient, positionRepo, notifier, cfg.Risk.PartialFraction)
	go positionMonitor.Run(ctx, cfg.Intervals.Monitor)
	logger.Info("position monitor started (interval %s)", cfg.Intervals.Monitor)

	scheduler := rebalance.NewScheduler(portfolioRepo, bucketRepo, positionRepo, notifier, portfolio.ID)
	go scheduler.Run(ctx, cfg.Intervals.Rebalance)
	logger.Info("rebalance scheduler started (interval %s)", cfg.Intervals.Rebalance)

	// Trade signals arrive as JSON lines on stdin, one per approved trade
	go readSignals(ctx, executor)

	// Handle shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c

	logger.Info("shutting down...")
	cancel()
	time.Sleep(time.Second * 2) // Give time for in-flight ticks
	logger.Info("shutdown complete")
}

// readSignals feeds operator-approved trade signals into the execution
// layer. Each line is one JSON-encoded signal; malformed lines are
// logged and skipped.
func readSignals(ctx context.Context, executor *execution.Executor) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var signal execution.TradeSignal
		if err := json.Unmarshal([]byte(line), &signal); err != nil {
			logger.Error("bad signal %q: %v", line, err)
			continue
		}
		position, err := executor.Execute(ctx, signal)
		if err != nil {
			logger.Error("execute signal for %s: %v", signal.Symbol, err)
			continue
		}
		logger.Info("signal for %s executed: position %d", signal.Symbol, position.ID)
	}
}

func setupDatabase(dbConfig config.DatabaseConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto migrate database schemas
	err = db.AutoMigrate(
		&models.Portfolio{},
		&models.CapitalBucket{},
		&models.Position{},
		&models.Order{},
		&models.LedgerEntry{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	return db
}

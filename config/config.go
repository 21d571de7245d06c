package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func Load() (*config, error) {
	if err := godotenv.Load(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	return &config{
		Exchange: ExchangeConfig{
			APIKey:    os.Getenv("BINANCE_API_KEY"),
			SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     EnvtoInt(os.Getenv("DB_PORT")),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		Portfolio: PortfolioConfig{
			Name:           envOrDefault("PORTFOLIO_NAME", "main"),
			Mode:           envOrDefault("TRADING_MODE", "paper"),
			OpeningBalance: EnvtoDecimal(os.Getenv("OPENING_BALANCE"), "100000"),
		},
		Risk: RiskConfig{
			RiskPerTradePct:   EnvtoDecimal(os.Getenv("RISK_PER_TRADE_PCT"), "1"),
			MaxExposurePct:    EnvtoDecimal(os.Getenv("MAX_EXPOSURE_PCT"), "10"),
			PartialFraction:   EnvtoDecimal(os.Getenv("TP1_PARTIAL_FRACTION"), "0.5"),
			BreakerWindow:     EnvtoDuration(os.Getenv("BREAKER_WINDOW"), time.Hour),
			BreakerMinSamples: int64(EnvtoInt(envOrDefault("BREAKER_MIN_SAMPLES", "5"))),
			BreakerThreshold:  EnvtoDecimal(os.Getenv("BREAKER_THRESHOLD"), "0.5"),
		},
		Buckets: BucketConfig{
			Threshold3L: EnvtoDecimal(os.Getenv("BUCKET_THRESHOLD_3L"), "300000"),
			Threshold5L: EnvtoDecimal(os.Getenv("BUCKET_THRESHOLD_5L"), "500000"),
		},
		Intervals: IntervalConfig{
			Monitor:   EnvtoDuration(os.Getenv("MONITOR_INTERVAL"), 15*time.Second),
			Rebalance: EnvtoDuration(os.Getenv("REBALANCE_INTERVAL"), 24*time.Hour),
		},
		Symbols: getSymbols(),
		Debug:   os.Getenv("DEBUG") == "true",
	}, nil
}

// helper env(string) to int
func EnvtoInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// helper env(string) to decimal with a fallback
func EnvtoDecimal(s, fallback string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.RequireFromString(fallback)
	}
	return d
}

// helper env(string) to duration with a fallback
func EnvtoDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// helper to get symbols
func getSymbols() []string {
	symbols := os.Getenv("TRADING_SYMBOLS")
	if symbols == "" {
		return []string{"AAPL", "MSFT"} // Default symbols if none specified
	}
	return strings.Split(symbols, ",")
}

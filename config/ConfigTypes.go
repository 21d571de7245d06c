package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type config struct {
	Exchange  ExchangeConfig
	Database  DatabaseConfig
	Portfolio PortfolioConfig
	Risk      RiskConfig
	Buckets   BucketConfig
	Intervals IntervalConfig
	Symbols   []string
	Debug     bool
}

type ExchangeConfig struct {
	APIKey    string
	SecretKey string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

type PortfolioConfig struct {
	Name           string
	Mode           string // paper or live
	OpeningBalance decimal.Decimal
}

type RiskConfig struct {
	RiskPerTradePct   decimal.Decimal
	MaxExposurePct    decimal.Decimal
	PartialFraction   decimal.Decimal
	BreakerWindow     time.Duration
	BreakerMinSamples int64
	BreakerThreshold  decimal.Decimal
}

type BucketConfig struct {
	Threshold3L decimal.Decimal
	Threshold5L decimal.Decimal
}

type IntervalConfig struct {
	Monitor   time.Duration
	Rebalance time.Duration
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is one submission attempt against the broker. The unique
// client_order_id gives retried intents at-most-once semantics, and the
// recent failed/total ratio feeds the circuit breaker.
type Order struct {
	ID            uint   `gorm:"primaryKey"`
	ClientOrderID string `gorm:"uniqueIndex;not null"`
	PortfolioID   uint   `gorm:"index;not null"`
	PositionID    uint   `gorm:"index"` // set once the position is persisted

	Symbol string `gorm:"index;not null"`
	Side   string `gorm:"not null"`
	Bucket string `gorm:"not null;default:'swing'"`

	Quantity decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Price    decimal.Decimal `gorm:"type:numeric(20,8);not null"`

	Status      string `gorm:"index;not null"`
	BrokerRef   string
	FailureNote string
	TradingMode string `gorm:"not null;default:'paper'"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	OrderStatusPending = "pending"
	OrderStatusFilled  = "filled"
	OrderStatusFailed  = "failed"
)

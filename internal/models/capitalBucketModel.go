package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CapitalBucket holds the current percentage split for a portfolio and
// the equity breakpoints that select the growth phase. One row per
// portfolio.
type CapitalBucket struct {
	ID          uint `gorm:"primaryKey"`
	PortfolioID uint `gorm:"uniqueIndex;not null"`

	SwingPct    decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	LongTermPct decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	CashPct     decimal.Decimal `gorm:"type:numeric(10,4);not null"`

	Threshold3L decimal.Decimal `gorm:"column:threshold_3l;type:numeric(20,8);not null"`
	Threshold5L decimal.Decimal `gorm:"column:threshold_5l;type:numeric(20,8);not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// pctSumTolerance allows 0.01 of rounding drift on the 100% invariant.
var pctSumTolerance = decimal.NewFromFloat(0.01)

// SetPercentages updates the split, enforcing that each share is inside
// [0,100] and the three sum to 100 within tolerance.
func (b *CapitalBucket) SetPercentages(swing, longTerm, cash decimal.Decimal) error {
	for _, pct := range []decimal.Decimal{swing, longTerm, cash} {
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return fmt.Errorf("bucket percentage %s out of range", pct)
		}
	}
	sum := swing.Add(longTerm).Add(cash)
	if sum.Sub(hundred).Abs().GreaterThan(pctSumTolerance) {
		return fmt.Errorf("bucket percentages sum to %s, want 100", sum)
	}
	b.SwingPct = swing
	b.LongTermPct = longTerm
	b.CashPct = cash
	return nil
}

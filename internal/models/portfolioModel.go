package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is one capital pool, live or paper. Equity is partitioned
// into swing/long-term buckets plus cash; peak equity and max drawdown
// only ever move up.
type Portfolio struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex:idx_portfolios_name_mode;not null"`
	Mode string `gorm:"uniqueIndex:idx_portfolios_name_mode;not null"`

	TotalEquity     decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	AvailableCash   decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	SwingCapital    decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	LongTermCapital decimal.Decimal `gorm:"type:numeric(20,8);not null"`

	RealizedPnL   decimal.Decimal `gorm:"column:realized_pnl;type:numeric(20,8)"`
	UnrealizedPnL decimal.Decimal `gorm:"column:unrealized_pnl;type:numeric(20,8)"`

	PeakEquity  decimal.Decimal `gorm:"type:numeric(20,8)"`
	MaxDrawdown decimal.Decimal `gorm:"type:numeric(10,4)"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// UpdateEquity re-establishes the equity identity
// total = cash + swing + long_term + unrealized, then refreshes the
// peak/drawdown watermarks.
func (p *Portfolio) UpdateEquity(unrealized decimal.Decimal) {
	p.UnrealizedPnL = unrealized
	p.TotalEquity = p.AvailableCash.
		Add(p.SwingCapital).
		Add(p.LongTermCapital).
		Add(unrealized)
	p.updateDrawdown()
}

// ApplyRealized moves a realized P&L delta into cash.
func (p *Portfolio) ApplyRealized(pnl decimal.Decimal) {
	p.RealizedPnL = p.RealizedPnL.Add(pnl)
	p.AvailableCash = p.AvailableCash.Add(pnl)
}

// BucketCapital returns the capital assigned to a position bucket.
func (p *Portfolio) BucketCapital(bucket string) decimal.Decimal {
	if bucket == BucketLongTerm {
		return p.LongTermCapital
	}
	return p.SwingCapital
}

// updateDrawdown keeps peak_equity and max_drawdown monotonically
// non-decreasing for the portfolio lifetime.
func (p *Portfolio) updateDrawdown() {
	if p.TotalEquity.GreaterThan(p.PeakEquity) {
		p.PeakEquity = p.TotalEquity
	}
	if !p.PeakEquity.IsPositive() {
		return
	}
	dd := p.PeakEquity.Sub(p.TotalEquity).Div(p.PeakEquity).Mul(hundred)
	if dd.GreaterThan(p.MaxDrawdown) {
		p.MaxDrawdown = dd
	}
}

package capital

import (
	"github.com/shopspring/decimal"
)

// Growth phases selected by total equity against the two bucket
// thresholds. Each phase carries its swing/long-term/cash split.
const (
	PhaseGrowth       = "growth"       // equity < threshold_3l: 80/0/20
	PhaseBalanced     = "balanced"     // threshold_3l <= equity < threshold_5l: 70/20/10
	PhasePreservation = "preservation" // equity >= threshold_5l: 60/30/10
)

// Allocation is the result of one rebalance pass: the phase, the final
// percentages (always summing to 100) and the absolute bucket amounts.
// Infeasible flags the case where committed exposure alone exceeded
// total equity and cash was clamped to zero.
type Allocation struct {
	Phase string

	SwingPct    decimal.Decimal
	LongTermPct decimal.Decimal
	CashPct     decimal.Decimal

	SwingAmount    decimal.Decimal
	LongTermAmount decimal.Decimal
	CashAmount     decimal.Decimal

	Infeasible bool
}

var hundred = decimal.NewFromInt(100)

func phaseSplit(totalEquity, threshold3L, threshold5L decimal.Decimal) (string, decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	switch {
	case totalEquity.LessThan(threshold3L):
		return PhaseGrowth, decimal.NewFromInt(80), decimal.Zero, decimal.NewFromInt(20)
	case totalEquity.LessThan(threshold5L):
		return PhaseBalanced, decimal.NewFromInt(70), decimal.NewFromInt(20), decimal.NewFromInt(10)
	default:
		return PhasePreservation, decimal.NewFromInt(60), decimal.NewFromInt(30), decimal.NewFromInt(10)
	}
}

// Rebalance derives the target bucket amounts for the portfolio's
// current phase. Buckets never shrink below capital already committed:
// when current swing exposure or long-term value exceeds the nominal
// bucket, that bucket is raised to match and cash absorbs the
// difference. Cash never goes negative; if the floors alone exceed total
// equity, cash is clamped to zero and the allocation is flagged
// infeasible instead of failing.
func Rebalance(totalEquity, swingExposure, longTermValue, threshold3L, threshold5L decimal.Decimal) Allocation {
	phase, swingPct, longTermPct, cashPct := phaseSplit(totalEquity, threshold3L, threshold5L)

	swing := totalEquity.Mul(swingPct).Div(hundred)
	longTerm := totalEquity.Mul(longTermPct).Div(hundred)
	cash := totalEquity.Mul(cashPct).Div(hundred)

	if swingExposure.GreaterThan(swing) {
		cash = cash.Sub(swingExposure.Sub(swing))
		swing = swingExposure
	}
	if longTermValue.GreaterThan(longTerm) {
		cash = cash.Sub(longTermValue.Sub(longTerm))
		longTerm = longTermValue
	}

	alloc := Allocation{
		Phase:          phase,
		SwingAmount:    swing,
		LongTermAmount: longTerm,
		CashAmount:     cash,
	}
	if cash.IsNegative() {
		alloc.CashAmount = decimal.Zero
		alloc.Infeasible = true
	}

	// Re-derive percentages from the final amounts so they stay true
	// after floor adjustments, with cash taking the remainder to keep
	// the sum at exactly 100.
	denom := alloc.SwingAmount.Add(alloc.LongTermAmount).Add(alloc.CashAmount)
	if denom.IsPositive() {
		alloc.SwingPct = alloc.SwingAmount.Div(denom).Mul(hundred)
		alloc.LongTermPct = alloc.LongTermAmount.Div(denom).Mul(hundred)
		alloc.CashPct = hundred.Sub(alloc.SwingPct).Sub(alloc.LongTermPct)
		if alloc.CashPct.IsNegative() {
			alloc.CashPct = decimal.Zero
		}
	} else {
		alloc.SwingPct = swingPct
		alloc.LongTermPct = longTermPct
		alloc.CashPct = cashPct
	}

	return alloc
}

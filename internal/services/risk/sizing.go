package risk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"EquityTradeBot/internal/models"

	"github.com/shopspring/decimal"
)

// Size converts risk capital into a share quantity: the amount risked is
// riskPerTradePct of totalRiskCapital, divided by the per-share distance
// to the stop, floored to whole shares. The quantity is further capped
// so the entry exposure stays within maxExposureAmount; when that cap
// binds, the effective risk taken is simply lower than requested.
func Size(totalRiskCapital, riskPerTradePct, entryPrice, stopLoss, maxExposureAmount decimal.Decimal) (decimal.Decimal, error) {
	if !entryPrice.IsPositive() || !totalRiskCapital.IsPositive() || !riskPerTradePct.IsPositive() {
		return decimal.Zero, models.ErrInvalidPositionState
	}
	if stopLoss.IsNegative() {
		return decimal.Zero, models.ErrInvalidPositionState
	}

	riskPerShare := entryPrice.Sub(stopLoss).Abs()
	if riskPerShare.IsZero() {
		return decimal.Zero, ErrInvalidStopLoss
	}

	riskAmount := totalRiskCapital.Mul(riskPerTradePct).Div(decimal.NewFromInt(100))
	quantity := riskAmount.Div(riskPerShare).Floor()

	if maxExposureAmount.IsPositive() {
		capQty := maxExposureAmount.Div(entryPrice).Floor()
		if capQty.LessThan(quantity) {
			quantity = capQty
		}
	}

	return quantity, nil
}

// ClientOrderID deterministically derives the idempotency key from the
// trade intent, so re-submitting the same signal on the same day
// naturally collides with the earlier attempt.
func ClientOrderID(portfolioID uint, symbol, side string, day time.Time) string {
	seed := fmt.Sprintf("%d:%s:%s:%s", portfolioID, symbol, side, day.UTC().Format("2006-01-02"))
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:16])
}

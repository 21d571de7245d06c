package risk

import (
	"errors"
	"fmt"
	"time"

	"EquityTradeBot/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInvalidStopLoss rejects sizing with zero risk per share (stop equal
// to entry).
var ErrInvalidStopLoss = errors.New("stop loss equals entry price")

// DuplicateOrderError is an idempotency hit: the intent was already
// submitted. Callers may treat it as success-with-existing.
type DuplicateOrderError struct {
	Existing *models.Order
}

func (e *DuplicateOrderError) Error() string {
	return fmt.Sprintf("duplicate order %s (order id %d)", e.Existing.ClientOrderID, e.Existing.ID)
}

// ExposureLimitError carries the computed exposure against the limit it
// broke, so the caller can decide whether to resize, retry or abandon.
type ExposureLimitError struct {
	Scope    string // "per_trade" or the bucket name
	Exposure decimal.Decimal
	Limit    decimal.Decimal
}

func (e *ExposureLimitError) Error() string {
	return fmt.Sprintf("exposure %s exceeds %s limit %s", e.Exposure, e.Scope, e.Limit)
}

// CircuitBreakerError reports the trailing failure ratio that tripped
// the breaker. New orders are rejected until the window ages out or
// successes dilute the ratio.
type CircuitBreakerError struct {
	FailureRate decimal.Decimal
	Threshold   decimal.Decimal
	Failed      int64
	Total       int64
	Window      time.Duration
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker open: failure rate %s exceeds %s (%d/%d orders failed in %s)",
		e.FailureRate, e.Threshold, e.Failed, e.Total, e.Window)
}

package risk

import (
	"time"

	"EquityTradeBot/internal/models"
	"EquityTradeBot/internal/notify"

	"github.com/shopspring/decimal"
)

// OrderIntent is one logical request to take new risk. ClientOrderID is
// the caller-derived idempotency key (see ClientOrderID).
type OrderIntent struct {
	ClientOrderID string
	PortfolioID   uint
	Symbol        string
	Side          string
	Bucket        string
	Quantity      decimal.Decimal
	EntryPrice    decimal.Decimal
	TradingMode   string
}

// OrderStore is the slice of order persistence the gate needs.
type OrderStore interface {
	FindByClientOrderID(clientOrderID string) (*models.Order, error)
	CreateIdempotent(order *models.Order) (*models.Order, bool, error)
	CountSince(portfolioID uint, since time.Time) (int64, error)
	CountFailedSince(portfolioID uint, since time.Time) (int64, error)
}

// ExposureStore aggregates committed capital per bucket.
type ExposureStore interface {
	SumOpenExposure(portfolioID uint, bucket string) (decimal.Decimal, error)
}

type GateConfig struct {
	// MaxExposurePct caps a single trade at this share of total equity.
	MaxExposurePct decimal.Decimal

	// Circuit breaker: trailing window, minimum attempts before it is
	// evaluated, and the failure ratio (0..1) that trips it.
	BreakerWindow     time.Duration
	BreakerMinSamples int64
	BreakerThreshold  decimal.Decimal
}

// Gate runs the three pre-trade controls in order: idempotency,
// exposure limits, circuit breaker. All must pass before an order may be
// created; a passing check has no side effects.
type Gate struct {
	orders    OrderStore
	positions ExposureStore
	notifier  notify.Notifier
	cfg       GateConfig
	now       func() time.Time
}

func NewGate(orders OrderStore, positions ExposureStore, notifier notify.Notifier, cfg GateConfig) *Gate {
	return &Gate{
		orders:    orders,
		positions: positions,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Check validates the intent against the portfolio. On an idempotency
// hit it returns the existing order together with DuplicateOrderError;
// exposure and breaker rejections return their typed error with
// diagnostics. A nil error means the caller may persist the order.
func (g *Gate) Check(portfolio *models.Portfolio, intent OrderIntent) (*models.Order, error) {
	if portfolio == nil || !intent.Quantity.IsPositive() || !intent.EntryPrice.IsPositive() {
		return nil, models.ErrInvalidPositionState
	}

	existing, err := g.orders.FindByClientOrderID(intent.ClientOrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, &DuplicateOrderError{Existing: existing}
	}

	if err := g.checkExposure(portfolio, intent); err != nil {
		return nil, err
	}

	if err := g.checkCircuitBreaker(portfolio.ID); err != nil {
		return nil, err
	}

	return nil, nil
}

// Reserve is the atomic insert-or-fetch for an intent that passed Check.
// Under concurrent retries at most one row wins; the loser receives the
// winner's order and created=false.
func (g *Gate) Reserve(intent OrderIntent) (*models.Order, bool, error) {
	order := &models.Order{
		ClientOrderID: intent.ClientOrderID,
		PortfolioID:   intent.PortfolioID,
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		Bucket:        intent.Bucket,
		Quantity:      intent.Quantity,
		Price:         intent.EntryPrice,
		Status:        models.OrderStatusPending,
		TradingMode:   intent.TradingMode,
	}
	return g.orders.CreateIdempotent(order)
}

func (g *Gate) checkExposure(portfolio *models.Portfolio, intent OrderIntent) error {
	exposure := intent.EntryPrice.Mul(intent.Quantity)

	perTradeLimit := portfolio.TotalEquity.Mul(g.cfg.MaxExposurePct).Div(decimal.NewFromInt(100))
	if exposure.GreaterThan(perTradeLimit) {
		return &ExposureLimitError{Scope: "per_trade", Exposure: exposure, Limit: perTradeLimit}
	}

	open, err := g.positions.SumOpenExposure(portfolio.ID, intent.Bucket)
	if err != nil {
		return err
	}
	bucketCapital := portfolio.BucketCapital(intent.Bucket)
	if open.Add(exposure).GreaterThan(bucketCapital) {
		return &ExposureLimitError{
			Scope:    intent.Bucket,
			Exposure: open.Add(exposure),
			Limit:    bucketCapital,
		}
	}
	return nil
}

func (g *Gate) checkCircuitBreaker(portfolioID uint) error {
	since := g.now().Add(-g.cfg.BreakerWindow)
	total, err := g.orders.CountSince(portfolioID, since)
	if err != nil {
		return err
	}
	if total < g.cfg.BreakerMinSamples {
		return nil
	}
	failed, err := g.orders.CountFailedSince(portfolioID, since)
	if err != nil {
		return err
	}
	rate := decimal.NewFromInt(failed).Div(decimal.NewFromInt(total))
	if rate.GreaterThan(g.cfg.BreakerThreshold) {
		breakerErr := &CircuitBreakerError{
			FailureRate: rate,
			Threshold:   g.cfg.BreakerThreshold,
			Failed:      failed,
			Total:       total,
			Window:      g.cfg.BreakerWindow,
		}
		if g.notifier != nil {
			g.notifier.Sendf("circuit breaker open for portfolio %d: %v", portfolioID, breakerErr)
		}
		return breakerErr
	}
	return nil
}

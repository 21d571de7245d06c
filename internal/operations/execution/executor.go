package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EquityTradeBot/internal/logger"
	"EquityTradeBot/internal/models"
	"EquityTradeBot/internal/notify"
	"EquityTradeBot/internal/operations/exchange"
	"EquityTradeBot/internal/services/risk"

	"github.com/shopspring/decimal"
)

// TradeSignal is an externally produced instruction to open a position.
// Protective levels are optional; zero means unset. When ATR and its
// multiplier are both set the position trails by ATR distance.
type TradeSignal struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Bucket string `json:"bucket"`

	EntryPrice decimal.Decimal `json:"entry_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	TP1        decimal.Decimal `json:"tp1"`
	TP2        decimal.Decimal `json:"tp2"`

	ATR                   decimal.Decimal `json:"atr"`
	ATRTrailingMultiplier decimal.Decimal `json:"atr_trailing_multiplier"`
	TrailingStopDistance  decimal.Decimal `json:"trailing_stop_distance"`
	TrailingStopPct       decimal.Decimal `json:"trailing_stop_pct"`
}

type PortfolioStore interface {
	FindByID(id uint) (*models.Portfolio, error)
}

type PositionStore interface {
	CommitOpen(position *models.Position, entry *models.LedgerEntry) error
	FindByID(id uint) (*models.Position, error)
}

type OrderStore interface {
	UpdateStatus(id uint, status, brokerRef, failureNote string) error
	SetPosition(id, positionID uint) error
}

type Config struct {
	PortfolioID     uint
	TradingMode     string
	RiskPerTradePct decimal.Decimal
	MaxExposurePct  decimal.Decimal

	// Symbols is the desk's tradable universe. Empty means unrestricted.
	Symbols []string
}

// Executor turns a trade signal into an open position. Every order runs
// the gate first: idempotency, exposure limits, circuit breaker. A
// repeated signal for the same symbol, side and day resolves to the
// position the first submission opened instead of a second fill.
type Executor struct {
	portfolios PortfolioStore
	positions  PositionStore
	orders     OrderStore
	gate       *risk.Gate
	submitter  exchange.OrderSubmitter
	notifier   notify.Notifier
	cfg        Config
	universe   map[string]struct{}
	now        func() time.Time
}

func NewExecutor(portfolios PortfolioStore, positions PositionStore, orders OrderStore,
	gate *risk.Gate, submitter exchange.OrderSubmitter,
	notifier notify.Notifier, cfg Config) *Executor {
	universe := make(map[string]struct{}, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		universe[symbol] = struct{}{}
	}
	return &Executor{
		portfolios: portfolios,
		positions:  positions,
		orders:     orders,
		gate:       gate,
		submitter:  submitter,
		notifier:   notifier,
		cfg:        cfg,
		universe:   universe,
		now:        time.Now,
	}
}

// Execute sizes, gates, submits and persists one signal. On an
// idempotency hit it returns the already-opened position and no error.
func (e *Executor) Execute(ctx context.Context, signal TradeSignal) (*models.Position, error) {
	if err := validateSignal(signal); err != nil {
		return nil, err
	}
	if len(e.universe) > 0 {
		if _, ok := e.universe[signal.Symbol]; !ok {
			return nil, fmt.Errorf("symbol %s is not in the configured universe", signal.Symbol)
		}
	}

	portfolio, err := e.portfolios.FindByID(e.cfg.PortfolioID)
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}
	if portfolio == nil {
		return nil, fmt.Errorf("portfolio %d not found", e.cfg.PortfolioID)
	}

	quantity, err := e.sizePosition(portfolio, signal)
	if err != nil {
		return nil, err
	}
	if quantity.IsZero() {
		return nil, fmt.Errorf("sized quantity for %s is zero, skipping", signal.Symbol)
	}

	intent := risk.OrderIntent{
		ClientOrderID: risk.ClientOrderID(portfolio.ID, signal.Symbol, signal.Side, e.now()),
		PortfolioID:   portfolio.ID,
		Symbol:        signal.Symbol,
		Side:          signal.Side,
		Bucket:        signal.Bucket,
		Quantity:      quantity,
		EntryPrice:    signal.EntryPrice,
		TradingMode:   e.cfg.TradingMode,
	}

	existing, err := e.gate.Check(portfolio, intent)
	if err != nil {
		var dup *risk.DuplicateOrderError
		if errors.As(err, &dup) {
			return e.resolveDuplicate(existing)
		}
		return nil, err
	}

	order, created, err := e.gate.Reserve(intent)
	if err != nil {
		return nil, fmt.Errorf("reserve order: %w", err)
	}
	if !created {
		// Lost a concurrent race for the same idempotency key.
		return e.resolveDuplicate(order)
	}

	brokerRef, err := e.submitter.Submit(ctx, order)
	if err != nil {
		// A failed attempt stays on record; the circuit breaker counts it.
		if updErr := e.orders.UpdateStatus(order.ID, models.OrderStatusFailed, "", err.Error()); updErr != nil {
			logger.Error("mark order %d failed: %v", order.ID, updErr)
		}
		e.notifier.Sendf("order %s for %s rejected by broker: %v", order.ClientOrderID, signal.Symbol, err)
		return nil, fmt.Errorf("submit order: %w", err)
	}

	position, err := e.openPosition(portfolio, order, signal, quantity)
	if err != nil {
		return nil, err
	}

	if err := e.orders.UpdateStatus(order.ID, models.OrderStatusFilled, brokerRef, ""); err != nil {
		logger.Error("mark order %d filled: %v", order.ID, err)
	}
	if err := e.orders.SetPosition(order.ID, position.ID); err != nil {
		logger.Error("link order %d to position %d: %v", order.ID, position.ID, err)
	}

	e.notifier.Sendf("opened %s %s %s x %s @ %s (stop %s)",
		position.Bucket, position.Side, position.Symbol,
		position.Quantity, position.EntryPrice, position.StopLoss)

	return position, nil
}

func validateSignal(signal TradeSignal) error {
	if signal.Symbol == "" || !signal.EntryPrice.IsPositive() {
		return models.ErrInvalidPositionState
	}
	if signal.Side != models.PositionSideLong && signal.Side != models.PositionSideShort {
		return models.ErrInvalidPositionState
	}
	if signal.Bucket != models.BucketSwing && signal.Bucket != models.BucketLongTerm {
		return models.ErrInvalidPositionState
	}
	return nil
}

func (e *Executor) sizePosition(portfolio *models.Portfolio, signal TradeSignal) (decimal.Decimal, error) {
	riskCapital := portfolio.BucketCapital(signal.Bucket)
	maxExposure := portfolio.TotalEquity.Mul(e.cfg.MaxExposurePct).Div(decimal.NewFromInt(100))
	return risk.Size(riskCapital, e.cfg.RiskPerTradePct, signal.EntryPrice, signal.StopLoss, maxExposure)
}

func (e *Executor) resolveDuplicate(order *models.Order) (*models.Position, error) {
	if order == nil {
		return nil, errors.New("duplicate order without existing row")
	}
	if order.PositionID == 0 {
		// First attempt was reserved or failed before opening a position.
		return nil, &risk.DuplicateOrderError{Existing: order}
	}
	position, err := e.positions.FindByID(order.PositionID)
	if err != nil {
		return nil, err
	}
	logger.Info("signal for %s resolves to existing position %d via order %s",
		order.Symbol, order.PositionID, order.ClientOrderID)
	return position, nil
}

func (e *Executor) openPosition(portfolio *models.Portfolio, order *models.Order,
	signal TradeSignal, quantity decimal.Decimal) (*models.Position, error) {
	position := &models.Position{
		PortfolioID: portfolio.ID,
		Symbol:      signal.Symbol,
		Side:        signal.Side,
		Bucket:      signal.Bucket,
		Quantity:    quantity,
		EntryPrice:  signal.EntryPrice,

		StopLoss:        signal.StopLoss,
		InitialStopLoss: signal.StopLoss,
		TakeProfit:      signal.TakeProfit,
		TP1:             signal.TP1,
		TP2:             signal.TP2,

		ATR:                   signal.ATR,
		ATRTrailingMultiplier: signal.ATRTrailingMultiplier,
		TrailingStopDistance:  signal.TrailingStopDistance,
		TrailingStopPct:       signal.TrailingStopPct,

		TradingMode: e.cfg.TradingMode,
	}
	if err := position.Open(e.now()); err != nil {
		return nil, err
	}

	entry, err := models.NewLedgerEntry(portfolio.ID, position.Exposure(),
		models.LedgerEntryDebit, models.LedgerReasonPositionOpened)
	if err != nil {
		return nil, err
	}

	// Position row and its audit debit commit together or not at all.
	if err := e.positions.CommitOpen(position, entry); err != nil {
		return nil, fmt.Errorf("persist position: %w", err)
	}

	return position, nil
}

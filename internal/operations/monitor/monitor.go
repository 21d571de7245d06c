package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EquityTradeBot/internal/logger"
	"EquityTradeBot/internal/models"
	"EquityTradeBot/internal/notify"
	"EquityTradeBot/internal/operations/exchange"
	"EquityTradeBot/internal/repositories"

	"github.com/shopspring/decimal"
)

// PositionStore is the slice of persistence the monitor needs. Every
// exit commits under the position's optimistic version check, so two
// overlapping ticks can never both close the same position.
type PositionStore interface {
	FindOpenPositions() ([]models.Position, error)
	FindByID(id uint) (*models.Position, error)
	UpdateLocked(position *models.Position) error
	CommitExit(position *models.Position, realizedDelta decimal.Decimal, entry *models.LedgerEntry) error
	RefreshEquity(portfolioID uint) error
}

// Monitor walks the open positions every tick, marks them to the live
// quote and applies whatever exit the state machine decides.
type Monitor struct {
	feed      exchange.PriceFeed
	positions PositionStore
	notifier  notify.Notifier

	// TP1 close policy: fraction of the remaining quantity to realize
	// on the first take-profit tier.
	partialFraction decimal.Decimal

	now func() time.Time
}

func NewMonitor(feed exchange.PriceFeed, positions PositionStore, notifier notify.Notifier, partialFraction decimal.Decimal) *Monitor {
	return &Monitor{
		feed:            feed,
		positions:       positions,
		notifier:        notifier,
		partialFraction: partialFraction,
		now:             time.Now,
	}
}

// Run evaluates all open positions on a fixed interval until the
// context is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil {
				logger.Error("monitor tick: %v", err)
			}
		}
	}
}

// Tick runs one evaluation pass. Each position is handled
// independently; a failure on one does not stop the others.
func (m *Monitor) Tick(ctx context.Context) error {
	positions, err := m.positions.FindOpenPositions()
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}

	touched := make(map[uint]struct{})
	for i := range positions {
		pos := &positions[i]
		touched[pos.PortfolioID] = struct{}{}
		if err := m.evaluate(ctx, pos); err != nil {
			logger.Error("evaluate %s position %d: %v", pos.Symbol, pos.ID, err)
		}
	}

	// Mark-to-market the touched portfolios once per tick.
	for portfolioID := range touched {
		if err := m.positions.RefreshEquity(portfolioID); err != nil {
			logger.Error("refresh equity for portfolio %d: %v", portfolioID, err)
		}
	}
	return nil
}

func (m *Monitor) evaluate(ctx context.Context, pos *models.Position) error {
	quote, err := m.feed.Current(ctx, pos.Symbol)
	if err != nil {
		return fmt.Errorf("fetch quote: %w", err)
	}

	// One reload on a stale version: the other tick already committed
	// its decision, re-evaluate against the fresh row.
	for attempt := 0; attempt < 2; attempt++ {
		err := m.apply(pos, quote)
		if !errors.Is(err, repositories.ErrStalePosition) {
			return err
		}
		fresh, ferr := m.positions.FindByID(pos.ID)
		if ferr != nil {
			return ferr
		}
		if fresh == nil || !fresh.IsOpen() {
			return nil
		}
		*pos = *fresh
	}
	return repositories.ErrStalePosition
}

func (m *Monitor) apply(pos *models.Position, quote exchange.Quote) error {
	realizedBefore := pos.RealizedPnL

	if err := pos.UpdatePrice(quote.Price, quote.ATR); err != nil {
		return err
	}

	decision := pos.EvaluateExits(m.partialFraction)
	switch decision.Action {
	case models.ExitFullClose:
		if err := pos.Close(decision.Price, decision.Reason, m.now()); err != nil {
			return err
		}
	case models.ExitPartialClose:
		if err := pos.PartialClose(decision.Quantity, decision.Price, decision.Reason, m.now()); err != nil {
			return err
		}
	default:
		return m.positions.UpdateLocked(pos)
	}

	delta := pos.RealizedPnL.Sub(realizedBefore)
	entry := exitLedgerEntry(pos, delta, decision.Reason)
	if err := m.positions.CommitExit(pos, delta, entry); err != nil {
		return err
	}

	m.notifier.Sendf("%s %s %s @ %s | qty=%s pnl=%s (%s)",
		pos.Symbol, pos.Side, decision.Reason, decision.Price,
		pos.FilledQuantity.Sub(pos.Quantity), delta, pos.Status)
	return nil
}

// exitLedgerEntry records the realized movement; nil when the exit
// realized exactly zero.
func exitLedgerEntry(pos *models.Position, delta decimal.Decimal, reason string) *models.LedgerEntry {
	if delta.IsZero() {
		return nil
	}
	entryType := models.LedgerEntryCredit
	amount := delta
	if delta.IsNegative() {
		entryType = models.LedgerEntryDebit
		amount = delta.Neg()
	}
	entry, err := models.NewLedgerEntry(pos.PortfolioID, amount, entryType, models.LedgerReasonPositionClosed+":"+reason)
	if err != nil {
		return nil
	}
	entry.PositionID = pos.ID
	return entry
}

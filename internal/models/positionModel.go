package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidPositionState rejects mutating calls with bad inputs
// (non-positive entry/quantity/price). The record is left unchanged.
var ErrInvalidPositionState = errors.New("invalid position state")

type Position struct {
	ID          uint   `gorm:"primaryKey"`
	PortfolioID uint   `gorm:"index;not null"`
	Symbol      string `gorm:"index;not null"`
	Side        string `gorm:"not null"`
	Bucket      string `gorm:"index;not null;default:'swing'"`

	Quantity       decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	FilledQuantity decimal.Decimal `gorm:"type:numeric(20,8);not null"`

	EntryPrice   decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	CurrentPrice decimal.Decimal `gorm:"type:numeric(20,8)"`
	ExitPrice    decimal.Decimal `gorm:"type:numeric(20,8)"`

	// Protective levels. Zero means the level is not set.
	StopLoss        decimal.Decimal `gorm:"type:numeric(20,8)"`
	InitialStopLoss decimal.Decimal `gorm:"type:numeric(20,8)"`
	TakeProfit      decimal.Decimal `gorm:"type:numeric(20,8)"`
	TP1             decimal.Decimal `gorm:"column:tp1;type:numeric(20,8)"`
	TP2             decimal.Decimal `gorm:"column:tp2;type:numeric(20,8)"`
	TP1Hit          bool            `gorm:"column:tp1_hit;not null;default:false"`
	BreakevenStop   decimal.Decimal `gorm:"type:numeric(20,8)"`

	// Trailing state. ATR takes precedence when both ATR and its
	// multiplier are present; otherwise fixed distance, then percent.
	HighestPrice          decimal.Decimal `gorm:"type:numeric(20,8)"`
	LowestPrice           decimal.Decimal `gorm:"type:numeric(20,8)"`
	TrailingStopDistance  decimal.Decimal `gorm:"type:numeric(20,8)"`
	TrailingStopPct       decimal.Decimal `gorm:"type:numeric(10,4)"`
	ATR                   decimal.Decimal `gorm:"column:atr;type:numeric(20,8)"`
	ATRTrailingMultiplier decimal.Decimal `gorm:"column:atr_trailing_multiplier;type:numeric(10,4)"`

	RealizedPnL      decimal.Decimal `gorm:"column:realized_pnl;type:numeric(20,8)"`
	RealizedPnLPct   decimal.Decimal `gorm:"column:realized_pnl_pct;type:numeric(10,4)"`
	UnrealizedPnL    decimal.Decimal `gorm:"column:unrealized_pnl;type:numeric(20,8)"`
	UnrealizedPnLPct decimal.Decimal `gorm:"column:unrealized_pnl_pct;type:numeric(10,4)"`

	Status      string `gorm:"index;not null"`
	ExitReason  string
	TradingMode string `gorm:"not null;default:'paper'"`

	OpenedAt time.Time `gorm:"index;not null"`
	ClosedAt *time.Time

	// Optimistic lock; bumped by the repository on every update.
	Version int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	PositionStatusOpen            = "open"
	PositionStatusPartiallyClosed = "partially_closed"
	PositionStatusClosed          = "closed"

	PositionSideLong  = "long"
	PositionSideShort = "short"

	BucketSwing    = "swing"
	BucketLongTerm = "long_term"

	TradingModeLive  = "live"
	TradingModePaper = "paper"
)

const (
	ExitReasonStopHit   = "stop_hit"
	ExitReasonTargetHit = "target_hit"
	ExitReasonTP1Hit    = "tp1_hit"
	ExitReasonTP2Hit    = "tp2_hit"
)

type ExitAction string

const (
	ExitNone         ExitAction = "none"
	ExitFullClose    ExitAction = "full_close"
	ExitPartialClose ExitAction = "partial_close"
)

// ExitDecision is the outcome of one evaluation tick. The caller applies
// it via Close or PartialClose inside the position's transaction.
type ExitDecision struct {
	Action   ExitAction
	Reason   string
	Price    decimal.Decimal
	Quantity decimal.Decimal // only set for partial closes
}

var hundred = decimal.NewFromInt(100)

// Open validates the entry and initializes lifecycle state. Fails with
// ErrInvalidPositionState without mutating the record.
func (p *Position) Open(at time.Time) error {
	if !p.EntryPrice.IsPositive() || !p.Quantity.IsPositive() {
		return ErrInvalidPositionState
	}
	if p.Side != PositionSideLong && p.Side != PositionSideShort {
		return ErrInvalidPositionState
	}
	if p.StopLoss.IsNegative() || p.TakeProfit.IsNegative() {
		return ErrInvalidPositionState
	}
	p.Status = PositionStatusOpen
	p.OpenedAt = at
	p.FilledQuantity = p.Quantity
	p.CurrentPrice = p.EntryPrice
	p.HighestPrice = p.EntryPrice
	p.LowestPrice = p.EntryPrice
	p.InitialStopLoss = p.StopLoss
	return nil
}

func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen || p.Status == PositionStatusPartiallyClosed
}

// UpdatePrice marks the position to the given price and optional ATR
// (zero means not supplied). It refreshes the running extremes and the
// unrealized P&L. It never changes status.
func (p *Position) UpdatePrice(price, atr decimal.Decimal) error {
	if !price.IsPositive() || atr.IsNegative() {
		return ErrInvalidPositionState
	}
	if !p.IsOpen() {
		return nil
	}
	p.CurrentPrice = price
	if atr.IsPositive() {
		p.ATR = atr
	}
	if price.GreaterThan(p.HighestPrice) {
		p.HighestPrice = price
	}
	if p.LowestPrice.IsZero() || price.LessThan(p.LowestPrice) {
		p.LowestPrice = price
	}
	p.refreshUnrealized()
	return nil
}

// EvaluateExits runs the deterministic exit checks, first match wins:
// hard stop, single take-profit, TP1 partial, TP2 remainder, trailing
// tighten + stop re-check. partialFraction is the caller's TP1 close
// policy (e.g. 0.5 for half the remaining quantity).
func (p *Position) EvaluateExits(partialFraction decimal.Decimal) ExitDecision {
	none := ExitDecision{Action: ExitNone}
	if !p.IsOpen() || !p.CurrentPrice.IsPositive() {
		return none
	}
	price := p.CurrentPrice

	if p.stopHit(price) {
		return ExitDecision{Action: ExitFullClose, Reason: ExitReasonStopHit, Price: price}
	}

	if p.TakeProfit.IsPositive() && p.targetReached(price, p.TakeProfit) {
		return ExitDecision{Action: ExitFullClose, Reason: ExitReasonTargetHit, Price: price}
	}

	if p.TP1.IsPositive() && !p.TP1Hit && p.targetReached(price, p.TP1) {
		qty := p.Quantity.Mul(partialFraction)
		p.TP1Hit = true
		if qty.LessThanOrEqual(decimal.Zero) || qty.GreaterThanOrEqual(p.Quantity) {
			return ExitDecision{Action: ExitFullClose, Reason: ExitReasonTP1Hit, Price: price}
		}
		return ExitDecision{Action: ExitPartialClose, Reason: ExitReasonTP1Hit, Price: price, Quantity: qty}
	}

	if p.TP2.IsPositive() && p.TP1Hit && p.targetReached(price, p.TP2) {
		return ExitDecision{Action: ExitFullClose, Reason: ExitReasonTP2Hit, Price: price}
	}

	p.tightenTrailingStop()
	if p.stopHit(price) {
		return ExitDecision{Action: ExitFullClose, Reason: ExitReasonStopHit, Price: price}
	}

	return none
}

// MoveToBreakeven snapshots the current stop and moves it to the entry
// price. Only valid while fully open; a second call is a no-op. The move
// is skipped when it would loosen the stop.
func (p *Position) MoveToBreakeven() {
	if p.Status != PositionStatusOpen || p.BreakevenStop.IsPositive() {
		return
	}
	if !p.improves(p.EntryPrice) {
		return
	}
	p.InitialStopLoss = p.StopLoss
	p.StopLoss = p.EntryPrice
	p.BreakevenStop = p.EntryPrice
}

// Close realizes the remaining quantity at exitPrice, freezes realized
// fields and zeroes the unrealized ones.
func (p *Position) Close(exitPrice decimal.Decimal, reason string, at time.Time) error {
	if !exitPrice.IsPositive() || !p.IsOpen() || !p.Quantity.IsPositive() {
		return ErrInvalidPositionState
	}
	pnl := p.directionPnL(exitPrice, p.Quantity)
	p.RealizedPnL = p.RealizedPnL.Add(pnl)
	p.RealizedPnLPct = p.realizedPct(p.FilledQuantity)
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	p.Status = PositionStatusClosed
	p.ClosedAt = &at
	p.UnrealizedPnL = decimal.Zero
	p.UnrealizedPnLPct = decimal.Zero
	return nil
}

// PartialClose realizes exitQty at exitPrice and reduces the remaining
// quantity. The position moves to partially_closed, or closed when
// nothing remains.
func (p *Position) PartialClose(exitQty, exitPrice decimal.Decimal, reason string, at time.Time) error {
	if !exitQty.IsPositive() || !exitPrice.IsPositive() || !p.IsOpen() {
		return ErrInvalidPositionState
	}
	if exitQty.GreaterThan(p.Quantity) {
		return ErrInvalidPositionState
	}
	pnl := p.directionPnL(exitPrice, exitQty)
	p.RealizedPnL = p.RealizedPnL.Add(pnl)
	p.Quantity = p.Quantity.Sub(exitQty)

	if p.Quantity.IsZero() {
		p.RealizedPnLPct = p.realizedPct(p.FilledQuantity)
		p.ExitPrice = exitPrice
		p.ExitReason = reason
		p.Status = PositionStatusClosed
		p.ClosedAt = &at
		p.UnrealizedPnL = decimal.Zero
		p.UnrealizedPnLPct = decimal.Zero
		return nil
	}

	p.RealizedPnLPct = p.realizedPct(p.FilledQuantity.Sub(p.Quantity))
	p.Status = PositionStatusPartiallyClosed
	p.refreshUnrealized()
	return nil
}

// Exposure is the capital committed at entry for the remaining quantity.
func (p *Position) Exposure() decimal.Decimal {
	return p.EntryPrice.Mul(p.Quantity)
}

func (p *Position) refreshUnrealized() {
	if !p.CurrentPrice.IsPositive() {
		return
	}
	p.UnrealizedPnL = p.directionPnL(p.CurrentPrice, p.Quantity)
	if p.EntryPrice.IsPositive() {
		move := p.CurrentPrice.Sub(p.EntryPrice)
		if p.Side == PositionSideShort {
			move = move.Neg()
		}
		p.UnrealizedPnLPct = move.Div(p.EntryPrice).Mul(hundred)
	}
}

// directionPnL is (price − entry) × qty for longs, (entry − price) × qty
// for shorts.
func (p *Position) directionPnL(price, qty decimal.Decimal) decimal.Decimal {
	move := price.Sub(p.EntryPrice)
	if p.Side == PositionSideShort {
		move = move.Neg()
	}
	return move.Mul(qty)
}

func (p *Position) realizedPct(closedQty decimal.Decimal) decimal.Decimal {
	basis := p.EntryPrice.Mul(closedQty)
	if !basis.IsPositive() {
		return decimal.Zero
	}
	return p.RealizedPnL.Div(basis).Mul(hundred)
}

func (p *Position) stopHit(price decimal.Decimal) bool {
	if !p.StopLoss.IsPositive() {
		return false
	}
	if p.Side == PositionSideLong {
		return price.LessThanOrEqual(p.StopLoss)
	}
	return price.GreaterThanOrEqual(p.StopLoss)
}

func (p *Position) targetReached(price, target decimal.Decimal) bool {
	if p.Side == PositionSideLong {
		return price.GreaterThanOrEqual(target)
	}
	return price.LessThanOrEqual(target)
}

// improves reports whether candidate tightens the protective stop:
// higher for longs, lower for shorts. An unset stop is always improved.
func (p *Position) improves(candidate decimal.Decimal) bool {
	if !candidate.IsPositive() {
		return false
	}
	if !p.StopLoss.IsPositive() {
		return true
	}
	if p.Side == PositionSideLong {
		return candidate.GreaterThan(p.StopLoss)
	}
	return candidate.LessThan(p.StopLoss)
}

// tightenTrailingStop adopts a trailing candidate as the new stop only
// when it reduces risk. ATR trailing wins over fixed distance, which
// wins over percent.
func (p *Position) tightenTrailingStop() {
	candidate := decimal.Zero

	switch {
	case p.ATR.IsPositive() && p.ATRTrailingMultiplier.IsPositive():
		candidate = p.trailFrom(p.ATR.Mul(p.ATRTrailingMultiplier))
	case p.TrailingStopDistance.IsPositive():
		candidate = p.trailFrom(p.TrailingStopDistance)
	case p.TrailingStopPct.IsPositive():
		if p.Side == PositionSideLong {
			candidate = p.HighestPrice.Mul(hundred.Sub(p.TrailingStopPct)).Div(hundred)
		} else {
			candidate = p.LowestPrice.Mul(hundred.Add(p.TrailingStopPct)).Div(hundred)
		}
	}

	if p.improves(candidate) {
		p.StopLoss = candidate
	}
}

func (p *Position) trailFrom(dist decimal.Decimal) decimal.Decimal {
	if p.Side == PositionSideLong {
		return p.HighestPrice.Sub(dist)
	}
	return p.LowestPrice.Add(dist)
}

package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func openLong(t *testing.T, entry, qty string) *Position {
	t.Helper()
	p := &Position{
		PortfolioID: 1,
		Symbol:      "AAPL",
		Side:        PositionSideLong,
		Bucket:      BucketSwing,
		Quantity:    d(qty),
		EntryPrice:  d(entry),
	}
	require.NoError(t, p.Open(time.Now()))
	return p
}

func TestOpen_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mod  func(p *Position)
	}{
		{"zero entry", func(p *Position) { p.EntryPrice = decimal.Zero }},
		{"negative quantity", func(p *Position) { p.Quantity = d("-1") }},
		{"bad side", func(p *Position) { p.Side = "sideways" }},
		{"negative stop", func(p *Position) { p.StopLoss = d("-95") }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &Position{
				Side:       PositionSideLong,
				Quantity:   d("10"),
				EntryPrice: d("100"),
			}
			tt.mod(p)
			assert.ErrorIs(t, p.Open(time.Now()), ErrInvalidPositionState)
			assert.Empty(t, p.Status)
		})
	}
}

func TestUpdatePrice_RejectsBadTicks(t *testing.T) {
	t.Parallel()

	p := openLong(t, "100", "10")
	assert.ErrorIs(t, p.UpdatePrice(decimal.Zero, decimal.Zero), ErrInvalidPositionState)
	assert.ErrorIs(t, p.UpdatePrice(d("-5"), decimal.Zero), ErrInvalidPositionState)
	assert.ErrorIs(t, p.UpdatePrice(d("101"), d("-1")), ErrInvalidPositionState)
	assert.True(t, p.CurrentPrice.Equal(d("100")), "rejected tick must not move the mark")
}

func TestUpdatePrice_TracksExtremesAndUnrealized(t *testing.T) {
	t.Parallel()

	p := openLong(t, "100", "10")
	require.NoError(t, p.UpdatePrice(d("110"), decimal.Zero))
	require.NoError(t, p.UpdatePrice(d("95"), decimal.Zero))

	assert.True(t, p.HighestPrice.Equal(d("110")))
	assert.True(t, p.LowestPrice.Equal(d("95")))
	assert.True(t, p.UnrealizedPnL.Equal(d("-50")))
	assert.True(t, p.UnrealizedPnLPct.Equal(d("-5")))
}

// Worked end to end: long 10 @ 100 with atr=2, multiplier=2. The rally
// to 110 trails the stop up to 106; the pullback to 105 stops out for
// +5/share on the remaining quantity.
func TestEvaluateExits_ATRTrailingStopsOut(t *testing.T) {
	t.Parallel()

	p := openLong(t, "100", "10")
	p.StopLoss = d("95")
	p.InitialStopLoss = d("95")
	p.ATRTrailingMultiplier = d("2")

	require.NoError(t, p.UpdatePrice(d("110"), d("2")))
	decision := p.EvaluateExits(d("0.5"))
	assert.Equal(t, ExitNone, decision.Action)
	assert.True(t, p.StopLoss.Equal(d("106")), "stop should trail to 110 - 2*2")

	require.NoError(t, p.UpdatePrice(d("105"), d("2")))
	decision = p.EvaluateExits(d("0.5"))
	require.Equal(t, ExitFullClose, decision.Action)
	assert.Equal(t, ExitReasonStopHit, decision.Reason)
	assert.True(t, decision.Price.Equal(d("105")), "exit fills at the tick, not the stop level")

	require.NoError(t, p.Close(decision.Price, decision.Reason, time.Now()))
	assert.True(t, p.RealizedPnL.Equal(d("50")))
	assert.Equal(t, PositionStatusClosed, p.Status)
}

func TestEvaluateExits_StopNeverLoosens(t *testing.T) {
	t.Parallel()

	p := openLong(t, "100", "10")
	p.StopLoss = d("95")
	p.ATRTrailingMultiplier = d("2")

	require.NoError(t, p.UpdatePrice(d("110"), d("2")))
	p.EvaluateExits(d("0.5"))
	require.True(t, p.StopLoss.Equal(d("106")))

	// Wider ATR would place the trail below the current stop.
	require.NoError(t, p.UpdatePrice(d("110"), d("10")))
	p.EvaluateExits(d("0.5"))
	assert.True(t, p.StopLoss.Equal(d("106")), "a looser candidate must be ignored")
}

func TestEvaluateExits_PercentTrailingStopsOut(t *testing.T) {
	t.Parallel()

	p := openLong(t, "100", "10")
	p.StopLoss = d("95")
	p.TrailingStopPct = d("5")

	require.NoError(t, p.UpdatePrice(d("120"), decimal.Zero))
	decision := p.EvaluateExits(d("0.5"))
	assert.Equal(t, ExitNone, decision.Action)
	assert.True(t, p.StopLoss.Equal(d("114")), "stop trails five percent behind the high")

	require.NoError(t, p.UpdatePrice(d("115"), decimal.Zero))
	decision = p.EvaluateExits(d("0.5"))
	assert.Equal(t, ExitNone, decision.Action)
	assert.True(t, p.StopLoss.Equal(d("114")), "pullback must not loosen the stop")

	require.NoError(t, p.UpdatePrice(d("113"), decimal.Zero))
	decision = p.EvaluateExits(d("0.5"))
	require.Equal(t, ExitFullClose, decision.Action)
	assert.Equal(t, ExitReasonStopHit, decision.Reason)
	assert.True(t, decision.Price.Equal(d("113")))
}

func TestEvaluateExits_ShortPercentTrailing(t *testing.T) {
	t.Parallel()

	p := &Position{
		Side:            PositionSideShort,
		Quantity:        d("10"),
		EntryPrice:      d("100"),
		StopLoss:        d("105"),
		TrailingStopPct: d("5"),
	}
	require.NoError(t, p.Open(time.Now()))

	require.NoError(t, p.UpdatePrice(d("80"), decimal.Zero))
	decision := p.EvaluateExits(d("0.5"))
	assert.Equal(t, ExitNone, decision.Action)
	assert.True(t, p.StopLoss.Equal(d("84")), "short stop trails five percent above the low")

	require.NoError(t, p.UpdatePrice(d("84"), decimal.Zero))
	decision = p.EvaluateExits(d("0.5"))
	require.Equal(t, ExitFullClose, decision.Action)
	assert.Equal(t, ExitReasonStopHit, decision.Reason)
}

func TestEvaluateExits_ShortTrailsDown(t *testing.T) {
	t.Parallel()

	p := &Position{
		Side:                 PositionSideShort,
		Quantity:             d("10"),
		EntryPrice:           d("100"),
		StopLoss:             d("105"),
		TrailingStopDistance: d("4"),
	}
	require.NoError(t, p.Open(time.Now()))

	require.NoError(t, p.UpdatePrice(d("90"), decimal.Zero))
	decision := p.EvaluateExits(d("0.5"))
	assert.Equal(t, ExitNone, decision.Action)
	assert.True(t, p.StopLoss.Equal(d("94")), "short stop trails to lowest + distance")

	require.NoError(t, p.UpdatePrice(d("94"), decimal.Zero))
	decision = p.EvaluateExits(d("0.5"))
	require.Equal(t, ExitFullClose, decision.Action)
	assert.Equal(t, ExitReasonStopHit, decision.Reason)
}

func TestEvaluateExits_StopBeatsTarget(t *testing.T) {
	t.Parallel()

	// Degenerate config where both levels are breached at once: the
	// hard stop must win.
	p := openLong(t, "100", "10")
	p.StopLoss = d("120")
	p.TakeProfit = d("110")

	require.NoError(t, p.UpdatePrice(d("115"), decimal.Zero))
	decision := p.EvaluateExits(d("0.5"))
	require.Equal(t, ExitFullClose, decision.Action)
	assert.Equal(t, ExitReasonStopHit, decision.Reason)
}

func TestEvaluateExits_SingleTakeProfit(t *testing.T) {
	t.Parallel()

	p := openLong(t, "100", "10")
	p.TakeProfit = d("110")

	require.NoError(t, p.UpdatePrice(d("110"), decimal.Zero))
	decision := p.EvaluateExits(d("0.5"))
	require.Equal(t, ExitFullClose, decision.Action)
	assert.Equal(t, ExitReasonTargetHit, decision.Reason)
}

func TestEvaluateExits_TP1ThenTP2(t *testing.T) {
	t.Parallel()

	p := openLong(t, "100", "10")
	p.TP1 = d("110")
	p.TP2 = d("120")

	require.NoError(t, p.UpdatePrice(d("110"), decimal.Zero))
	decision := p.EvaluateExits(d("0.5"))
	require.Equal(t, ExitPartialClose, decision.Action)
	assert.Equal(t, ExitReasonTP1Hit, decision.Reason)
	assert.True(t, decision.Quantity.Equal(d("5")))
	require.NoError(t, p.PartialClose(decision.Quantity, decision.Price, decision.Reason, time.Now()))
	assert.Equal(t, PositionStatusPartiallyClosed, p.Status)
	assert.True(t, p.RealizedPnL.Equal(d("50")))

	// TP1 does not fire twice for the same level.
	decision = p.EvaluateExits(d("0.5"))
	assert.Equal(t, ExitNone, decision.Action)

	require.NoError(t, p.UpdatePrice(d("120"), decimal.Zero))
	decision = p.EvaluateExits(d("0.5"))
	require.Equal(t, ExitFullClose, decision.Action)
	assert.Equal(t, ExitReasonTP2Hit, decision.Reason)
	require.NoError(t, p.Close(decision.Price, decision.Reason, time.Now()))

	// 5 @ +10 then 5 @ +20 on a 1000 basis.
	assert.True(t, p.RealizedPnL.Equal(d("150")))
	assert.True(t, p.RealizedPnLPct.Equal(d("15")))
	assert.True(t, p.UnrealizedPnL.IsZero())
}

func TestMoveToBreakeven(t *testing.T) {
	t.Parallel()

	p := openLong(t, "100", "10")
	p.StopLoss = d("95")

	p.MoveToBreakeven()
	assert.True(t, p.StopLoss.Equal(d("100")))
	assert.True(t, p.BreakevenStop.Equal(d("100")))

	// Second call is a no-op even after the stop trailed higher.
	p.StopLoss = d("104")
	p.MoveToBreakeven()
	assert.True(t, p.StopLoss.Equal(d("104")))
}

func TestMoveToBreakeven_NeverLoosens(t *testing.T) {
	t.Parallel()

	p := openLong(t, "100", "10")
	p.StopLoss = d("102") // already above entry

	p.MoveToBreakeven()
	assert.True(t, p.StopLoss.Equal(d("102")), "breakeven must not pull the stop back down")
	assert.True(t, p.BreakevenStop.IsZero())
}

func TestClosedPositionIsInert(t *testing.T) {
	t.Parallel()

	p := openLong(t, "100", "10")
	require.NoError(t, p.UpdatePrice(d("105"), decimal.Zero))
	require.NoError(t, p.Close(d("105"), ExitReasonTargetHit, time.Now()))

	require.NoError(t, p.UpdatePrice(d("90"), decimal.Zero))
	assert.True(t, p.CurrentPrice.Equal(d("105")), "ticks after close must not change the record")
	assert.Equal(t, ExitNone, p.EvaluateExits(d("0.5")).Action)
	assert.ErrorIs(t, p.Close(d("90"), ExitReasonStopHit, time.Now()), ErrInvalidPositionState)
}

func TestPartialClose_RejectsOverfill(t *testing.T) {
	t.Parallel()

	p := openLong(t, "100", "10")
	assert.ErrorIs(t, p.PartialClose(d("11"), d("105"), ExitReasonTP1Hit, time.Now()), ErrInvalidPositionState)
	assert.True(t, p.Quantity.Equal(d("10")))
}

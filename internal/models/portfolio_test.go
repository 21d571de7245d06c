package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUpdateEquity_Identity(t *testing.T) {
	t.Parallel()

	p := &Portfolio{
		AvailableCash:   d("20000"),
		SwingCapital:    d("70000"),
		LongTermCapital: d("10000"),
	}
	p.UpdateEquity(d("500"))

	want := p.AvailableCash.Add(p.SwingCapital).Add(p.LongTermCapital).Add(p.UnrealizedPnL)
	assert.True(t, p.TotalEquity.Equal(want))
	assert.True(t, p.TotalEquity.Equal(d("100500")))
}

func TestUpdateEquity_DrawdownIsMonotonic(t *testing.T) {
	t.Parallel()

	p := &Portfolio{AvailableCash: d("100000")}
	p.UpdateEquity(decimal.Zero)
	assert.True(t, p.PeakEquity.Equal(d("100000")))
	assert.True(t, p.MaxDrawdown.IsZero())

	// 10% drop, then a full recovery: the watermark must not shrink.
	p.AvailableCash = d("90000")
	p.UpdateEquity(decimal.Zero)
	assert.True(t, p.MaxDrawdown.Equal(d("10")))

	p.AvailableCash = d("120000")
	p.UpdateEquity(decimal.Zero)
	assert.True(t, p.PeakEquity.Equal(d("120000")))
	assert.True(t, p.MaxDrawdown.Equal(d("10")), "recovery never resets max drawdown")

	// A smaller later dip does not overwrite a deeper earlier one.
	p.AvailableCash = d("114000")
	p.UpdateEquity(decimal.Zero)
	assert.True(t, p.MaxDrawdown.Equal(d("10")))
}

func TestApplyRealized_SettlesIntoCash(t *testing.T) {
	t.Parallel()

	p := &Portfolio{AvailableCash: d("10000")}
	p.ApplyRealized(d("250"))
	p.ApplyRealized(d("-100"))

	assert.True(t, p.RealizedPnL.Equal(d("150")))
	assert.True(t, p.AvailableCash.Equal(d("10150")))
}

func TestBucketCapital(t *testing.T) {
	t.Parallel()

	p := &Portfolio{SwingCapital: d("70000"), LongTermCapital: d("20000")}
	assert.True(t, p.BucketCapital(BucketSwing).Equal(d("70000")))
	assert.True(t, p.BucketCapital(BucketLongTerm).Equal(d("20000")))
}

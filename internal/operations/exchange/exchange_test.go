package exchange

import (
	"context"
	"testing"

	"EquityTradeBot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", "184.25", false},
		{"valid fractional", "0.00001234", false},
		{"zero", "0", true},
		{"negative", "-5", true},
		{"garbage", "not-a-price", true},
		{"nan", "NaN", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			quote, err := parseQuote(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, quote.Price.IsPositive())
			assert.True(t, quote.ATR.IsZero(), "exchange quotes never carry ATR")
		})
	}
}

func TestPaperSubmitter(t *testing.T) {
	t.Parallel()

	s := NewPaperSubmitter()

	ref1, err := s.Submit(context.Background(), &models.Order{ClientOrderID: "a"})
	require.NoError(t, err)
	ref2, err := s.Submit(context.Background(), &models.Order{ClientOrderID: "a"})
	require.NoError(t, err)

	assert.NotEqual(t, ref1, ref2, "paper fills get distinct broker refs")
	assert.Contains(t, ref1, "paper-")

	_, err = s.Submit(context.Background(), nil)
	assert.Error(t, err)
}

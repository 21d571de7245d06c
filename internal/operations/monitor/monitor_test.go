package monitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"EquityTradeBot/internal/models"
	"EquityTradeBot/internal/operations/exchange"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeFeed struct {
	quotes map[string]exchange.Quote
	err    error
}

func (f *fakeFeed) Current(_ context.Context, symbol string) (exchange.Quote, error) {
	if f.err != nil {
		return exchange.Quote{}, f.err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return exchange.Quote{}, fmt.Errorf("no quote for %s", symbol)
	}
	return q, nil
}

type fakeStore struct {
	positions map[uint]*models.Position

	updates   int
	commits   []commitRecord
	refreshed []uint
}

type commitRecord struct {
	position *models.Position
	delta    decimal.Decimal
	entry    *models.LedgerEntry
}

func newFakeStore(positions ...*models.Position) *fakeStore {
	s := &fakeStore{positions: map[uint]*models.Position{}}
	for _, p := range positions {
		s.positions[p.ID] = p
	}
	return s
}

func (s *fakeStore) FindOpenPositions() ([]models.Position, error) {
	var out []models.Position
	for _, p := range s.positions {
		if p.IsOpen() {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) FindByID(id uint) (*models.Position, error) {
	return s.positions[id], nil
}

func (s *fakeStore) UpdateLocked(position *models.Position) error {
	s.updates++
	s.positions[position.ID] = position
	return nil
}

func (s *fakeStore) CommitExit(position *models.Position, delta decimal.Decimal, entry *models.LedgerEntry) error {
	s.commits = append(s.commits, commitRecord{position: position, delta: delta, entry: entry})
	s.positions[position.ID] = position
	return nil
}

func (s *fakeStore) RefreshEquity(portfolioID uint) error {
	s.refreshed = append(s.refreshed, portfolioID)
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Send(string)          {}
func (nopNotifier) Sendf(string, ...any) {}

func trailingLong(id uint) *models.Position {
	p := &models.Position{
		ID:                    id,
		PortfolioID:           1,
		Symbol:                "AAPL",
		Side:                  models.PositionSideLong,
		Bucket:                models.BucketSwing,
		Quantity:              d("10"),
		EntryPrice:            d("100"),
		StopLoss:              d("95"),
		ATRTrailingMultiplier: d("2"),
	}
	if err := p.Open(time.Now()); err != nil {
		panic(err)
	}
	return p
}

func TestTick_MarksOpenPositionWithoutExit(t *testing.T) {
	t.Parallel()

	pos := trailingLong(1)
	store := newFakeStore(pos)
	feed := &fakeFeed{quotes: map[string]exchange.Quote{
		"AAPL": {Price: d("110"), ATR: d("2")},
	}}
	m := NewMonitor(feed, store, nopNotifier{}, d("0.5"))

	require.NoError(t, m.Tick(context.Background()))

	assert.Equal(t, 1, store.updates)
	assert.Empty(t, store.commits)
	got := store.positions[1]
	assert.True(t, got.CurrentPrice.Equal(d("110")))
	assert.True(t, got.StopLoss.Equal(d("106")), "stop should trail behind the rally")
	assert.True(t, got.UnrealizedPnL.Equal(d("100")))
	assert.Equal(t, []uint{1}, store.refreshed)
}

// Rally to 110 trails the stop to 106, then the pullback to 105 closes
// the position at the tick for +50 and books a credit entry.
func TestTick_TrailingStopClosesAndLedgers(t *testing.T) {
	t.Parallel()

	pos := trailingLong(1)
	store := newFakeStore(pos)
	feed := &fakeFeed{quotes: map[string]exchange.Quote{
		"AAPL": {Price: d("110"), ATR: d("2")},
	}}
	m := NewMonitor(feed, store, nopNotifier{}, d("0.5"))

	require.NoError(t, m.Tick(context.Background()))
	feed.quotes["AAPL"] = exchange.Quote{Price: d("105"), ATR: d("2")}
	require.NoError(t, m.Tick(context.Background()))

	require.Len(t, store.commits, 1)
	commit := store.commits[0]
	assert.True(t, commit.delta.Equal(d("50")))

	closed := store.positions[1]
	assert.Equal(t, models.PositionStatusClosed, closed.Status)
	assert.Equal(t, models.ExitReasonStopHit, closed.ExitReason)
	assert.True(t, closed.ExitPrice.Equal(d("105")))

	require.NotNil(t, commit.entry)
	assert.Equal(t, models.LedgerEntryCredit, commit.entry.EntryType)
	assert.True(t, commit.entry.Amount.Equal(d("50")))
	assert.Equal(t, models.LedgerReasonPositionClosed+":"+models.ExitReasonStopHit, commit.entry.Reason)
	assert.Equal(t, uint(1), commit.entry.PositionID)
}

func TestTick_PartialThenRemainderExit(t *testing.T) {
	t.Parallel()

	pos := trailingLong(1)
	pos.ATRTrailingMultiplier = decimal.Zero
	pos.TP1 = d("110")
	pos.TP2 = d("120")
	store := newFakeStore(pos)
	feed := &fakeFeed{quotes: map[string]exchange.Quote{
		"AAPL": {Price: d("110")},
	}}
	m := NewMonitor(feed, store, nopNotifier{}, d("0.5"))

	require.NoError(t, m.Tick(context.Background()))

	require.Len(t, store.commits, 1)
	assert.True(t, store.commits[0].delta.Equal(d("50")), "half the book at +10/share")
	partial := store.positions[1]
	assert.Equal(t, models.PositionStatusPartiallyClosed, partial.Status)
	assert.True(t, partial.Quantity.Equal(d("5")))

	feed.quotes["AAPL"] = exchange.Quote{Price: d("120")}
	require.NoError(t, m.Tick(context.Background()))

	require.Len(t, store.commits, 2)
	assert.True(t, store.commits[1].delta.Equal(d("100")), "remainder at +20/share")
	assert.Equal(t, models.PositionStatusClosed, store.positions[1].Status)
	assert.True(t, store.positions[1].RealizedPnL.Equal(d("150")))
}

func TestTick_LossMakingExitBooksDebit(t *testing.T) {
	t.Parallel()

	pos := trailingLong(1)
	pos.ATRTrailingMultiplier = decimal.Zero
	store := newFakeStore(pos)
	feed := &fakeFeed{quotes: map[string]exchange.Quote{
		"AAPL": {Price: d("95")},
	}}
	m := NewMonitor(feed, store, nopNotifier{}, d("0.5"))

	require.NoError(t, m.Tick(context.Background()))

	require.Len(t, store.commits, 1)
	commit := store.commits[0]
	assert.True(t, commit.delta.Equal(d("-50")))
	require.NotNil(t, commit.entry)
	assert.Equal(t, models.LedgerEntryDebit, commit.entry.EntryType)
	assert.True(t, commit.entry.Amount.Equal(d("50")), "ledger amounts are unsigned")
}

func TestTick_FeedFailureLeavesPositionUntouched(t *testing.T) {
	t.Parallel()

	pos := trailingLong(1)
	store := newFakeStore(pos)
	feed := &fakeFeed{err: fmt.Errorf("exchange unavailable")}
	m := NewMonitor(feed, store, nopNotifier{}, d("0.5"))

	require.NoError(t, m.Tick(context.Background()), "one bad symbol must not fail the tick")

	assert.Equal(t, 0, store.updates)
	assert.Empty(t, store.commits)
	assert.True(t, store.positions[1].CurrentPrice.Equal(d("100")))
	assert.Equal(t, []uint{1}, store.refreshed, "equity still refreshes from the last good marks")
}

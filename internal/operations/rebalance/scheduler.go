package rebalance

import (
	"context"
	"fmt"
	"time"

	"EquityTradeBot/internal/logger"
	"EquityTradeBot/internal/models"
	"EquityTradeBot/internal/notify"
	"EquityTradeBot/internal/services/capital"

	"github.com/shopspring/decimal"
)

type PortfolioStore interface {
	FindByID(id uint) (*models.Portfolio, error)
	ApplyRebalance(portfolio *models.Portfolio, bucket *models.CapitalBucket, entry *models.LedgerEntry) error
}

type BucketStore interface {
	FindByPortfolio(portfolioID uint) (*models.CapitalBucket, error)
}

type ExposureStore interface {
	SumOpenExposure(portfolioID uint, bucket string) (decimal.Decimal, error)
}

// Scheduler re-buckets a portfolio's equity on a slow cadence. It reads
// a snapshot, computes the allocation, and commits bucket + portfolio +
// ledger in one transaction; no locks are held across the computation.
type Scheduler struct {
	portfolios  PortfolioStore
	buckets     BucketStore
	positions   ExposureStore
	notifier    notify.Notifier
	portfolioID uint
}

func NewScheduler(portfolios PortfolioStore, buckets BucketStore, positions ExposureStore, notifier notify.Notifier, portfolioID uint) *Scheduler {
	return &Scheduler{
		portfolios:  portfolios,
		buckets:     buckets,
		positions:   positions,
		notifier:    notifier,
		portfolioID: portfolioID,
	}
}

// Run rebalances on a fixed interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RebalanceOnce(ctx); err != nil {
				logger.Error("rebalance: %v", err)
			}
		}
	}
}

// RebalanceOnce performs one rebalance pass and returns the applied
// allocation.
func (s *Scheduler) RebalanceOnce(_ context.Context) (capital.Allocation, error) {
	portfolio, err := s.portfolios.FindByID(s.portfolioID)
	if err != nil {
		return capital.Allocation{}, fmt.Errorf("load portfolio: %w", err)
	}
	if portfolio == nil {
		return capital.Allocation{}, fmt.Errorf("portfolio %d not found", s.portfolioID)
	}
	if !portfolio.TotalEquity.IsPositive() {
		return capital.Allocation{}, fmt.Errorf("portfolio %d has no equity to allocate", s.portfolioID)
	}

	bucket, err := s.buckets.FindByPortfolio(portfolio.ID)
	if err != nil {
		return capital.Allocation{}, fmt.Errorf("load capital bucket: %w", err)
	}
	if bucket == nil {
		return capital.Allocation{}, fmt.Errorf("no capital bucket for portfolio %d", portfolio.ID)
	}

	swingExposure, err := s.positions.SumOpenExposure(portfolio.ID, models.BucketSwing)
	if err != nil {
		return capital.Allocation{}, fmt.Errorf("sum swing exposure: %w", err)
	}
	longTermValue, err := s.positions.SumOpenExposure(portfolio.ID, models.BucketLongTerm)
	if err != nil {
		return capital.Allocation{}, fmt.Errorf("sum long-term value: %w", err)
	}

	alloc := capital.Rebalance(portfolio.TotalEquity, swingExposure, longTermValue,
		bucket.Threshold3L, bucket.Threshold5L)

	if err := bucket.SetPercentages(alloc.SwingPct, alloc.LongTermPct, alloc.CashPct); err != nil {
		return capital.Allocation{}, fmt.Errorf("apply bucket percentages: %w", err)
	}

	portfolio.SwingCapital = alloc.SwingAmount
	portfolio.LongTermCapital = alloc.LongTermAmount
	portfolio.AvailableCash = alloc.CashAmount
	portfolio.UpdateEquity(portfolio.UnrealizedPnL)

	entry, err := models.NewLedgerEntry(portfolio.ID, portfolio.TotalEquity,
		models.LedgerEntryCredit, models.LedgerReasonRebalance)
	if err != nil {
		return capital.Allocation{}, fmt.Errorf("build ledger entry: %w", err)
	}
	if err := entry.WithMetadata(models.RebalanceMetadata{
		Phase:       alloc.Phase,
		SwingPct:    alloc.SwingPct,
		LongTermPct: alloc.LongTermPct,
		CashPct:     alloc.CashPct,
	}); err != nil {
		return capital.Allocation{}, err
	}

	// The ledger write commits with the allocation or not at all; a
	// rebalance without its audit row must never be persisted.
	if err := s.portfolios.ApplyRebalance(portfolio, bucket, entry); err != nil {
		return capital.Allocation{}, fmt.Errorf("commit rebalance: %w", err)
	}

	if alloc.Infeasible {
		s.notifier.Sendf("rebalance for portfolio %d is over-committed: floors exceed equity %s, cash clamped to 0",
			portfolio.ID, portfolio.TotalEquity)
	} else {
		s.notifier.Sendf("rebalanced portfolio %d: phase=%s swing=%s long_term=%s cash=%s",
			portfolio.ID, alloc.Phase, alloc.SwingAmount, alloc.LongTermAmount, alloc.CashAmount)
	}

	return alloc, nil
}

package repositories

import (
	"EquityTradeBot/internal/models"
	"errors"
	"time"

	"gorm.io/gorm"
)

// LedgerRepository only appends and reads. There is deliberately no
// Update or Delete: ledger rows are the audit trail.
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new instance of LedgerRepository
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create appends a new LedgerEntry
func (r *LedgerRepository) Create(entry *models.LedgerEntry) error {
	if entry == nil {
		return errors.New("ledger entry cannot be nil")
	}
	if !entry.Amount.IsPositive() {
		return errors.New("ledger amount must be positive")
	}
	return r.db.Create(entry).Error
}

// FindByPortfolio retrieves all entries for a portfolio, newest first
func (r *LedgerRepository) FindByPortfolio(portfolioID uint) ([]models.LedgerEntry, error) {
	if portfolioID == 0 {
		return nil, errors.New("invalid portfolio id")
	}
	var entries []models.LedgerEntry
	err := r.db.
		Where("portfolio_id = ?", portfolioID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// FindByTimeRange retrieves entries written within a time range
func (r *LedgerRepository) FindByTimeRange(portfolioID uint, start, end time.Time) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.
		Where("portfolio_id = ? AND created_at BETWEEN ? AND ?", portfolioID, start, end).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

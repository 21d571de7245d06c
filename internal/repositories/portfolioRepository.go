package repositories

import (
	"EquityTradeBot/internal/models"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PortfolioRepository struct {
	db *gorm.DB
}

// NewPortfolioRepository creates a new instance of PortfolioRepository
func NewPortfolioRepository(db *gorm.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Bootstrap creates the portfolio and its capital bucket if they do not
// exist yet and returns the handle. This is the explicit startup step;
// nothing else in the call graph creates portfolios.
func (r *PortfolioRepository) Bootstrap(name, mode string, openingCash, threshold3L, threshold5L decimal.Decimal) (*models.Portfolio, error) {
	if name == "" {
		return nil, errors.New("portfolio name cannot be empty")
	}
	var portfolio models.Portfolio
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ? AND mode = ?", name, mode).First(&portfolio).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		portfolio = models.Portfolio{
			Name:          name,
			Mode:          mode,
			AvailableCash: openingCash,
		}
		portfolio.UpdateEquity(decimal.Zero)
		if err := tx.Create(&portfolio).Error; err != nil {
			return err
		}
		bucket := models.CapitalBucket{
			PortfolioID: portfolio.ID,
			CashPct:     decimal.NewFromInt(100),
			Threshold3L: threshold3L,
			Threshold5L: threshold5L,
		}
		return tx.Create(&bucket).Error
	})
	if err != nil {
		return nil, err
	}
	return &portfolio, nil
}

// FindByID retrieves a Portfolio record by its ID
func (r *PortfolioRepository) FindByID(id uint) (*models.Portfolio, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var portfolio models.Portfolio
	err := r.db.First(&portfolio, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &portfolio, err
}

// Update modifies an existing Portfolio record
func (r *PortfolioRepository) Update(portfolio *models.Portfolio) error {
	if portfolio == nil {
		return errors.New("portfolio cannot be nil")
	}
	return r.db.Save(portfolio).Error
}

// ApplyRebalance persists the outcome of a rebalance as one transaction:
// updated bucket percentages, updated portfolio amounts, and the audit
// ledger entry. A failed ledger write rolls everything back.
func (r *PortfolioRepository) ApplyRebalance(portfolio *models.Portfolio, bucket *models.CapitalBucket, entry *models.LedgerEntry) error {
	if portfolio == nil || bucket == nil || entry == nil {
		return errors.New("rebalance requires portfolio, bucket and ledger entry")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(bucket).Error; err != nil {
			return err
		}
		if err := tx.Save(portfolio).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

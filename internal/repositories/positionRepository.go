package repositories

import (
	"EquityTradeBot/internal/models"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrStalePosition means the optimistic version check failed: another
// tick committed first. Reload and re-evaluate.
var ErrStalePosition = errors.New("position was modified concurrently")

type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new instance of PositionRepository
func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create adds a new Position record to the database
func (r *PositionRepository) Create(position *models.Position) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	return r.db.Create(position).Error
}

// CommitOpen persists a newly opened position together with its entry
// exposure ledger debit in one transaction. A failed ledger write rolls
// back the position insert; a position must never exist without its
// audit row.
func (r *PositionRepository) CommitOpen(position *models.Position, entry *models.LedgerEntry) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	if entry == nil {
		return errors.New("ledger entry cannot be nil")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(position).Error; err != nil {
			return err
		}
		entry.PositionID = position.ID
		return tx.Create(entry).Error
	})
}

// FindByID retrieves a Position record by its ID
func (r *PositionRepository) FindByID(id uint) (*models.Position, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var position models.Position
	err := r.db.First(&position, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &position, err
}

// FindOpenPositions retrieves all open and partially closed positions
func (r *PositionRepository) FindOpenPositions() ([]models.Position, error) {
	var positions []models.Position
	err := r.db.
		Where("status IN ?", []string{models.PositionStatusOpen, models.PositionStatusPartiallyClosed}).
		Find(&positions).Error
	return positions, err
}

// FindOpenByPortfolio retrieves open positions for one portfolio
func (r *PositionRepository) FindOpenByPortfolio(portfolioID uint) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.
		Where("portfolio_id = ? AND status IN ?", portfolioID,
			[]string{models.PositionStatusOpen, models.PositionStatusPartiallyClosed}).
		Find(&positions).Error
	return positions, err
}

// FindPositionsBySymbol retrieves all positions for a specific symbol
func (r *PositionRepository) FindPositionsBySymbol(symbol string) ([]models.Position, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}
	var positions []models.Position
	err := r.db.Where("symbol = ?", symbol).Find(&positions).Error
	return positions, err
}

// GetPositionsByTimeRange retrieves positions opened within a time range
func (r *PositionRepository) GetPositionsByTimeRange(start, end time.Time) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.Where("opened_at BETWEEN ? AND ?", start, end).Find(&positions).Error
	return positions, err
}

// GetTotalPnL sums realized P&L over closed positions in a time range
func (r *PositionRepository) GetTotalPnL(start, end time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.Model(&models.Position{}).
		Where("closed_at BETWEEN ? AND ? AND status = ?", start, end, models.PositionStatusClosed).
		Select("COALESCE(SUM(realized_pnl), 0)").
		Scan(&total).Error
	return total, err
}

// GetWinRate returns winning and total closed position counts for a
// time range. A winner is any position that realized a positive P&L.
func (r *PositionRepository) GetWinRate(start, end time.Time) (winners, total int64, err error) {
	err = r.db.Model(&models.Position{}).
		Where("closed_at BETWEEN ? AND ? AND status = ?", start, end, models.PositionStatusClosed).
		Count(&total).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.Model(&models.Position{}).
		Where("closed_at BETWEEN ? AND ? AND status = ? AND realized_pnl > 0",
			start, end, models.PositionStatusClosed).
		Count(&winners).Error
	return winners, total, err
}

// SumOpenExposure totals entry_price * quantity across open positions in
// one bucket of a portfolio.
func (r *PositionRepository) SumOpenExposure(portfolioID uint, bucket string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.Model(&models.Position{}).
		Where("portfolio_id = ? AND bucket = ? AND status IN ?", portfolioID, bucket,
			[]string{models.PositionStatusOpen, models.PositionStatusPartiallyClosed}).
		Select("COALESCE(SUM(entry_price * quantity), 0)").
		Scan(&total).Error
	return total, err
}

// UpdateLocked persists a mutated position with an optimistic version
// check. Returns ErrStalePosition when a concurrent tick won the write.
func (r *PositionRepository) UpdateLocked(position *models.Position) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	return updateLocked(r.db, position)
}

// CommitExit applies a close or partial close as one transaction:
// the position row (version-checked), the ledger entry for the realized
// movement, and the portfolio aggregates recomputed from the surviving
// open positions. realizedDelta is the P&L realized by this exit alone;
// earlier partial closes have already been settled into cash. A failed
// ledger write rolls back the whole exit.
func (r *PositionRepository) CommitExit(position *models.Position, realizedDelta decimal.Decimal, entry *models.LedgerEntry) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := updateLocked(tx, position); err != nil {
			return err
		}
		if entry != nil {
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}
		return refreshPortfolio(tx, position.PortfolioID, func(p *models.Portfolio) {
			p.ApplyRealized(realizedDelta)
		})
	})
}

// RefreshEquity re-aggregates a portfolio's unrealized P&L from its open
// positions and updates the equity/drawdown watermarks, in one
// transaction with the aggregate read.
func (r *PositionRepository) RefreshEquity(portfolioID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return refreshPortfolio(tx, portfolioID, nil)
	})
}

func updateLocked(tx *gorm.DB, position *models.Position) error {
	current := position.Version
	position.Version = current + 1
	res := tx.Model(&models.Position{}).
		Where("id = ? AND version = ?", position.ID, current).
		Select("*").
		Omit("id", "created_at").
		Updates(position)
	if res.Error != nil {
		position.Version = current
		return res.Error
	}
	if res.RowsAffected == 0 {
		position.Version = current
		return ErrStalePosition
	}
	return nil
}

func refreshPortfolio(tx *gorm.DB, portfolioID uint, mutate func(*models.Portfolio)) error {
	var portfolio models.Portfolio
	if err := tx.First(&portfolio, portfolioID).Error; err != nil {
		return err
	}
	var unrealized decimal.Decimal
	err := tx.Model(&models.Position{}).
		Where("portfolio_id = ? AND status IN ?", portfolioID,
			[]string{models.PositionStatusOpen, models.PositionStatusPartiallyClosed}).
		Select("COALESCE(SUM(unrealized_pnl), 0)").
		Scan(&unrealized).Error
	if err != nil {
		return err
	}
	if mutate != nil {
		mutate(&portfolio)
	}
	portfolio.UpdateEquity(unrealized)
	return tx.Save(&portfolio).Error
}

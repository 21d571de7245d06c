package repositories

import (
	"EquityTradeBot/internal/models"
	"errors"

	"gorm.io/gorm"
)

type CapitalBucketRepository struct {
	db *gorm.DB
}

// NewCapitalBucketRepository creates a new instance of CapitalBucketRepository
func NewCapitalBucketRepository(db *gorm.DB) *CapitalBucketRepository {
	return &CapitalBucketRepository{db: db}
}

// FindByPortfolio retrieves the bucket row for a portfolio
func (r *CapitalBucketRepository) FindByPortfolio(portfolioID uint) (*models.CapitalBucket, error) {
	if portfolioID == 0 {
		return nil, errors.New("invalid portfolio id")
	}
	var bucket models.CapitalBucket
	err := r.db.Where("portfolio_id = ?", portfolioID).First(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &bucket, err
}

// Update modifies an existing CapitalBucket record
func (r *CapitalBucketRepository) Update(bucket *models.CapitalBucket) error {
	if bucket == nil {
		return errors.New("bucket cannot be nil")
	}
	return r.db.Save(bucket).Error
}

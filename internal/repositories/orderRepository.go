package repositories

import (
	"EquityTradeBot/internal/models"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindByClientOrderID retrieves an order by its idempotency key
func (r *OrderRepository) FindByClientOrderID(clientOrderID string) (*models.Order, error) {
	if clientOrderID == "" {
		return nil, errors.New("invalid client order id")
	}
	var order models.Order
	err := r.db.Where("client_order_id = ?", clientOrderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &order, err
}

// CreateIdempotent inserts the order, or fetches the existing row when
// the client_order_id already exists. The unique constraint makes this
// insert-or-fetch atomic under concurrent retries. Returns whether a new
// row was created.
func (r *OrderRepository) CreateIdempotent(order *models.Order) (*models.Order, bool, error) {
	if order == nil {
		return nil, false, errors.New("order cannot be nil")
	}
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_order_id"}},
		DoNothing: true,
	}).Create(order)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return order, true, nil
	}
	existing, err := r.FindByClientOrderID(order.ClientOrderID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errors.New("order conflict but existing row not found")
	}
	return existing, false, nil
}

// UpdateStatus records the outcome of a submission attempt
func (r *OrderRepository) UpdateStatus(id uint, status, brokerRef, failureNote string) error {
	if id == 0 {
		return errors.New("invalid id")
	}
	return r.db.Model(&models.Order{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"broker_ref":   brokerRef,
			"failure_note": failureNote,
		}).Error
}

// SetPosition links an order to the position it opened
func (r *OrderRepository) SetPosition(id, positionID uint) error {
	if id == 0 || positionID == 0 {
		return errors.New("invalid id")
	}
	return r.db.Model(&models.Order{}).Where("id = ?", id).
		Update("position_id", positionID).Error
}

// CountSince counts all order attempts for a portfolio in the trailing
// window starting at since.
func (r *OrderRepository) CountSince(portfolioID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Order{}).
		Where("portfolio_id = ? AND created_at >= ?", portfolioID, since).
		Count(&count).Error
	return count, err
}

// CountFailedSince counts failed attempts in the same window
func (r *OrderRepository) CountFailedSince(portfolioID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Order{}).
		Where("portfolio_id = ? AND created_at >= ? AND status = ?",
			portfolioID, since, models.OrderStatusFailed).
		Count(&count).Error
	return count, err
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order already recorded for payment")
	ErrIntentNotFound = errors.New("checkout intent not found")
)

// OrderRepository stores verified orders keyed by payment reference.
type OrderRepository interface {
	// Create inserts the order. A second order for the same PaymentRef (or
	// OrderRef) fails with ErrDuplicateOrder.
	Create(ctx context.Context, order *models.Order) error
	FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error)
	FindByOrderRef(ctx context.Context, orderRef string) (*models.Order, error)
	UpdateLedgerStatus(ctx context.Context, paymentRef, status string) error
}

// IntentRepository stores the cart snapshot taken when an intent is created.
type IntentRepository interface {
	Save(ctx context.Context, intent *models.CheckoutIntent) error
	FindByIntentID(ctx context.Context, intentID string) (*models.CheckoutIntent, error)
}

// GormOrderRepository implements OrderRepository using GORM. The DB must be
// opened with TranslateError so unique violations are recognisable.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	err := r.db.WithContext(ctx).Create(order).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateOrder
	}
	return err
}

func (r *GormOrderRepository) FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error) {
	return r.findOne(ctx, "payment_ref = ?", paymentRef)
}

func (r *GormOrderRepository) FindByOrderRef(ctx context.Context, orderRef string) (*models.Order, error) {
	return r.findOne(ctx, "order_ref = ?", orderRef)
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, arg string) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).Where(query, arg).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *GormOrderRepository) UpdateLedgerStatus(ctx context.Context, paymentRef, status string) error {
	res := r.db.WithContext(ctx).Session(&gorm.Session{SkipHooks: true}).Model(&models.Order{}).
		Where("payment_ref = ?", paymentRef).
		Updates(map[string]interface{}{"ledger_status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// GormIntentRepository implements IntentRepository using GORM.
type GormIntentRepository struct {
	db *gorm.DB
}

func NewGormIntentRepository(db *gorm.DB) *GormIntentRepository {
	return &GormIntentRepository{db: db}
}

func (r *GormIntentRepository) Save(ctx context.Context, intent *models.CheckoutIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *GormIntentRepository) FindByIntentID(ctx context.Context, intentID string) (*models.CheckoutIntent, error) {
	var ci models.CheckoutIntent
	if err := r.db.WithContext(ctx).First(&ci, "intent_id = ?", intentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return &ci, nil
}

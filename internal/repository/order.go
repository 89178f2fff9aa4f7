package repository

import (
	"checkout-reconciler/internal/model"
	"checkout-reconciler/internal/pricing"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("order not found")

// PricingInputs are the order fields a reprice may change alongside the breakdown.
type PricingInputs struct {
	DiscountPercent int
	Shipping        pricing.ShippingSelection
}

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error)
	// UpdateBreakdown overwrites all breakdown fields of an UNPAID order in one
	// statement. It reports false when no UNPAID row matched.
	UpdateBreakdown(ctx context.Context, tx *gorm.DB, orderID string, in PricingInputs, b pricing.Breakdown) (bool, error)
	// MarkPaid flips UNPAID to PAID. It reports whether this call made the transition.
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID, reference string, paidAt time.Time) (bool, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if order.PaymentStatus == "" {
		order.PaymentStatus = model.PaymentStatusUnpaid
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		order.Items[i].Position = i
	}
	return r.conn(tx).WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.conn(tx).WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", orderID).
		First(&order).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) UpdateBreakdown(ctx context.Context, tx *gorm.DB, orderID string, in PricingInputs, b pricing.Breakdown) (bool, error) {
	result := r.conn(tx).WithContext(ctx).Model(&model.Order{}).
		Where(`
			id = ?
			AND payment_status = ?
		`,
			orderID,
			model.PaymentStatusUnpaid,
		).
		Updates(map[string]interface{}{
			"discount_percent": in.DiscountPercent,
			"shipping_method":  string(in.Shipping.Method),
			"ship_country":     in.Shipping.Country,
			"ship_state":       in.Shipping.State,
			"ship_postal_code": in.Shipping.PostalCode,
			"subtotal":         b.Subtotal,
			"discount":         b.Discount,
			"shipping":         b.Shipping,
			"tax_rate":         b.TaxRate,
			"tax":              b.Tax,
			"total":            b.Total,
			"updated_at":       time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *orderRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, orderID, reference string, paidAt time.Time) (bool, error) {
	result := r.conn(tx).WithContext(ctx).Model(&model.Order{}).
		Where(`
			id = ?
			AND payment_status = ?
		`,
			orderID,
			model.PaymentStatusUnpaid,
		).
		Updates(map[string]interface{}{
			"payment_status":     model.PaymentStatusPaid,
			"provider_reference": reference,
			"paid_at":            paidAt,
			"updated_at":         time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

package model

import (
	"checkout-reconciler/internal/money"
	"checkout-reconciler/internal/pricing"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusUnpaid = "UNPAID"
	PaymentStatusPaid   = "PAID"
)

type Order struct {
	ID    string `gorm:"primaryKey;size:36;not null"` // uuid
	Email string `gorm:"size:255;index"`

	// pricing inputs, kept so a reprice can be replayed
	DiscountPercent int    `gorm:"not null;default:0"`
	ShippingMethod  string `gorm:"size:32;not null"`
	ShipCountry     string `gorm:"size:2"`
	ShipState       string `gorm:"size:8"`
	ShipPostalCode  string `gorm:"size:16"`

	// persisted breakdown, read verbatim by every consumer
	Subtotal money.Money     `gorm:"type:bigint;not null;default:0"`
	Discount money.Money     `gorm:"type:bigint;not null;default:0"`
	Shipping money.Money     `gorm:"type:bigint;not null;default:0"`
	TaxRate  decimal.Decimal `gorm:"type:varchar(16);not null;default:'0'"`
	Tax      money.Money     `gorm:"type:bigint;not null;default:0"`
	Total    money.Money     `gorm:"type:bigint;not null;default:0"`

	PaymentStatus     string `gorm:"size:16;index;not null"` // UNPAID, PAID
	ProviderReference string `gorm:"size:128"`
	PaidAt            *time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

func (o *Order) Breakdown() pricing.Breakdown {
	return pricing.Breakdown{
		Subtotal: o.Subtotal,
		Discount: o.Discount,
		Shipping: o.Shipping,
		TaxRate:  o.TaxRate,
		Tax:      o.Tax,
		Total:    o.Total,
	}
}

func (o *Order) ApplyBreakdown(b pricing.Breakdown) {
	o.Subtotal = b.Subtotal
	o.Discount = b.Discount
	o.Shipping = b.Shipping
	o.TaxRate = b.TaxRate
	o.Tax = b.Tax
	o.Total = b.Total
}

func (o *Order) ShippingSelection() pricing.ShippingSelection {
	return pricing.ShippingSelection{
		Method:     pricing.NormalizeMethod(o.ShippingMethod),
		Country:    o.ShipCountry,
		State:      o.ShipState,
		PostalCode: o.ShipPostalCode,
	}
}

func (o *Order) LineItems() []pricing.LineItem {
	lines := make([]pricing.LineItem, len(o.Items))
	for i, item := range o.Items {
		lines[i] = item.LineItem()
	}
	return lines
}

// OrderItem is the cart snapshot taken at order creation. Rows are never updated.
type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK → orders.id
	OrderID   string          `gorm:"size:36;index;not null"`
	Position  int             `gorm:"not null"`
	ProductID string          `gorm:"size:64;not null"`
	UnitPrice decimal.Decimal `gorm:"type:varchar(32);not null"`
	Quantity  int64           `gorm:"not null"`

	CreatedAt time.Time
}

func (i OrderItem) LineItem() pricing.LineItem {
	return pricing.LineItem{
		ProductID: i.ProductID,
		UnitPrice: i.UnitPrice,
		Quantity:  i.Quantity,
	}
}

// ProcessedPaymentEvent is the append-only dedup log for provider webhooks.
type ProcessedPaymentEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	OrderID     string `gorm:"size:36;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// CheckoutSession is the cached provider intent for one (order, total) pair.
type CheckoutSession struct {
	OrderID      string `json:"order_id"`
	TotalCents   int64  `json:"total_cents"`
	Reference    string `json:"reference"`
	ClientSecret string `json:"client_secret"`
	RedirectURL  string `json:"redirect_url,omitempty"`
}

// Migrations lists every table owned by this service.
func Migrations() []any {
	return []any{
		&Order{},
		&OrderItem{},
		&ProcessedPaymentEvent{},
	}
}

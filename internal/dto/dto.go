package dto

import (
	"checkout-reconciler/internal/model"
	"checkout-reconciler/internal/pricing"
	"strings"
	"time"
)

type Item struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	UnitPrice string `json:"unit_price" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gte=0"`
}

type ShippingAddress struct {
	Country    string `json:"country" validate:"omitempty,len=2"`
	State      string `json:"state" validate:"omitempty,max=8"`
	PostalCode string `json:"postal_code" validate:"omitempty,max=16"`
}

// Selection normalizes the address and method. An empty country means US.
func (a ShippingAddress) Selection(method string) pricing.ShippingSelection {
	country := strings.ToUpper(strings.TrimSpace(a.Country))
	if country == "" {
		country = "US"
	}
	return pricing.ShippingSelection{
		Method:     pricing.NormalizeMethod(method),
		Country:    country,
		State:      strings.ToUpper(strings.TrimSpace(a.State)),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
}

type CreateOrderRequest struct {
	Email           string          `json:"email" validate:"omitempty,email"`
	Items           []*Item         `json:"items" validate:"dive"`
	DiscountPercent int             `json:"discount_percent" validate:"gte=0,lte=100"`
	ShippingMethod  string          `json:"shipping_method"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
}

type RepriceRequest struct {
	DiscountPercent *int             `json:"discount_percent" validate:"omitempty,gte=0,lte=100"`
	ShippingMethod  *string          `json:"shipping_method"`
	ShippingAddress *ShippingAddress `json:"shipping_address"`
}

type CheckoutRequest struct {
	OrderID         string          `json:"order_id" validate:"required"`
	ShippingMethod  string          `json:"shipping_method"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
}

type FinalizeRequest struct {
	OrderID           string `json:"order_id" validate:"required"`
	ProviderReference string `json:"provider_reference" validate:"required"`
}

type MarkPaidRequest struct {
	ProviderReference string `json:"provider_reference" validate:"required"`
}

type BreakdownResponse struct {
	Subtotal string   `json:"subtotal"`
	Discount string   `json:"discount_amount"`
	Shipping string   `json:"shipping_amount"`
	TaxRate  string   `json:"tax_rate"`
	Tax      string   `json:"tax_amount"`
	Total    string   `json:"total_amount"`
	Warnings []string `json:"warnings,omitempty"`
}

func NewBreakdownResponse(b pricing.Breakdown) BreakdownResponse {
	return BreakdownResponse{
		Subtotal: b.Subtotal.String(),
		Discount: b.Discount.String(),
		Shipping: b.Shipping.String(),
		TaxRate:  b.TaxRate.String(),
		Tax:      b.Tax.String(),
		Total:    b.Total.String(),
		Warnings: b.Warnings,
	}
}

type ItemResponse struct {
	ProductID string `json:"product_id"`
	UnitPrice string `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

type OrderResponse struct {
	ID                string            `json:"id"`
	Email             string            `json:"email,omitempty"`
	Items             []ItemResponse    `json:"items"`
	DiscountPercent   int               `json:"discount_percent"`
	ShippingMethod    string            `json:"shipping_method"`
	ShippingAddress   ShippingAddress   `json:"shipping_address"`
	Breakdown         BreakdownResponse `json:"breakdown"`
	PaymentStatus     string            `json:"payment_status"`
	ProviderReference string            `json:"provider_reference,omitempty"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// NewOrderResponse renders persisted amounts verbatim; it never reprices.
func NewOrderResponse(o *model.Order) OrderResponse {
	items := make([]ItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = ItemResponse{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice.String(),
			Quantity:  it.Quantity,
		}
	}
	return OrderResponse{
		ID:              o.ID,
		Email:           o.Email,
		Items:           items,
		DiscountPercent: o.DiscountPercent,
		ShippingMethod:  o.ShippingMethod,
		ShippingAddress: ShippingAddress{
			Country:    o.ShipCountry,
			State:      o.ShipState,
			PostalCode: o.ShipPostalCode,
		},
		Breakdown:         NewBreakdownResponse(o.Breakdown()),
		PaymentStatus:     o.PaymentStatus,
		ProviderReference: o.ProviderReference,
		PaidAt:            o.PaidAt,
		CreatedAt:         o.CreatedAt,
	}
}

type CheckoutResponse struct {
	OrderID           string            `json:"order_id"`
	Breakdown         BreakdownResponse `json:"breakdown"`
	ProviderReference string            `json:"provider_reference"`
	ClientSecret      string            `json:"client_secret"`
	Resumed           bool              `json:"resumed"`
}

type MarkPaidResponse struct {
	Order        OrderResponse `json:"order"`
	Transitioned bool          `json:"transitioned"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

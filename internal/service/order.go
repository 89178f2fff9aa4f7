package service

import (
	"checkout-reconciler/internal/dto"
	"checkout-reconciler/internal/model"
	"checkout-reconciler/internal/notification"
	"checkout-reconciler/internal/pricing"
	"checkout-reconciler/internal/repository"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req *dto.CreateOrderRequest) (*model.Order, pricing.Breakdown, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	// Reprice recomputes and overwrites the persisted breakdown of an UNPAID order.
	Reprice(ctx context.Context, orderID string, req *dto.RepriceRequest) (*model.Order, pricing.Breakdown, error)
	// MarkPaid performs the one-way UNPAID to PAID transition. transitioned is
	// true only for the call that actually flipped the state; only that call
	// dispatches the payment_confirmed notification.
	MarkPaid(ctx context.Context, orderID, reference string) (order *model.Order, transitioned bool, err error)
}

type orderServiceImpl struct {
	db        *gorm.DB
	engine    *pricing.Engine
	orderRepo repository.OrderRepository
	notifier  notification.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

func NewOrderService(
	db *gorm.DB,
	engine *pricing.Engine,
	orderRepo repository.OrderRepository,
	notifier notification.Notifier,
	logger *slog.Logger,
) OrderService {
	return &orderServiceImpl{
		db:        db,
		engine:    engine,
		orderRepo: orderRepo,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, req *dto.CreateOrderRequest) (order *model.Order, b pricing.Breakdown, err error) {
	ctx, span := startSpan(ctx, "order.create")
	defer func() { endSpan(span, err) }()

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item == nil {
			continue
		}
		if item.Quantity < 0 {
			return nil, b, fmt.Errorf("%w: quantity for %s is negative", ErrInvalidInput, item.ProductID)
		}
		items = append(items, model.OrderItem{
			ProductID: item.ProductID,
			UnitPrice: s.parseUnitPrice(ctx, item),
			Quantity:  item.Quantity,
		})
	}

	sel := req.ShippingAddress.Selection(req.ShippingMethod)
	order = &model.Order{
		ID:              uuid.NewString(),
		Email:           strings.TrimSpace(req.Email),
		DiscountPercent: req.DiscountPercent,
		ShippingMethod:  string(sel.Method),
		ShipCountry:     sel.Country,
		ShipState:       sel.State,
		ShipPostalCode:  sel.PostalCode,
		PaymentStatus:   model.PaymentStatusUnpaid,
		Items:           items,
	}
	b = s.engine.Price(order.LineItems(), order.DiscountPercent, sel)
	order.ApplyBreakdown(b)
	s.logWarnings(ctx, order.ID, b)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order in db: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, b, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.Int("items", len(items)),
		slog.String("total", order.Total.String()),
	)

	// an empty cart is not worth an email
	if len(items) > 0 {
		s.notify(ctx, notification.KindOrderCreated, order)
	}
	return order, b, nil
}

// parseUnitPrice is the log-and-default boundary for catalogue prices: a
// malformed price is treated as zero.
func (s *orderServiceImpl) parseUnitPrice(ctx context.Context, item *dto.Item) decimal.Decimal {
	price, err := decimal.NewFromString(strings.TrimSpace(item.UnitPrice))
	if err != nil || price.IsNegative() {
		s.logger.WarnContext(ctx, "defaulting malformed unit price to zero",
			slog.String("product_id", item.ProductID),
			slog.String("value", item.UnitPrice),
		)
		return decimal.Zero
	}
	return price
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return s.orderRepo.FindByID(ctx, nil, orderID)
}

func (s *orderServiceImpl) Reprice(ctx context.Context, orderID string, req *dto.RepriceRequest) (order *model.Order, b pricing.Breakdown, err error) {
	ctx, span := startSpan(ctx, "order.reprice", attribute.String("order.id", orderID))
	defer func() { endSpan(span, err) }()

	current, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, b, err
	}
	if current.IsPaid() {
		return nil, b, ErrOrderAlreadyPaid
	}

	in := repository.PricingInputs{
		DiscountPercent: current.DiscountPercent,
		Shipping:        current.ShippingSelection(),
	}
	if req != nil {
		if req.DiscountPercent != nil {
			in.DiscountPercent = *req.DiscountPercent
		}
		method := string(in.Shipping.Method)
		if req.ShippingMethod != nil {
			method = *req.ShippingMethod
		}
		if req.ShippingAddress != nil {
			in.Shipping = req.ShippingAddress.Selection(method)
		} else {
			in.Shipping.Method = pricing.NormalizeMethod(method)
		}
	}

	b = s.engine.Price(current.LineItems(), in.DiscountPercent, in.Shipping)
	s.logWarnings(ctx, orderID, b)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.orderRepo.UpdateBreakdown(ctx, tx, orderID, in, b)
		if err != nil {
			return fmt.Errorf("update breakdown: %w", err)
		}
		if updated {
			return nil
		}
		// zero rows: either paid in the meantime or the driver reported an unchanged row
		latest, err := s.orderRepo.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if latest.IsPaid() {
			return ErrOrderAlreadyPaid
		}
		return nil
	})
	if err != nil {
		return nil, b, err
	}

	order, err = s.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, b, err
	}
	return order, b, nil
}

func (s *orderServiceImpl) MarkPaid(ctx context.Context, orderID, reference string) (order *model.Order, transitioned bool, err error) {
	ctx, span := startSpan(ctx, "order.mark_paid", attribute.String("order.id", orderID))
	defer func() { endSpan(span, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, transitioned, err = markPaidTx(ctx, tx, s.orderRepo, orderID, reference, s.now())
		return err
	})
	if err != nil {
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("order.transitioned", transitioned))

	if transitioned {
		s.logger.InfoContext(ctx, "order marked paid",
			slog.String("order_id", orderID),
			slog.String("provider_reference", reference),
		)
		s.notify(ctx, notification.KindPaymentConfirmed, order)
	}
	return order, transitioned, nil
}

// markPaidTx runs the conditional UNPAID to PAID update inside tx and reloads
// the order. A missing order is ErrOrderNotFound; an already-paid order is
// returned with transitioned=false.
func markPaidTx(ctx context.Context, tx *gorm.DB, repo repository.OrderRepository, orderID, reference string, paidAt time.Time) (*model.Order, bool, error) {
	transitioned, err := repo.MarkPaid(ctx, tx, orderID, reference, paidAt)
	if err != nil {
		return nil, false, fmt.Errorf("mark order paid: %w", err)
	}
	order, err := repo.FindByID(ctx, tx, orderID)
	if err != nil {
		return nil, false, err
	}
	return order, transitioned, nil
}

func (s *orderServiceImpl) notify(ctx context.Context, kind notification.Kind, order *model.Order) {
	dispatch(ctx, s.notifier, s.logger, kind, order, s.now())
}

func (s *orderServiceImpl) logWarnings(ctx context.Context, orderID string, b pricing.Breakdown) {
	for _, w := range b.Warnings {
		s.logger.WarnContext(ctx, "pricing warning", slog.String("order_id", orderID), slog.String("warning", w))
	}
}

// dispatch sends a best-effort notification. Errors are logged, never returned.
func dispatch(ctx context.Context, notifier notification.Notifier, logger *slog.Logger, kind notification.Kind, order *model.Order, now time.Time) {
	if notifier == nil {
		return
	}
	err := notifier.Notify(ctx, notification.Notification{
		Kind:       kind,
		OrderID:    order.ID,
		Email:      order.Email,
		TotalCents: order.Total.MinorUnits(),
		OccurredAt: now.UTC(),
	})
	if err != nil {
		logger.ErrorContext(ctx, "notification failed",
			slog.String("kind", string(kind)),
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

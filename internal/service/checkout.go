package service

import (
	"checkout-reconciler/internal/client"
	"checkout-reconciler/internal/dto"
	"checkout-reconciler/internal/model"
	"checkout-reconciler/internal/pricing"
	"checkout-reconciler/internal/repository"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
)

type CheckoutResult struct {
	Order     *model.Order
	Breakdown pricing.Breakdown
	Intent    *client.Intent
	Resumed   bool
}

type CheckoutService interface {
	// Checkout reprices the order for the given shipping choice and returns a
	// provider intent for exactly the persisted total.
	Checkout(ctx context.Context, req *dto.CheckoutRequest) (*CheckoutResult, error)
	// Finalize confirms a client-side completed payment with the provider and
	// marks the order paid when the intent succeeded.
	Finalize(ctx context.Context, req *dto.FinalizeRequest) (*model.Order, bool, error)
}

type checkoutServiceImpl struct {
	orders      OrderService
	gateway     client.PaymentGateway
	sessionRepo repository.CheckoutSessionRepository
	currency    string
	logger      *slog.Logger
}

func NewCheckoutService(
	orders OrderService,
	gateway client.PaymentGateway,
	sessionRepo repository.CheckoutSessionRepository,
	currency string,
	logger *slog.Logger,
) CheckoutService {
	if sessionRepo == nil {
		sessionRepo = repository.NopCheckoutSessionRepository{}
	}
	return &checkoutServiceImpl{
		orders:      orders,
		gateway:     gateway,
		sessionRepo: sessionRepo,
		currency:    currency,
		logger:      logger,
	}
}

func (s *checkoutServiceImpl) Checkout(ctx context.Context, req *dto.CheckoutRequest) (result *CheckoutResult, err error) {
	ctx, span := startSpan(ctx, "checkout.create", attribute.String("order.id", req.OrderID))
	defer func() { endSpan(span, err) }()

	method := req.ShippingMethod
	order, b, err := s.orders.Reprice(ctx, req.OrderID, &dto.RepriceRequest{
		ShippingMethod:  &method,
		ShippingAddress: &req.ShippingAddress,
	})
	if err != nil {
		return nil, err
	}
	if !order.Total.IsPositive() {
		return nil, ErrZeroTotal
	}
	total := order.Total.MinorUnits()
	span.SetAttributes(attribute.Int64("order.total_cents", total))

	if intent, ok := s.resume(ctx, order.ID, total); ok {
		return &CheckoutResult{Order: order, Breakdown: b, Intent: intent, Resumed: true}, nil
	}

	// no DB transaction is open here; the provider call may block up to its timeout
	intent, err := s.gateway.CreateIntent(ctx, client.IntentRequest{
		OrderID:        order.ID,
		Amount:         order.Total,
		Currency:       s.currency,
		IdempotencyKey: client.IdempotencyKey(order.ID, order.Total),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	if err := s.sessionRepo.Save(ctx, &model.CheckoutSession{
		OrderID:      order.ID,
		TotalCents:   total,
		Reference:    intent.Reference,
		ClientSecret: intent.ClientSecret,
	}); err != nil {
		s.logger.WarnContext(ctx, "cache checkout session", slog.String("order_id", order.ID), slog.String("error", err.Error()))
	}

	s.logger.InfoContext(ctx, "checkout intent created",
		slog.String("order_id", order.ID),
		slog.String("provider_reference", intent.Reference),
		slog.Int64("total_cents", total),
	)
	return &CheckoutResult{Order: order, Breakdown: b, Intent: intent}, nil
}

// resume returns the cached intent for (order, total) when the provider says
// the buyer can still complete it.
func (s *checkoutServiceImpl) resume(ctx context.Context, orderID string, total int64) (*client.Intent, bool) {
	session, err := s.sessionRepo.Get(ctx, orderID, total)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionMiss) {
			s.logger.WarnContext(ctx, "read checkout session", slog.String("order_id", orderID), slog.String("error", err.Error()))
		}
		return nil, false
	}

	intent, err := s.gateway.RetrieveIntent(ctx, session.Reference)
	if err != nil {
		s.logger.WarnContext(ctx, "retrieve cached intent", slog.String("order_id", orderID), slog.String("error", err.Error()))
		return nil, false
	}
	if !intent.Status.Resumable() || intent.AmountCents != total {
		_ = s.sessionRepo.Delete(ctx, orderID, total)
		return nil, false
	}
	if intent.ClientSecret == "" {
		intent.ClientSecret = session.ClientSecret
	}
	return intent, true
}

func (s *checkoutServiceImpl) Finalize(ctx context.Context, req *dto.FinalizeRequest) (order *model.Order, transitioned bool, err error) {
	ctx, span := startSpan(ctx, "checkout.finalize", attribute.String("order.id", req.OrderID))
	defer func() { endSpan(span, err) }()

	current, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, false, err
	}
	if current.IsPaid() {
		return current, false, nil
	}

	intent, err := s.gateway.RetrieveIntent(ctx, req.ProviderReference)
	if err != nil {
		return nil, false, fmt.Errorf("retrieve payment intent: %w", err)
	}
	if intent.OrderID != "" && intent.OrderID != req.OrderID {
		return nil, false, ErrReferenceMismatch
	}
	if intent.Status != client.IntentSucceeded {
		return nil, false, fmt.Errorf("%w: intent status %s", ErrPaymentNotConfirmed, intent.Status)
	}
	if intent.AmountCents != current.Total.MinorUnits() {
		s.logger.WarnContext(ctx, "charged amount differs from persisted total",
			slog.String("order_id", req.OrderID),
			slog.Int64("charged_cents", intent.AmountCents),
			slog.Int64("total_cents", current.Total.MinorUnits()),
		)
	}

	return s.orders.MarkPaid(ctx, req.OrderID, intent.Reference)
}

package service

import (
	"checkout-reconciler/internal/model"
	"checkout-reconciler/internal/notification"
	"checkout-reconciler/internal/observability"
	"checkout-reconciler/internal/repository"
	"checkout-reconciler/internal/webhook"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeApplied     Outcome = "applied"
	OutcomeAlreadyPaid Outcome = "already_paid"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeIgnored     Outcome = "ignored"
)

type WebhookService interface {
	// HandleWebhook verifies, deduplicates and applies one provider event. A
	// nil error means the provider may be acknowledged with 2xx.
	HandleWebhook(ctx context.Context, signature string, body []byte) (Outcome, error)
}

type webhookServiceImpl struct {
	db        *gorm.DB
	verifier  *webhook.Verifier
	orderRepo repository.OrderRepository
	eventRepo repository.PaymentEventRepository
	notifier  notification.Notifier
	logger    *slog.Logger
	events    metric.Int64Counter
	now       func() time.Time
}

func NewWebhookService(
	db *gorm.DB,
	verifier *webhook.Verifier,
	orderRepo repository.OrderRepository,
	eventRepo repository.PaymentEventRepository,
	notifier notification.Notifier,
	logger *slog.Logger,
) WebhookService {
	counter, err := otel.Meter(observability.TracerName).Int64Counter("payment_webhook_events",
		metric.WithDescription("Payment webhook events by outcome"))
	if err != nil {
		logger.Warn("create webhook counter", slog.String("error", err.Error()))
	}
	return &webhookServiceImpl{
		db:        db,
		verifier:  verifier,
		orderRepo: orderRepo,
		eventRepo: eventRepo,
		notifier:  notifier,
		logger:    logger,
		events:    counter,
		now:       time.Now,
	}
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, signature string, body []byte) (outcome Outcome, err error) {
	ctx, span := startSpan(ctx, "webhook.reconcile")
	defer func() {
		span.SetAttributes(attribute.String("webhook.outcome", string(outcome)))
		endSpan(span, err)
		s.count(ctx, outcome, err)
	}()

	if err := s.verifier.Verify(signature, body); err != nil {
		return "", err
	}

	event, err := webhook.Parse(body)
	if err != nil {
		return "", err
	}
	span.SetAttributes(
		attribute.String("webhook.event_id", event.ID),
		attribute.String("webhook.event_type", event.Type),
	)
	logger := s.logger.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))

	if !event.Relevant() {
		logger.DebugContext(ctx, "ignoring webhook event type")
		return OutcomeIgnored, nil
	}

	exists, err := s.eventRepo.Exists(ctx, event.ID)
	if err != nil {
		return "", fmt.Errorf("check processed events: %w", err)
	}
	if exists {
		logger.InfoContext(ctx, "webhook event already processed")
		return OutcomeDuplicate, nil
	}

	payment, err := event.Payment()
	if errors.Is(err, webhook.ErrNoOrderID) {
		logger.WarnContext(ctx, "webhook event has no order reference, ignoring")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}
	if !payment.Paid {
		logger.InfoContext(ctx, "checkout completed without payment, waiting for a later event",
			slog.String("order_id", payment.OrderID))
		return OutcomeIgnored, nil
	}
	logger = logger.With(slog.String("order_id", payment.OrderID))

	order, transitioned, err := s.apply(ctx, event, payment)
	if errors.Is(err, ErrDuplicateEvent) {
		// lost the race against a concurrent delivery of the same event
		logger.InfoContext(ctx, "webhook event recorded concurrently")
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", err
	}

	if !transitioned {
		logger.InfoContext(ctx, "order already paid, event recorded")
		return OutcomeAlreadyPaid, nil
	}

	logger.InfoContext(ctx, "order marked paid from webhook", slog.String("provider_reference", payment.Reference))
	dispatch(ctx, s.notifier, s.logger, notification.KindPaymentConfirmed, order, s.now())
	return OutcomeApplied, nil
}

// apply records the event and marks the order paid in one transaction. An
// unknown order rolls back the record so a redelivery can still apply it.
func (s *webhookServiceImpl) apply(ctx context.Context, event *webhook.Event, payment *webhook.Payment) (*model.Order, bool, error) {
	var (
		order        *model.Order
		transitioned bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.eventRepo.Record(ctx, tx, event.ID, event.Type, payment.OrderID); err != nil {
			return err
		}

		current, err := s.orderRepo.FindByID(ctx, tx, payment.OrderID)
		if err != nil {
			return err
		}
		s.crossCheckAmount(ctx, payment, current.Total.MinorUnits())

		order, transitioned, err = markPaidTx(ctx, tx, s.orderRepo, payment.OrderID, payment.Reference, s.now())
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return order, transitioned, nil
}

// crossCheckAmount logs when the provider charged something other than the
// persisted total. The payment is still applied.
func (s *webhookServiceImpl) crossCheckAmount(ctx context.Context, payment *webhook.Payment, totalCents int64) {
	for _, charged := range []int64{payment.ChargedTotalCents, payment.AmountCents} {
		if charged != 0 && charged != totalCents {
			s.logger.WarnContext(ctx, "charged amount differs from persisted total",
				slog.String("order_id", payment.OrderID),
				slog.Int64("charged_cents", charged),
				slog.Int64("total_cents", totalCents),
			)
			return
		}
	}
}

func (s *webhookServiceImpl) count(ctx context.Context, outcome Outcome, err error) {
	if s.events == nil {
		return
	}
	label := string(outcome)
	if err != nil {
		label = "error"
	}
	s.events.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", label)))
}

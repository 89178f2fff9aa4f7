package service

import (
	"checkout-reconciler/internal/client"
	"checkout-reconciler/internal/config"
	"checkout-reconciler/internal/dto"
	"checkout-reconciler/internal/notification"
	"checkout-reconciler/internal/pricing"
	"checkout-reconciler/internal/repository"
	"checkout-reconciler/internal/webhook"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_service_test"

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) count(kind notification.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

type stubGateway struct {
	mu       sync.Mutex
	creates  int
	retrieve map[string]*client.Intent
	err      error
}

func (g *stubGateway) CreateIntent(_ context.Context, req client.IntentRequest) (*client.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.creates++
	ref := fmt.Sprintf("pi_%d", g.creates)
	intent := &client.Intent{
		Reference:    ref,
		ClientSecret: ref + "_secret",
		Status:       client.IntentRequiresPaymentMethod,
		AmountCents:  req.Amount.MinorUnits(),
		OrderID:      req.OrderID,
	}
	if g.retrieve == nil {
		g.retrieve = map[string]*client.Intent{}
	}
	g.retrieve[ref] = intent
	return intent, nil
}

func (g *stubGateway) RetrieveIntent(_ context.Context, reference string) (*client.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	intent, ok := g.retrieve[reference]
	if !ok {
		return nil, &client.GatewayError{Op: "retrieve intent", StatusCode: 404, Message: "no such intent"}
	}
	cp := *intent
	return &cp, nil
}

func (g *stubGateway) setStatus(reference string, status client.IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieve[reference].Status = status
}

type harness struct {
	db        *gorm.DB
	notifier  *recordingNotifier
	gateway   *stubGateway
	orders    OrderService
	checkout  CheckoutService
	webhooks  WebhookService
	eventRepo repository.PaymentEventRepository
}

func newHarness(t *testing.T, sessions repository.CheckoutSessionRepository) *harness {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := client.OpenDatabase(config.Database{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	logger := slog.New(slog.DiscardHandler)
	notifier := &recordingNotifier{}
	gateway := &stubGateway{}
	orderRepo := repository.NewOrderRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)
	engine := pricing.NewEngine(pricing.DefaultConfig())

	orders := NewOrderService(db, engine, orderRepo, notifier, logger)
	return &harness{
		db:        db,
		notifier:  notifier,
		gateway:   gateway,
		orders:    orders,
		checkout:  NewCheckoutService(orders, gateway, sessions, "usd", logger),
		webhooks:  NewWebhookService(db, webhook.NewVerifier(webhookSecret, 5*time.Minute), orderRepo, eventRepo, notifier, logger),
		eventRepo: eventRepo,
	}
}

func (h *harness) createOrder(t *testing.T, items ...*dto.Item) string {
	t.Helper()
	if len(items) == 0 {
		items = []*dto.Item{{ProductID: "sku-1", UnitPrice: "100.00", Quantity: 1}}
	}
	order, _, err := h.orders.CreateOrder(context.Background(), &dto.CreateOrderRequest{
		Email:           "buyer@example.com",
		Items:           items,
		ShippingMethod:  "standard",
		ShippingAddress: dto.ShippingAddress{Country: "US", State: "NY"},
	})
	require.NoError(t, err)
	return order.ID
}

func signedEvent(t *testing.T, eventID, eventType, orderID, reference string) (string, []byte) {
	t.Helper()
	var object string
	switch eventType {
	case webhook.EventCheckoutSessionCompleted:
		object = fmt.Sprintf(`{"id":"cs_%s","client_reference_id":%q,"payment_intent":%q,"payment_status":"paid"}`, eventID, orderID, reference)
	default:
		object = fmt.Sprintf(`{"id":%q,"metadata":{"order_id":%q}}`, reference, orderID)
	}
	body := []byte(fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":%s}}`, eventID, eventType, object))
	return webhook.Sign(webhookSecret, time.Now(), body), body
}
